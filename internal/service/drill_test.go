package service_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/examdrill/backend/internal/service"
	"github.com/examdrill/backend/internal/store"
)

const drillExport = `1.1.1. 第1题
第一道题？
A.甲
B.乙
正确答案：A
1.1.2. 第2题
第二道题？
A.甲
B.乙
正确答案：B
1.1.3. 第3题
第三道题？
A.甲
B.乙
正确答案：A
`

func newService(t *testing.T, advanceDelay time.Duration) (*service.DrillService, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewDrillService(st, logger, advanceDelay), st
}

func TestImportAndAnswer(t *testing.T) {
	svc, _ := newService(t, time.Hour) // no auto-advance during the test

	count, err := svc.ImportText("演示题库", drillExport)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 questions imported, got %d", count)
	}

	q, err := svc.CurrentQuestion()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if q.ID != "1.1.1" {
		t.Fatalf("expected first question, got %s", q.ID)
	}

	result, err := svc.SubmitAnswer("B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Correct {
		t.Error("B must grade wrong for question 1")
	}
	if result.CorrectAnswer != "A" {
		t.Errorf("expected revealed answer A, got %q", result.CorrectAnswer)
	}
	q, _ = svc.CurrentQuestion()
	if q.TimesWrong != 1 || q.Streak != 0 {
		t.Errorf("wrong answer not recorded: wrong=%d streak=%d", q.TimesWrong, q.Streak)
	}

	result, err = svc.SubmitAnswer("A")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Correct || result.Streak != 1 || result.Mastered {
		t.Errorf("first correct: %+v", result)
	}
	result, _ = svc.SubmitAnswer("A")
	if !result.Mastered {
		t.Error("second straight correct must master")
	}
}

func TestAutoAdvance_AfterCorrectAnswer(t *testing.T) {
	svc, _ := newService(t, 10*time.Millisecond)
	if _, err := svc.ImportText("演示题库", drillExport); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SubmitAnswer("A"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		q, err := svc.CurrentQuestion()
		if err != nil {
			t.Fatal(err)
		}
		if q.ID == "1.1.2" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("auto-advance never moved off %s", q.ID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAutoAdvance_DroppedAfterManualNavigation(t *testing.T) {
	svc, _ := newService(t, 50*time.Millisecond)
	if _, err := svc.ImportText("演示题库", drillExport); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SubmitAnswer("A"); err != nil {
		t.Fatal(err)
	}
	// Manual navigation before the timer fires supersedes it.
	if _, err := svc.Next(); err != nil {
		t.Fatal(err)
	}
	q, _ := svc.CurrentQuestion()
	if q.ID != "1.1.2" {
		t.Fatalf("expected manual advance to 1.1.2, got %s", q.ID)
	}

	time.Sleep(150 * time.Millisecond)
	q, _ = svc.CurrentQuestion()
	if q.ID != "1.1.2" {
		t.Errorf("stale auto-advance moved the cursor to %s", q.ID)
	}
}

func TestNext_ExhaustionStartsNewRound(t *testing.T) {
	svc, _ := newService(t, time.Hour)
	if _, err := svc.ImportText("演示题库", drillExport); err != nil {
		t.Fatal(err)
	}

	svc.Next() // → 1.1.2
	svc.Next() // → 1.1.3

	restarted, err := svc.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !restarted {
		t.Fatal("expected a new round at the end of the pass")
	}
	q, _ := svc.CurrentQuestion()
	if q.ID != "1.1.1" {
		t.Errorf("new round must start at the first unmastered question, got %s", q.ID)
	}
}

func TestSwitchSet_PersistsAndRestores(t *testing.T) {
	svc, st := newService(t, time.Hour)
	if _, err := svc.ImportText("甲", drillExport); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SubmitAnswer("A"); err != nil {
		t.Fatal(err)
	}
	svc.Next()

	// Importing a second set saves 甲 first.
	if _, err := svc.ImportText("乙", drillExport); err != nil {
		t.Fatal(err)
	}

	_, _, rows, err := st.LoadSetProgress("甲")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, row := range rows {
		if row.QuestionID == "1.1.1" {
			found = true
			if row.Answered != 1 || row.Streak != 1 {
				t.Errorf("persisted row = %+v", row)
			}
		}
	}
	if !found {
		t.Fatal("甲's progress was not persisted on switch")
	}

	// Switching back reapplies the persisted rows and cursor.
	if err := svc.SwitchSet("甲"); err != nil {
		t.Fatal(err)
	}
	q, _ := svc.CurrentQuestion()
	if q.ID != "1.1.2" {
		t.Errorf("expected restored cursor on 1.1.2, got %s", q.ID)
	}
}

func TestRestore_PrefersPerSetCursor(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewSQLite(filepath.Join(dir, "progress.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	banksDir := filepath.Join(dir, "banks")
	if err := os.Mkdir(banksDir, 0o755); err != nil {
		t.Fatal(err)
	}

	svc1 := service.NewDrillService(st, logger, time.Hour)
	if _, err := svc1.ImportText("甲", drillExport); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(banksDir, "甲.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc1.ExportXLSX("甲", f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := svc1.SubmitAnswer("A"); err != nil {
		t.Fatal(err)
	}
	svc1.Next()
	if err := svc1.SaveAll(); err != nil {
		t.Fatal(err)
	}

	// Move once more and save through the per-set path only, so the
	// per-set pointer (2) diverges from the global one (1).
	svc1.Next()
	if err := svc1.SwitchSet("甲"); err != nil {
		t.Fatal(err)
	}

	// A fresh process: scan the banks directory and restore.
	svc2 := service.NewDrillService(st, logger, time.Hour)
	loaded, err := svc2.LoadBanksFromDir(banksDir)
	if err != nil || loaded != 1 {
		t.Fatalf("loaded %d banks, err %v", loaded, err)
	}
	if err := svc2.Restore(); err != nil {
		t.Fatal(err)
	}

	q, err := svc2.CurrentQuestion()
	if err != nil {
		t.Fatal(err)
	}
	if q.ID != "1.1.3" {
		t.Errorf("expected the per-set cursor on 1.1.3, got %s", q.ID)
	}
	if q2, _ := svc2.Wrong("甲"); len(q2) != 0 {
		t.Errorf("expected no wrong questions restored, got %d", len(q2))
	}
	p, err := svc2.Progress("甲")
	if err != nil {
		t.Fatal(err)
	}
	if p.Answered != 1 || p.Correct != 1 {
		t.Errorf("restored progress = %+v", p)
	}
}

func TestReleaseRoundTrip(t *testing.T) {
	svc, _ := newService(t, time.Hour)
	if _, err := svc.ImportText("甲", drillExport); err != nil {
		t.Fatal(err)
	}

	// Master question 1 after getting it wrong twice.
	svc.SubmitAnswer("B")
	svc.SubmitAnswer("B")
	svc.SubmitAnswer("A")
	svc.SubmitAnswer("A")

	stats, err := svc.ReleaseStats("甲")
	if err != nil {
		t.Fatal(err)
	}
	if stats[2] != 1 {
		t.Fatalf("expected one mastered question with 2 wrong answers, got %v", stats)
	}

	count, err := svc.Release("甲", 2)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 released, got %d", count)
	}

	q, _ := svc.CurrentQuestion()
	if q.Mastered {
		t.Error("released question must be back in rotation")
	}

	// Raising the threshold above the wrong count releases nothing.
	count, err = svc.Release("甲", 5)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 released at threshold 5, got %d", count)
	}
}
