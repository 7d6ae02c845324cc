package store_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/examdrill/backend/internal/domain/bank"
	"github.com/examdrill/backend/internal/domain/question"
	"github.com/examdrill/backend/internal/store"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeQuestions(n int) []*question.Question {
	out := make([]*question.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &question.Question{
			ID:     fmt.Sprintf("1.3.%d", i+1),
			Kind:   question.KindSingleChoice,
			Answer: "A",
		})
	}
	return out
}

func index(questions []*question.Question) map[string]*question.Question {
	idx := make(map[string]*question.Question)
	for _, q := range questions {
		idx[q.ID] = q
	}
	return idx
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openStore(t)

	questions := makeQuestions(3)
	questions[0].TimesAnswered, questions[0].Streak = 4, 2
	questions[0].Mastered = true
	questions[1].TimesAnswered, questions[1].TimesWrong, questions[1].Marked = 2, 1, true

	if err := s.SaveSetProgress(questions, 1, "甲"); err != nil {
		t.Fatalf("save: %v", err)
	}

	cursor, lastSet, rows, err := s.LoadSetProgress("甲")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cursor != 1 {
		t.Errorf("expected cursor 1, got %d", cursor)
	}
	if lastSet != "甲" {
		t.Errorf("expected last set 甲, got %q", lastSet)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	// Applying onto an identically shaped fresh set reproduces all
	// five mutable fields.
	fresh := makeQuestions(3)
	store.ApplyRows(rows, index(fresh))
	for i := range questions {
		want, got := questions[i], fresh[i]
		if got.TimesAnswered != want.TimesAnswered ||
			got.Streak != want.Streak ||
			got.TimesWrong != want.TimesWrong ||
			got.Marked != want.Marked ||
			got.Mastered != want.Mastered {
			t.Errorf("question %s: applied %+v, want %+v", want.ID, got, want)
		}
	}
}

func TestSaveSetProgress_ReplacesWholesale(t *testing.T) {
	s := openStore(t)

	questions := makeQuestions(3)
	if err := s.SaveSetProgress(questions, 0, "甲"); err != nil {
		t.Fatal(err)
	}

	// Second save with fewer questions must not leave stale rows.
	if err := s.SaveSetProgress(questions[:1], 0, "甲"); err != nil {
		t.Fatal(err)
	}

	_, _, rows, err := s.LoadSetProgress("甲")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after replacement, got %d", len(rows))
	}
}

func TestPerSetCursorIsolation(t *testing.T) {
	s := openStore(t)

	if err := s.SaveSetProgress(makeQuestions(5), 3, "甲"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSetProgress(makeQuestions(5), 1, "乙"); err != nil {
		t.Fatal(err)
	}

	// Saving 乙 must not clobber 甲's cursor.
	cursor, lastSet, _, err := s.LoadSetProgress("甲")
	if err != nil {
		t.Fatal(err)
	}
	if cursor != 3 {
		t.Errorf("expected 甲's cursor 3, got %d", cursor)
	}
	// The active-set pointer does move with the latest save.
	if lastSet != "乙" {
		t.Errorf("expected last set 乙, got %q", lastSet)
	}
}

func TestSaveSetProgress_LeavesOtherSetsAlone(t *testing.T) {
	s := openStore(t)

	if err := s.SaveSetProgress(makeQuestions(2), 0, "甲"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSetProgress(makeQuestions(4), 0, "乙"); err != nil {
		t.Fatal(err)
	}

	_, _, rows, err := s.LoadSetProgress("甲")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 甲's 2 rows untouched, got %d", len(rows))
	}
}

func TestApplyRows_DropsUnknownIdentities(t *testing.T) {
	questions := makeQuestions(1)
	rows := []store.ProgressRow{
		{QuestionID: "1.3.1", Answered: 2, Streak: 1},
		{QuestionID: "9.9.9", Answered: 7, Mastered: true}, // stale row from an edited bank
	}
	store.ApplyRows(rows, index(questions))

	if questions[0].TimesAnswered != 2 || questions[0].Streak != 1 {
		t.Error("matching row must be applied")
	}
	// Nothing to assert for the stale row beyond not panicking; the
	// remaining question must be untouched by it.
	if questions[0].Mastered {
		t.Error("stale row must not bleed into another question")
	}
}

func TestSaveAllLoadAll(t *testing.T) {
	s := openStore(t)

	col := bank.NewCollection()
	tableA := tableFor(3)
	tableB := tableFor(2)
	a, err := col.Load(tableA, "甲")
	if err != nil {
		t.Fatal(err)
	}
	b, err := col.Load(tableB, "乙")
	if err != nil {
		t.Fatal(err)
	}

	a.Questions[0].TimesAnswered, a.Questions[0].Streak = 2, 2
	a.Questions[0].Mastered = true
	a.Cursor = 2
	b.Questions[1].TimesWrong = 3
	b.Cursor = 1
	col.SetCurrent("乙")

	if err := s.SaveAllProgress(col); err != nil {
		t.Fatalf("save all: %v", err)
	}

	// Fresh collection, same shape.
	col2 := bank.NewCollection()
	col2.Load(tableFor(3), "甲")
	col2.Load(tableFor(2), "乙")

	cursor, lastSet, err := s.LoadAllProgress(col2)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if lastSet != "乙" {
		t.Errorf("expected last set 乙, got %q", lastSet)
	}
	if cursor != 1 {
		t.Errorf("expected global cursor 1, got %d", cursor)
	}

	a2, _ := col2.Get("甲")
	if !a2.Questions[0].Mastered || a2.Questions[0].Streak != 2 {
		t.Error("甲's progress not restored")
	}
	b2, _ := col2.Get("乙")
	if b2.Questions[1].TimesWrong != 3 {
		t.Error("乙's progress not restored")
	}

	// Per-set pointers were written too.
	if c, err := s.SetCursor("甲"); err != nil || c != 2 {
		t.Errorf("expected 甲's saved cursor 2, got %d (err %v)", c, err)
	}
}

func TestSetCursor_NotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.SetCursor("从未保存"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func tableFor(n int) *bank.Table {
	t := &bank.Table{Columns: bank.RequiredColumns}
	for i := 0; i < n; i++ {
		t.Records = append(t.Records, map[string]string{
			bank.ColKind:     "单选题",
			bank.ColLevel:    "技师",
			bank.ColID:       fmt.Sprintf("1.3.%d", i+1),
			bank.ColSequence: fmt.Sprintf("%d", i+1),
			bank.ColPrompt:   "题目",
			bank.ColOptionA:  "甲",
			bank.ColAnswer:   "A",
		})
	}
	return t
}
