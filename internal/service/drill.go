package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/examdrill/backend/internal/domain/bank"
	"github.com/examdrill/backend/internal/domain/question"
	"github.com/examdrill/backend/internal/ingest"
	"github.com/examdrill/backend/internal/scheduler"
	"github.com/examdrill/backend/internal/store"
)

var (
	ErrNoBank     = errors.New("no question bank loaded")
	ErrNoQuestion = errors.New("no current question")
	ErrUnknownSet = errors.New("unknown question set")
)

// DrillService drives the quiz loop: it owns the in-memory bank
// collection, triggers persistence on lifecycle events (switch, bulk
// ops, shutdown) and runs the delayed auto-advance after a correct
// answer. All mutations are serialized behind one mutex; the store and
// the collection never see concurrent writers.
type DrillService struct {
	store  *store.SQLiteStore
	sched  *scheduler.Scheduler
	logger *slog.Logger

	advanceDelay time.Duration

	mu  sync.Mutex
	col *bank.Collection
}

func NewDrillService(st *store.SQLiteStore, logger *slog.Logger, advanceDelay time.Duration) *DrillService {
	return &DrillService{
		store:        st,
		sched:        scheduler.New(),
		logger:       logger,
		advanceDelay: advanceDelay,
		col:          bank.NewCollection(),
	}
}

// LoadBanksFromDir loads every .xlsx bank in dir. A directory with no
// banks is not an error: the user can import one over the API.
func (s *DrillService) LoadBanksFromDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, path := range paths {
		if err := s.loadBankFile(path); err != nil {
			s.logger.Error("failed to load bank file", "path", path, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

func (s *DrillService) loadBankFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := ingest.ReadXLSX(f)
	if err != nil {
		return err
	}

	name := setNameFromPath(path)
	b, err := s.col.Load(table, name)
	if err != nil {
		return err
	}
	s.logger.Info("loaded question bank", "set", name, "questions", len(b.Questions))
	return nil
}

func setNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Restore reconciles persisted progress onto the loaded banks and
// resolves the active set and cursor position. Per-set cursor pointers
// win; the legacy global pointer is used only when the resolved set has
// never been saved under the per-set scheme.
func (s *DrillService) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	globalCursor, lastSet, err := s.store.LoadAllProgress(s.col)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	if lastSet != "" {
		s.col.SetCurrent(lastSet)
	}
	b := s.col.Current()
	if b == nil {
		return nil
	}

	cursor, err := s.store.SetCursor(b.Name)
	if errors.Is(err, store.ErrNotFound) {
		cursor = globalCursor
	} else if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	b.SetCursor(cursor)

	s.logger.Info("restored session", "set", b.Name, "cursor", b.Cursor)
	return nil
}

// ImportText parses a raw export and registers the result as a new set,
// saving the previous set's progress first and persisting the fresh
// rows immediately.
func (s *DrillService) ImportText(name, text string) (int, error) {
	table := ingest.ParseText(text)
	if len(table.Records) == 0 {
		return 0, errors.New("no questions found in export text")
	}
	return s.importTable(name, table)
}

// ImportXLSX registers a spreadsheet bank uploaded by the user.
func (s *DrillService) ImportXLSX(filename string, r io.Reader) (int, error) {
	table, err := ingest.ReadXLSX(r)
	if err != nil {
		return 0, err
	}
	return s.importTable(setNameFromPath(filename), table)
}

func (s *DrillService) importTable(name string, table *bank.Table) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveCurrentLocked()

	b, err := s.col.Load(table, name)
	if err != nil {
		return 0, err
	}
	s.sched.CancelAll()

	if err := s.store.SaveSetProgress(b.Questions, b.Cursor, b.Name); err != nil {
		return 0, fmt.Errorf("persist imported set: %w", err)
	}
	s.logger.Info("imported question bank", "set", name, "questions", len(b.Questions))
	return len(b.Questions), nil
}

// SwitchSet saves the active set's progress, switches to the named set
// and reapplies that set's persisted rows and cursor. On a persistence
// read failure the target set keeps its just-created defaults.
func (s *DrillService) SwitchSet(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.col.Get(name); !ok {
		return ErrUnknownSet
	}

	s.saveCurrentLocked()
	s.sched.CancelAll()
	s.col.SetCurrent(name)

	b := s.col.Current()
	cursor, _, rows, err := s.store.LoadSetProgress(name)
	if err != nil {
		s.logger.Error("failed to load set progress", "set", name, "error", err)
		return nil
	}
	store.ApplyRows(rows, b.IdentityIndex())
	b.SetCursor(cursor)

	// The persisted position may sit on a since-mastered question.
	if q := b.Current(); q != nil && q.Mastered {
		if !b.Advance(bank.Next) {
			b.SeekFirstUnmastered()
		}
	}
	return nil
}

// saveCurrentLocked persists the active set, logging failures instead
// of propagating: a failed save must not block navigation.
func (s *DrillService) saveCurrentLocked() {
	b := s.col.Current()
	if b == nil {
		return
	}
	if err := s.store.SaveSetProgress(b.Questions, b.Cursor, b.Name); err != nil {
		s.logger.Error("failed to save set progress", "set", b.Name, "error", err)
	}
}

// CurrentQuestion returns a copy of the question under the cursor.
// Copies keep callers from reading progress fields while another
// request mutates them under the service lock.
func (s *DrillService) CurrentQuestion() (question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.col.Current()
	if b == nil {
		return question.Question{}, ErrNoBank
	}
	q := b.Current()
	if q == nil {
		return question.Question{}, ErrNoQuestion
	}
	return *q, nil
}

// Availability reports whether unmastered questions exist in either
// direction from the cursor.
func (s *DrillService) Availability() (next, prev bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.col.Current()
	if b == nil {
		return false, false
	}
	return b.HasNext(), b.HasPrev()
}

// AnswerResult is what the user sees after grading a submission.
type AnswerResult struct {
	Correct       bool
	CorrectAnswer string
	Explanation   string
	Streak        int
	Mastered      bool
}

// SubmitAnswer grades the selection against the current question,
// records the outcome and, when correct, schedules the auto-advance.
// The advance callback is keyed by question identity and checks the
// cursor again at fire time, so manual navigation in the meantime makes
// it a no-op.
func (s *DrillService) SubmitAnswer(selected string) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.col.Current()
	if b == nil {
		return AnswerResult{}, ErrNoBank
	}
	q := b.Current()
	if q == nil {
		return AnswerResult{}, ErrNoQuestion
	}
	if strings.TrimSpace(selected) == "" {
		return AnswerResult{}, errors.New("no answer selected")
	}

	correct := q.Grade(selected)
	b.RecordAnswer(correct)

	if correct {
		qID := q.ID
		s.sched.Schedule(qID, s.advanceDelay, func() {
			s.autoAdvance(qID)
		})
	}

	return AnswerResult{
		Correct:       correct,
		CorrectAnswer: q.Answer,
		Explanation:   q.Explanation,
		Streak:        q.Streak,
		Mastered:      q.Mastered,
	}, nil
}

// autoAdvance runs the deferred advance after a correct answer. It is
// dropped when the user already navigated away from the question that
// scheduled it.
func (s *DrillService) autoAdvance(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.col.Current()
	if b == nil {
		return
	}
	q := b.Current()
	if q == nil || q.ID != questionID {
		return
	}
	s.advanceOrRestartLocked(b)
}

// advanceOrRestartLocked moves to the next unmastered question; when
// the pass is exhausted it starts a new round over the unmastered
// remainder, the way the quiz loop always has. Reports whether a new
// round began.
func (s *DrillService) advanceOrRestartLocked(b *bank.Bank) (restarted bool) {
	if b.Advance(bank.Next) {
		return false
	}
	b.ResetProgress(true)
	b.SeekFirstUnmastered()
	s.logger.Info("round complete, starting new round", "set", b.Name)
	return true
}

// Next moves forward manually, cancelling any pending auto-advance.
// Exhaustion starts a new round.
func (s *DrillService) Next() (restarted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.col.Current()
	if b == nil {
		return false, ErrNoBank
	}
	s.sched.CancelAll()
	return s.advanceOrRestartLocked(b), nil
}

// Prev moves backward manually. Reports false when no unmastered
// question precedes the cursor; the cursor then stays put.
func (s *DrillService) Prev() (moved bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.col.Current()
	if b == nil {
		return false, ErrNoBank
	}
	s.sched.CancelAll()
	return b.Advance(bank.Prev), nil
}

// ToggleMark flips the bookmark on the current question and returns the
// new state.
func (s *DrillService) ToggleMark() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.col.Current()
	if b == nil {
		return false, ErrNoBank
	}
	q := b.Current()
	if q == nil {
		return false, ErrNoQuestion
	}
	q.Marked = !q.Marked
	return q.Marked, nil
}

// JumpTo seats the cursor on a question in the current set by identity,
// used to revisit an entry from the wrong-question list.
func (s *DrillService) JumpTo(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.col.Current()
	if b == nil {
		return ErrNoBank
	}
	s.sched.CancelAll()
	if !b.JumpTo(questionID) {
		return ErrNoQuestion
	}
	return nil
}

// SetInfo summarizes one loaded set for listings.
type SetInfo struct {
	Name     string
	Current  bool
	Progress bank.Progress
}

// Sets lists the loaded banks in load order.
func (s *DrillService) Sets() []SetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SetInfo
	for _, name := range s.col.Names() {
		b, ok := s.col.Get(name)
		if !ok {
			continue
		}
		out = append(out, SetInfo{
			Name:     name,
			Current:  name == s.col.CurrentName(),
			Progress: b.Snapshot(),
		})
	}
	return out
}

// Progress returns the snapshot for the named set, or the current set
// when name is empty.
func (s *DrillService) Progress(name string) (bank.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.resolveLocked(name)
	if err != nil {
		return bank.Progress{}, err
	}
	return b.Snapshot(), nil
}

// Wrong lists the named set's questions answered wrong at least once.
func (s *DrillService) Wrong(name string) ([]question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.resolveLocked(name)
	if err != nil {
		return nil, err
	}
	return copyQuestions(b.Wrong()), nil
}

// Marked lists the named set's bookmarked questions.
func (s *DrillService) Marked(name string) ([]question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.resolveLocked(name)
	if err != nil {
		return nil, err
	}
	return copyQuestions(b.Marked()), nil
}

func copyQuestions(in []*question.Question) []question.Question {
	out := make([]question.Question, 0, len(in))
	for _, q := range in {
		out = append(out, *q)
	}
	return out
}

// Reset starts a new round on the named set and persists it.
func (s *DrillService) Reset(name string, excludeMastered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.resolveLocked(name)
	if err != nil {
		return err
	}
	s.sched.CancelAll()
	b.ResetProgress(excludeMastered)
	b.SeekFirstUnmastered()
	return s.store.SaveSetProgress(b.Questions, b.Cursor, b.Name)
}

// ReleaseStats buckets the named set's mastered questions by wrong
// count, to inform the threshold choice.
func (s *DrillService) ReleaseStats(name string) (map[int]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.resolveLocked(name)
	if err != nil {
		return nil, err
	}
	return b.WrongCountDistribution(), nil
}

// Release re-admits mastered questions at or above the wrong-count
// threshold, starts a new round and persists the set.
func (s *DrillService) Release(name string, threshold int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.resolveLocked(name)
	if err != nil {
		return 0, err
	}
	s.sched.CancelAll()

	count := b.ReleaseMastered(threshold)
	b.ResetProgress(true)
	b.SeekFirstUnmastered()

	if err := s.store.SaveSetProgress(b.Questions, b.Cursor, b.Name); err != nil {
		return count, err
	}
	s.logger.Info("released mastered questions", "set", b.Name, "threshold", threshold, "count", count)
	return count, nil
}

// ExportXLSX writes the named set back out as a spreadsheet bank.
func (s *DrillService) ExportXLSX(name string, w io.Writer) error {
	s.mu.Lock()
	b, err := s.resolveLocked(name)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	table := b.Table()
	s.mu.Unlock()

	return ingest.WriteXLSX(w, table)
}

// SaveAll snapshots every set in one transaction.
func (s *DrillService) SaveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SaveAllProgress(s.col)
}

// Shutdown saves the active set and stops the scheduler. Called once on
// process exit.
func (s *DrillService) Shutdown() {
	s.mu.Lock()
	s.saveCurrentLocked()
	s.mu.Unlock()
	s.sched.Close()
}

func (s *DrillService) resolveLocked(name string) (*bank.Bank, error) {
	if name == "" {
		if b := s.col.Current(); b != nil {
			return b, nil
		}
		return nil, ErrNoBank
	}
	b, ok := s.col.Get(name)
	if !ok {
		return nil, ErrUnknownSet
	}
	return b, nil
}
