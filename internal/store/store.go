package store

import (
	"errors"

	"github.com/examdrill/backend/internal/domain/question"
)

var (
	ErrNotFound = errors.New("not found")
)

// ProgressRow is one persisted progress tuple, keyed by question
// identity within a set.
type ProgressRow struct {
	QuestionID string
	SetName    string
	Answered   int
	Streak     int
	Wrong      int
	Marked     bool
	Mastered   bool
}

// ApplyRows overwrites the five mutable progress fields on every
// in-memory question whose identity appears in rows. Rows with no
// matching identity are dropped silently: banks get regenerated between
// sessions and stale rows are expected, not an error.
func ApplyRows(rows []ProgressRow, index map[string]*question.Question) {
	for _, row := range rows {
		q, ok := index[row.QuestionID]
		if !ok {
			continue
		}
		q.TimesAnswered = row.Answered
		q.Streak = row.Streak
		q.TimesWrong = row.Wrong
		q.Marked = row.Marked
		q.Mastered = row.Mastered
	}
}

func rowFromQuestion(q *question.Question, setName string) ProgressRow {
	return ProgressRow{
		QuestionID: q.ID,
		SetName:    setName,
		Answered:   q.TimesAnswered,
		Streak:     q.Streak,
		Wrong:      q.TimesWrong,
		Marked:     q.Marked,
		Mastered:   q.Mastered,
	}
}
