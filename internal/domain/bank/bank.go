package bank

import "github.com/examdrill/backend/internal/domain/question"

// Direction selects which way Advance and the availability checks scan.
type Direction int

const (
	Next Direction = iota
	Prev
)

// Bank is one named, ordered question set plus a cursor. The cursor
// always holds a valid index (0 when the set is empty); the question it
// points at may be mastered, so navigation resolves to the nearest
// unmastered question rather than trusting the raw cursor.
type Bank struct {
	Name      string
	Questions []*question.Question
	Cursor    int
}

// Current returns the question under the cursor, or nil for an empty set.
func (b *Bank) Current() *question.Question {
	if len(b.Questions) == 0 {
		return nil
	}
	return b.Questions[b.Cursor]
}

// Advance moves the cursor to the nearest unmastered question strictly
// beyond it in the given direction. It reports false and leaves the
// cursor alone when no such question exists.
func (b *Bank) Advance(dir Direction) bool {
	if i, ok := b.scan(dir); ok {
		b.Cursor = i
		return true
	}
	return false
}

// HasNext reports whether an unmastered question exists after the cursor.
func (b *Bank) HasNext() bool {
	_, ok := b.scan(Next)
	return ok
}

// HasPrev reports whether an unmastered question exists before the cursor.
func (b *Bank) HasPrev() bool {
	_, ok := b.scan(Prev)
	return ok
}

func (b *Bank) scan(dir Direction) (int, bool) {
	if dir == Next {
		for i := b.Cursor + 1; i < len(b.Questions); i++ {
			if !b.Questions[i].Mastered {
				return i, true
			}
		}
		return 0, false
	}
	for i := b.Cursor - 1; i >= 0; i-- {
		if !b.Questions[i].Mastered {
			return i, true
		}
	}
	return 0, false
}

// SeekFirstUnmastered parks the cursor on the first unmastered question,
// if any; otherwise the cursor stays put.
func (b *Bank) SeekFirstUnmastered() {
	for i, q := range b.Questions {
		if !q.Mastered {
			b.Cursor = i
			return
		}
	}
}

// SetCursor seats the cursor, clamping out-of-range values so the
// cursor invariant holds even against a stale persisted position.
func (b *Bank) SetCursor(i int) {
	if i < 0 || len(b.Questions) == 0 {
		b.Cursor = 0
		return
	}
	if i >= len(b.Questions) {
		i = len(b.Questions) - 1
	}
	b.Cursor = i
}

// JumpTo seats the cursor on the question with the given identity.
func (b *Bank) JumpTo(questionID string) bool {
	for i, q := range b.Questions {
		if q.ID == questionID {
			b.Cursor = i
			return true
		}
	}
	return false
}

// RecordAnswer applies a submission to the current question. No-op on
// an empty set.
func (b *Bank) RecordAnswer(correct bool) {
	if q := b.Current(); q != nil {
		q.RecordAnswer(correct)
	}
}

// ResetProgress starts a new round: per-round fields are cleared on
// every question, or on every unmastered question when excludeMastered
// is set. Streaks and wrong counts survive.
func (b *Bank) ResetProgress(excludeMastered bool) {
	for _, q := range b.Questions {
		if excludeMastered && q.Mastered {
			continue
		}
		q.ResetRound()
	}
}

// ReleaseMastered re-admits every mastered question whose historical
// wrong count has reached the threshold, and reports how many.
func (b *Bank) ReleaseMastered(wrongThreshold int) int {
	count := 0
	for _, q := range b.Questions {
		if q.Mastered && q.TimesWrong >= wrongThreshold {
			q.Release()
			count++
		}
	}
	return count
}

// Progress is the bank-level snapshot shown to the user.
type Progress struct {
	Total      int
	Answered   int // questions with at least one submission this round
	Correct    int // questions currently on a correct streak
	Mastered   int
	Unmastered int
}

// Snapshot computes the progress counters. Correct counts questions on
// a live streak, not lifetime correct answers; a broken streak drops a
// question back out of the count.
func (b *Bank) Snapshot() Progress {
	p := Progress{Total: len(b.Questions)}
	for _, q := range b.Questions {
		if q.TimesAnswered > 0 {
			p.Answered++
		}
		if q.Streak > 0 {
			p.Correct++
		}
		if q.Mastered {
			p.Mastered++
		}
	}
	p.Unmastered = p.Total - p.Mastered
	return p
}

// Wrong returns the questions answered wrong at least once, in bank order.
func (b *Bank) Wrong() []*question.Question {
	var out []*question.Question
	for _, q := range b.Questions {
		if q.TimesWrong > 0 {
			out = append(out, q)
		}
	}
	return out
}

// Marked returns the bookmarked questions, in bank order.
func (b *Bank) Marked() []*question.Question {
	var out []*question.Question
	for _, q := range b.Questions {
		if q.Marked {
			out = append(out, q)
		}
	}
	return out
}

// WrongCountDistribution buckets the mastered questions by wrong count,
// the histogram shown before choosing a release threshold.
func (b *Bank) WrongCountDistribution() map[int]int {
	dist := make(map[int]int)
	for _, q := range b.Questions {
		if q.Mastered {
			dist[q.TimesWrong]++
		}
	}
	return dist
}

// IdentityIndex maps question IDs to questions, for progress
// reconciliation.
func (b *Bank) IdentityIndex() map[string]*question.Question {
	idx := make(map[string]*question.Question, len(b.Questions))
	for _, q := range b.Questions {
		idx[q.ID] = q
	}
	return idx
}
