package question

import "strings"

// Kind is the question type, carried as the Chinese token used by the
// exported banks.
type Kind string

const (
	KindSingleChoice   Kind = "单选题"
	KindMultipleChoice Kind = "多选题"
	KindTrueFalse      Kind = "判断题"
	KindUnknown        Kind = "未知题型"
)

// KindFromToken maps a raw bank cell to a Kind. Unrecognized tokens
// become KindUnknown, never a known kind.
func KindFromToken(s string) Kind {
	switch Kind(strings.TrimSpace(s)) {
	case KindSingleChoice:
		return KindSingleChoice
	case KindMultipleChoice:
		return KindMultipleChoice
	case KindTrueFalse:
		return KindTrueFalse
	default:
		return KindUnknown
	}
}

// Level is the five-tier skill grade.
type Level string

const (
	LevelJunior     Level = "初级工"
	LevelMiddle     Level = "中级工"
	LevelSenior     Level = "高级工"
	LevelTechnician Level = "技师"
	LevelMaster     Level = "高级技师"
	LevelUnknown    Level = "未知等级"
)

func LevelFromToken(s string) Level {
	switch Level(strings.TrimSpace(s)) {
	case LevelJunior, LevelMiddle, LevelSenior, LevelTechnician, LevelMaster:
		return Level(strings.TrimSpace(s))
	default:
		return LevelUnknown
	}
}

// OptionLetters is the fixed option domain, in display order.
var OptionLetters = []string{"A", "B", "C", "D"}

// DefaultExplanation is shown when a bank carries no explanation cell.
const DefaultExplanation = "暂无解析"

// Question is one quiz item plus its progress counters. The counters
// are mutated only through RecordAnswer, Release and ResetRound so the
// mastery transitions stay in one place.
type Question struct {
	ID          string // category-level-number code, persistence key
	Sequence    int    // display order within the source export
	Kind        Kind
	Level       Level
	Prompt      string
	Options     map[string]string // letter → text, empty cells omitted
	Answer      string            // canonical form, see Canonical
	Explanation string

	TimesAnswered int  // monotonic
	Streak        int  // consecutive correct since last wrong answer
	TimesWrong    int  // monotonic, survives round resets
	Marked        bool // user bookmark
	Mastered      bool // set once at streak 2, cleared only by Release
}

// masteryStreak is how many uninterrupted correct answers retire a
// question from rotation.
const masteryStreak = 2

// RecordAnswer applies one submission. A correct answer extends the
// streak and promotes to mastered exactly once when the streak reaches
// two; the streak keeps counting past that and mastery never flaps. A
// wrong answer bumps TimesWrong and zeroes the streak.
func (q *Question) RecordAnswer(correct bool) {
	q.TimesAnswered++
	if correct {
		q.Streak++
		if q.Streak >= masteryStreak && !q.Mastered {
			q.Mastered = true
		}
		return
	}
	q.TimesWrong++
	q.Streak = 0
}

// Release re-admits a mastered question to rotation. TimesWrong is the
// historical record and stays untouched.
func (q *Question) Release() {
	q.Mastered = false
	q.Streak = 0
}

// ResetRound clears the per-round fields for a new pass over the bank.
// Streak and TimesWrong are long-lived: they keep release-by-threshold
// meaningful across rounds.
func (q *Question) ResetRound() {
	q.TimesAnswered = 0
	q.Marked = false
}

// Grade compares a submitted selection against the stored answer.
// Both sides are canonicalized so multiple-choice selections grade
// order-insensitively.
func (q *Question) Grade(selected string) bool {
	return Canonical(selected) == q.Answer
}

// Canonical normalizes an answer string. Option letters are collected
// in A→D order and concatenated, which makes multiple-choice answers a
// sorted set encoding. Strings with no option letters (true/false
// tokens) are only trimmed.
func Canonical(answer string) string {
	var b strings.Builder
	for _, letter := range OptionLetters {
		if strings.Contains(answer, letter) {
			b.WriteString(letter)
		}
	}
	if b.Len() == 0 {
		return strings.TrimSpace(answer)
	}
	return b.String()
}
