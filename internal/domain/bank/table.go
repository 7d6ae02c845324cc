package bank

import (
	"strconv"
	"strings"

	"github.com/examdrill/backend/internal/domain/question"
)

// Column names of the normalized tabular schema produced by the bank
// extractor. The explanation column is optional; everything else is
// required by Load.
const (
	ColKind        = "题型"
	ColLevel       = "等级"
	ColID          = "题号"
	ColSequence    = "题目编号"
	ColPrompt      = "题目内容"
	ColOptionA     = "选项A"
	ColOptionB     = "选项B"
	ColOptionC     = "选项C"
	ColOptionD     = "选项D"
	ColAnswer      = "正确答案"
	ColExplanation = "解析"
	ColEvalPoint   = "关联评价点"
)

// RequiredColumns lists the columns Load refuses to proceed without.
var RequiredColumns = []string{
	ColKind, ColLevel, ColID, ColSequence, ColPrompt,
	ColOptionA, ColOptionB, ColOptionC, ColOptionD, ColAnswer,
}

var optionColumns = map[string]string{
	"A": ColOptionA,
	"B": ColOptionB,
	"C": ColOptionC,
	"D": ColOptionD,
}

// Table is the extractor's output: a declared column set plus one
// record per question. Missing option cells are empty strings and are
// valid; a missing required column is a schema error.
type Table struct {
	Columns []string
	Records []map[string]string
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// SchemaError reports the required columns absent from an input table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "bank table missing required columns: " + strings.Join(e.Missing, ", ")
}

// questionsFromTable validates the schema and builds fresh questions
// with zeroed progress.
func questionsFromTable(t *Table) ([]*question.Question, error) {
	var missing []string
	for _, col := range RequiredColumns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	questions := make([]*question.Question, 0, len(t.Records))
	for _, rec := range t.Records {
		seq, _ := strconv.Atoi(strings.TrimSpace(rec[ColSequence]))

		options := make(map[string]string)
		for _, letter := range question.OptionLetters {
			if text := strings.TrimSpace(rec[optionColumns[letter]]); text != "" {
				options[letter] = text
			}
		}

		explanation := strings.TrimSpace(rec[ColExplanation])
		if explanation == "" {
			explanation = question.DefaultExplanation
		}

		questions = append(questions, &question.Question{
			ID:          strings.TrimSpace(rec[ColID]),
			Sequence:    seq,
			Kind:        question.KindFromToken(rec[ColKind]),
			Level:       question.LevelFromToken(rec[ColLevel]),
			Prompt:      strings.TrimSpace(rec[ColPrompt]),
			Options:     options,
			Answer:      question.Canonical(rec[ColAnswer]),
			Explanation: explanation,
		})
	}
	return questions, nil
}

// Table converts the bank back into the tabular schema, for export.
func (b *Bank) Table() *Table {
	t := &Table{
		Columns: append(append([]string{}, RequiredColumns...), ColExplanation),
	}
	for _, q := range b.Questions {
		rec := map[string]string{
			ColKind:     string(q.Kind),
			ColLevel:    string(q.Level),
			ColID:       q.ID,
			ColSequence: strconv.Itoa(q.Sequence),
			ColPrompt:   q.Prompt,
			ColAnswer:   q.Answer,
		}
		for letter, col := range optionColumns {
			rec[col] = q.Options[letter]
		}
		if q.Explanation != question.DefaultExplanation {
			rec[ColExplanation] = q.Explanation
		}
		t.Records = append(t.Records, rec)
	}
	return t
}
