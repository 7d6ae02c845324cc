// Package ingest is the bank-extraction boundary: it turns the raw
// text export (and saved spreadsheet banks) into the normalized tabular
// schema consumed by bank.Load.
package ingest

import (
	"regexp"
	"strings"

	"github.com/examdrill/backend/internal/domain/bank"
)

var (
	// headingRe anchors one question block: <category>.<level>.<sequence>. 第N题
	headingRe = regexp.MustCompile(`(?m)^(\d+\.\d+\.\d+)\.\s+第(\d+)题`)

	bodyEndRe   = regexp.MustCompile(`\n(?:[A-D]\.|正确答案)`)
	pageMarkRe  = regexp.MustCompile(`第\s*\d+\s*页\s*[:：]?`)
	whitespace  = regexp.MustCompile(`\s+`)
	answerRe    = regexp.MustCompile(`正确答案[:：]\s*([A-D]+|[正确错误]+)`)
	evalPointRe = regexp.MustCompile(`关联评价点的名称[:：]\s*(.+)`)

	optionRes = map[string]*regexp.Regexp{
		"A": regexp.MustCompile(`A\.(.*?)(?:\n|$)`),
		"B": regexp.MustCompile(`B\.(.*?)(?:\n|$)`),
		"C": regexp.MustCompile(`C\.(.*?)(?:\n|$)`),
		"D": regexp.MustCompile(`D\.(.*?)(?:\n|$)`),
	}
)

var kindByCode = map[string]string{
	"1": "单选题",
	"2": "多选题",
	"3": "判断题",
}

var levelByCode = map[string]string{
	"1": "初级工",
	"2": "中级工",
	"3": "高级工",
	"4": "技师",
	"5": "高级技师",
}

var tableColumns = []string{
	bank.ColKind, bank.ColLevel, bank.ColID, bank.ColSequence, bank.ColPrompt,
	bank.ColOptionA, bank.ColOptionB, bank.ColOptionC, bank.ColOptionD,
	bank.ColAnswer, bank.ColEvalPoint,
}

// ParseText extracts question records from a raw export. Blocks whose
// category code maps to no known kind are rejected (dropped), never
// coerced to a known one.
func ParseText(text string) *bank.Table {
	text = preprocess(text)

	t := &bank.Table{Columns: append([]string{}, tableColumns...)}

	headings := headingRe.FindAllStringSubmatchIndex(text, -1)
	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		block := text[h[0]:end]

		qid := text[h[2]:h[3]]
		seq := text[h[4]:h[5]]

		parts := strings.Split(qid, ".")
		kind, ok := kindByCode[parts[0]]
		if !ok {
			continue
		}
		level, ok := levelByCode[parts[1]]
		if !ok {
			level = "未知等级"
		}

		rec := map[string]string{
			bank.ColKind:     kind,
			bank.ColLevel:    level,
			bank.ColID:       qid,
			bank.ColSequence: seq,
			bank.ColPrompt:   extractPrompt(block, h[1]-h[0]),
			bank.ColAnswer:   extractAnswer(block),
		}

		if kind != "判断题" {
			for _, letter := range []string{"A", "B", "C", "D"} {
				if opt, ok := extractOption(block, letter); ok {
					rec[optionColumn(letter)] = opt
				}
			}
		}

		if m := evalPointRe.FindStringSubmatch(block); m != nil {
			rec[bank.ColEvalPoint] = strings.TrimSpace(m[1])
		}

		t.Records = append(t.Records, rec)
	}
	return t
}

// preprocess resolves the export's escape sequences.
func preprocess(text string) string {
	r := strings.NewReplacer("&#xA;", "\n", "&lt;", "<", "&gt;", ">")
	return r.Replace(text)
}

// extractPrompt takes the question body between the heading line and
// the first option or answer marker, strips page-number artifacts and
// collapses whitespace.
func extractPrompt(block string, headingEnd int) string {
	start := strings.Index(block[headingEnd:], "\n")
	if start < 0 {
		return ""
	}
	start += headingEnd + 1

	body := block[start:]
	if m := bodyEndRe.FindStringIndex(body); m != nil {
		body = body[:m[0]]
	} else if cut := strings.Index(body, "正确答案："); cut >= 0 {
		body = body[:cut]
	}

	body = pageMarkRe.ReplaceAllString(body, "")
	body = whitespace.ReplaceAllString(body, " ")
	return strings.TrimSpace(body)
}

func extractOption(block, letter string) (string, bool) {
	m := optionRes[letter].FindStringSubmatch(block)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func extractAnswer(block string) string {
	if m := answerRe.FindStringSubmatch(block); m != nil {
		return m[1]
	}
	return ""
}

func optionColumn(letter string) string {
	switch letter {
	case "A":
		return bank.ColOptionA
	case "B":
		return bank.ColOptionB
	case "C":
		return bank.ColOptionC
	default:
		return bank.ColOptionD
	}
}
