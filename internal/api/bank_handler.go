package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/examdrill/backend/internal/domain/bank"
	"github.com/examdrill/backend/internal/domain/question"
)

// ── Request / Response types ────────────────────────────────────────────────

type ImportBankRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (r *ImportBankRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

type ImportBankResponse struct {
	Set       string `json:"set"`
	Questions int    `json:"questions"`
}

type ProgressView struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Correct    int `json:"correct"`
	Mastered   int `json:"mastered"`
	Unmastered int `json:"unmastered"`
}

func progressView(p bank.Progress) ProgressView {
	return ProgressView{
		Total:      p.Total,
		Answered:   p.Answered,
		Correct:    p.Correct,
		Mastered:   p.Mastered,
		Unmastered: p.Unmastered,
	}
}

type BankView struct {
	Name     string       `json:"name"`
	Current  bool         `json:"current"`
	Progress ProgressView `json:"progress"`
}

type ResetRequest struct {
	ExcludeMastered bool `json:"exclude_mastered"`
}

type ReleaseRequest struct {
	Threshold int `json:"threshold"`
}

type ReleaseResponse struct {
	Released int `json:"released"`
}

type ReleaseStatsResponse struct {
	Distribution map[int]int `json:"distribution"`
}

type WrongQuestionView struct {
	ID          string `json:"id"`
	Prompt      string `json:"prompt"`
	TimesWrong  int    `json:"times_wrong"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// ── Handlers ────────────────────────────────────────────────────────────────

// POST /banks/import
// Accepts raw export text as JSON, or a spreadsheet bank as multipart
// form data under the "file" field.
func (h *Handler) importBank(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.importBankFile(w, r)
		return
	}

	var req ImportBankRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.drill.ImportText(req.Name, req.Text)
	if err != nil {
		h.importError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ImportBankResponse{Set: req.Name, Questions: count})
}

func (h *Handler) importBankFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	count, err := h.drill.ImportXLSX(header.Filename, file)
	if err != nil {
		h.importError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ImportBankResponse{
		Set:       trimExt(header.Filename),
		Questions: count,
	})
}

// importError maps import failures: schema problems and empty parses
// are the caller's fault, everything else is ours.
func (h *Handler) importError(w http.ResponseWriter, err error) {
	var schemaErr *bank.SchemaError
	if errors.As(err, &schemaErr) {
		respondError(w, http.StatusBadRequest, schemaErr.Error())
		return
	}
	if strings.Contains(err.Error(), "no questions found") {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("import failed", "error", err)
	respondError(w, http.StatusInternalServerError, "import failed")
}

// GET /banks
func (h *Handler) listBanks(w http.ResponseWriter, r *http.Request) {
	sets := h.drill.Sets()
	views := make([]BankView, 0, len(sets))
	for _, s := range sets {
		views = append(views, BankView{
			Name:     s.Name,
			Current:  s.Current,
			Progress: progressView(s.Progress),
		})
	}
	respondJSON(w, http.StatusOK, views)
}

// POST /banks/{setName}/activate
func (h *Handler) activateBank(w http.ResponseWriter, r *http.Request) {
	name := pathSetName(r)
	if h.handleServiceError(w, h.drill.SwitchSet(name)) {
		return
	}
	progress, err := h.drill.Progress(name)
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, BankView{Name: name, Current: true, Progress: progressView(progress)})
}

// POST /banks/{setName}/reset
func (h *Handler) resetBank(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if h.handleServiceError(w, h.drill.Reset(pathSetName(r), req.ExcludeMastered)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /banks/{setName}/release-stats
func (h *Handler) releaseStats(w http.ResponseWriter, r *http.Request) {
	dist, err := h.drill.ReleaseStats(pathSetName(r))
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, ReleaseStatsResponse{Distribution: dist})
}

// POST /banks/{setName}/release
func (h *Handler) releaseMastered(w http.ResponseWriter, r *http.Request) {
	var req ReleaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Threshold < 0 {
		respondError(w, http.StatusBadRequest, "threshold must be >= 0")
		return
	}
	count, err := h.drill.Release(pathSetName(r), req.Threshold)
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, ReleaseResponse{Released: count})
}

// GET /banks/{setName}/wrong
func (h *Handler) listWrong(w http.ResponseWriter, r *http.Request) {
	questions, err := h.drill.Wrong(pathSetName(r))
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, wrongViews(questions))
}

// GET /banks/{setName}/marked
func (h *Handler) listMarked(w http.ResponseWriter, r *http.Request) {
	questions, err := h.drill.Marked(pathSetName(r))
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, wrongViews(questions))
}

// GET /banks/{setName}/export
func (h *Handler) exportBank(w http.ResponseWriter, r *http.Request) {
	name := pathSetName(r)

	// Build the workbook before touching the response so failures can
	// still produce a proper error status.
	var buf bytes.Buffer
	if err := h.drill.ExportXLSX(name, &buf); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s.xlsx", url.PathEscape(name)))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error("export write failed", "set", name, "error", err)
	}
}

func wrongViews(questions []question.Question) []WrongQuestionView {
	views := make([]WrongQuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, WrongQuestionView{
			ID:          q.ID,
			Prompt:      q.Prompt,
			TimesWrong:  q.TimesWrong,
			Answer:      q.Answer,
			Explanation: q.Explanation,
		})
	}
	return views
}

func pathSetName(r *http.Request) string {
	return r.PathValue("setName")
}

func trimExt(filename string) string {
	if i := strings.LastIndex(filename, "."); i > 0 {
		return filename[:i]
	}
	return filename
}
