package api

import (
	"net/http"

	"github.com/examdrill/backend/internal/domain/question"
)

// ── Request / Response types ────────────────────────────────────────────────

// QuestionView is the question as shown while answering: the correct
// answer and explanation stay server-side until the answer is graded.
type QuestionView struct {
	ID            string            `json:"id"`
	Sequence      int               `json:"sequence"`
	Kind          string            `json:"kind"`
	Level         string            `json:"level"`
	Prompt        string            `json:"prompt"`
	Options       map[string]string `json:"options"`
	Marked        bool              `json:"marked"`
	Mastered      bool              `json:"mastered"`
	TimesAnswered int               `json:"times_answered"`
	TimesWrong    int               `json:"times_wrong"`
}

type CurrentQuestionResponse struct {
	Question QuestionView `json:"question"`
	HasNext  bool         `json:"has_next"`
	HasPrev  bool         `json:"has_prev"`
}

type SubmitAnswerRequest struct {
	Selected string `json:"selected"`
}

type SubmitAnswerResponse struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
	Streak        int    `json:"streak"`
	Mastered      bool   `json:"mastered"`
}

type NavigateResponse struct {
	RoundRestarted bool         `json:"round_restarted"`
	Moved          bool         `json:"moved"`
	Question       QuestionView `json:"question"`
}

type MarkResponse struct {
	Marked bool `json:"marked"`
}

type JumpRequest struct {
	QuestionID string `json:"question_id"`
}

func questionView(q question.Question) QuestionView {
	return QuestionView{
		ID:            q.ID,
		Sequence:      q.Sequence,
		Kind:          string(q.Kind),
		Level:         string(q.Level),
		Prompt:        q.Prompt,
		Options:       q.Options,
		Marked:        q.Marked,
		Mastered:      q.Mastered,
		TimesAnswered: q.TimesAnswered,
		TimesWrong:    q.TimesWrong,
	}
}

// ── Handlers ────────────────────────────────────────────────────────────────

// GET /practice/current
func (h *Handler) currentQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.drill.CurrentQuestion()
	if h.handleServiceError(w, err) {
		return
	}
	next, prev := h.drill.Availability()
	respondJSON(w, http.StatusOK, CurrentQuestionResponse{
		Question: questionView(q),
		HasNext:  next,
		HasPrev:  prev,
	})
}

// POST /practice/answer
func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Selected == "" {
		respondError(w, http.StatusBadRequest, "selected is required")
		return
	}

	result, err := h.drill.SubmitAnswer(req.Selected)
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, SubmitAnswerResponse{
		Correct:       result.Correct,
		CorrectAnswer: result.CorrectAnswer,
		Explanation:   result.Explanation,
		Streak:        result.Streak,
		Mastered:      result.Mastered,
	})
}

// POST /practice/next
func (h *Handler) nextQuestion(w http.ResponseWriter, r *http.Request) {
	restarted, err := h.drill.Next()
	if h.handleServiceError(w, err) {
		return
	}
	h.respondNavigation(w, true, restarted)
}

// POST /practice/prev
func (h *Handler) prevQuestion(w http.ResponseWriter, r *http.Request) {
	moved, err := h.drill.Prev()
	if h.handleServiceError(w, err) {
		return
	}
	h.respondNavigation(w, moved, false)
}

func (h *Handler) respondNavigation(w http.ResponseWriter, moved, restarted bool) {
	q, err := h.drill.CurrentQuestion()
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, NavigateResponse{
		RoundRestarted: restarted,
		Moved:          moved,
		Question:       questionView(q),
	})
}

// POST /practice/mark
func (h *Handler) toggleMark(w http.ResponseWriter, r *http.Request) {
	marked, err := h.drill.ToggleMark()
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, MarkResponse{Marked: marked})
}

// POST /practice/jump
func (h *Handler) jumpToQuestion(w http.ResponseWriter, r *http.Request) {
	var req JumpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.QuestionID == "" {
		respondError(w, http.StatusBadRequest, "question_id is required")
		return
	}
	if h.handleServiceError(w, h.drill.JumpTo(req.QuestionID)) {
		return
	}
	h.respondNavigation(w, true, false)
}

// GET /practice/progress
func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.drill.Progress("")
	if h.handleServiceError(w, err) {
		return
	}
	respondJSON(w, http.StatusOK, progressView(p))
}

// POST /state/save
func (h *Handler) saveAll(w http.ResponseWriter, r *http.Request) {
	if h.handleServiceError(w, h.drill.SaveAll()) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
