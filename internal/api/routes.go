// internal/api/routes.go
package api

import "net/http"

func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Banks
	mux.HandleFunc("POST /banks/import", h.importBank)
	mux.HandleFunc("GET /banks", h.listBanks)
	mux.HandleFunc("POST /banks/{setName}/activate", h.activateBank)
	mux.HandleFunc("POST /banks/{setName}/reset", h.resetBank)
	mux.HandleFunc("GET /banks/{setName}/release-stats", h.releaseStats)
	mux.HandleFunc("POST /banks/{setName}/release", h.releaseMastered)
	mux.HandleFunc("GET /banks/{setName}/wrong", h.listWrong)
	mux.HandleFunc("GET /banks/{setName}/marked", h.listMarked)
	mux.HandleFunc("GET /banks/{setName}/export", h.exportBank)

	// Practice loop
	mux.HandleFunc("GET /practice/current", h.currentQuestion)
	mux.HandleFunc("POST /practice/answer", h.submitAnswer)
	mux.HandleFunc("POST /practice/next", h.nextQuestion)
	mux.HandleFunc("POST /practice/prev", h.prevQuestion)
	mux.HandleFunc("POST /practice/mark", h.toggleMark)
	mux.HandleFunc("POST /practice/jump", h.jumpToQuestion)
	mux.HandleFunc("GET /practice/progress", h.progress)

	// State
	mux.HandleFunc("POST /state/save", h.saveAll)
}
