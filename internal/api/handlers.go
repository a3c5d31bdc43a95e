package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/vrsandeep/pagesum-go/internal/presenter"
	"github.com/vrsandeep/pagesum-go/internal/summarize"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DB().Ping(); err != nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version})
}

// handleGetStatus returns the same reply GET_STATUS produces on the relay.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Background().Status())
}

// handleSummarize starts a page summary. Progress is streamed to the
// connected popup views over /ws.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	u, err := url.Parse(strings.TrimSpace(payload.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		RespondWithError(w, http.StatusBadRequest, "A http(s) url is required")
		return
	}

	err = s.app.Background().SummarizePage(u.String())
	if errors.Is(err, summarize.ErrBusy) {
		RespondWithError(w, http.StatusConflict, "A summary is already in progress")
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"url":    u.String(),
	})
}

// handleGetAnswer returns the popup's answer panel.
func (s *Server) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Background().Panel().Snapshot())
}

// handleCopyAnswer copies the panel's current answer to the clipboard of
// the machine the daemon runs on.
func (s *Server) handleCopyAnswer(w http.ResponseWriter, r *http.Request) {
	err := s.app.Background().Panel().Copy()
	if errors.Is(err, presenter.ErrNothingToCopy) {
		RespondWithError(w, http.StatusConflict, "There is no answer to copy yet")
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Copied to clipboard"})
}
