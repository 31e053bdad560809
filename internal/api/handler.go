package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/service"
)

// emptyTwiML acknowledges a webhook without an inline reply; replies go out via the REST API
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// handleSMS acknowledges the webhook immediately and processes the message in the background
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !s.validator.Validate(s.webhookURL, params, r.Header.Get("X-Twilio-Signature")) {
			s.logger.Warn().Str("remote", r.RemoteAddr).Msg("Rejected webhook with invalid signature")
			http.Error(w, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")
	sid := r.PostForm.Get("MessageSid")
	if from == "" {
		http.Error(w, "Missing From", http.StatusBadRequest)
		return
	}

	if s.seen.MarkSeen(sid) {
		s.logger.Debug().Str("message_sid", sid).Msg("Duplicate webhook ignored")
	} else {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.receiver.Receive(s.ctx, service.ChannelSMS, from, body); err != nil {
				s.logger.Error().Err(err).Str("message_sid", sid).Msg("Failed to process SMS")
			}
		}()
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(emptyTwiML))
}

// handleListSessions handles GET /api/sessions?limit=N
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := s.sessions.ListSessions(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sessions")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	summaries := make([]domain.Summary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, session.Summarize())
	}
	writeJSON(w, map[string]interface{}{
		"sessions": summaries,
		"count":    len(summaries),
	})
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	lookup, err := s.sessions.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get session")
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	if !lookup.Found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{
		"session": lookup.Session.Summarize(),
		"history": lookup.Session.History,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
