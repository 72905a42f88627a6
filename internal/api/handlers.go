package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/sfbridge-dev/sfbridge/internal/models"
	"github.com/sfbridge-dev/sfbridge/internal/session"
)

type chatRequest struct {
	Message              string                 `json:"message"`
	SessionID            string                 `json:"sessionId,omitempty"`
	IncludeRecordContext bool                   `json:"includeRecordContext,omitempty"`
	Record               map[string]interface{} `json:"record,omitempty"`
	ObjectAPIName        string                 `json:"objectApiName,omitempty"`
	RecordID             string                 `json:"recordId,omitempty"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type sessionResponse struct {
	SessionID      string           `json:"sessionId"`
	Messages       []models.Message `json:"messages"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
}

type healthResponse struct {
	Status              string `json:"status"`
	ToolServerConnected bool   `json:"toolServerConnected"`
	Provider            string `json:"provider"`
	Model               string `json:"model"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, errorBody{Error: "message is required"})
		return
	}

	if req.IncludeRecordContext {
		var missing []string
		if req.Record == nil {
			missing = append(missing, "record")
		}
		if req.ObjectAPIName == "" {
			missing = append(missing, "objectApiName")
		}
		if req.RecordID == "" {
			missing = append(missing, "recordId")
		}
		if len(missing) > 0 {
			writeError(w, http.StatusBadRequest, errorBody{
				Error: fmt.Sprintf("includeRecordContext requires missing fields: %s", strings.Join(missing, ", ")),
			})
			return
		}
	}

	authCtx := AuthFromContext(r.Context())

	var sess *session.Session
	if req.SessionID != "" {
		if existing, ok := s.store.Get(req.SessionID); ok {
			sess = existing
			if authCtx != nil {
				// The latest validated credential for a session wins
				sess.Auth = authCtx
				if err := s.store.UpdateAuth(sess.ID, authCtx); err != nil {
					s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to refresh session credential")
				}
			}
		}
	}
	if sess == nil {
		sess = s.store.Create(req.SessionID, authCtx)
	}

	if req.IncludeRecordContext {
		sess.Record = &models.RecordContext{
			Record:        req.Record,
			ObjectAPIName: req.ObjectAPIName,
			RecordID:      req.RecordID,
		}
	}

	result, runErr := s.runner.Run(r.Context(), sess, req.Message)

	// The session is persisted even when the turn failed: the user's message
	// stays recorded, only the assistant's answer is absent.
	if err := s.store.Update(sess.ID, sess); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to persist session")
	}

	if runErr != nil {
		s.log.Error().Err(runErr).Str("session_id", sess.ID).Msg("chat turn failed")
		writeAppError(w, runErr)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: sess.ID,
		Message:   result.Answer,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]
	sess, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errorBody{Error: "session not found: " + id})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:      sess.ID,
		Messages:       sess.Messages,
		CreatedAt:      sess.CreatedAt,
		LastActivityAt: sess.LastActivityAt,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.store.Delete(mux.Vars(r)["sessionId"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:              "ok",
		ToolServerConnected: s.tools.Connected(),
		Provider:            s.cfg.Model.Provider,
		Model:               s.cfg.Model.Model,
	})
}
