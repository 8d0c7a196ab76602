package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/magpie-software/pical/internal/middleware"
)

type AuthHandler struct {
	sessions  *middleware.Sessions
	accessKey string
}

func NewAuthHandler(sessions *middleware.Sessions, accessKey string) *AuthHandler {
	return &AuthHandler{sessions: sessions, accessKey: accessKey}
}

func (handler *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccessKey string `json:"access_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(payload.AccessKey), []byte(handler.accessKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid access key")
		return
	}

	if err := handler.sessions.Issue(w); err != nil {
		slog.Error("issuing session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (handler *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	handler.sessions.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
