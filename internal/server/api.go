package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/acc-projects/callcoach/internal/grading"
	"github.com/acc-projects/callcoach/internal/session"
	"github.com/acc-projects/callcoach/internal/storage"
)

var callIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// CallStore is the read side of the call archive.
type CallStore interface {
	GetCall(id string) (storage.Call, error)
	GetCallsByDate(date string) ([]storage.Call, error)
	GetDates() ([]string, error)
	GetGrade(sessionID string) (grading.Result, error)
}

// CallController starts and stops the live call session.
type CallController interface {
	Start(ctx context.Context) (string, error)
	Stop(ctx context.Context) error
	Status() session.Status
}

// ControlHooks surfaces runtime info the handlers cannot derive
// themselves.
type ControlHooks struct {
	Warnings func() []string

	// EventStats reports delivered and dropped webhook event counts.
	EventStats func() (delivered, dropped uint64)
}

func registerAPIRoutes(mux *http.ServeMux, store CallStore, controller CallController, controls ControlHooks) {
	mux.HandleFunc("POST /api/calls/start", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := controller.Start(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, session.ErrSessionActive):
				status = http.StatusConflict
			case errors.Is(err, session.ErrNotConfigured):
				status = http.StatusBadRequest
			}
			writeJSONError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
	})

	mux.HandleFunc("POST /api/calls/stop", func(w http.ResponseWriter, r *http.Request) {
		if err := controller.Stop(r.Context()); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, session.ErrNoActiveSession) {
				status = http.StatusConflict
			}
			writeJSONError(w, status, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/calls", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		calls, err := store.GetCallsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list calls: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, calls)
	})

	mux.HandleFunc("GET /api/calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validCallID(callID) {
			writeJSONError(w, http.StatusForbidden, "invalid call id")
			return
		}

		call, err := store.GetCall(callID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get call: %v", err))
			return
		}

		payload := map[string]any{"call": call}
		if grade, err := store.GetGrade(callID); err == nil {
			payload["grade"] = grade
		}

		writeJSON(w, http.StatusOK, payload)
	})

	mux.HandleFunc("GET /api/calls/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validCallID(callID) {
			writeJSONError(w, http.StatusForbidden, "invalid call id")
			return
		}

		call, err := store.GetCall(callID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "call not found")
			return
		}

		if call.AudioPath == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		cleanPath := filepath.Clean(call.AudioPath)
		if cleanPath == "" || cleanPath == "." || strings.Contains(cleanPath, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
		http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}

		status := controller.Status()
		payload := map[string]any{
			"state":    status.State.String(),
			"warnings": warnings,
		}
		if controls.EventStats != nil {
			delivered, dropped := controls.EventStats()
			payload["webhook_events"] = map[string]uint64{
				"delivered": delivered,
				"dropped":   dropped,
			}
		}
		if status.SessionID != "" {
			payload["session_id"] = status.SessionID
			payload["started_at"] = status.StartedAt.UTC().Format(time.RFC3339Nano)
		}
		writeJSON(w, http.StatusOK, payload)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func validCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
