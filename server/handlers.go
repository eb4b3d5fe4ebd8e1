package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/keyword-catcher/chat"
	"github.com/onnwee/keyword-catcher/control"
	"github.com/onnwee/keyword-catcher/telemetry"
)

// maxBodyBytes caps control request bodies.
const maxBodyBytes = 1 << 16

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl *control.Controller
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctrl *control.Controller) *Handlers {
	return &Handlers{ctrl: ctrl}
}

type startRequest struct {
	Username string `json:"username"`
	Platform string `json:"platform"`
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

type disconnectRequest struct {
	Platform string `json:"platform"`
}

type result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HandleStart connects a platform and answers once it is confirmed or failed.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.ctrl.Start(r.Context(), req.Username, req.Platform); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result{Success: true})
}

// HandleKeyword sets the active keyword.
func (h *Handlers) HandleKeyword(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req keywordRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.ctrl.SetKeyword(r.Context(), req.Keyword); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result{Success: true})
}

// HandleClearKeyword disables matching.
func (h *Handlers) HandleClearKeyword(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	h.ctrl.ClearKeyword(r.Context())
	writeText(w, http.StatusOK, "Keyword cleared")
}

// HandleDisconnect stops one platform or all of them.
func (h *Handlers) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req disconnectRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.ctrl.Disconnect(r.Context(), req.Platform); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result{Success: true})
}

// HandleShutdown acknowledges, then tears everything down.
func (h *Handlers) HandleShutdown(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	writeText(w, http.StatusOK, "Shutting down...")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	go h.ctrl.Shutdown(context.WithoutCancel(r.Context()))
}

// HandleStatus reports the session snapshot.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, control.ErrMissingField),
		errors.Is(err, control.ErrUnsupportedPlatform),
		errors.Is(err, chat.ErrNotLive):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// reasonFor is the operator-facing text for err.
func reasonFor(err error) string {
	var se *chat.StartError
	switch {
	case errors.Is(err, control.ErrMissingField):
		return "Missing username or platform"
	case errors.Is(err, control.ErrUnsupportedPlatform):
		return "Unsupported platform"
	case errors.As(err, &se):
		return se.Reason
	default:
		return "internal error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		requestLogger(r).Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	} else {
		requestLogger(r).Debug("request rejected", slog.String("path", r.URL.Path), slog.Int("status", status), slog.Any("err", err))
	}
	writeResult(w, status, reasonFor(err))
}

func writeResult(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, result{Success: false, Error: reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", slog.Any("err", err), slog.String("component", "http"))
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// requestLogger is the correlation-aware logger for r.
func requestLogger(r *http.Request) *slog.Logger {
	return telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "http"))
}
