package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omriShneor/project_concierge/internal/agent"
	"github.com/omriShneor/project_concierge/internal/agent/tools"
	"github.com/omriShneor/project_concierge/internal/booking"
	"github.com/omriShneor/project_concierge/internal/concierge"
	"github.com/omriShneor/project_concierge/internal/queue"
	"github.com/omriShneor/project_concierge/internal/scheduling"
	"github.com/omriShneor/project_concierge/internal/timeutil"
	"github.com/omriShneor/project_concierge/internal/token"
)

const (
	maxBodyBytes       = 64 << 10
	maxChatMessages    = 40
	maxChatMessageSize = 4000
)

// Health Check

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	// Check database connectivity
	if err := s.db.PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	status := map[string]any{
		"status":   "healthy",
		"calendar": "disconnected",
	}

	if s.tokens != nil && s.tokens.Status().HasRefreshToken {
		status["calendar"] = "connected"
	}

	if s.queue != nil {
		if stats, err := s.queue.Stats(r.Context()); err == nil {
			status["pending_appointments"] = stats.Pending
		}
	}

	respondJSON(w, http.StatusOK, status)
}

// Chat API

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := toHistory(req.Messages)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.concierge.Handle(r.Context(), history)
	if err != nil {
		if errors.Is(err, concierge.ErrEmptyConversation) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("chat failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to answer message")
		return
	}

	respondJSON(w, http.StatusOK, reply)
}

func toHistory(msgs []chatMessage) ([]agent.Message, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages is required")
	}
	if len(msgs) > maxChatMessages {
		msgs = msgs[len(msgs)-maxChatMessages:]
	}

	history := make([]agent.Message, 0, len(msgs))
	for i, m := range msgs {
		content := strings.TrimSpace(m.Content)
		switch {
		case m.Role != agent.RoleUser && m.Role != agent.RoleAssistant:
			return nil, fmt.Errorf("messages[%d].role must be user or assistant", i)
		case content == "":
			return nil, fmt.Errorf("messages[%d].content is required", i)
		case len(content) > maxChatMessageSize:
			return nil, fmt.Errorf("messages[%d].content is too long", i)
		}
		history = append(history, agent.TextMessage(m.Role, content))
	}

	// The model expects the conversation to open with a user turn
	for len(history) > 0 && history[0].Role != agent.RoleUser {
		history = history[1:]
	}
	if len(history) == 0 || history[len(history)-1].Role != agent.RoleUser {
		return nil, fmt.Errorf("last message must come from the user")
	}
	return history, nil
}

// Scheduling API

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	expr := strings.TrimSpace(r.URL.Query().Get("date"))
	if expr == "" {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}

	res := timeutil.ResolveDate(expr, s.now().In(s.location))
	avail, err := s.scheduler.ListAvailableSlots(r.Context(), res.Date)
	if err != nil {
		s.logger.Error("failed to list slots", zap.String("date", res.String()), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list slots")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":           avail.Date,
		"slots":          clockTimes(avail.Slots, s.location),
		"degraded":       avail.Degraded,
		"low_confidence": res.LowConfidence,
	})
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var args tools.AppointmentArgs
	if err := decodeJSON(r, &args); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	normalizer := tools.Normalizer{
		Location:     s.location,
		SlotDuration: s.slotLen,
		ServiceType:  s.service,
		Now:          s.now,
	}
	req, err := normalizer.AppointmentRequest(args)
	if err != nil {
		respondValidation(w, err)
		return
	}

	res, err := s.scheduler.CreateAppointment(r.Context(), req)
	if err != nil {
		if booking.IsValidationError(err) {
			respondValidation(w, err)
			return
		}
		s.logger.Error("appointment could not be booked or queued", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}

	switch res.Status {
	case scheduling.StatusConfirmed:
		respondJSON(w, http.StatusCreated, map[string]any{"status": res.Status, "details": res.Appointment})
	case scheduling.StatusConflict:
		respondJSON(w, http.StatusConflict, map[string]any{
			"status": res.Status,
			"details": map[string]any{
				"alternatives": clockTimes(res.Alternatives, s.location),
				"slots":        res.Alternatives,
			},
		})
	default:
		respondJSON(w, http.StatusAccepted, map[string]any{"status": res.Status, "details": res.Pending})
	}
}

// Fallback queue API

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.queue.Reconcile(r.Context())
	if err != nil {
		if errors.Is(err, queue.ErrReconcileInProgress) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("reconcile failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"processed_count": len(report.Processed),
		"remaining_count": report.RemainingCount,
		"failed_count":    len(report.Failed),
		"processed":       report.Processed,
		"failed":          report.Failed,
	})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.queue.ListPending(r.Context())
	if err != nil {
		s.logger.Error("failed to list pending appointments", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list pending appointments")
		return
	}
	if pending == nil {
		pending = []booking.PendingAppointment{}
	}

	response := map[string]any{"pending": pending, "count": len(pending)}
	if stats, err := s.queue.Stats(r.Context()); err == nil {
		response["processed_count"] = stats.Processed
		response["last_reconcile_at"] = stats.LastReconcileAt
	}
	respondJSON(w, http.StatusOK, response)
}

// Calendar credential API

func (s *Server) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.tokens.Status())
}

func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	cred, err := s.tokens.ForceRefresh(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, token.ErrCredentialUnavailable) {
			status = http.StatusConflict
		}
		s.logger.Warn("manual token refresh failed", zap.Error(err))
		respondJSON(w, status, map[string]any{"success": false, "error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"new_expiry": cred.Expiry.Format(time.RFC3339),
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidation(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": vErr.Fields})
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}

// decodeJSON reads a size-limited body and rejects unknown fields
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read body")
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("request body too large")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func clockTimes(slots []booking.TimeSlot, loc *time.Location) []string {
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.Start.In(loc).Format("15:04"))
	}
	return out
}
