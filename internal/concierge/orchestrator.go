package concierge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/omriShneor/project_concierge/internal/agent"
	"github.com/omriShneor/project_concierge/internal/agent/tools"
	"github.com/omriShneor/project_concierge/internal/booking"
	"github.com/omriShneor/project_concierge/internal/scheduling"
)

// DefaultMaxToolRounds bounds the tool-call rounds dispatched per user message
const DefaultMaxToolRounds = 2

// ErrEmptyConversation is returned when there is no user message to answer
var ErrEmptyConversation = errors.New("conversation must end with a user message")

// Engine is the scheduling engine as seen by the orchestrator
type Engine interface {
	ListAvailableSlots(ctx context.Context, date time.Time) (*scheduling.Availability, error)
	CreateAppointment(ctx context.Context, req booking.AppointmentRequest) (*scheduling.BookingResult, error)
}

// ContactStore persists accepted leads
type ContactStore interface {
	SaveContact(ctx context.Context, c booking.ContactInfo) (int64, error)
}

// ContactNotifier tells the business about a new lead
type ContactNotifier interface {
	NotifyContactCaptured(ctx context.Context, c booking.ContactInfo)
}

// Config configures an Orchestrator
type Config struct {
	Location          *time.Location
	BusinessStart     string
	BusinessEnd       string
	SlotDuration      time.Duration
	MinDescriptionLen int
	ServiceType       string
	MaxToolRounds     int
}

// Reply is the answer to one user message
type Reply struct {
	Text         string               `json:"text"`
	Appointment  *booking.Appointment `json:"appointment,omitempty"`
	Alternatives []booking.TimeSlot   `json:"alternatives,omitempty"`
	Pending      bool                 `json:"pending"`
}

// Orchestrator runs the bounded tool-call protocol between the model and the
// scheduling engine for one user message at a time.
type Orchestrator struct {
	model      agent.ModelClient
	engine     Engine
	contacts   ContactStore
	notifier   ContactNotifier
	normalizer tools.Normalizer
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator. notifier may be nil.
func NewOrchestrator(model agent.ModelClient, engine Engine, contacts ContactStore, notifier ContactNotifier, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = 30 * time.Minute
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.BusinessStart == "" {
		cfg.BusinessStart = "09:00"
	}
	if cfg.BusinessEnd == "" {
		cfg.BusinessEnd = "17:00"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		model:    model,
		engine:   engine,
		contacts: contacts,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	o.normalizer = tools.Normalizer{
		Location:     cfg.Location,
		SlotDuration: cfg.SlotDuration,
		ServiceType:  cfg.ServiceType,
		Now:          func() time.Time { return o.now() },
	}
	return o
}

// outcome accumulates what the dispatched tools did during one user message
type outcome struct {
	appointment  *booking.Appointment
	pending      *booking.PendingAppointment
	alternatives []booking.TimeSlot
	conflict     bool
}

func (s *outcome) booked() bool {
	return s.appointment != nil || s.pending != nil
}

// Handle answers the last user message of history. Model failures never
// surface as errors; they degrade to a canned reply.
func (o *Orchestrator) Handle(ctx context.Context, history []agent.Message) (*Reply, error) {
	userText := lastUserText(history)
	if len(history) == 0 || history[len(history)-1].Role != agent.RoleUser || userText == "" {
		return nil, ErrEmptyConversation
	}

	messages := make([]agent.Message, len(history))
	copy(messages, history)

	opts := agent.CallOptions{
		System:     BuildSystemPrompt(o.now(), o.cfg.Location, o.cfg.BusinessStart, o.cfg.BusinessEnd),
		Tools:      tools.All(),
		ToolChoice: "auto",
	}

	state := &outcome{}
	for round := 0; ; round++ {
		resp, err := o.model.Call(ctx, messages, opts)
		if err != nil {
			o.logger.Warn("model call failed, using fallback reply", zap.Int("round", round), zap.Error(err))
			return o.degraded(userText, state), nil
		}

		uses := resp.ToolUses()
		if len(uses) == 0 {
			return o.final(resp.Text(), state), nil
		}

		if round >= o.cfg.MaxToolRounds {
			o.logger.Warn("tool-call bound reached, not dispatching",
				zap.Int("rounds", round), zap.String("tool", uses[0].Name))
			return o.terminal(state), nil
		}

		messages = append(messages, agent.Message{Role: agent.RoleAssistant, Content: resp.Content})

		results := make([]agent.ContentBlock, 0, len(uses))
		for _, use := range uses {
			results = append(results, o.dispatch(ctx, use, state))
		}
		messages = append(messages, agent.Message{Role: agent.RoleUser, Content: results})
	}
}

// final prefers the model's own text and synthesizes one when it is empty
func (o *Orchestrator) final(text string, state *outcome) *Reply {
	reply := o.replyFrom(state)
	if text != "" {
		reply.Text = text
		return reply
	}
	if synthesized := o.synthesize(state); synthesized != "" {
		reply.Text = synthesized
		return reply
	}
	reply.Text = terminalFallbackText
	return reply
}

// terminal ends a message whose model asked for one round too many
func (o *Orchestrator) terminal(state *outcome) *Reply {
	reply := o.replyFrom(state)
	if state.booked() {
		reply.Text = o.synthesize(state)
		return reply
	}
	reply.Text = terminalFallbackText
	return reply
}

// degraded answers after a model failure. A booking made earlier in the
// same message is still reported.
func (o *Orchestrator) degraded(userText string, state *outcome) *Reply {
	reply := o.replyFrom(state)
	if synthesized := o.synthesize(state); synthesized != "" {
		reply.Text = synthesized
		return reply
	}
	category, text := CannedReply(userText)
	o.logger.Debug("canned reply", zap.String("category", category))
	reply.Text = text
	return reply
}

func (o *Orchestrator) replyFrom(state *outcome) *Reply {
	return &Reply{
		Appointment:  state.appointment,
		Alternatives: state.alternatives,
		Pending:      state.pending != nil,
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, use agent.ToolUseBlock, state *outcome) agent.ContentBlock {
	inv, err := tools.Parse(use)
	if err != nil {
		o.logger.Warn("rejected tool arguments", zap.String("tool", use.Name), zap.Error(err))
		return errorResult(use.ID, map[string]any{"status": "rejected", "error": err.Error()})
	}

	o.logger.Info("dispatching tool", zap.String("tool", inv.ToolName()), zap.String("call_id", inv.CallID()))

	switch inv := inv.(type) {
	case tools.CollectContactInfo:
		return o.collectContact(ctx, inv)
	case tools.ListAvailableSlots:
		return o.listSlots(ctx, inv)
	case tools.CreateAppointment:
		return o.createAppointment(ctx, inv, state)
	case tools.UnknownTool:
		o.logger.Warn("model requested unknown tool", zap.String("tool", inv.Name))
		return errorResult(inv.ID, map[string]any{
			"status": "rejected",
			"error":  fmt.Sprintf("unknown tool %q", inv.Name),
		})
	default:
		return errorResult(use.ID, map[string]any{"status": "rejected", "error": "unsupported tool"})
	}
}

func (o *Orchestrator) collectContact(ctx context.Context, inv tools.CollectContactInfo) agent.ContentBlock {
	contact := inv.Contact
	contact.Normalize()

	if err := contact.Validate(); err != nil {
		return errorResult(inv.ID, rejection(err))
	}

	if _, err := o.contacts.SaveContact(ctx, contact); err != nil {
		o.logger.Error("failed to save contact", zap.Error(err))
		return errorResult(inv.ID, map[string]any{
			"accepted": false,
			"error":    "the contact could not be recorded right now, ask the visitor to try again later",
		})
	}

	if o.notifier != nil {
		o.notifier.NotifyContactCaptured(ctx, contact)
	}
	return result(inv.ID, map[string]any{"accepted": true})
}

func (o *Orchestrator) listSlots(ctx context.Context, inv tools.ListAvailableSlots) agent.ContentBlock {
	res := o.normalizer.ResolveDay(inv.Args)

	avail, err := o.engine.ListAvailableSlots(ctx, res.Date)
	if err != nil {
		o.logger.Error("failed to list slots", zap.String("date", res.String()), zap.Error(err))
		return errorResult(inv.ID, map[string]any{"error": "availability is temporarily unavailable"})
	}

	return result(inv.ID, map[string]any{
		"date":           avail.Date,
		"weekday":        res.Date.Weekday().String(),
		"slots":          clockTimes(avail.Slots, o.cfg.Location),
		"degraded":       avail.Degraded,
		"low_confidence": res.LowConfidence,
	})
}

func (o *Orchestrator) createAppointment(ctx context.Context, inv tools.CreateAppointment, state *outcome) agent.ContentBlock {
	if state.booked() {
		return errorResult(inv.ID, map[string]any{
			"status": "rejected",
			"error":  "an appointment was already booked in this conversation turn",
		})
	}

	req, err := o.normalizer.AppointmentRequest(inv.Args)
	if err != nil {
		return errorResult(inv.ID, rejection(err))
	}
	if err := req.Validate(o.cfg.MinDescriptionLen); err != nil {
		return errorResult(inv.ID, rejection(err))
	}

	res, err := o.engine.CreateAppointment(ctx, req)
	if err != nil {
		if booking.IsValidationError(err) {
			return errorResult(inv.ID, rejection(err))
		}
		o.logger.Error("appointment could not be booked or queued", zap.Error(err))
		return errorResult(inv.ID, map[string]any{
			"status": "failed",
			"error":  "the booking could not be completed, ask the visitor to leave an email for follow-up",
		})
	}

	switch res.Status {
	case scheduling.StatusConfirmed:
		state.appointment = res.Appointment
		state.alternatives = nil
		state.conflict = false
		return result(inv.ID, map[string]any{
			"status": "confirmed",
			"start":  res.Appointment.Request.Start.In(o.cfg.Location).Format("2006-01-02 15:04"),
			"link":   res.Appointment.Link,
		})
	case scheduling.StatusConflict:
		state.conflict = true
		state.alternatives = res.Alternatives
		return result(inv.ID, map[string]any{
			"status":       "conflict",
			"alternatives": clockTimes(res.Alternatives, o.cfg.Location),
		})
	default:
		state.pending = res.Pending
		return result(inv.ID, map[string]any{
			"status":  "pending",
			"message": "calendar temporarily unavailable, request saved and will be confirmed by email",
		})
	}
}

func lastUserText(history []agent.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != agent.RoleUser {
			continue
		}
		for _, block := range history[i].Content {
			if t, ok := block.(agent.TextBlock); ok && t.Text != "" {
				return t.Text
			}
		}
		return ""
	}
	return ""
}

func clockTimes(slots []booking.TimeSlot, loc *time.Location) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.In(loc).Format("15:04"))
	}
	return out
}

func rejection(err error) map[string]any {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		return map[string]any{"status": "rejected", "accepted": false, "fields": vErr.Fields}
	}
	return map[string]any{"status": "rejected", "accepted": false, "error": err.Error()}
}

func result(id string, payload map[string]any) agent.ContentBlock {
	return agent.ToolResultBlock{Type: "tool_result", ToolUseID: id, Content: encode(payload)}
}

func errorResult(id string, payload map[string]any) agent.ContentBlock {
	return agent.ToolResultBlock{Type: "tool_result", ToolUseID: id, Content: encode(payload), IsError: true}
}

func encode(payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(raw)
}
