package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/omriShneor/project_concierge/internal/agent"
	"github.com/omriShneor/project_concierge/internal/booking"
)

// Invocation is one tool call requested by the model. It is one of
// CollectContactInfo, ListAvailableSlots, CreateAppointment or UnknownTool.
type Invocation interface {
	CallID() string
	ToolName() string
	invocation()
}

// CollectContactInfo asks to record a lead
type CollectContactInfo struct {
	ID      string
	Contact booking.ContactInfo
}

// ListAvailableSlots asks for the free slots on a day
type ListAvailableSlots struct {
	ID   string
	Args SlotsArgs
}

// CreateAppointment asks to book an appointment
type CreateAppointment struct {
	ID   string
	Args AppointmentArgs
}

// UnknownTool is a call to a tool that does not exist. It is never dispatched.
type UnknownTool struct {
	ID   string
	Name string
}

// SlotsArgs are the arguments of list_available_slots
type SlotsArgs struct {
	Date string `json:"date"`
}

// AppointmentArgs are the arguments of create_appointment as sent by the model
type AppointmentArgs struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Company     string   `json:"company"`
	Attendees   []string `json:"attendees"`
	Description string   `json:"description"`
	ServiceType string   `json:"service_type"`
}

func (c CollectContactInfo) CallID() string   { return c.ID }
func (c CollectContactInfo) ToolName() string { return NameCollectContactInfo }
func (CollectContactInfo) invocation()        {}

func (l ListAvailableSlots) CallID() string   { return l.ID }
func (l ListAvailableSlots) ToolName() string { return NameListAvailableSlots }
func (ListAvailableSlots) invocation()        {}

func (c CreateAppointment) CallID() string   { return c.ID }
func (c CreateAppointment) ToolName() string { return NameCreateAppointment }
func (CreateAppointment) invocation()        {}

func (u UnknownTool) CallID() string   { return u.ID }
func (u UnknownTool) ToolName() string { return u.Name }
func (UnknownTool) invocation()        {}

// Parse turns a tool_use block into a typed invocation. Arguments are decoded
// strictly; unknown fields or wrong types are an error. An unknown tool name
// is not an error and yields UnknownTool.
func Parse(use agent.ToolUseBlock) (Invocation, error) {
	switch use.Name {
	case NameCollectContactInfo:
		var c booking.ContactInfo
		if err := decodeStrict(use.Input, &c); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", use.Name, err)
		}
		return CollectContactInfo{ID: use.ID, Contact: c}, nil

	case NameListAvailableSlots:
		var args SlotsArgs
		if err := decodeStrict(use.Input, &args); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", use.Name, err)
		}
		return ListAvailableSlots{ID: use.ID, Args: args}, nil

	case NameCreateAppointment:
		var args AppointmentArgs
		if err := decodeStrict(use.Input, &args); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", use.Name, err)
		}
		return CreateAppointment{ID: use.ID, Args: args}, nil

	default:
		return UnknownTool{ID: use.ID, Name: use.Name}, nil
	}
}

func decodeStrict(input map[string]any, dst any) error {
	if input == nil {
		input = map[string]any{}
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
