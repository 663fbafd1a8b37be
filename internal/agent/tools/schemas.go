package tools

import "github.com/omriShneor/project_concierge/internal/agent"

// Tool names understood by the concierge
const (
	NameCollectContactInfo = "collect_contact_info"
	NameListAvailableSlots = "list_available_slots"
	NameCreateAppointment  = "create_appointment"
)

// CollectContactInfoTool records a qualified lead
var CollectContactInfoTool = agent.Tool{
	Name: NameCollectContactInfo,
	Description: `Records the visitor's contact and qualification details so the team can follow up.
Call this only after the visitor has actually told you every required field. Never invent,
guess or fill in placeholder values such as "N/A" or "unknown"; ask the visitor instead.
The result says whether the record was accepted and, if not, which fields must be asked again.`,
	InputSchema: agent.BuildJSONSchema("object", map[string]any{
		"name":       agent.PropertyString("Visitor's full name"),
		"email":      agent.PropertyString("Visitor's email address"),
		"company":    agent.PropertyString("Company or organization"),
		"role":       agent.PropertyString("Visitor's role or job title"),
		"objectives": agent.PropertyString("What the visitor wants to achieve"),
		"challenges": agent.PropertyString("Main challenges the visitor is facing"),
		"message": map[string]any{
			"type":        "string",
			"description": "Anything else the visitor wants to add. Optional.",
		},
	}, []string{"name", "email", "company", "role", "objectives", "challenges"}),
}

// ListAvailableSlotsTool lists the open appointment times on a day
var ListAvailableSlotsTool = agent.Tool{
	Name: NameListAvailableSlots,
	Description: `Lists the free 30-minute appointment slots on one day within business hours.
The date may be an ISO date (YYYY-MM-DD), DD/MM or DD/MM/YYYY, or a relative expression such as
"tomorrow", "amanhã", "next monday" or "sexta-feira". When the result has low_confidence set the
date was not understood; confirm the day with the visitor before offering times. When degraded
is set the calendar could not be read and the times are not guaranteed to be free.`,
	InputSchema: agent.BuildJSONSchema("object", map[string]any{
		"date": agent.PropertyString("Day to check, absolute or relative"),
	}, []string{"date"}),
}

// CreateAppointmentTool books an appointment on the calendar
var CreateAppointmentTool = agent.Tool{
	Name: NameCreateAppointment,
	Description: `Books a 30-minute appointment for the visitor on the business calendar.
Provide either start (ISO 8601) or date plus time. The visitor's email is required so the
invitation can be sent, and the description must explain what the visitor wants to discuss.
If the slot is taken the result lists alternative times on the same day. If the calendar is
temporarily unavailable the request is saved and confirmed later; tell the visitor so.`,
	InputSchema: agent.BuildJSONSchema("object", map[string]any{
		"title": map[string]any{
			"type":        "string",
			"description": "Event title. Optional - built from the visitor's name and company when omitted.",
		},
		"date": agent.PropertyString("Day of the appointment, absolute or relative (e.g. 2025-04-10, amanhã, friday)"),
		"time": agent.PropertyString("Start time of day (e.g. 14:30, 9h, 2pm)"),
		"start": map[string]any{
			"type":        "string",
			"description": "Start in ISO 8601 format (YYYY-MM-DDTHH:MM:SS). Alternative to date + time.",
		},
		"end": map[string]any{
			"type":        "string",
			"description": "End in ISO 8601 format. Optional - defaults to 30 minutes after start.",
		},
		"email":     agent.PropertyString("Visitor's email address"),
		"name":      agent.PropertyString("Visitor's name"),
		"company":   agent.PropertyString("Visitor's company. Optional."),
		"attendees": agent.PropertyArray("Attendee emails. Optional - defaults to the visitor's email.", map[string]any{"type": "string"}),
		"description": agent.PropertyString("What the visitor wants to discuss, with enough context for the meeting"),
		"service_type": map[string]any{
			"type":        "string",
			"description": "Service the meeting is about. Optional.",
		},
	}, []string{"email", "description"}),
}

// All returns the tools offered to the model
func All() []agent.Tool {
	return []agent.Tool{CollectContactInfoTool, ListAvailableSlotsTool, CreateAppointmentTool}
}
