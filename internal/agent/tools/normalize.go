package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/omriShneor/project_concierge/internal/booking"
	"github.com/omriShneor/project_concierge/internal/timeutil"
)

// DefaultServiceType is used when the model does not name a service
const DefaultServiceType = "Initial free consultation"

// Normalizer turns model arguments into domain requests
type Normalizer struct {
	Location     *time.Location
	SlotDuration time.Duration
	ServiceType  string
	Now          func() time.Time
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n Normalizer) location() *time.Location {
	if n.Location != nil {
		return n.Location
	}
	return time.UTC
}

// ResolveDay resolves a list_available_slots date expression
func (n Normalizer) ResolveDay(args SlotsArgs) timeutil.Resolution {
	return timeutil.ResolveDate(args.Date, n.now().In(n.location()))
}

// AppointmentRequest merges date and time into a start instant, fills in the
// defaults and returns the request. Unusable times are a *booking.ValidationError.
func (n Normalizer) AppointmentRequest(args AppointmentArgs) (booking.AppointmentRequest, error) {
	loc := n.location()
	duration := n.SlotDuration
	if duration <= 0 {
		duration = 30 * time.Minute
	}

	req := booking.AppointmentRequest{
		Title:       strings.TrimSpace(args.Title),
		Description: strings.TrimSpace(args.Description),
		ServiceType: strings.TrimSpace(args.ServiceType),
	}

	start, err := n.start(args, loc)
	if err != nil {
		return req, err
	}
	req.Start = start

	req.End = start.Add(duration)
	if strings.TrimSpace(args.End) != "" {
		end, err := timeutil.ParseDateTime(args.End, loc)
		if err != nil {
			return req, invalid("end", "is not a valid date and time")
		}
		req.End = end
	}

	if req.ServiceType == "" {
		req.ServiceType = n.ServiceType
		if req.ServiceType == "" {
			req.ServiceType = DefaultServiceType
		}
	}

	if booking.IsPlaceholderTitle(req.Title) {
		if title := synthesizeTitle(req.ServiceType, args.Name, args.Company); title != "" {
			req.Title = title
		}
	}

	for _, a := range args.Attendees {
		if a = strings.TrimSpace(a); a != "" {
			req.Attendees = append(req.Attendees, a)
		}
	}
	if len(req.Attendees) == 0 && strings.TrimSpace(args.Email) != "" {
		req.Attendees = []string{strings.ToLower(strings.TrimSpace(args.Email))}
	}

	return req, nil
}

func (n Normalizer) start(args AppointmentArgs, loc *time.Location) (time.Time, error) {
	if s := strings.TrimSpace(args.Start); s != "" {
		t, err := timeutil.ParseDateTime(s, loc)
		if err != nil {
			return time.Time{}, invalid("start", "is not a valid date and time")
		}
		return t, nil
	}

	date, clock := strings.TrimSpace(args.Date), strings.TrimSpace(args.Time)
	switch {
	case date == "" && clock == "":
		return time.Time{}, invalid("start", "is required (date and time)")
	case clock == "":
		return time.Time{}, invalid("time", "is required")
	case date == "":
		return time.Time{}, invalid("date", "is required")
	}

	t, res, err := timeutil.CombineDateAndClock(date, clock, n.now(), loc)
	if err != nil {
		return time.Time{}, invalid("time", fmt.Sprintf("%q is not a time of day", clock))
	}
	if res.LowConfidence {
		return time.Time{}, invalid("date", fmt.Sprintf("%q was not understood, ask for a specific day", date))
	}
	return t, nil
}

func synthesizeTitle(service, name, company string) string {
	name, company = strings.TrimSpace(name), strings.TrimSpace(company)
	if booking.IsPlaceholder(name) {
		name = ""
	}
	if booking.IsPlaceholder(company) {
		company = ""
	}

	switch {
	case name != "" && company != "":
		return fmt.Sprintf("%s - %s (%s)", service, name, company)
	case name != "":
		return fmt.Sprintf("%s - %s", service, name)
	case company != "":
		return fmt.Sprintf("%s - %s", service, company)
	default:
		return ""
	}
}

func invalid(field, reason string) error {
	return &booking.ValidationError{Fields: []booking.FieldError{{Field: field, Reason: reason}}}
}
