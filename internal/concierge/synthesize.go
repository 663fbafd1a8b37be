package concierge

import (
	"fmt"
	"strings"
	"time"
)

const terminalFallbackText = "I couldn't complete that here. Please tell me the day and time you prefer, or leave your email and our team will get in touch to schedule it."

const dateTimeLayout = "Monday, January 2, 2006 at 15:04"

// synthesize builds a deterministic message from the tool outcomes. It
// returns "" when nothing was booked or offered.
func (o *Orchestrator) synthesize(state *outcome) string {
	loc := o.cfg.Location

	switch {
	case state.appointment != nil:
		req := state.appointment.Request
		var b strings.Builder
		fmt.Fprintf(&b, "Your appointment is confirmed for %s (%s).", req.Start.In(loc).Format(dateTimeLayout), zoneName(req.Start, loc))
		if len(req.Attendees) > 0 {
			fmt.Fprintf(&b, " A calendar invitation was sent to %s.", strings.Join(req.Attendees, ", "))
		}
		if state.appointment.Link != "" {
			fmt.Fprintf(&b, " Event link: %s", state.appointment.Link)
		}
		return b.String()

	case state.pending != nil:
		start := state.pending.Request.Start
		return fmt.Sprintf("Thank you! Your request for %s (%s) has been captured. "+
			"Our calendar is temporarily unavailable, so our team will confirm the appointment by email shortly.",
			start.In(loc).Format(dateTimeLayout), zoneName(start, loc))

	case state.conflict && len(state.alternatives) > 0:
		return fmt.Sprintf("That time is no longer available. Free times on the same day: %s. Which one works for you?",
			strings.Join(clockTimes(state.alternatives, loc), ", "))

	case state.conflict:
		return "That time is no longer available and there are no other free times that day. Would you like to try another day?"

	default:
		return ""
	}
}

func zoneName(t time.Time, loc *time.Location) string {
	name, _ := t.In(loc).Zone()
	return name
}
