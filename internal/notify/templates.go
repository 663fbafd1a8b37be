package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/omriShneor/project_concierge/internal/booking"
)

const dateTimeLayout = "Monday, January 2, 2006 at 3:04 PM"

func contactMessage(c booking.ContactInfo) Message {
	rows := []string{
		row("Name", c.Name),
		row("Email", c.Email),
		row("Company", c.Company),
		row("Role", c.Role),
		row("Objectives", c.Objectives),
		row("Challenges", c.Challenges),
	}
	if c.Message != "" {
		rows = append(rows, row("Message", c.Message))
	}

	return Message{
		Subject: fmt.Sprintf("New lead: %s (%s)", c.Name, c.Company),
		HTML:    layout("New Lead", "#28a745", "New contact from the concierge", strings.Join(rows, "\n      ")),
	}
}

func pendingMessage(p *booking.PendingAppointment, loc *time.Location) Message {
	req := p.Request
	start := req.Start.In(loc)

	rows := []string{
		row("When", fmt.Sprintf("%s - %s", start.Format(dateTimeLayout), req.End.In(loc).Format("3:04 PM"))),
		row("Title", req.Title),
		row("Attendees", strings.Join(req.Attendees, ", ")),
		row("Service", req.ServiceType),
		row("Context", req.Description),
		row("Queue ID", p.ID),
	}

	return Message{
		Subject: fmt.Sprintf("Booking awaiting calendar sync: %s", req.Title),
		HTML: layout("Pending Booking", "#ffc107",
			"The calendar was unreachable. This booking is queued and will be written on the next reconciliation pass.",
			strings.Join(rows, "\n      ")),
	}
}

func row(label, value string) string {
	return fmt.Sprintf(`<p style="margin: 8px 0;"><strong>%s:</strong> %s</p>`, label, html.EscapeString(value))
}

func layout(badge, color, intro, body string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
  <div style="background-color: white; border-radius: 8px; padding: 24px; box-shadow: 0 2px 4px rgba(0,0,0,0.1);">
    <div style="margin-bottom: 16px;">
      <span style="background-color: %s; color: white; padding: 4px 12px; border-radius: 4px; font-size: 12px; font-weight: 600;">%s</span>
    </div>

    <p style="margin: 0 0 16px 0; color: #333;">%s</p>

    <div style="background: #f8f9fa; padding: 16px; border-radius: 8px; margin: 16px 0; border-left: 4px solid #007bff;">
      %s
    </div>

    <hr style="margin-top: 32px; border: none; border-top: 1px solid #eee;">
    <p style="color: #999; font-size: 12px; margin-top: 16px;">
      Booking Concierge<br>
      <span style="color: #ccc;">Sent at %s</span>
    </p>
  </div>
</body>
</html>`,
		color,
		badge,
		html.EscapeString(intro),
		body,
		time.Now().Format("Jan 2, 2006 3:04 PM"),
	)
}
