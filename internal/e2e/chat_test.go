package e2e

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omriShneor/project_concierge/internal/agent"
	"github.com/omriShneor/project_concierge/internal/agent/tools"
	"github.com/omriShneor/project_concierge/internal/concierge"
	"github.com/omriShneor/project_concierge/internal/testutil"
	"github.com/omriShneor/project_concierge/internal/timeutil"
)

func TestChatBooksAppointment(t *testing.T) {
	day := testutil.FutureDay()
	model := testutil.NewScriptedModel(
		testutil.ToolUse("t1", tools.NameListAvailableSlots, map[string]any{"date": day.Format(timeutil.DateLayout)}),
		testutil.ToolUse("t2", tools.NameCreateAppointment, testutil.NewAppointmentBuilder().Build()),
		testutil.Text(""),
	)
	ts := testutil.NewTestServer(t, testutil.WithModel(model))

	status, reply := chat(t, ts, "I'd like a consultation next week at 10:00")
	require.Equal(t, http.StatusOK, status)

	assert.Contains(t, reply["text"], "confirmed")
	assert.Equal(t, false, reply["pending"])
	appt, ok := reply["appointment"].(map[string]any)
	require.True(t, ok, "reply should carry the appointment")

	events := ts.Calendar.Events()
	require.Len(t, events, 1)
	assert.Equal(t, events[0].ID, appt["event_id"])
	assert.Equal(t, "Initial free consultation - Ana Souza (Acme)", events[0].Input.Summary)
	assert.Equal(t, []string{"ana@acme.com"}, events[0].Input.Attendees)
	assert.True(t, events[0].Input.StartTime.Equal(testutil.At(day, 10, 0)))

	t.Run("slot list reached the model", func(t *testing.T) {
		calls := ts.Model.Calls()
		require.Len(t, calls, 3)
		last := calls[1][len(calls[1])-1]
		require.Equal(t, agent.RoleUser, last.Role)
		result, ok := last.Content[0].(agent.ToolResultBlock)
		require.True(t, ok)
		assert.Equal(t, "t1", result.ToolUseID)
		assert.Contains(t, result.Content, `"10:00"`)
	})
}

func TestChatDuringCalendarOutage(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolUse("t1", tools.NameCreateAppointment, testutil.NewAppointmentBuilder().Build()),
		testutil.Text(""),
	)
	ts := testutil.NewTestServer(t, testutil.WithModel(model))
	ts.Calendar.SetAvailable(false)

	status, reply := chat(t, ts, "Book me for 10:00 please")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, true, reply["pending"])
	assert.Contains(t, reply["text"], "temporarily unavailable")
	assert.Empty(t, ts.Calendar.Events())

	pending, err := ts.Queue.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"ana@acme.com"}, pending[0].Request.Attendees)

	sent := ts.Email.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "owner@example.com", sent[0].Recipient)
	assert.Contains(t, sent[0].Subject, "awaiting calendar sync")
}

func TestChatModelOutageFallsBackToCannedReply(t *testing.T) {
	// No scripted responses, so every model call fails
	ts := testutil.NewTestServer(t)

	status, reply := chat(t, ts, "Quanto custa a consultoria?")
	require.Equal(t, http.StatusOK, status)

	_, want := concierge.CannedReply("Quanto custa a consultoria?")
	assert.Equal(t, want, reply["text"])
	assert.Empty(t, ts.Calendar.Events())
}

func TestChatCapturesContact(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolUse("t1", tools.NameCollectContactInfo, testutil.ContactInput()),
		testutil.Text("Thanks Ana, our team will reach out shortly."),
	)
	ts := testutil.NewTestServer(t, testutil.WithModel(model))

	status, reply := chat(t, ts,
		"Hi, I need help with our sales process",
		"Happy to help! Could you share your name, email, company and role?",
		"Ana Souza, ana@acme.com, Acme, Head of Sales. We want to grow enterprise revenue but cycles are long.",
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Thanks Ana, our team will reach out shortly.", reply["text"])

	contacts, err := ts.DB.ListContacts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Acme", contacts[0].Contact.Company)

	sent := ts.Email.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "New lead")
}

func TestChatRejectsIncompleteBooking(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolUse("t1", tools.NameCreateAppointment,
			testutil.NewAppointmentBuilder().WithDescription("call").Build()),
		testutil.Text("Could you tell me a bit more about what you would like to discuss?"),
	)
	ts := testutil.NewTestServer(t, testutil.WithModel(model))

	status, reply := chat(t, ts, "Book 10:00")
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, reply["appointment"])
	assert.Empty(t, ts.Calendar.Events())

	calls := ts.Model.Calls()
	require.Len(t, calls, 2)
	result := calls[1][len(calls[1])-1].Content[0].(agent.ToolResultBlock)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "description")
}

func TestChatRejectsAfterHoursBooking(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.ToolUse("t1", tools.NameCreateAppointment,
			testutil.NewAppointmentBuilder().At("22:00").Build()),
		testutil.Text("We are open 09:00 to 17:00. Would 10:00 work?"),
	)
	ts := testutil.NewTestServer(t, testutil.WithModel(model))

	status, reply := chat(t, ts, "Book me at 22:00")
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, reply["appointment"])
	assert.Empty(t, ts.Calendar.Events())

	calls := ts.Model.Calls()
	require.Len(t, calls, 2)
	result := calls[1][len(calls[1])-1].Content[0].(agent.ToolResultBlock)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "start")
}
