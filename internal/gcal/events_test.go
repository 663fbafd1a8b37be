package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

type staticTokens struct{}

func (staticTokens) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"})
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(staticTokens{}, ClientConfig{Timeout: 2 * time.Second, Endpoint: srv.URL + "/"}, nil)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestFreeBusy(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	dayStart := time.Date(2025, 4, 10, 0, 0, 0, 0, loc)

	t.Run("parses busy intervals", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			var req calendar.FreeBusyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Items, 1)
			assert.Equal(t, "primary", req.Items[0].Id)

			writeJSON(w, http.StatusOK, map[string]interface{}{
				"calendars": map[string]interface{}{
					"primary": map[string]interface{}{
						"busy": []map[string]string{
							{"start": "2025-04-10T12:00:00Z", "end": "2025-04-10T12:30:00Z"},
							{"start": "2025-04-10T17:00:00Z", "end": "2025-04-10T18:00:00Z"},
						},
					},
				},
			})
		})

		c := newTestClient(t, mux)
		busy, err := c.FreeBusy(context.Background(), "", dayStart, dayStart.Add(24*time.Hour-time.Second))
		require.NoError(t, err)
		require.Len(t, busy, 2)
		assert.True(t, time.Date(2025, 4, 10, 9, 0, 0, 0, loc).Equal(busy[0].Start))
		assert.True(t, time.Date(2025, 4, 10, 15, 0, 0, 0, loc).Equal(busy[1].End))
	})

	t.Run("calendar level error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"calendars": map[string]interface{}{
					"primary": map[string]interface{}{
						"errors": []map[string]string{{"domain": "global", "reason": "notFound"}},
					},
				},
			})
		})

		c := newTestClient(t, mux)
		_, err := c.FreeBusy(context.Background(), "primary", dayStart, dayStart.Add(time.Hour))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notFound")
	})

	t.Run("server error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error": map[string]interface{}{"code": 503, "message": "backend unavailable"},
			})
		})

		c := newTestClient(t, mux)
		_, err := c.FreeBusy(context.Background(), "primary", dayStart, dayStart.Add(time.Hour))
		assert.Error(t, err)
	})
}

func TestInsertEvent(t *testing.T) {
	start := time.Date(2025, 4, 10, 10, 0, 0, 0, time.FixedZone("BRT", -3*60*60))
	input := EventInput{
		ID:          EventIDFor("3f2c9a1e-7b4d-4c2a-9e1f-0a1b2c3d4e5f"),
		Summary:     "Consultation - Ana (Acme)",
		Description: "Wants to grow inbound leads.",
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		Attendees:   []string{"ana@acme.com"},
	}

	t.Run("creates event with reminders and notifications", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "primary", r.PathValue("cal"))
			assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))

			var ev calendar.Event
			require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
			assert.Equal(t, input.ID, ev.Id)
			assert.Equal(t, "2025-04-10T10:00:00-03:00", ev.Start.DateTime)
			require.NotNil(t, ev.Reminders)
			assert.False(t, ev.Reminders.UseDefault)
			require.Len(t, ev.Reminders.Overrides, 2)
			assert.Equal(t, int64(1440), ev.Reminders.Overrides[0].Minutes)
			assert.Equal(t, "popup", ev.Reminders.Overrides[1].Method)
			require.Len(t, ev.Attendees, 1)

			writeJSON(w, http.StatusOK, map[string]string{"id": ev.Id, "htmlLink": "https://calendar.example/e/" + ev.Id})
		})

		c := newTestClient(t, mux)
		created, err := c.InsertEvent(context.Background(), "primary", input)
		require.NoError(t, err)
		assert.Equal(t, input.ID, created.ID)
		assert.Equal(t, "https://calendar.example/e/"+input.ID, created.Link)
		assert.False(t, created.AlreadyExisted)
	})

	t.Run("conflict on insert fetches existing event", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error": map[string]interface{}{"code": 409, "message": "The requested identifier already exists."},
			})
		})
		mux.HandleFunc("GET /calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, input.ID, r.PathValue("id"))
			writeJSON(w, http.StatusOK, map[string]string{"id": input.ID, "htmlLink": "https://calendar.example/existing"})
		})

		c := newTestClient(t, mux)
		created, err := c.InsertEvent(context.Background(), "primary", input)
		require.NoError(t, err)
		assert.True(t, created.AlreadyExisted)
		assert.Equal(t, "https://calendar.example/existing", created.Link)
	})

	t.Run("other failures surface", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"error": map[string]interface{}{"code": 403, "message": "forbidden"},
			})
		})

		c := newTestClient(t, mux)
		_, err := c.InsertEvent(context.Background(), "primary", input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create event")
	})
}

func TestEventIDFor(t *testing.T) {
	id := EventIDFor("3F2C9A1E-7B4D-4C2A-9E1F-0A1B2C3D4E5F")
	assert.Equal(t, "3f2c9a1e7b4d4c2a9e1f0a1b2c3d4e5f", id)
	assert.Equal(t, id, EventIDFor(id))
}
