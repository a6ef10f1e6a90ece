package mattermost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/checkin-service/internal/config"
	"github.com/eventhub/checkin-service/pkg/logger"
)

func newTestServer(t *testing.T, status int) (*httptest.Server, *[]Message) {
	t.Helper()

	var received []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var msg Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received = append(received, msg)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestClient_DisabledSkipsSend(t *testing.T) {
	srv, received := newTestServer(t, http.StatusOK)
	c := NewClient(&config.MattermostConfig{WebhookURL: srv.URL, Enabled: false}, logger.Nop())

	require.NoError(t, c.SendMessage(context.Background(), &Message{Text: "hello"}))
	assert.Empty(t, *received)
	assert.False(t, c.Enabled())
}

func TestClient_SendFlaggedCheckInAlert(t *testing.T) {
	srv, received := newTestServer(t, http.StatusOK)
	c := NewClient(&config.MattermostConfig{WebhookURL: srv.URL, Channel: "integrity", Enabled: true}, logger.Nop())

	err := c.SendFlaggedCheckInAlert(context.Background(), FlaggedCheckIn{
		CheckInID:  12,
		UserID:     3,
		EventID:    7,
		EventTitle: "GopherCon",
		Method:     "gps",
		FraudScore: 90,
		Reason:     "burst; impossible_travel; location_mismatch",
		CreatedAt:  time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, *received, 1)

	msg := (*received)[0]
	assert.Equal(t, "integrity", msg.Channel)
	require.Len(t, msg.Attachments, 1)
	assert.Contains(t, msg.Attachments[0].Title, "#12")
	assert.Equal(t, "#d24b4e", msg.Attachments[0].Color)
	assert.Equal(t, "GopherCon (#7)", msg.Attachments[0].Fields[1].Value)
}

func TestClient_SendDailyIntegrityReport(t *testing.T) {
	srv, received := newTestServer(t, http.StatusOK)
	c := NewClient(&config.MattermostConfig{WebhookURL: srv.URL, Enabled: true}, logger.Nop())
	since := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	// Empty window sends nothing.
	require.NoError(t, c.SendDailyIntegrityReport(context.Background(), IntegrityReport{Since: since}))
	assert.Empty(t, *received)

	err := c.SendDailyIntegrityReport(context.Background(), IntegrityReport{
		Since:   since,
		Total:   40,
		Flagged: 2,
		TopFlagged: []FlaggedCheckIn{
			{CheckInID: 1, UserID: 2, EventID: 3, FraudScore: 100, Reason: "burst"},
		},
	})
	require.NoError(t, err)
	require.Len(t, *received, 1)
	assert.Contains(t, (*received)[0].Text, "**40** check-ins, **2** flagged (5.0%)")
	assert.Contains(t, (*received)[0].Text, "⚠️ #1")
}

func TestClient_NonOKStatus(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError)
	c := NewClient(&config.MattermostConfig{WebhookURL: srv.URL, Enabled: true}, logger.Nop())

	err := c.SendMessage(context.Background(), &Message{Text: "hello"})
	assert.Error(t, err)
}
