package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mic-havock/ridb-backend/internal/model"
)

func testWatch() model.Watch {
	return model.Watch{
		ID:             42,
		EmailAddress:   "camper+alerts@example.com",
		CampsiteID:     "5",
		CampsiteName:   "Pines & Oaks",
		CampsiteNumber: "A12",
		FacilityID:     "100",
		StartDate:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestRender_ReplacesEveryOccurrence(t *testing.T) {
	tmpl := Template{
		Subject: "{campsite_id} and again {campsite_id}",
		Text:    "{start_date}..{end_date} {start_date}",
		HTML:    "<b>{campsite_name}</b>",
	}

	subject, body := tmpl.Render(Fields(testWatch(), "https://alerts.example.com/"))

	assert.Equal(t, "5 and again 5", subject)
	assert.Equal(t, "2025-06-01..2025-06-03 2025-06-01", body.Text)
	assert.Equal(t, "<b>Pines &amp; Oaks</b>", body.HTML)
}

func TestRender_SuccessTemplate(t *testing.T) {
	subject, body := Success.Render(Fields(testWatch(), "https://alerts.example.com/"))

	assert.Equal(t, "Pines & Oaks A12 is Available for Your Dates! 🏕️", subject)
	assert.Contains(t, body.Text, "Dates Available: 2025-06-01 through 2025-06-03")
	assert.Contains(t, body.Text, "https://www.recreation.gov/camping/campsites/5")
	assert.Contains(t, body.Text,
		"https://alerts.example.com/api/reservations/disable-monitoring/42/camper+alerts@example.com")
	assert.Contains(t, body.HTML, "Pines &amp; Oaks")

	for _, part := range []string{subject, body.Text, body.HTML} {
		assert.NotContains(t, part, "{", "unreplaced placeholder in %q", part)
	}
}

func TestFields_EscapesEmailForPath(t *testing.T) {
	w := testWatch()
	w.EmailAddress = "first last/x@example.com"

	fields := Fields(w, "http://localhost:3000")
	assert.Equal(t, "first%20last%2Fx@example.com", fields["email_address"])
	assert.Equal(t, "42", fields["reservation_id"])
}

func TestMailjetNotifier_Options(t *testing.T) {
	_, err := NewMailjetNotifier()
	require.Error(t, err)

	_, err = NewMailjetNotifier(WithSecrets("pub", ""))
	require.Error(t, err)

	_, err = NewMailjetNotifier(WithSecrets("pub", "priv"), WithSender(" ", "x"))
	require.Error(t, err)

	n, err := NewMailjetNotifier(WithSecrets("pub", "priv"), WithSender("alerts@example.com", "Alerts"))
	require.NoError(t, err)
	assert.Equal(t, "alerts@example.com", n.sender)
	assert.Equal(t, "Alerts", n.name)
}

func TestMailjetNotifier_Send(t *testing.T) {
	var got *mailjet.MessagesV31
	n, err := NewMailjetNotifier(
		WithSecrets("pub", "priv"),
		WithSender("alerts@example.com", "Alerts"),
		WithLogger(log.New(io.Discard, "", 0)),
		withSendFunc(func(msgs *mailjet.MessagesV31) error {
			got = msgs
			return nil
		}),
	)
	require.NoError(t, err)

	err = n.Send(context.Background(), "camper@example.com", "Subject", Body{Text: "text", HTML: "<p>html</p>"})
	require.NoError(t, err)

	require.NotNil(t, got)
	require.Len(t, got.Info, 1)
	info := got.Info[0]
	assert.Equal(t, "alerts@example.com", info.From.Email)
	assert.Equal(t, "Alerts", info.From.Name)
	require.Len(t, *info.To, 1)
	assert.Equal(t, "camper@example.com", (*info.To)[0].Email)
	assert.Equal(t, "Subject", info.Subject)
	assert.Equal(t, "text", info.TextPart)
	assert.Equal(t, "<p>html</p>", info.HTMLPart)
}

func TestMailjetNotifier_SendFailure(t *testing.T) {
	n, err := NewMailjetNotifier(
		WithSecrets("pub", "priv"),
		withSendFunc(func(*mailjet.MessagesV31) error { return errors.New("boom") }),
	)
	require.NoError(t, err)

	err = n.Send(context.Background(), "camper@example.com", "s", Body{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.ErrorIs(t, n.Send(context.Background(), "", "s", Body{}), ErrNoRecipient)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(log.New(&buf, "", 0))

	require.NoError(t, n.Send(context.Background(), "camper@example.com", "Hello", Body{Text: "body"}))
	out := buf.String()
	assert.True(t, strings.Contains(out, "[dry-run] email to camper@example.com"))
	assert.Contains(t, out, "Subject: Hello")
	assert.Contains(t, out, "body")

	assert.ErrorIs(t, n.Send(context.Background(), " ", "Hello", Body{}), ErrNoRecipient)
}
