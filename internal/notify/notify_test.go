package notify

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/buzzwatch/internal/provider"
)

func sampleBody() Body {
	at := time.Date(2026, 1, 10, 17, 0, 0, 0, time.UTC)
	snap := provider.NewSnapshot("espn", at, []provider.Record{
		{Key: "Jalen W.", Metrics: map[string]float64{"pct_rost": 45.3}},
		{Key: "Nick R.", Metrics: map[string]float64{}},
	})
	return BodyFromRecords(snap.Records, []string{"pct_rost"})
}

func TestBodyFromRecords(t *testing.T) {
	b := sampleBody()
	assert.Equal(t, []string{"name", "pct_rost", "time_fetched"}, b.Columns)
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, Row{"name": "Jalen W.", "pct_rost": "45.3", "time_fetched": "2026-01-10 17:00:00"}, b.Rows[0])
	assert.Equal(t, "", b.Rows[1]["pct_rost"])
	assert.Equal(t, []string{"Jalen W.", "Nick R."}, b.Names())
}

func TestBodyRender(t *testing.T) {
	b := sampleBody()

	text := b.Text()
	assert.Contains(t, text, "PCT_ROST")
	assert.Contains(t, text, "Jalen W.")
	assert.Contains(t, text, "45.3")

	html := b.HTML()
	assert.True(t, strings.HasPrefix(html, "<table"))
	assert.Contains(t, html, "<td>Jalen W.</td>")
}

func TestNewPicksSender(t *testing.T) {
	_, isLog := New(SMTPConfig{}, nil).(*LogSender)
	assert.True(t, isLog)

	s, isSMTP := New(SMTPConfig{Host: "smtp.example.com", From: "a@example.com"}, nil).(*SMTPSender)
	require.True(t, isSMTP)
	assert.Equal(t, 587, s.cfg.Port)
}

func TestNewSMTPSenderUnconfigured(t *testing.T) {
	assert.Nil(t, NewSMTPSender(SMTPConfig{Host: "smtp.example.com"}, nil))
	assert.Nil(t, NewSMTPSender(SMTPConfig{From: "a@example.com"}, nil))
}

func TestSMTPSenderErrors(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@example.com"}, nil)
	require.NotNil(t, s)

	err := s.Send(context.Background(), "", SubjectFreeAgents, sampleBody())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipient")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Send(ctx, "me@example.com", SubjectFreeAgents, sampleBody())
	require.ErrorIs(t, err, context.Canceled)

	err = s.Send(context.Background(), "me@example.com", SubjectFreeAgents, sampleBody())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ESPN Free Agent Alert")

	var nilSender *SMTPSender
	require.Error(t, nilSender.Send(context.Background(), "me@example.com", "x", Body{}))
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := NewLogSender(logger).Send(context.Background(), "me@example.com", SubjectFreeAgents, sampleBody())
	require.ErrorIs(t, err, ErrNotDelivered)
	out := buf.String()
	assert.Contains(t, out, "Alert (smtp not configured)")
	assert.Contains(t, out, "rows=2")
	assert.Contains(t, out, `players="Jalen W., Nick R."`)

	var nilSender *LogSender
	assert.ErrorIs(t, nilSender.Send(context.Background(), "x", "y", Body{}), ErrNotDelivered)
}
