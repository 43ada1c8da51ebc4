package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/buzzwatch/internal/detect"
	"github.com/albapepper/buzzwatch/internal/notify"
	"github.com/albapepper/buzzwatch/internal/provider/espn"
)

type espnHarness struct {
	deps     ESPNDeps
	session  *fakeSession
	notifier *fakeNotifier
	clock    *clock
}

func newESPNHarness(t *testing.T) *espnHarness {
	t.Helper()
	h := &espnHarness{
		session:  &fakeSession{markup: readFixture(t, "..", "provider", "espn", "testdata", "freeagents.html")},
		notifier: &fakeNotifier{},
		clock:    &clock{now: time.Date(2026, 1, 10, 17, 0, 0, 0, time.UTC)},
	}
	h.deps = ESPNDeps{
		OpenSession: func(context.Context) (espn.Session, error) {
			h.session.closed = false
			return h.session, nil
		},
		URL:           espn.FreeAgentsURL("1079777210"),
		Username:      "user",
		Password:      "secret",
		Store:         newCSVStore(t, "espn_free_agents", espn.Metrics...),
		Notifier:      h.notifier,
		Recipient:     "me@example.com",
		Threshold:     30,
		Cooldown:      7 * 24 * time.Hour,
		ScreenshotDir: t.TempDir(),
		Now:           h.clock.Now,
		Logger:        discardLogger(),
	}
	return h
}

func TestRunESPNSendsOneEmail(t *testing.T) {
	h := newESPNHarness(t)
	ctx := context.Background()

	res, err := RunESPN(ctx, h.deps)
	require.NoError(t, err)

	require.Len(t, h.notifier.sent, 1)
	mail := h.notifier.sent[0]
	assert.Equal(t, "me@example.com", mail.to)
	assert.Equal(t, notify.SubjectFreeAgents, mail.subject)
	assert.Equal(t, []string{"Jalen W.", "Nick R."}, mail.body.Names())

	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 2, res.Notified)
	assert.Equal(t, 2, res.Persisted)
	assert.NotEmpty(t, res.RunID)

	records, err := h.deps.Store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Jalen W.", records[0].Key)

	assert.Equal(t, h.deps.URL, h.session.navigated)
	assert.Equal(t, "user", h.session.user)
	assert.True(t, h.session.closed)
	assert.Empty(t, h.session.screenshots)
}

func TestRunESPNCooldown(t *testing.T) {
	h := newESPNHarness(t)
	ctx := context.Background()

	_, err := RunESPN(ctx, h.deps)
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	res, err := RunESPN(ctx, h.deps)
	require.NoError(t, err)
	assert.Len(t, h.notifier.sent, 1, "second run inside the cooldown must not email")
	assert.Equal(t, 0, res.Notified)
	assert.Equal(t, 0, res.Persisted)

	h.clock.Advance(7 * 24 * time.Hour)
	res, err = RunESPN(ctx, h.deps)
	require.NoError(t, err)
	assert.Len(t, h.notifier.sent, 2)
	assert.Equal(t, 2, res.Persisted)
}

func TestRunESPNNotifyFailurePersistsNothing(t *testing.T) {
	h := newESPNHarness(t)
	h.notifier.err = errBoom
	ctx := context.Background()

	_, err := RunESPN(ctx, h.deps)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNotify))
	assert.ErrorIs(t, err, errBoom)

	records, err := h.deps.Store.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Len(t, h.session.screenshots, 1)
	assert.True(t, h.session.closed)

	// The failed players are still eligible on the next run.
	h.notifier.err = nil
	res, err := RunESPN(ctx, h.deps)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Notified)
}

func TestRunESPNParseFailure(t *testing.T) {
	h := newESPNHarness(t)
	h.session.markup = "<html><body>Log in</body></html>"

	_, err := RunESPN(context.Background(), h.deps)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParse))
	assert.Empty(t, h.notifier.sent)
	require.Len(t, h.session.screenshots, 1)
	assert.Contains(t, h.session.screenshots[0], "screenshot 2026-01-10 05-00 PM.png")
}

func TestRunESPNLoginFailure(t *testing.T) {
	h := newESPNHarness(t)
	h.session.authErr = errBoom

	_, err := RunESPN(context.Background(), h.deps)
	require.Error(t, err)
	assert.Equal(t, KindFetch, KindOf(err))
	assert.Contains(t, err.Error(), "espn fetch error: log in: boom")
	assert.True(t, h.session.closed)
}

func TestRunESPNBrowserStartFailure(t *testing.T) {
	h := newESPNHarness(t)
	h.deps.OpenSession = func(context.Context) (espn.Session, error) { return nil, errBoom }

	res, err := RunESPN(context.Background(), h.deps)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFetch))
	assert.Equal(t, 0, res.Fetched)
}

func TestRunESPNNoCandidates(t *testing.T) {
	h := newESPNHarness(t)
	h.deps.Threshold = 90

	res, err := RunESPN(context.Background(), h.deps)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Empty(t, h.notifier.sent)
}

func TestRunESPNLogOnlyNotifierRecordsNothing(t *testing.T) {
	h := newESPNHarness(t)
	h.deps.Notifier = notify.New(notify.SMTPConfig{}, discardLogger())
	ctx := context.Background()

	res, err := RunESPN(ctx, h.deps)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 0, res.Notified)
	assert.Equal(t, 0, res.Persisted)
	assert.Empty(t, h.session.screenshots)

	records, err := h.deps.Store.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Once mail is configured the same players are alerted.
	h.deps.Notifier = h.notifier
	h.clock.Advance(24 * time.Hour)
	res, err = RunESPN(ctx, h.deps)
	require.NoError(t, err)
	assert.Len(t, h.notifier.sent, 1)
	assert.Equal(t, 2, res.Notified)
	assert.Equal(t, 2, res.Persisted)
}

func TestCooldownOr(t *testing.T) {
	assert.Equal(t, detect.DefaultCooldown, cooldownOr(0))
	assert.Equal(t, time.Hour, cooldownOr(time.Hour))
}
