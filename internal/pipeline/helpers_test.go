package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/albapepper/buzzwatch/internal/notify"
	"github.com/albapepper/buzzwatch/internal/provider"
	"github.com/albapepper/buzzwatch/internal/provider/espn"
	"github.com/albapepper/buzzwatch/internal/store"
	"github.com/albapepper/buzzwatch/internal/store/csvstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readFixture(t *testing.T, parts ...string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(parts...))
	require.NoError(t, err)
	return string(b)
}

func newCSVStore(t *testing.T, name string, metrics ...string) *csvstore.Store {
	t.Helper()
	s, err := csvstore.New(filepath.Join(t.TempDir(), name+".csv"), store.Table{Name: name, Metrics: metrics}, discardLogger())
	require.NoError(t, err)
	return s
}

// clock returns a settable time source.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type sentMail struct {
	to, subject string
	body        notify.Body
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, to, subject string, body notify.Body) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeSession struct {
	markup      string
	navErr      error
	authErr     error
	navigated   string
	user, pass  string
	screenshots []string
	closed      bool
}

var _ espn.Session = (*fakeSession)(nil)

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = url
	return s.navErr
}

func (s *fakeSession) Authenticate(_ context.Context, user, pass string) error {
	s.user, s.pass = user, pass
	return s.authErr
}

func (s *fakeSession) CurrentPageMarkup(context.Context) (string, error) {
	return s.markup, nil
}

func (s *fakeSession) Screenshot(_ context.Context, path string) error {
	s.screenshots = append(s.screenshots, path)
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeFetcher struct {
	page string
	err  error
}

func (f *fakeFetcher) FetchPage(context.Context) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.page), nil
}

// appendFailStore reads from the wrapped store but rejects every append.
type appendFailStore struct {
	store.Store
}

func (appendFailStore) Append(context.Context, provider.Snapshot) (int, error) {
	return 0, errBoom
}

var errBoom = errors.New("boom")
