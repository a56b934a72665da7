package auth_test

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/rideshare/go-rideshare-auth"
)

const testPassword = "Passw0rd!"

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []auth.Message
	err  error
}

func (n *captureNotifier) Send(_ context.Context, msg auth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *captureNotifier) fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *captureNotifier) count(kind auth.MessageKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, m := range n.msgs {
		if m.Kind == kind {
			total++
		}
	}
	return total
}

// lastToken returns the token embedded in the newest message of kind sent
// to email.
func (n *captureNotifier) lastToken(t *testing.T, kind auth.MessageKind, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.msgs) - 1; i >= 0; i-- {
		m := n.msgs[i]
		if m.Kind != kind || m.To != email {
			continue
		}
		u, err := url.Parse(m.Data[auth.MessageDataURL])
		require.NoError(t, err)
		token := u.Query().Get("token")
		require.NotEmpty(t, token)
		return token
	}
	t.Fatalf("no %s message sent to %s", kind, email)
	return ""
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) find(eventType auth.ActivityEventType) []auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func testSecrets() *auth.SecretStore {
	return auth.MustSecretStore(map[auth.TokenClass]auth.ClassSecret{
		auth.TokenAccess:            {Secret: "access-secret", TTL: 15 * time.Minute},
		auth.TokenRefresh:           {Secret: "refresh-secret", TTL: 7 * 24 * time.Hour},
		auth.TokenEmailVerification: {Secret: "verification-secret", TTL: 24 * time.Hour},
		auth.TokenPasswordReset:     {Secret: "reset-secret", TTL: time.Hour},
	})
}

func testSettings(t *testing.T, mutate ...func(*auth.Settings)) auth.Settings {
	t.Helper()
	settings := auth.Settings{
		Secrets:     testSecrets(),
		AppName:     "Rideshare",
		BaseURL:     "http://rides.test",
		FromName:    "Rideshare",
		FromAddress: "no-reply@rides.test",
		BcryptCost:  bcrypt.MinCost,
	}
	for _, m := range mutate {
		m(&settings)
	}
	require.NoError(t, settings.Validate())
	return settings
}

var dbSeq atomic.Int64

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:authtest_%d?mode=memory&cache=shared", dbSeq.Add(1))

	db, err := auth.OpenDB(ctx, auth.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.Migrate(ctx, db))
	return db
}

type testEnv struct {
	db       *bun.DB
	repo     auth.RepositoryManager
	auther   *auth.Auther
	notifier *captureNotifier
	sink     *recordingSink
	clock    *testClock
}

func newTestEnv(t *testing.T, mutate ...func(*auth.Settings)) *testEnv {
	t.Helper()
	env := &testEnv{
		db:       newTestDB(t),
		notifier: &captureNotifier{},
		sink:     &recordingSink{},
		clock:    newTestClock(),
	}
	env.repo = auth.NewRepositoryManager(env.db)
	env.auther = auth.NewAuther(testSettings(t, mutate...), env.repo, env.notifier,
		auth.WithLogger(testLogger{}),
		auth.WithActivitySink(env.sink),
		auth.WithClock(env.clock.Now),
	)
	return env
}

func (e *testEnv) register(t *testing.T, email string) *auth.Account {
	t.Helper()
	account, err := e.auther.Register(context.Background(), auth.RegisterAccountMessage{
		Email:    email,
		Password: testPassword,
	})
	require.NoError(t, err)
	require.NotNil(t, account)
	return account
}

func (e *testEnv) verify(t *testing.T, email string) {
	t.Helper()
	token := e.notifier.lastToken(t, auth.MessageEmailVerification, auth.NormalizeEmail(email))
	_, err := e.auther.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)
}

func (e *testEnv) account(t *testing.T, email string) *auth.Account {
	t.Helper()
	account, err := e.repo.Accounts().FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return account
}
