package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/eventdesk/internal/ctxhelper"
	"github.com/derWhity/eventdesk/internal/models"
	eventrepo "github.com/derWhity/eventdesk/internal/repos/event/sqlite"
	regrepo "github.com/derWhity/eventdesk/internal/repos/registration/sqlite"
	"github.com/derWhity/eventdesk/internal/repos/repotest"
	sessionrepo "github.com/derWhity/eventdesk/internal/repos/session/inmem"
	userrepo "github.com/derWhity/eventdesk/internal/repos/user/sqlite"
)

// testEnv is a complete server running on an in-memory database
type testEnv struct {
	server        *httptest.Server
	db            *sqlx.DB
	users         *userrepo.UserRepo
	sessions      *sessionrepo.SessionRepo
	config        ConfigService
	events        EventService
	registrations RegistrationService
	adminToken    string
}

func testConfig(allowWaitlist bool) models.AppConfig {
	return models.AppConfig{
		Registration: models.RegistrationPolicy{AllowWaitlist: allowWaitlist},
		Pagination:   models.PaginationConfig{DefaultLimit: 10, MaxLimit: 100},
	}
}

func newTestEnv(t *testing.T, allowWaitlist bool) *testEnv {
	t.Helper()
	logger := repotest.Logger()
	db := repotest.OpenDB(t)
	env := &testEnv{
		db:       db,
		users:    userrepo.New(db, logger),
		sessions: sessionrepo.New(),
		config:   NewStaticConfigService(testConfig(allowWaitlist)),
	}
	t.Cleanup(env.sessions.Close)
	env.events = NewEventService(eventrepo.New(db, logger), env.config, logger)
	env.registrations = NewRegistrationService(regrepo.New(db, logger), env.events, env.config, logger)
	sessions := NewSessionService(env.sessions, env.users, logger)
	env.server = httptest.NewServer(MakeHTTPHandler(Services{
		Events:        env.events,
		Registrations: env.registrations,
		Sessions:      sessions,
		Config:        env.config,
	}, "", logger))
	t.Cleanup(env.server.Close)
	_, env.adminToken = env.user(t, "admin", models.RoleAdmin)
	return env
}

// user creates an account with the given role and logs it in. Passwords are skipped to keep the tests fast
func (e *testEnv) user(t *testing.T, name, role string) (userID, token string) {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.org", FullName: name, Role: role}
	require.NoError(t, e.users.Create(u))
	sess, err := e.sessions.CreateFor(u.ID)
	require.NoError(t, err)
	return u.ID, sess.ID
}

func (e *testEnv) member(t *testing.T, name string) (userID, token string) {
	return e.user(t, name, models.RoleMember)
}

// ctxFor returns a context as the transport builds it for the given user
func (e *testEnv) ctxFor(t *testing.T, userID string) context.Context {
	t.Helper()
	u, err := e.users.GetByID(userID)
	require.NoError(t, err)
	ctx := ctxhelper.WithLogger(context.Background(), repotest.Logger())
	return ctxhelper.WithUser(ctx, models.Session{ID: "test", UserID: u.ID}, *u)
}

// apiResult is the envelope of every API answer
type apiResult struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data"`
	Total        uint            `json:"total"`
	Page         uint            `json:"page"`
	Limit        uint            `json:"limit"`
	TotalPages   uint            `json:"totalPages"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"errorMessage"`
	ErrorDetails json.RawMessage `json:"errorDetails"`
}

func (r apiResult) decode(t *testing.T, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, target))
}

// do sends a request to the test server and decodes the answer
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, apiResult) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var res apiResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res
}

// validPayload returns an event starting in a week
func validPayload(capacity uint) models.EventPayload {
	start := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Minute)
	return models.EventPayload{
		Title:                "Go workshop",
		Description:          "Learn the basics of Go in one evening",
		Location:             "Room 42",
		Category:             "Technical",
		StartTime:            start,
		EndTime:              start.Add(2 * time.Hour),
		RegistrationDeadline: start.Add(-24 * time.Hour),
		Capacity:             capacity,
	}
}

// createEvent creates an event via the API as admin
func (e *testEnv) createEvent(t *testing.T, payload models.EventPayload) models.Event {
	t.Helper()
	code, res := e.do(t, http.MethodPost, "/api/events", e.adminToken, payload)
	require.Equal(t, http.StatusCreated, code, res.ErrorMessage)
	var ev models.Event
	res.decode(t, &ev)
	return ev
}
