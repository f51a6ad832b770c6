package internal

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos/repotest"
)

// setClock lets the services of the environment see the given point in time
func (e *testEnv) setClock(now time.Time) {
	e.events.(*eventService).now = func() time.Time { return now }
	e.registrations.(*registrationService).now = func() time.Time { return now }
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	coder, ok := err.(errorCoder)
	require.True(t, ok, "error %v carries no code", err)
	return coder.ErrorCode()
}

func TestEventStatusFollowsClock(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(10))
	ctx := logCtx()

	env.setClock(ev.StartTime.Add(time.Minute))
	loaded, err := env.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventOngoing, loaded.Status)

	env.setClock(ev.EndTime.Add(time.Minute))
	page, err := env.events.List(ctx, Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, models.EventCompleted, page.Data[0].Status)
}

func TestCreateEventRecordsCreator(t *testing.T) {
	env := newTestEnv(t, false)
	adminID, _ := env.user(t, "creator", models.RoleAdmin)
	ev, err := env.events.Create(env.ctxFor(t, adminID), validPayload(10))
	require.NoError(t, err)
	assert.Equal(t, adminID, ev.CreatedBy)
}

func TestCreateEventNormalizesText(t *testing.T) {
	env := newTestEnv(t, false)
	p := validPayload(10)
	p.Title = "   Café evening   "
	ev, err := env.events.Create(logCtx(), p)
	require.NoError(t, err)
	assert.Equal(t, "Café evening", ev.Title)
	assert.Equal(t, time.UTC, ev.StartTime.Location())
}

func TestRegisterNeedsUser(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(10))
	_, _, err := env.registrations.Register(logCtx(), ev.ID)
	assert.Equal(t, ErrCodeNotLoggedIn, errorCode(t, err))
	_, err = env.registrations.CancelOwn(logCtx(), ev.ID)
	assert.Equal(t, ErrCodeNotLoggedIn, errorCode(t, err))
}

func TestExistingRegistrationIsReturnedAfterDeadline(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(10))
	userID, _ := env.member(t, "alice")
	ctx := env.ctxFor(t, userID)

	reg, created, err := env.registrations.Register(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, created)

	env.setClock(ev.RegistrationDeadline.Add(time.Minute))
	again, created, err := env.registrations.Register(ctx, ev.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, reg.ID, again.ID)

	// A cancelled registration cannot be revived after the deadline
	_, err = env.registrations.CancelOwn(ctx, ev.ID)
	require.NoError(t, err)
	_, _, err = env.registrations.Register(ctx, ev.ID)
	assert.Equal(t, ErrCodeRegistrationClosed, errorCode(t, err))
}

func TestWaitlistedToAttendedNeedsSeat(t *testing.T) {
	env := newTestEnv(t, true)
	ev := env.createEvent(t, validPayload(1))
	firstID, _ := env.member(t, "first")
	secondID, _ := env.member(t, "second")

	_, _, err := env.registrations.Register(env.ctxFor(t, firstID), ev.ID)
	require.NoError(t, err)
	waiting, _, err := env.registrations.Register(env.ctxFor(t, secondID), ev.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, waiting.Status)

	_, err = env.registrations.UpdateStatus(logCtx(), ev.ID, waiting.ID, models.StatusAttended)
	assert.Equal(t, ErrCodeEventFull, errorCode(t, err))

	_, err = env.registrations.UpdateStatus(logCtx(), ev.ID, waiting.ID, models.StatusCancelled)
	require.NoError(t, err)
}

func TestAdminCancelPromotesWaitlist(t *testing.T) {
	env := newTestEnv(t, true)
	ev := env.createEvent(t, validPayload(1))
	firstID, _ := env.member(t, "first")
	secondID, _ := env.member(t, "second")
	thirdID, _ := env.member(t, "third")

	first, _, err := env.registrations.Register(env.ctxFor(t, firstID), ev.ID)
	require.NoError(t, err)
	second, _, err := env.registrations.Register(env.ctxFor(t, secondID), ev.ID)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	third, _, err := env.registrations.Register(env.ctxFor(t, thirdID), ev.ID)
	require.NoError(t, err)

	_, err = env.registrations.UpdateStatus(logCtx(), ev.ID, first.ID, models.StatusCancelled)
	require.NoError(t, err)

	page, err := env.registrations.List(logCtx(), ev.ID, Pagination{})
	require.NoError(t, err)
	statuses := map[string]models.RegistrationStatus{}
	for _, r := range page.Data {
		statuses[r.ID] = r.Status
	}
	assert.Equal(t, models.StatusCancelled, statuses[first.ID])
	assert.Equal(t, models.StatusRegistered, statuses[second.ID])
	assert.Equal(t, models.StatusWaitlisted, statuses[third.ID])
}

func TestUpdateStatusOfUnknownRegistration(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(1))
	_, err := env.registrations.UpdateStatus(logCtx(), ev.ID, "missing", models.StatusAttended)
	assert.Equal(t, ErrCodeRegistrationNotFound, errorCode(t, err))
	assert.Equal(t, http.StatusNotFound, err.(httpStatuser).Status())
}

func TestLoginAndWhoAmI(t *testing.T) {
	env := newTestEnv(t, false)
	sessions := NewSessionService(env.sessions, env.users, repotest.Logger())
	ctx := logCtx()

	require.NoError(t, sessions.EnsureDefaultAdmin(ctx, models.DefaultAdminConfig{
		Name: "Root", Password: "changeme", Email: "root@localhost",
	}))
	// A second call leaves the account alone
	require.NoError(t, sessions.EnsureDefaultAdmin(ctx, models.DefaultAdminConfig{
		Name: "root", Password: "other password", Email: "root@localhost",
	}))

	info, err := sessions.Login(ctx, "root", "changeme")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, info.Role)

	who, err := sessions.WhoAmI(ctx, info.SessionID)
	require.NoError(t, err)
	assert.Equal(t, info.UserID, who.UserID)

	_, err = sessions.WhoAmI(ctx, "unknown")
	assert.Equal(t, ErrCodeNotLoggedIn, errorCode(t, err))
}
