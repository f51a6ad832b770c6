package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/eventdesk/internal/models"
)

func TestEventLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(30))
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, uint(1), ev.Version)
	assert.Equal(t, models.EventUpcoming, ev.Status)

	// Reading is public
	code, res := env.do(t, http.MethodGet, "/api/events/"+ev.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	var loaded models.Event
	res.decode(t, &loaded)
	assert.Equal(t, "Go workshop", loaded.Title)
	assert.Equal(t, models.EventUpcoming, loaded.Status)

	code, res = env.do(t, http.MethodPatch, "/api/events/"+ev.ID, env.adminToken,
		map[string]interface{}{"title": "Go workshop, advanced", "version": 1})
	require.Equal(t, http.StatusOK, code, res.ErrorMessage)
	var updated models.Event
	res.decode(t, &updated)
	assert.Equal(t, "Go workshop, advanced", updated.Title)
	assert.Equal(t, uint(2), updated.Version)
	assert.Equal(t, "Room 42", updated.Location)

	// Another admin still holds version 1
	code, res = env.do(t, http.MethodPatch, "/api/events/"+ev.ID, env.adminToken,
		map[string]interface{}{"title": "Lost update", "version": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ErrCodeEventModified, res.Error)

	code, _ = env.do(t, http.MethodDelete, "/api/events/"+ev.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, res = env.do(t, http.MethodDelete, "/api/events/"+ev.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrCodeEventNotFound, res.Error)
	code, res = env.do(t, http.MethodGet, "/api/events/"+ev.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrCodeEventNotFound, res.Error)
	assert.False(t, res.OK)
}

func TestCreateEventValidation(t *testing.T) {
	env := newTestEnv(t, false)
	payload := validPayload(0)
	payload.Title = "Hi"
	payload.EndTime = payload.StartTime.Add(-time.Hour)
	payload.PosterURL = "https://example.org/poster.pdf"

	code, res := env.do(t, http.MethodPost, "/api/events", env.adminToken, payload)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, ErrCodeValidationFailed, res.Error)
	var details map[string]string
	require.NoError(t, json.Unmarshal(res.ErrorDetails, &details))
	assert.Equal(t, "Title is too short (minimum 5 characters)", details["title"])
	assert.Equal(t, "End time must be after start time", details["end_time"])
	assert.Equal(t, "Capacity must be at least 1", details["capacity"])
	assert.Contains(t, details, "poster_url")
	assert.NotContains(t, details, "description")

	code, res = env.do(t, http.MethodPost, "/api/events", env.adminToken, "garbage")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, ErrCodeIllegalJSON, res.Error)
}

func TestUpdateEventValidatesMergedEvent(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(30))

	deadline := ev.StartTime.Add(time.Hour)
	code, res := env.do(t, http.MethodPatch, "/api/events/"+ev.ID, env.adminToken,
		models.EventPatch{RegistrationDeadline: &deadline})
	assert.Equal(t, http.StatusBadRequest, code)
	var details map[string]string
	require.NoError(t, json.Unmarshal(res.ErrorDetails, &details))
	assert.Equal(t, "Registration deadline must be before start time", details["registration_deadline"])

	code, res = env.do(t, http.MethodPatch, "/api/events/missing", env.adminToken, map[string]string{"title": "Whatever"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrCodeEventNotFound, res.Error)
}

func TestEventWritesNeedAdmin(t *testing.T) {
	env := newTestEnv(t, false)
	_, token := env.member(t, "alice")

	code, res := env.do(t, http.MethodPost, "/api/events", "", validPayload(10))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, ErrCodeNotLoggedIn, res.Error)

	code, res = env.do(t, http.MethodPost, "/api/events", token, validPayload(10))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, ErrCodeNotAnAdmin, res.Error)

	code, res = env.do(t, http.MethodPost, "/api/events", "unknown-token", validPayload(10))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, ErrCodeNotLoggedIn, res.Error)
}

func TestListEventsPagination(t *testing.T) {
	env := newTestEnv(t, false)
	for i := 0; i < 12; i++ {
		p := validPayload(10)
		p.Title = fmt.Sprintf("Event number %02d", i)
		p.StartTime = p.StartTime.Add(time.Duration(i) * time.Hour)
		p.EndTime = p.StartTime.Add(time.Hour)
		env.createEvent(t, p)
	}

	code, res := env.do(t, http.MethodGet, "/api/events", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint(12), res.Total)
	assert.Equal(t, uint(1), res.Page)
	assert.Equal(t, uint(10), res.Limit)
	assert.Equal(t, uint(2), res.TotalPages)
	var events []models.Event
	res.decode(t, &events)
	require.Len(t, events, 10)
	assert.Equal(t, "Event number 00", events[0].Title)

	_, res = env.do(t, http.MethodGet, "/api/events?page=2&limit=10", "", nil)
	res.decode(t, &events)
	require.Len(t, events, 2)
	assert.Equal(t, "Event number 11", events[1].Title)

	// Beyond the last page
	_, res = env.do(t, http.MethodGet, "/api/events?page=7", "", nil)
	assert.Equal(t, "[]", string(res.Data))
	assert.Equal(t, uint(2), res.TotalPages)

	// Limits are clamped
	_, res = env.do(t, http.MethodGet, "/api/events?limit=1000", "", nil)
	assert.Equal(t, uint(100), res.Limit)
	_, res = env.do(t, http.MethodGet, "/api/events?limit=-5&page=abc", "", nil)
	assert.Equal(t, uint(10), res.Limit)
	assert.Equal(t, uint(1), res.Page)
}

func TestRegistrationFlow(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(30))
	_, token := env.member(t, "alice")
	path := "/api/events/" + ev.ID

	code, res := env.do(t, http.MethodPost, path+"/register", "", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, ErrCodeNotLoggedIn, res.Error)

	code, res = env.do(t, http.MethodPost, path+"/register", token, nil)
	require.Equal(t, http.StatusCreated, code, res.ErrorMessage)
	var reg models.Registration
	res.decode(t, &reg)
	assert.Equal(t, models.StatusRegistered, reg.Status)

	// Registering twice returns the existing registration
	code, res = env.do(t, http.MethodPost, path+"/register", token, nil)
	assert.Equal(t, http.StatusOK, code)
	var again models.Registration
	res.decode(t, &again)
	assert.Equal(t, reg.ID, again.ID)

	code, res = env.do(t, http.MethodPatch, path+"/cancel-registration", token, nil)
	require.Equal(t, http.StatusOK, code)
	var cancelled models.Registration
	res.decode(t, &cancelled)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	// Cancelling twice is fine
	code, _ = env.do(t, http.MethodPatch, path+"/cancel-registration", token, nil)
	assert.Equal(t, http.StatusOK, code)

	// Registering again re-uses the registration
	code, res = env.do(t, http.MethodPost, path+"/register", token, nil)
	require.Equal(t, http.StatusCreated, code)
	res.decode(t, &again)
	assert.Equal(t, reg.ID, again.ID)
	assert.Equal(t, models.StatusRegistered, again.Status)

	_, bobToken := env.member(t, "bob")
	code, res = env.do(t, http.MethodPatch, path+"/cancel-registration", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrCodeRegistrationNotFound, res.Error)

	code, res = env.do(t, http.MethodPost, "/api/events/missing/register", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrCodeEventNotFound, res.Error)
}

func TestRegistrationClosedAfterDeadline(t *testing.T) {
	env := newTestEnv(t, false)
	p := validPayload(30)
	p.RegistrationDeadline = time.Now().UTC().Add(-time.Hour)
	ev := env.createEvent(t, p)
	_, token := env.member(t, "alice")

	code, res := env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/register", token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ErrCodeRegistrationClosed, res.Error)
}

func TestFiftyFirstRegistrationIsRejected(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(50))
	path := "/api/events/" + ev.ID + "/register"
	for i := 0; i < 50; i++ {
		_, token := env.member(t, fmt.Sprintf("member%02d", i))
		code, res := env.do(t, http.MethodPost, path, token, nil)
		require.Equal(t, http.StatusCreated, code, res.ErrorMessage)
	}
	_, token := env.member(t, "latecomer")
	code, res := env.do(t, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ErrCodeEventFull, res.Error)

	// Capacity cannot drop below the seats taken
	code, res = env.do(t, http.MethodPatch, "/api/events/"+ev.ID, env.adminToken, map[string]uint{"capacity": 49})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ErrCodeCapacityTooLow, res.Error)
}

func TestAdminRegistrationStatus(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(30))
	other := env.createEvent(t, validPayload(30))
	_, token := env.member(t, "alice")
	_, res := env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/register", token, nil)
	var reg models.Registration
	res.decode(t, &reg)
	statusPath := "/api/events/" + ev.ID + "/registrations/" + reg.ID + "/status"

	code, res := env.do(t, http.MethodPatch, statusPath, token, map[string]string{"status": "attended"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, ErrCodeNotAnAdmin, res.Error)

	code, res = env.do(t, http.MethodPatch, statusPath, env.adminToken, map[string]string{"status": "attended"})
	require.Equal(t, http.StatusOK, code, res.ErrorMessage)
	res.decode(t, &reg)
	assert.Equal(t, models.StatusAttended, reg.Status)

	code, res = env.do(t, http.MethodPatch, statusPath, env.adminToken, map[string]string{"status": "registered"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ErrCodeInvalidTransition, res.Error)

	code, res = env.do(t, http.MethodPatch, statusPath, env.adminToken, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, ErrCodeIllegalValue, res.Error)

	code, res = env.do(t, http.MethodPatch,
		"/api/events/"+other.ID+"/registrations/"+reg.ID+"/status", env.adminToken,
		map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrCodeRegistrationNotFound, res.Error)

	code, res = env.do(t, http.MethodPatch, statusPath, env.adminToken, map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, code)
	res.decode(t, &reg)
	assert.Equal(t, models.StatusCancelled, reg.Status)

	// Cancelled is final for admins
	code, res = env.do(t, http.MethodPatch, statusPath, env.adminToken, map[string]string{"status": "attended"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ErrCodeInvalidTransition, res.Error)
}

func TestListRegistrations(t *testing.T) {
	env := newTestEnv(t, false)
	ev := env.createEvent(t, validPayload(30))
	for i := 0; i < 3; i++ {
		_, token := env.member(t, fmt.Sprintf("member%d", i))
		env.do(t, http.MethodPost, "/api/events/"+ev.ID+"/register", token, nil)
	}

	code, res := env.do(t, http.MethodGet, "/api/events/"+ev.ID+"/registrations?limit=2", env.adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint(3), res.Total)
	assert.Equal(t, uint(2), res.TotalPages)
	var regs []models.Registration
	res.decode(t, &regs)
	require.Len(t, regs, 2)
	require.NotNil(t, regs[0].User)
	assert.Equal(t, "member0", regs[0].User.Name)
	assert.Equal(t, "member0@example.org", regs[0].User.Email)

	code, res = env.do(t, http.MethodGet, "/api/events/missing/registrations", env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrCodeEventNotFound, res.Error)
}

func TestWaitlistPromotion(t *testing.T) {
	env := newTestEnv(t, true)
	ev := env.createEvent(t, validPayload(1))
	path := "/api/events/" + ev.ID
	_, first := env.member(t, "first")
	_, second := env.member(t, "second")

	_, res := env.do(t, http.MethodPost, path+"/register", first, nil)
	var reg models.Registration
	res.decode(t, &reg)
	assert.Equal(t, models.StatusRegistered, reg.Status)
	_, res = env.do(t, http.MethodPost, path+"/register", second, nil)
	res.decode(t, &reg)
	assert.Equal(t, models.StatusWaitlisted, reg.Status)
	waitingID := reg.ID

	code, _ := env.do(t, http.MethodPatch, path+"/cancel-registration", first, nil)
	require.Equal(t, http.StatusOK, code)

	_, res = env.do(t, http.MethodGet, path+"/registrations", env.adminToken, nil)
	var regs []models.Registration
	res.decode(t, &regs)
	for _, r := range regs {
		if r.ID == waitingID {
			assert.Equal(t, models.StatusRegistered, r.Status)
		}
	}
}

func TestRegistrationPolicyConfig(t *testing.T) {
	env := newTestEnv(t, false)
	_, token := env.member(t, "alice")

	code, _ := env.do(t, http.MethodGet, "/api/config/registration", token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, res := env.do(t, http.MethodPut, "/api/config/registration", env.adminToken,
		models.RegistrationPolicy{AllowWaitlist: true})
	require.Equal(t, http.StatusOK, code)

	code, res = env.do(t, http.MethodGet, "/api/config/registration", env.adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	var policy models.RegistrationPolicy
	res.decode(t, &policy)
	assert.True(t, policy.AllowWaitlist)
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	code, res := env.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"name": "  Carol ", "password": "correct horse", "email": "carol@example.org", "fullName": "Carol",
	})
	require.Equal(t, http.StatusCreated, code, res.ErrorMessage)
	var u models.User
	res.decode(t, &u)
	assert.Equal(t, "carol", u.Name)
	assert.Equal(t, models.RoleMember, u.Role)
	assert.NotContains(t, string(res.Data), "passwordHash")

	code, res = env.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"name": "carol", "password": "another password", "email": "carol2@example.org",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ErrCodeUserExists, res.Error)

	code, res = env.do(t, http.MethodPost, "/api/users", "", map[string]string{"name": "x", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, ErrCodeValidationFailed, res.Error)

	code, res = env.do(t, http.MethodPost, "/api/login", "", map[string]string{"user": "carol", "password": "wrong"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, ErrCodeLoginFailed, res.Error)

	code, res = env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"user": "Carol", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, code)
	var info SessionInfo
	res.decode(t, &info)
	assert.Equal(t, u.ID, info.UserID)

	code, res = env.do(t, http.MethodGet, "/api/whoami", info.SessionID, nil)
	require.Equal(t, http.StatusOK, code)
	var who SessionInfo
	res.decode(t, &who)
	assert.Equal(t, "carol", who.UserName)

	code, _ = env.do(t, http.MethodPost, "/api/logout", info.SessionID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, res = env.do(t, http.MethodGet, "/api/whoami", info.SessionID, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, ErrCodeNotLoggedIn, res.Error)
}

func TestAlive(t *testing.T) {
	env := newTestEnv(t, false)
	code, res := env.do(t, http.MethodGet, "/alive", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.OK)
}
