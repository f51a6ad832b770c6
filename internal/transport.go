package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/ctxhelper"
	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
)

const (
	apiBasePath = "/api"
	// TokenHeader is the request header carrying the session ID
	TokenHeader = "token"
)

// Defines an error that defines the HTTP status that should be returned
type httpStatuser interface {
	Status() int
}

// Defines an error that returns a machine-readable error code
type errorCoder interface {
	ErrorCode() string
}

// Defines an error that contains a data field with additional information
type dataBearer interface {
	Data() interface{}
}

type errorResponse struct {
	basicResponse
	// The error code
	Error   string      `json:"error"`
	Message string      `json:"errorMessage"`
	Details interface{} `json:"errorDetails,omitempty"`
}

// Services bundles the services served via HTTP
type Services struct {
	Events        EventService
	Registrations RegistrationService
	Sessions      SessionService
	Config        ConfigService
}

// MakeHTTPHandler creates the main HTTP handler for the Eventdesk service. If uiDir is not empty, the files inside
// are served for all paths not belonging to the API
func MakeHTTPHandler(svc Services, uiDir string, logger *logrus.Entry) http.Handler {
	r := mux.NewRouter()

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerBefore(makeContextInjector(logger)),
		httptransport.ServerBefore(makeSessionDecoder(svc.Sessions)),
		httptransport.ServerFinalizer(logRequest),
	}
	api := r.PathPrefix(apiBasePath).Subrouter()

	// -- Config service -------------------------------
	{
		cEp := MakeConfigEndpoints(svc.Config)

		// GetRegistrationPolicy
		api.Methods(http.MethodGet).Path("/config/registration").Handler(httptransport.NewServer(
			cEp.GetRegistrationPolicy,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// SetRegistrationPolicy
		api.Methods(http.MethodPut).Path("/config/registration").Handler(httptransport.NewServer(
			cEp.SetRegistrationPolicy,
			decodeRegistrationPolicy,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Event Service --------------------------------
	{
		evEp := MakeEventEndpoints(svc.Events)

		// List
		api.Methods(http.MethodGet).Path("/events").Handler(httptransport.NewServer(
			evEp.List,
			decodePaginationRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		api.Methods(http.MethodGet).Path("/events/{id}").Handler(httptransport.NewServer(
			evEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Create
		api.Methods(http.MethodPost).Path("/events").Handler(httptransport.NewServer(
			evEp.Create,
			decodeEventPayload,
			encodeJSONResponse,
			options...,
		))

		// Update
		api.Methods(http.MethodPatch).Path("/events/{id}").Handler(httptransport.NewServer(
			evEp.Update,
			decodeEventUpdate,
			encodeJSONResponse,
			options...,
		))

		// Delete
		api.Methods(http.MethodDelete).Path("/events/{id}").Handler(httptransport.NewServer(
			evEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Registration Service -------------------------
	{
		regEp := MakeRegistrationEndpoints(svc.Registrations)

		// Register
		api.Methods(http.MethodPost).Path("/events/{id}/register").Handler(httptransport.NewServer(
			regEp.Register,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// CancelOwn
		api.Methods(http.MethodPatch).Path("/events/{id}/cancel-registration").Handler(httptransport.NewServer(
			regEp.CancelOwn,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// List
		api.Methods(http.MethodGet).Path("/events/{id}/registrations").Handler(httptransport.NewServer(
			regEp.List,
			decodeRegistrationListRequest,
			encodeJSONResponse,
			options...,
		))

		// UpdateStatus
		api.Methods(http.MethodPatch).Path("/events/{id}/registrations/{registrationId}/status").Handler(
			httptransport.NewServer(
				regEp.UpdateStatus,
				decodeStatusUpdateRequest,
				encodeJSONResponse,
				options...,
			),
		)
	}

	// -- Session Service ------------------------------
	{
		sEp := MakeSessionEndpoints(svc.Sessions)

		// SignUp
		api.Methods(http.MethodPost).Path("/users").Handler(httptransport.NewServer(
			sEp.SignUp,
			decodeSignUpRequest,
			encodeJSONResponse,
			options...,
		))

		// Login
		api.Methods(http.MethodPost).Path("/login").Handler(httptransport.NewServer(
			sEp.Login,
			decodeLoginRequest,
			encodeJSONResponse,
			options...,
		))

		// Logout
		api.Methods(http.MethodPost).Path("/logout").Handler(httptransport.NewServer(
			sEp.Logout,
			decodeToken,
			encodeJSONResponse,
			options...,
		))

		// WhoAmI
		api.Methods(http.MethodGet).Path("/whoami").Handler(httptransport.NewServer(
			sEp.WhoAmI,
			decodeToken,
			encodeJSONResponse,
			options...,
		))
	}

	// Simple alive answer for checking if HTTP can be reached
	r.Methods(http.MethodGet).Path("/alive").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	if uiDir != "" {
		r.Methods(http.MethodGet).PathPrefix("/").Handler(http.FileServer(http.Dir(uiDir)))
	}

	return r
}

// decodeNilRequest just does nothing with the request. It is used for endpoints that don't need anything to be passed
func decodeNilRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	return nil, nil
}

// decodeJSONBody decodes the request's JSON body into the given target
func decodeJSONBody(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return nil
}

// decodeLoginRequest decodes a login request from the JSON body
func decodeLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// decodeSignUpRequest decodes the data of a new account from the JSON body
func decodeSignUpRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req SignUpRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// decodeRegistrationPolicy decodes a registration policy from the JSON body
func decodeRegistrationPolicy(_ context.Context, r *http.Request) (interface{}, error) {
	var policy models.RegistrationPolicy
	if err := decodeJSONBody(r, &policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// decodeToken gets the token from the call's context
func decodeToken(ctx context.Context, r *http.Request) (request interface{}, err error) {
	session := ctxhelper.Session(ctx)
	if session == nil {
		return nil, MakeError(
			http.StatusForbidden,
			ErrCodeNotLoggedIn,
			"You need an active session for this operation",
		)
	}
	return session.ID, nil
}

// getUintFromQuery reads an unsigned integer query variable. Missing or malformed values result in 0
func getUintFromQuery(r *http.Request, name string) uint {
	i, err := strconv.ParseUint(r.URL.Query().Get(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(i)
}

// decodePaginationRequest reads the pagination information from the request's query variables. Defaults are applied
// by the services
func decodePaginationRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	return Pagination{
		Page:  getUintFromQuery(r, "page"),
		Limit: getUintFromQuery(r, "limit"),
	}, nil
}

// getStringFromPath is a helper function that gets a non-empty string from the given path variable
func getStringFromPath(varname string, r *http.Request) (string, error) {
	str := strings.TrimSpace(mux.Vars(r)[varname])
	if str == "" {
		return "", MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, fmt.Sprintf("No '%s' provided", varname))
	}
	return str, nil
}

// Decodes an ID from the "id" path variable provided by GoRilla
func decodeIDFromPath(_ context.Context, r *http.Request) (interface{}, error) {
	return getStringFromPath("id", r)
}

// decodeEventPayload reads the data of a new event from the request's body
func decodeEventPayload(_ context.Context, r *http.Request) (interface{}, error) {
	var payload models.EventPayload
	if err := decodeJSONBody(r, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Decodes the changes of an event where the ID of the event is in the path
func decodeEventUpdate(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getStringFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req := eventUpdateRequest{ID: id}
	if err := decodeJSONBody(r, &req.Patch); err != nil {
		return nil, err
	}
	return req, nil
}

// Decodes a request for listing the registrations of a specific event
func decodeRegistrationListRequest(ctx context.Context, r *http.Request) (request interface{}, err error) {
	pag, _ := decodePaginationRequest(ctx, r)
	id, err := getStringFromPath("id", r)
	if err != nil {
		return nil, err
	}
	return registrationListRequest{
		Pagination: pag.(Pagination),
		EventID:    id,
	}, nil
}

// Decodes a status change where the event and registration IDs are in the path and the status in the body
func decodeStatusUpdateRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req statusUpdateRequest
	var err error
	if req.EventID, err = getStringFromPath("id", r); err != nil {
		return nil, err
	}
	if req.RegistrationID, err = getStringFromPath("registrationId", r); err != nil {
		return nil, err
	}
	if err = decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Status) == "" {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Status missing",
			map[string]string{"field": "status"},
		)
	}
	return req, nil
}

// Encodes a typical JSON response
func encodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if sc, ok := response.(httptransport.StatusCoder); ok {
		w.WriteHeader(sc.StatusCode())
	}
	return json.NewEncoder(w).Encode(response)
}

// Builds an error response based on the incoming error
func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	status := http.StatusInternalServerError
	if st, ok := err.(httpStatuser); ok {
		status = st.Status()
	}
	w.WriteHeader(status)
	ret := errorResponse{
		basicResponse: basicResponse{false, nil},
		Message:       err.Error(),
		Error:         ErrCodeUnknown,
	}
	if cd, ok := err.(errorCoder); ok {
		ret.Error = cd.ErrorCode()
	}
	if db, ok := err.(dataBearer); ok {
		if data := db.Data(); data != nil {
			if err, ok := data.(error); ok {
				ret.Details = err.Error()
			} else {
				ret.Details = data
			}
		}
	}
	if status >= http.StatusInternalServerError {
		if logger, ok := ctx.Value(ctxhelper.KeyLogger).(*logrus.Entry); ok {
			logger.WithError(err).WithField("details", ret.Details).Error("Request failed")
		}
	}
	json.NewEncoder(w).Encode(&ret)
}

// makeSessionDecoder returns a function that is used in every HTTP call to decode the session used, if a session
// token is sent by the client
func makeSessionDecoder(s SessionService) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		token := strings.TrimSpace(r.Header.Get(TokenHeader))
		if token == "" {
			return ctx
		}
		logger := ctxhelper.Logger(ctx)
		sess, user, err := s.GetContents(ctx, token, true)
		if err != nil {
			logger.WithError(err).Error("Failed to retrieve session information")
			return ctx
		}
		if sess == nil || user == nil {
			// Nobody logged in
			return ctx
		}
		ctx = ctxhelper.WithUser(ctx, *sess, *user)
		return ctxhelper.WithLogger(ctx, logger.WithFields(logrus.Fields{
			log.FldSession: sess.ID[:8],
			log.FldUser:    user.ID,
		}))
	}
}

func makeContextInjector(logger *logrus.Entry) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		return ctxhelper.WithLogger(ctx, logger.WithFields(logrus.Fields{
			log.FldPath: r.URL.Path,
			log.FldIP:   r.RemoteAddr,
		}))
	}
}

// logRequest writes a debug log entry for every finished request
func logRequest(ctx context.Context, code int, r *http.Request) {
	if logger, ok := ctx.Value(ctxhelper.KeyLogger).(*logrus.Entry); ok {
		logger.WithField("code", code).Debugf("%s %s", r.Method, r.URL.Path)
	}
}
