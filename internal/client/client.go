// Package client provides access to the events and registrations of an Eventdesk server
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/sd"
	"github.com/go-kit/kit/sd/lb"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
)

const (
	apiBasePath = "/api"
	eventsPath  = "/events"
	tokenHeader = "token"

	// DefaultReadAttempts is the number of times a read is tried before giving up
	DefaultReadAttempts = 3
	// DefaultRequestTimeout limits the time a single HTTP request may take
	DefaultRequestTimeout = 10 * time.Second
)

// Session is the session created by logging in
type Session struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserFullName string `json:"userFullName"`
	Role         string `json:"role"`
}

// request describes a single API call relative to the API's base path
type request struct {
	path  string
	query url.Values
	body  interface{}
}

// key identifies the request inside the read cache
func (r request) key() string {
	if len(r.query) == 0 {
		return r.path
	}
	return r.path + "?" + r.query.Encode()
}

// result is the decoded envelope of a successful answer
type result struct {
	status int
	page   models.PageInfo
	data   json.RawMessage
}

func (r result) decode(target interface{}) error {
	if err := json.Unmarshal(r.data, target); err != nil {
		return errors.Wrap(err, "failed to decode the server's data")
	}
	return nil
}

// envelope is the JSON structure every answer of the server is wrapped in
type envelope struct {
	OK bool `json:"ok"`
	models.PageInfo
	Data         json.RawMessage `json:"data"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"errorMessage"`
	ErrorDetails json.RawMessage `json:"errorDetails"`
}

// Option changes the client's defaults
type Option func(c *Client)

// WithHTTPClient lets the client send its requests using the given HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the session token sent with every request
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithReadAttempts sets how often a failing read is tried
func WithReadAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.readAttempts = n
		}
	}
}

// Client is the query layer for events and registrations. Reads are cached until the next write and retried when
// the server is unreachable or fails. Writes are never retried
type Client struct {
	base         *url.URL
	http         *http.Client
	logger       *logrus.Entry
	readAttempts int
	cache        *readCache

	tokenMtx sync.RWMutex
	token    string

	login              endpoint.Endpoint
	logout             endpoint.Endpoint
	listEvents         endpoint.Endpoint
	getEvent           endpoint.Endpoint
	createEvent        endpoint.Endpoint
	updateEvent        endpoint.Endpoint
	deleteEvent        endpoint.Endpoint
	register           endpoint.Endpoint
	cancelRegistration endpoint.Endpoint
	listRegistrations  endpoint.Endpoint
	updateStatus       endpoint.Endpoint
}

// New creates a client for the server reachable at the given base URL
func New(baseURL string, logger *logrus.Entry, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid server URL '%s'", baseURL)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("server URL '%s' needs a scheme and a host", baseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + apiBasePath
	c := &Client{
		base:         base,
		http:         &http.Client{Timeout: DefaultRequestTimeout},
		logger:       logger,
		readAttempts: DefaultReadAttempts,
		cache:        newReadCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.login = c.makeEndpoint(http.MethodPost)
	c.logout = c.makeEndpoint(http.MethodPost)
	c.listEvents = c.retrying(c.makeEndpoint(http.MethodGet))
	c.getEvent = c.retrying(c.makeEndpoint(http.MethodGet))
	c.createEvent = c.makeEndpoint(http.MethodPost)
	c.updateEvent = c.makeEndpoint(http.MethodPatch)
	c.deleteEvent = c.makeEndpoint(http.MethodDelete)
	c.register = c.makeEndpoint(http.MethodPost)
	c.cancelRegistration = c.makeEndpoint(http.MethodPatch)
	c.listRegistrations = c.retrying(c.makeEndpoint(http.MethodGet))
	c.updateStatus = c.makeEndpoint(http.MethodPatch)
	return c, nil
}

// Token returns the session token currently used
func (c *Client) Token() string {
	c.tokenMtx.RLock()
	defer c.tokenMtx.RUnlock()
	return c.token
}

// SetToken changes the session token. Cached answers are dropped as they may depend on the user
func (c *Client) SetToken(token string) {
	c.tokenMtx.Lock()
	c.token = token
	c.tokenMtx.Unlock()
	c.cache.clear()
}

func (c *Client) makeEndpoint(method string) endpoint.Endpoint {
	return httptransport.NewClient(
		method,
		c.base,
		c.encodeRequest,
		decodeResult,
		httptransport.SetClient(c.http),
		httptransport.ClientBefore(c.injectToken),
	).Endpoint()
}

// retrying wraps a read endpoint so transport errors and server failures are retried
func (c *Client) retrying(e endpoint.Endpoint) endpoint.Endpoint {
	balancer := lb.NewRoundRobin(sd.FixedEndpointer{e})
	timeout := time.Duration(c.readAttempts) * c.http.Timeout
	if timeout <= 0 {
		timeout = time.Duration(c.readAttempts) * DefaultRequestTimeout
	}
	return lb.RetryWithCallback(timeout, balancer, func(n int, err error) (bool, error) {
		if n >= c.readAttempts || !retryable(err) {
			return false, nil
		}
		c.logger.WithError(err).WithField(log.FldAttempt, n).Debug("Read failed - retrying")
		return true, nil
	})
}

func (c *Client) injectToken(ctx context.Context, r *http.Request) context.Context {
	if token := c.Token(); token != "" {
		r.Header.Set(tokenHeader, token)
	}
	return ctx
}

func (c *Client) encodeRequest(_ context.Context, r *http.Request, req interface{}) error {
	apiReq, ok := req.(request)
	if !ok {
		return errors.Errorf("illegal request type %T", req)
	}
	r.URL.Path = c.base.Path + apiReq.path
	r.URL.RawQuery = apiReq.query.Encode()
	r.Header.Set("Accept", "application/json")
	if apiReq.body == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(apiReq.body); err != nil {
		return errors.Wrap(err, "failed to encode request body")
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.ContentLength = int64(buf.Len())
	r.Body = io.NopCloser(&buf)
	return nil
}

func decodeResult(_ context.Context, resp *http.Response) (interface{}, error) {
	var env envelope
	decErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			Status:  resp.StatusCode,
			Code:    env.Error,
			Message: env.ErrorMessage,
			Details: env.ErrorDetails,
		}
		if decErr != nil || apiErr.Code == "" {
			apiErr.Code = CodeUnknown
			apiErr.Message = resp.Status
		}
		return nil, apiErr
	}
	if decErr != nil {
		return nil, errors.Wrap(decErr, "failed to decode the server's answer")
	}
	return result{status: resp.StatusCode, page: env.PageInfo, data: env.Data}, nil
}

// call runs the endpoint and unwraps the errors of the retry layer. Errors not sent by the server are wrapped
func (c *Client) call(ctx context.Context, e endpoint.Endpoint, method string, req request) (result, error) {
	resp, err := e(ctx, req)
	if err != nil {
		if retryErr, ok := err.(lb.RetryError); ok && retryErr.Final != nil {
			err = retryErr.Final
		}
		if _, ok := asAPIError(err); ok {
			return result{}, err
		}
		return result{}, errors.Wrapf(err, "%s %s failed", method, req.path)
	}
	return resp.(result), nil
}

// read answers from the cache if possible
func (c *Client) read(ctx context.Context, e endpoint.Endpoint, req request) (result, error) {
	key := req.key()
	res, generation, ok := c.cache.get(key)
	if ok {
		return res, nil
	}
	res, err := c.call(ctx, e, http.MethodGet, req)
	if err != nil {
		return res, err
	}
	if !c.cache.put(key, res, generation) {
		c.logger.WithField(log.FldPath, key).Debug("Data changed while reading - answer not cached")
	}
	return res, nil
}

// write runs a modifying call. Whatever the outcome, the cached data of the event is dropped
func (c *Client) write(
	ctx context.Context,
	e endpoint.Endpoint,
	method string,
	eventID string,
	req request,
) (result, error) {
	defer c.cache.invalidate(eventsPath, eventID)
	return c.call(ctx, e, method, req)
}

func pageQuery(page, limit uint) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.FormatUint(uint64(page), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(uint64(limit), 10))
	}
	return q
}

func eventPath(id string) string {
	return eventsPath + "/" + id
}

// Login creates a session for the given credentials and uses it for all further calls
func (c *Client) Login(ctx context.Context, user, password string) (*Session, error) {
	res, err := c.call(ctx, c.login, http.MethodPost, request{
		path: "/login",
		body: map[string]string{"user": user, "password": password},
	})
	if err != nil {
		return nil, err
	}
	var sess Session
	if err = res.decode(&sess); err != nil {
		return nil, err
	}
	c.SetToken(sess.SessionID)
	return &sess, nil
}

// Logout ends the current session
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.call(ctx, c.logout, http.MethodPost, request{path: "/logout"})
	c.SetToken("")
	return err
}

// ListEvents returns a page of events ordered by their start time. Zero values let the server choose
func (c *Client) ListEvents(ctx context.Context, page, limit uint) (*models.EventPage, error) {
	res, err := c.read(ctx, c.listEvents, request{path: eventsPath, query: pageQuery(page, limit)})
	if err != nil {
		return nil, err
	}
	ret := &models.EventPage{PageInfo: res.page}
	if err = res.decode(&ret.Data); err != nil {
		return nil, err
	}
	return ret, nil
}

// GetEvent returns a single event
func (c *Client) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	res, err := c.read(ctx, c.getEvent, request{path: eventPath(id)})
	if err != nil {
		return nil, err
	}
	var ev models.Event
	if err = res.decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// CreateEvent stores a new event
func (c *Client) CreateEvent(ctx context.Context, payload models.EventPayload) (*models.Event, error) {
	res, err := c.write(ctx, c.createEvent, http.MethodPost, "", request{path: eventsPath, body: payload})
	if err != nil {
		return nil, err
	}
	var ev models.Event
	if err = res.decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// UpdateEvent changes the fields set in the patch
func (c *Client) UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error) {
	res, err := c.write(ctx, c.updateEvent, http.MethodPatch, id, request{path: eventPath(id), body: patch})
	if err != nil {
		return nil, err
	}
	var ev models.Event
	if err = res.decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DeleteEvent removes the event together with its registrations
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	_, err := c.write(ctx, c.deleteEvent, http.MethodDelete, id, request{path: eventPath(id)})
	return err
}

// Register registers the logged-in user for the event. If the user has already been registered, the existing
// registration is returned and created is false
func (c *Client) Register(ctx context.Context, eventID string) (reg *models.Registration, created bool, err error) {
	res, err := c.write(ctx, c.register, http.MethodPost, eventID, request{path: eventPath(eventID) + "/register"})
	if err != nil {
		return nil, false, err
	}
	reg = &models.Registration{}
	if err = res.decode(reg); err != nil {
		return nil, false, err
	}
	return reg, res.status == http.StatusCreated, nil
}

// CancelRegistration cancels the logged-in user's registration for the event
func (c *Client) CancelRegistration(ctx context.Context, eventID string) (*models.Registration, error) {
	res, err := c.write(ctx, c.cancelRegistration, http.MethodPatch, eventID,
		request{path: eventPath(eventID) + "/cancel-registration"},
	)
	if err != nil {
		return nil, err
	}
	var reg models.Registration
	if err = res.decode(&reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListRegistrations returns a page of the registrations made for the event
func (c *Client) ListRegistrations(
	ctx context.Context,
	eventID string,
	page, limit uint,
) (*models.RegistrationPage, error) {
	res, err := c.read(ctx, c.listRegistrations, request{
		path:  eventPath(eventID) + "/registrations",
		query: pageQuery(page, limit),
	})
	if err != nil {
		return nil, err
	}
	ret := &models.RegistrationPage{PageInfo: res.page}
	if err = res.decode(&ret.Data); err != nil {
		return nil, err
	}
	return ret, nil
}

// UpdateRegistrationStatus changes the status of a registration
func (c *Client) UpdateRegistrationStatus(
	ctx context.Context,
	eventID, registrationID string,
	status models.RegistrationStatus,
) (*models.Registration, error) {
	res, err := c.write(ctx, c.updateStatus, http.MethodPatch, eventID, request{
		path: eventPath(eventID) + "/registrations/" + registrationID + "/status",
		body: map[string]models.RegistrationStatus{"status": status},
	})
	if err != nil {
		return nil, err
	}
	var reg models.Registration
	if err = res.decode(&reg); err != nil {
		return nil, err
	}
	return &reg, nil
}
