package internal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-kit/kit/endpoint"

	"github.com/derWhity/eventdesk/internal/models"
)

// EventEndpoints is a collection of endpoints for working with the event service
type EventEndpoints struct {
	List   endpoint.Endpoint
	Get    endpoint.Endpoint
	Create endpoint.Endpoint
	Update endpoint.Endpoint
	Delete endpoint.Endpoint
}

// RegistrationEndpoints is a collection of endpoints for working with the registration service
type RegistrationEndpoints struct {
	Register     endpoint.Endpoint
	CancelOwn    endpoint.Endpoint
	List         endpoint.Endpoint
	UpdateStatus endpoint.Endpoint
}

// SessionEndpoints is a collection of endpoints for working with the session service
type SessionEndpoints struct {
	SignUp endpoint.Endpoint
	Login  endpoint.Endpoint
	Logout endpoint.Endpoint
	WhoAmI endpoint.Endpoint
}

// ConfigEndpoints is a collection of endpoints for changing the system's configuration
type ConfigEndpoints struct {
	GetRegistrationPolicy endpoint.Endpoint
	SetRegistrationPolicy endpoint.Endpoint
}

// The base for all responses which always contains an "ok" property to show if the call was successful and a
// data element containing the result of the request
type basicResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
}

// createdResponse is a basic response for a call that has created a new entity
type createdResponse struct {
	basicResponse
}

// StatusCode lets the transport answer with "201 Created"
func (createdResponse) StatusCode() int {
	return http.StatusCreated
}

// pagedResponse is the response to listings. The paging information is placed beside the data
type pagedResponse struct {
	OK bool `json:"ok"`
	models.PageInfo
	Data interface{} `json:"data"`
}

func illegalRequest(request interface{}) error {
	return MakeError(http.StatusBadRequest, ErrCodeIllegalValue, fmt.Sprintf("Illegal request type %T", request))
}

// -- Configuration ----------------------------------------------------------------------------------------------------

// MakeConfigEndpoints creates the endpoints needed to use the configuration service
func MakeConfigEndpoints(s ConfigService) ConfigEndpoints {
	return ConfigEndpoints{
		GetRegistrationPolicy: EnsureAdmin(MakeGetRegistrationPolicyEndpoint(s)),
		SetRegistrationPolicy: EnsureAdmin(MakeSetRegistrationPolicyEndpoint(s)),
	}
}

// MakeGetRegistrationPolicyEndpoint returns an endpoint calling the RegistrationPolicy method of the ConfigService
func MakeGetRegistrationPolicyEndpoint(s ConfigService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		return basicResponse{true, s.RegistrationPolicy(ctx)}, nil
	}
}

// MakeSetRegistrationPolicyEndpoint returns an endpoint calling the SetRegistrationPolicy method of the ConfigService
func MakeSetRegistrationPolicyEndpoint(s ConfigService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		policy, ok := request.(models.RegistrationPolicy)
		if !ok {
			return nil, illegalRequest(request)
		}
		if err := s.SetRegistrationPolicy(ctx, policy); err != nil {
			return nil, err
		}
		return basicResponse{true, policy}, nil
	}
}

// -- Events -----------------------------------------------------------------------------------------------------------

// MakeEventEndpoints builds the endpoints needed to communicate with the Event Service
func MakeEventEndpoints(s EventService) EventEndpoints {
	return EventEndpoints{
		List:   makeListEventsEndpoint(s),
		Get:    makeGetEventEndpoint(s),
		Create: EnsureAdmin(makeCreateEventEndpoint(s)),
		Update: EnsureAdmin(makeUpdateEventEndpoint(s)),
		Delete: EnsureAdmin(makeDeleteEventEndpoint(s)),
	}
}

func makeListEventsEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		page, ok := request.(Pagination)
		if !ok {
			return nil, illegalRequest(request)
		}
		res, err := s.List(ctx, page)
		if err != nil {
			return nil, err
		}
		return pagedResponse{true, res.PageInfo, res.Data}, nil
	}
}

func makeGetEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, illegalRequest(request)
		}
		ev, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

func makeCreateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		payload, ok := request.(models.EventPayload)
		if !ok {
			return nil, illegalRequest(request)
		}
		ev, err := s.Create(ctx, payload)
		if err != nil {
			return nil, err
		}
		return createdResponse{basicResponse{true, ev}}, nil
	}
}

func makeUpdateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(eventUpdateRequest)
		if !ok {
			return nil, illegalRequest(request)
		}
		ev, err := s.Update(ctx, req.ID, req.Patch)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

func makeDeleteEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, illegalRequest(request)
		}
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Registrations ----------------------------------------------------------------------------------------------------

// MakeRegistrationEndpoints builds the endpoints needed to communicate with the Registration Service
func MakeRegistrationEndpoints(s RegistrationService) RegistrationEndpoints {
	return RegistrationEndpoints{
		Register:     EnsureUserLoggedIn(makeRegisterEndpoint(s)),
		CancelOwn:    EnsureUserLoggedIn(makeCancelRegistrationEndpoint(s)),
		List:         EnsureAdmin(makeListRegistrationsEndpoint(s)),
		UpdateStatus: EnsureAdmin(makeUpdateRegistrationStatusEndpoint(s)),
	}
}

func makeRegisterEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		eventID, ok := request.(string)
		if !ok {
			return nil, illegalRequest(request)
		}
		reg, created, err := s.Register(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if created {
			return createdResponse{basicResponse{true, reg}}, nil
		}
		return basicResponse{true, reg}, nil
	}
}

func makeCancelRegistrationEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		eventID, ok := request.(string)
		if !ok {
			return nil, illegalRequest(request)
		}
		reg, err := s.CancelOwn(ctx, eventID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, reg}, nil
	}
}

func makeListRegistrationsEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(registrationListRequest)
		if !ok {
			return nil, illegalRequest(request)
		}
		res, err := s.List(ctx, req.EventID, req.Pagination)
		if err != nil {
			return nil, err
		}
		return pagedResponse{true, res.PageInfo, res.Data}, nil
	}
}

func makeUpdateRegistrationStatusEndpoint(s RegistrationService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(statusUpdateRequest)
		if !ok {
			return nil, illegalRequest(request)
		}
		reg, err := s.UpdateStatus(ctx, req.EventID, req.RegistrationID, models.RegistrationStatus(req.Status))
		if err != nil {
			return nil, err
		}
		return basicResponse{true, reg}, nil
	}
}

// -- Session ----------------------------------------------------------------------------------------------------------

// MakeSessionEndpoints creates the endpoints for the session service
func MakeSessionEndpoints(s SessionService) SessionEndpoints {
	return SessionEndpoints{
		SignUp: makeSignUpEndpoint(s),
		Login:  makeLoginEndpoint(s),
		Logout: makeLogoutEndpoint(s),
		WhoAmI: makeWhoAmIEndpoint(s),
	}
}

func makeSignUpEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(SignUpRequest)
		if !ok {
			return nil, illegalRequest(request)
		}
		u, err := s.SignUp(ctx, req)
		if err != nil {
			return nil, err
		}
		return createdResponse{basicResponse{true, u}}, nil
	}
}

func makeLoginEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(loginRequest)
		if !ok {
			return nil, illegalRequest(request)
		}
		info, err := s.Login(ctx, req.User, req.Pass)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, info}, nil
	}
}

func makeLogoutEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		token, ok := request.(string)
		if !ok {
			return nil, illegalRequest(request)
		}
		if err := s.Logout(ctx, token); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeWhoAmIEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		token, ok := request.(string)
		if !ok {
			return nil, illegalRequest(request)
		}
		info, err := s.WhoAmI(ctx, token)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, info}, nil
	}
}
