package internal

import (
	"context"
	"net/http"

	"github.com/go-kit/kit/endpoint"

	"github.com/derWhity/eventdesk/internal/ctxhelper"
)

// ErrNotAnAdmin is returned when a member calls a function reserved to admins
var ErrNotAnAdmin = MakeError(http.StatusForbidden, ErrCodeNotAnAdmin, "This function is reserved to admins")

// EnsureUserLoggedIn is a middleware that checks if there is a valid user session for the current call
func EnsureUserLoggedIn(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		if ctxhelper.User(ctx) == nil {
			// Nobody logged in
			return nil, ErrNotLoggedIn
		}
		return next(ctx, request)
	}
}

// EnsureAdmin is a middleware that only lets calls of logged-in admins pass
func EnsureAdmin(next endpoint.Endpoint) endpoint.Endpoint {
	return EnsureUserLoggedIn(func(ctx context.Context, request interface{}) (response interface{}, err error) {
		if !ctxhelper.User(ctx).IsAdmin() {
			return nil, ErrNotAnAdmin
		}
		return next(ctx, request)
	})
}
