package testutil

import (
	"net/http"

	id "landadmin/pkg/domain"
	"landadmin/pkg/requestcontext"
)

// NewActor returns an actor with a fresh user id.
func NewActor(role, district string) requestcontext.Actor {
	return requestcontext.Actor{UserID: id.NewUserID(), Role: role, District: district}
}

// WithActor attaches actor to the request the way the auth middleware does
// after a bearer token validates.
func WithActor(req *http.Request, actor requestcontext.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}
