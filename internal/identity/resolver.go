// Package identity resolves the acting user of a request.
package identity

import (
	"context"
	"errors"

	"landadmin/internal/identity/models"
	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/platform/sentinel"
	"landadmin/pkg/requestcontext"
)

// UserReader is the lookup the resolver needs.
type UserReader interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
}

// Resolver turns a token subject into a requestcontext.Actor. Role and
// district come from the stored user so revoking a role takes effect
// immediately.
type Resolver struct {
	users UserReader
}

func NewResolver(users UserReader) *Resolver {
	return &Resolver{users: users}
}

// ResolveActor returns CodeUnauthorized for malformed ids, unknown users and
// inactive users.
func (r *Resolver) ResolveActor(ctx context.Context, rawUserID string) (requestcontext.Actor, error) {
	userID, err := id.ParseUserID(rawUserID)
	if err != nil {
		return requestcontext.Actor{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "user not found")
		}
		return requestcontext.Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.IsActive {
		return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "user is inactive")
	}
	return requestcontext.Actor{
		UserID:   user.ID,
		Role:     string(user.Role),
		District: user.District,
	}, nil
}
