package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) { return s.claims, s.err }

type stubResolver struct {
	actor requestcontext.Actor
	err   error
}

func (s stubResolver) ResolveActor(context.Context, string) (requestcontext.Actor, error) {
	return s.actor, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userID := id.NewUserID()
	actor := requestcontext.Actor{UserID: userID, Role: "citizen", District: "Gasabo"}

	var seen requestcontext.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		header   string
		valid    stubValidator
		resolver stubResolver
		want     int
	}{
		{"missing header", "", stubValidator{}, stubResolver{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, stubResolver{}, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", stubValidator{err: errors.New("bad")}, stubResolver{}, http.StatusUnauthorized},
		{"inactive user", "Bearer ok", stubValidator{claims: &JWTClaims{UserID: userID.String()}},
			stubResolver{err: dErrors.New(dErrors.CodeUnauthorized, "user is inactive")}, http.StatusUnauthorized},
		{"resolver failure", "Bearer ok", stubValidator{claims: &JWTClaims{UserID: userID.String()}},
			stubResolver{err: errors.New("db down")}, http.StatusInternalServerError},
		{"valid token", "Bearer ok", stubValidator{claims: &JWTClaims{UserID: userID.String()}},
			stubResolver{actor: actor}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = requestcontext.Actor{}
			req := httptest.NewRequest(http.MethodGet, "/land-transfer", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireAuth(tt.valid, tt.resolver, logger)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, actor, seen)
			} else {
				assert.True(t, seen.IsZero())
			}
		})
	}
}
