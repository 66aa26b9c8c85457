package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"contabils/internal/core"
)

type ctxKey string

const identityKey ctxKey = "identity"

// DefaultSingleUserOwner is the owner recorded when no identity provider is used.
const DefaultSingleUserOwner = "local"

// Resolver decides which owner a request acts for.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// BearerResolver verifies the Authorization header.
type BearerResolver struct {
	verifier Verifier
}

func NewBearerResolver(v Verifier) *BearerResolver {
	return &BearerResolver{verifier: v}
}

func (b *BearerResolver) Resolve(r *http.Request) (Identity, error) {
	token, err := BearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	return b.verifier.Verify(r.Context(), token)
}

// FixedResolver maps every request to one owner.
type FixedResolver struct {
	owner Identity
}

func NewFixedResolver(ownerID string) *FixedResolver {
	if ownerID == "" {
		ownerID = DefaultSingleUserOwner
	}
	return &FixedResolver{owner: Identity{ID: ownerID}}
}

func (f *FixedResolver) Resolve(*http.Request) (Identity, error) {
	return f.owner, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", core.ErrUnauthenticated
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", core.ErrUnauthenticated
	}
	return strings.TrimSpace(token), nil
}

// Gate rejects requests the resolver cannot attribute to an owner before
// they reach the wrapped handler. onError writes the rejection.
func Gate(resolver Resolver, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r)
			if err != nil {
				slog.WarnContext(r.Context(), "Request rejected by auth gate",
					"path", r.URL.Path,
					"error", err)
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity installed by Gate.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.ID != ""
}
