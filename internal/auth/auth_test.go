package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contabils/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier(secret, "authenticated")

	good, err := IssueToken(secret, "user-1", "a@b.c", "authenticated", time.Hour)
	require.NoError(t, err)
	id, err := v.Verify(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "user-1", Email: "a@b.c"}, id)

	expired, _ := IssueToken(secret, "user-1", "", "authenticated", -time.Hour)
	wrongKey, _ := IssueToken("other", "user-1", "", "authenticated", time.Hour)
	wrongAud, _ := IssueToken(secret, "user-1", "", "anon", time.Hour)
	noSubject, _ := IssueToken(secret, "", "", "authenticated", time.Hour)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "aud": "authenticated"}).SignedString([]byte(secret))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user-1", "aud": "authenticated", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))

	for name, token := range map[string]string{
		"expired":    expired,
		"wrong key":  wrongKey,
		"wrong aud":  wrongAud,
		"no subject": noSubject,
		"no exp":     noExp,
		"hs512":      hs512,
		"garbage":    "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.ErrorIs(t, err, core.ErrInvalidSession)
		})
	}
}

func TestRemoteVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Write([]byte(`{"id":"uuid-1","email":"x@y.z","role":"authenticated"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewRemoteVerifier(srv.URL+"/", "anon-key", srv.Client())

	id, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "uuid-1", Email: "x@y.z"}, id)

	_, err = v.Verify(context.Background(), "stale")
	assert.ErrorIs(t, err, core.ErrInvalidSession)

	_, err = v.Verify(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.False(t, core.IsAuthError(err))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{"", "", core.ErrUnauthenticated},
		{"Basic abc", "", core.ErrUnauthenticated},
		{"Bearer", "", core.ErrUnauthenticated},
		{"Bearer   ", "", core.ErrUnauthenticated},
		{"Bearer abc", "abc", nil},
		{"bearer abc", "abc", nil},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		token, err := BearerToken(r)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.token, token)
	}
}

type stubVerifier map[string]Identity

func (s stubVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return Identity{}, core.ErrInvalidSession
}

func TestGate(t *testing.T) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(id.ID))
	})
	var gotErr error
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := Gate(NewBearerResolver(stubVerifier{"t1": {ID: "user-1"}}), onError)(next)

	cases := []struct {
		name    string
		header  string
		status  int
		wantErr error
	}{
		{"missing", "", http.StatusUnauthorized, core.ErrUnauthenticated},
		{"invalid", "Bearer nope", http.StatusUnauthorized, core.ErrInvalidSession},
		{"valid", "Bearer t1", http.StatusOK, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			reached, gotErr = false, nil
			r := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
			if c.header != "" {
				r.Header.Set("Authorization", c.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, r)
			assert.Equal(t, c.status, rr.Code)
			if c.wantErr != nil {
				assert.False(t, reached)
				assert.True(t, errors.Is(gotErr, c.wantErr))
				return
			}
			assert.True(t, reached)
			assert.Equal(t, "user-1", rr.Body.String())
		})
	}
}

func TestFixedResolver(t *testing.T) {
	id, err := NewFixedResolver("").Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultSingleUserOwner, id.ID)

	id, _ = NewFixedResolver("me").Resolve(nil)
	assert.Equal(t, "me", id.ID)
}
