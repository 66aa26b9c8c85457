package http

import (
	"net/http"
	"strconv"
	"strings"

	"contabils/internal/auth"
	"contabils/internal/core"
)

// monthParam reads ?month=, defaulting to the current UTC month.
func (s *Server) monthParam(r *http.Request) (string, error) {
	m := strings.TrimSpace(r.URL.Query().Get("month"))
	if m == "" {
		return core.CurrentMonth(s.now()), nil
	}
	return core.ParseMonth(m)
}

func categoryParam(r *http.Request) string {
	return sanitizeInput(r.URL.Query().Get("category"))
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ErrInvalidID
	}
	return id, nil
}

// owner returns the identity installed by the auth gate.
func owner(r *http.Request) (string, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return "", core.ErrUnauthenticated
	}
	return id.ID, nil
}
