package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"contabils/internal/auth"
	"contabils/internal/core"
	applog "contabils/internal/log"
)

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type okBody struct {
	OK bool   `json:"ok"`
	ID *int64 `json:"id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorMessages maps refinements to the texts shown to users. Order
// matters: refinements come before the class they wrap.
var errorMessages = []struct {
	err     error
	status  int
	message string
}{
	{core.ErrInvalidType, http.StatusBadRequest, "Tipo inválido"},
	{core.ErrInvalidAmount, http.StatusBadRequest, "Valor inválido"},
	{core.ErrInvalidCategory, http.StatusBadRequest, "Categoria inválida"},
	{core.ErrInvalidDate, http.StatusBadRequest, "Data inválida (YYYY-MM-DD)"},
	{core.ErrInvalidMonth, http.StatusBadRequest, "Mês inválido (YYYY-MM)"},
	{core.ErrInvalidKind, http.StatusBadRequest, "Kind inválido"},
	{core.ErrEmptyName, http.StatusBadRequest, "Nome inválido"},
	{core.ErrEmptyEmoji, http.StatusBadRequest, "Emoji inválido"},
	{core.ErrInvalidID, http.StatusBadRequest, "ID inválido"},
	{core.ErrDuplicateName, http.StatusBadRequest, "Categoria já existe ou erro ao salvar"},
	{core.ErrInvalidInput, http.StatusBadRequest, "Requisição inválida"},
	{core.ErrUnauthenticated, http.StatusUnauthorized, "Não autenticado"},
	{core.ErrInvalidSession, http.StatusUnauthorized, "Sessão inválida ou expirada"},
	{core.ErrNotFoundOrForbidden, http.StatusNotFound, "Transação não encontrada"},
	{auth.ErrProviderUnavailable, http.StatusServiceUnavailable, "Serviço de identidade indisponível"},
	{core.ErrExportFailure, http.StatusInternalServerError, "Erro ao exportar"},
}

// classify returns the status and user message for err. fallback is used
// for unclassified errors, which are answered with 500.
func classify(err error, fallback string) (int, string) {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, fallback
}

// writeError answers with {"error","details"}. Server errors are logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := classify(err, fallback)
	if status >= 500 {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), msg,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
	writeJSON(w, status, errorBody{Error: msg, Details: err.Error()})
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, err, "Não autenticado")
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Muitas requisições, tente novamente em instantes"})
}
