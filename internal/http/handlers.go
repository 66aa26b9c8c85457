package http

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"time"

	"contabils/internal/core"
	applog "contabils/internal/log"
	"contabils/internal/services"
)

type categoryDTO struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Kind  string `json:"kind"`
}

type transactionDTO struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Description string `json:"description"`
	DateISO     string `json:"date_iso"`
	MonthKey    string `json:"month_key"`
}

type summaryDTO struct {
	Month   string `json:"month"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
	Balance int64  `json:"balance"`
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          t.ID,
		Type:        string(t.Type),
		AmountCents: t.Amount.Cents,
		Category:    t.Category,
		Description: t.Description,
		DateISO:     t.Date,
		MonthKey:    t.MonthKey,
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Catalog.ListCategories(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, err, "Erro ao listar categorias")
		return
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryDTO{Name: c.Name, Emoji: c.Emoji, Kind: string(c.Kind)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Err(); err != nil {
		s.writeError(w, r, err, "Requisição inválida")
		return
	}
	err := s.deps.Catalog.CreateCategory(r.Context(), p.Get("name"), p.Get("emoji"), p.Get("kind"))
	if err != nil {
		// Store failures share the duplicate answer, as the UI cannot tell them apart.
		if errors.Is(err, core.ErrStoreUnavailable) {
			err = errors.Join(core.ErrDuplicateName, err)
		}
		s.writeError(w, r, err, "Categoria já existe ou erro ao salvar")
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	uid, err := owner(r)
	if err != nil {
		s.writeError(w, r, err, "Não autenticado")
		return
	}
	month, err := s.monthParam(r)
	if err != nil {
		s.writeError(w, r, err, "Erro ao listar transações")
		return
	}
	rows, err := s.deps.Ledger.ListTransactions(r.Context(), uid, month, categoryParam(r))
	if err != nil {
		s.writeError(w, r, err, "Erro ao listar transações")
		return
	}
	out := make([]transactionDTO, 0, len(rows))
	for _, t := range rows {
		out = append(out, toTransactionDTO(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, err := owner(r)
	if err != nil {
		s.writeError(w, r, err, "Não autenticado")
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Err(); err != nil {
		s.writeError(w, r, err, "Requisição inválida")
		return
	}

	t, err := s.deps.Ledger.CreateTransaction(r.Context(), uid, services.TransactionInput{
		Type:        p.Get("type"),
		Amount:      p.Amount("amount"),
		Category:    p.Get("category"),
		Description: p.Get("description"),
		Date:        p.Get("date"),
	})
	if err != nil {
		s.writeError(w, r, err, "Erro ao criar transação")
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogTransactionCreated(r.Context(), t.ID, uid, string(t.Type), t.Amount.Cents, t.Category)
	writeJSON(w, http.StatusCreated, okBody{OK: true, ID: &t.ID})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid, err := owner(r)
	if err != nil {
		s.writeError(w, r, err, "Não autenticado")
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, "ID inválido")
		return
	}
	if err := s.deps.Ledger.DeleteTransaction(r.Context(), uid, id); err != nil {
		s.writeError(w, r, err, "Erro ao deletar transação")
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		applog.FieldTransaction, id,
		applog.FieldOwner, uid)
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	uid, err := owner(r)
	if err != nil {
		s.writeError(w, r, err, "Não autenticado")
		return
	}
	month, err := s.monthParam(r)
	if err != nil {
		s.writeError(w, r, err, "Erro ao calcular resumo")
		return
	}
	sum, err := s.deps.Ledger.Summary(r.Context(), uid, month)
	if err != nil {
		s.writeError(w, r, err, "Erro ao calcular resumo")
		return
	}
	writeJSON(w, http.StatusOK, summaryDTO{Month: sum.Month, Income: sum.Income, Expense: sum.Expense, Balance: sum.Balance})
}

// handleExport renders the whole workbook before writing, so a failure
// never reaches the client as a truncated file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	uid, err := owner(r)
	if err != nil {
		s.writeError(w, r, err, "Não autenticado")
		return
	}
	month, err := s.monthParam(r)
	if err != nil {
		s.writeError(w, r, err, "Erro ao exportar")
		return
	}
	category := categoryParam(r)

	rows, err := s.deps.Ledger.Extract(r.Context(), uid, month, category)
	if err != nil {
		s.writeError(w, r, err, "Erro ao exportar")
		return
	}
	doc, err := s.deps.Exporter.Render(month, category, rows)
	if err != nil {
		s.writeError(w, r, err, "Erro ao exportar")
		return
	}

	fields := applog.NewFields().WithOperation(applog.OpExport).WithScope(uid, month, category)
	fields[applog.FieldFilename] = doc.Filename
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Statement exported", fields.ToSlice()...)

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

type healthBody struct {
	OK    bool   `json:"ok"`
	DB    int    `json:"db,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ping(r); err != nil {
		writeJSON(w, http.StatusInternalServerError, healthBody{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthBody{OK: true, DB: 1})
}

func handleLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.ping(r); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) ping(r *http.Request) error {
	if s.deps.Store == nil {
		return errors.New("no store configured")
	}
	return s.deps.Store.Ping(r.Context())
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Public)
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "Rota não encontrada"})
}

func (s *Server) handleWorkerScript(w http.ResponseWriter, r *http.Request) {
	if len(s.deps.WorkerScript) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Service-Worker-Allowed", "/")
	_, _ = w.Write(s.deps.WorkerScript)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, r.PathValue("file"))
}

func (s *Server) handleAsset(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveAsset(w, r, name)
	}
}

// serveAsset writes one file of the embedded shell. http.FileServer is not
// used since it redirects /index.html to /.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, name string) {
	if s.deps.Static == nil || !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}
	body, err := fs.ReadFile(s.deps.Static, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if ct := contentTypes[path.Ext(name)]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(body))
}

var contentTypes = map[string]string{
	".webmanifest": "application/manifest+json",
	".svg":         "image/svg+xml",
	".js":          "text/javascript; charset=utf-8",
	".css":         "text/css; charset=utf-8",
	".html":        "text/html; charset=utf-8",
}
