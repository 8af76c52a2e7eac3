// Package server exposes the ledger service over HTTP. It is a thin
// adapter: request decoding, response encoding and status mapping only.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang-ledger-service/internal/ledger"
	"golang-ledger-service/internal/models"
	"golang-ledger-service/pkg/errors"
	"golang-ledger-service/pkg/logger"

	"github.com/gorilla/mux"
)

// uploadFieldName is the multipart form field carrying the CSV file.
const uploadFieldName = "uploadFile"

// maxUploadBytes caps statement uploads at 16 MiB.
const maxUploadBytes = 16 << 20

// Config holds the HTTP server settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8000",
		AllowedOrigins: []string{"http://localhost:3000"},
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
}

// Server routes HTTP requests to the ledger service.
type Server struct {
	config  *Config
	service *ledger.Service
	router  *mux.Router
	logger  logger.Logger
}

// New creates a Server over the given service.
func New(config *Config, service *ledger.Service) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config:  config,
		service: service,
		router:  mux.NewRouter(),
		logger:  logger.GetGlobalLogger().WithComponent("http_server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.corsMiddleware)
	s.router.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/account", s.handleCreateAccount).Methods(http.MethodPost)
	s.router.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	s.router.HandleFunc("/account/{id:[0-9]+}/import", s.handleImport).Methods(http.MethodPost)
	s.router.HandleFunc("/account/{id:[0-9]+}/transactions", s.handleListTransactions).Methods(http.MethodGet)
	s.router.HandleFunc("/account/{id:[0-9]+}/apply-rules", s.handleApplyRules).Methods(http.MethodPost)

	s.router.HandleFunc("/transactions", s.handleUpdateTransaction).Methods(http.MethodPut)

	s.router.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	s.router.HandleFunc("/category", s.handleCreateCategory).Methods(http.MethodPost)
	s.router.HandleFunc("/category", s.handleUpdateCategory).Methods(http.MethodPut)

	// Preflight for any route.
	s.router.PathPrefix("/").HandlerFunc(s.handlePreflight).Methods(http.MethodOptions)
}

// Handler returns the root HTTP handler for use in tests and servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.config.Addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range s.config.AllowedOrigins {
			if allowed == "*" || allowed == origin {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var a models.Account
	if !s.decodeJSON(w, r, &a) {
		return
	}
	created, err := s.service.Store().CreateAccount(r.Context(), a)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.service.Store().ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, errors.New(errors.CategoryClient, errors.CodeInvalidRequest,
			"request is not a valid multipart upload"))
		return
	}
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		s.writeError(w, errors.New(errors.CategoryClient, errors.CodeInvalidRequest,
			"missing upload field "+uploadFieldName))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.CategoryClient, errors.CodeInvalidRequest,
			"cannot read uploaded file"))
		return
	}

	summary, err := s.service.ImportCSV(r.Context(), accountID, header.Filename, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 0)

	var (
		txs []models.Transaction
		err error
	)
	if perPage > 0 {
		txs, err = s.service.Store().ListTransactionsPage(r.Context(), accountID, page, perPage)
	} else {
		txs, err = s.service.Store().ListTransactions(r.Context(), accountID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleApplyRules(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Preview bool `json:"preview"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.service.ApplyRules(r.Context(), accountID, req.Preview)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var upd ledger.TransactionUpdate
	if !s.decodeJSON(w, r, &upd) {
		return
	}
	updated, err := s.service.UpdateTransaction(r.Context(), upd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.Store().ListCategories(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	s.writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	if !s.decodeJSON(w, r, &c) {
		return
	}
	created, err := s.service.Store().CreateCategory(r.Context(), c)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, created)
}

// handleUpdateCategory updates a category's fields and, when the payload
// carries a rule list, replaces its rule set wholesale.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category models.Category `json:"category"`
		Rules    []models.Rule   `json:"rules"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	updated, err := s.service.Store().UpdateCategory(r.Context(), req.Category)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := struct {
		Category models.Category `json:"category"`
		Rules    []models.Rule   `json:"rules,omitempty"`
	}{Category: updated}

	if req.Rules != nil {
		replaced, err := s.service.ReplaceRules(r.Context(), updated.ID, req.Rules)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Rules = replaced
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, errors.New(errors.CategoryClient, errors.CodeInvalidRequest,
			"account id must be an integer"))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, errors.Wrap(err, errors.CategoryClient, errors.CodeInvalidRequest,
			"invalid JSON request body"))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps domain errors to HTTP statuses. Immutable-field
// rejections deliberately surface as 501, matching the contract the
// original UI depends on.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if ledgerErr, ok := errors.AsLedgerError(err); ok {
		switch {
		case ledgerErr.Code == errors.CodeNotFound:
			status = http.StatusNotFound
		case ledgerErr.Code == errors.CodeImmutableField:
			status = http.StatusNotImplemented
		case ledgerErr.Category == errors.CategoryClient,
			ledgerErr.Category == errors.CategoryParse,
			ledgerErr.Category == errors.CategoryValidation:
			status = http.StatusBadRequest
		}
		s.logger.WithError(err).WithFields(logger.Fields{
			"code":   string(ledgerErr.Code),
			"status": status,
		}).Warn("Request failed")
		s.writeJSON(w, status, map[string]interface{}{
			"error":      ledgerErr.Message,
			"code":       string(ledgerErr.Code),
			"suggestion": ledgerErr.Suggestion,
		})
		return
	}

	s.logger.WithError(err).Error("Request failed with unexpected error")
	s.writeJSON(w, status, map[string]string{"error": "internal server error"})
}
