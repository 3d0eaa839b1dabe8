// Package server is an in-memory implementation of the finance backend
// endpoints used by the import wizard. It backs `finboard serve` and the
// end-to-end tests.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/finboard/finboard/internal/importer"
	"github.com/finboard/finboard/internal/model"
	"github.com/finboard/finboard/internal/preview"
)

// maxUpload bounds the size of an uploaded document.
const maxUpload = 32 << 20

// maxPageSize bounds the size query parameter of a preview page.
const maxPageSize = 500

// Server serves the backend API under /api.
type Server struct {
	store    *Store
	registry *importer.Registry
	logger   *log.Logger
	router   *mux.Router
}

// New creates a Server over store.
func New(store *Store, registry *importer.Registry, logger *log.Logger) *Server {
	s := &Server{store: store, registry: registry, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/accounts", s.listAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.createAccount).Methods(http.MethodPost)
	api.HandleFunc("/suppliers", s.listSuppliers).Methods(http.MethodGet)
	api.HandleFunc("/suppliers", s.createSupplier).Methods(http.MethodPost)
	api.HandleFunc("/import-preview", s.uploadPreview).Methods(http.MethodPost)
	api.HandleFunc("/import-preview/{id}", s.previewPage).Methods(http.MethodGet)
	api.HandleFunc("/import-plan", s.plan).Methods(http.MethodPost)
	api.HandleFunc("/import-commit", s.commit).Methods(http.MethodPost)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

func (s *Server) listAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Accounts())
}

func (s *Server) listSuppliers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Suppliers())
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var in model.NewAccount
	if !decode(w, r, &in) {
		return
	}
	acct, err := s.store.CreateAccount(in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("account created", "id", acct.ID, "name", acct.Name, "payment_type_id", acct.PaymentTypeID)
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) createSupplier(w http.ResponseWriter, r *http.Request) {
	var in model.NewSupplier
	if !decode(w, r, &in) {
		return
	}
	sup, err := s.store.CreateSupplier(in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("supplier created", "id", sup.ID, "name", sup.Name)
	writeJSON(w, http.StatusCreated, sup)
}

func (s *Server) uploadPreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading upload: %v", err))
		return
	}
	rows, err := s.registry.Parse(header.Filename, bytes.NewReader(data), r.FormValue("sheet"))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, importer.ErrUnsupportedFile) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, err.Error())
		return
	}

	h := s.store.AddPreview(rows)
	s.logger.Info("preview created", "preview_id", h.PreviewID, "file", header.Filename, "rows", h.Count)
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) previewPage(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	size, err := intParam(r, "size", preview.DefaultPageSize)
	if err != nil || size < 1 || size > maxPageSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("size must be between 1 and %d", maxPageSize))
		return
	}
	p, err := s.store.Page(mux.Vars(r)["id"], page, size)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	var req model.PlanRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.store.Plan(req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) commit(w http.ResponseWriter, r *http.Request) {
	var req model.CommitRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Indices) == 0 {
		writeError(w, http.StatusBadRequest, "indices must not be empty")
		return
	}
	res, err := s.store.Commit(req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("batch committed", "preview_id", req.PreviewID, "created", res.Created,
		"updated", res.Updated, "errors", len(res.Errors))
	writeJSON(w, http.StatusOK, res)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
