// Package handlers exposes the sync service over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/gorilla/mux"
)

// maxBodySize bounds a posted document or upload.
const maxBodySize = 10 << 20

// SyncService is the server side of the sync protocol.
type SyncService interface {
	Authenticate(ctx context.Context, userName, password string) (*models.User, error)
	Check(ctx context.Context, user *models.User, userID string) (models.Options, error)
	Pull(ctx context.Context, user *models.User, dataType, token string) (*models.Page, error)
	Content(ctx context.Context, user *models.User, docType, docGUID, token string) (string, error)
	Post(ctx context.Context, user *models.User, token string, body []byte) (*models.PostResult, error)
	Confirm(ctx context.Context, user *models.User, code, guid string) (*models.PostResult, error)
	Print(ctx context.Context, user *models.User, guid string) (*models.PostResult, error)
}

// Router wraps the mux router and the service behind it.
type Router struct {
	*mux.Router
	svc SyncService
	log logging.Logger
}

// NewRouter creates the HTTP router with all protocol routes. Every route
// requires basic authentication.
func NewRouter(svc SyncService, log logging.Logger) *Router {
	r := &Router{Router: mux.NewRouter(), svc: svc, log: log}

	r.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(r.logRequests, r.basicAuth)
	api.HandleFunc("/check/{userId}", r.check).Methods(http.MethodGet)
	api.HandleFunc("/get/{dataType}/{token}", r.pull).Methods(http.MethodGet)
	api.HandleFunc("/document/{docType}/{guid}/{token}", r.content).Methods(http.MethodGet)
	api.HandleFunc("/post/{token}", r.post).Methods(http.MethodPost)
	api.HandleFunc("/confirm/{code}/{guid}", r.confirm).Methods(http.MethodGet)
	api.HandleFunc("/print/{guid}", r.print).Methods(http.MethodGet)

	return r
}

func (r *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) check(w http.ResponseWriter, req *http.Request) {
	opts, err := r.svc.Check(req.Context(), userFrom(req.Context()), mux.Vars(req)["userId"])
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, opts)
}

func (r *Router) pull(w http.ResponseWriter, req *http.Request) {
	v := mux.Vars(req)
	page, err := r.svc.Pull(req.Context(), userFrom(req.Context()), v["dataType"], v["token"])
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (r *Router) content(w http.ResponseWriter, req *http.Request) {
	v := mux.Vars(req)
	c, err := r.svc.Content(req.Context(), userFrom(req.Context()), v["docType"], v["guid"], v["token"])
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"content": c})
}

func (r *Router) post(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodySize))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	res, err := r.svc.Post(req.Context(), userFrom(req.Context()), mux.Vars(req)["token"], body)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) confirm(w http.ResponseWriter, req *http.Request) {
	v := mux.Vars(req)
	res, err := r.svc.Confirm(req.Context(), userFrom(req.Context()), v["code"], v["guid"])
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) print(w http.ResponseWriter, req *http.Request) {
	res, err := r.svc.Print(req.Context(), userFrom(req.Context()), mux.Vars(req)["guid"])
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// fail maps a service error to a status code.
func (r *Router) fail(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, common.ErrAccessDenied):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrProtocol):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		r.log.Error(req.Context(), "request failed", "path", req.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		r.log.Debug(req.Context(), "request",
			"method", req.Method, "path", req.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
