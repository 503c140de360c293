// Package api serves engine results over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"RateSentinel/internal/logger"
	"RateSentinel/internal/model"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// RateSource is the part of the engine the API reads from.
type RateSource interface {
	GetRates(ctx context.Context) *model.RatesResult
	Reference() model.ReferenceState
}

// Handler holds the HTTP handlers.
type Handler struct {
	rates RateSource
	log   *logrus.Entry
}

// NewHandler creates the handler set.
func NewHandler(rates RateSource, l *logrus.Logger) *Handler {
	return &Handler{rates: rates, log: logger.Component(l, "api")}
}

// Router builds the route table. metrics may be nil; mw wraps every route.
func (h *Handler) Router(metrics http.Handler, mw ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(mw...)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/rates", h.handleGetRates).Methods(http.MethodGet)
	v1.HandleFunc("/rates/{symbol}", h.handleGetRate).Methods(http.MethodGet)
	v1.HandleFunc("/reference", h.handleGetReference).Methods(http.MethodGet)
	v1.HandleFunc("/convert", h.handleConvert).Methods(http.MethodGet)

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return r
}

// Server is the HTTP listener.
type Server struct {
	srv *http.Server
	log *logrus.Entry
}

// NewServer creates a server for handler on addr.
func NewServer(addr string, handler http.Handler, l *logrus.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
		},
		log: logger.Component(l, "api"),
	}
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server failed")
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
