package fixture

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes and middleware for the server.
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	router.Use(s.loggingMiddleware)
	router.Use(requestIDMiddleware)
	if s.limiter != nil {
		router.Use(s.rateLimitMiddleware)
	}

	router.HandleFunc("/", rootHandler).Methods(Methods...)
	router.HandleFunc("/ws", websocketHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

// Handler dispatches gRPC calls to the gRPC server and everything else to
// the router.
func (s *Server) Handler() http.Handler {
	router := s.setupRoutes()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor == 2 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc") {
			s.metrics.grpcChecksTotal.Inc()
			s.grpc.ServeHTTP(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})
}
