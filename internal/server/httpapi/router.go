// Package httpapi serves the token endpoints over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/gorilla/mux"
)

// NewRouter wires the auth endpoints. Every route runs behind the
// authenticator; only some of them demand an identity.
func NewRouter(api *API, authn *Authenticator, m *metrics.Collectors) *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument(m), authn.Middleware)

	r.HandleFunc("/healthz", api.Health()).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	s := r.PathPrefix("/auth").Subrouter()
	s.HandleFunc("/login", api.Login()).Methods(http.MethodPost)
	s.HandleFunc("/refresh", api.Refresh()).Methods(http.MethodPost)
	s.HandleFunc("/logout", api.Logout()).Methods(http.MethodPost)
	s.Handle("/logout-all", RequireIdentity(api.LogoutAll())).Methods(http.MethodPost)
	s.Handle("/sessions", RequireIdentity(api.Sessions())).Methods(http.MethodGet)
	s.Handle("/me", RequireIdentity(api.Me())).Methods(http.MethodGet)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func instrument(m *metrics.Collectors) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.ObserveRequest(route, rec.status, time.Since(start))
		})
	}
}
