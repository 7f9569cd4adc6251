// Package controltest provides a reference HTTP control listener used
// only to exercise internal/controlclient end to end in tests. It is not
// the production control surface described by the spec — that surface is
// explicitly out of scope (spec §1's non-goals) — this package exists
// purely so the client has something real to dial instead of a hand-rolled
// httptest.Handler in every test file.
package controltest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/asydsolutions/sentinel/internal/service"
)

// Handler is invoked for every accepted action, in the caller's goroutine.
type Handler func(serviceName, action string) error

// New builds a chi router with the same single route shape the real
// listener and the CLI's controlclient agree on: POST /{service}, form
// body action=<verb>.
func New(handle Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{http.MethodPost}}))

	r.Post("/{service}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "service")
		if err := req.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request")
			return
		}
		action := req.PostForm.Get("action")
		if action == "" {
			writeError(w, http.StatusBadRequest, "missing action")
			return
		}
		if err := handle(name, action); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return r
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte("<html><h1>Error</h1><h2>" + message + "</h2><p></p></html>"))
}

// ParseAction maps a wire verb string to service.Action, matching the
// vocabulary accepted by both the CLI and the rule Action type.
func ParseAction(verb string) (service.Action, bool) {
	switch verb {
	case "start":
		return service.ActionStart, true
	case "stop":
		return service.ActionStop, true
	case "restart":
		return service.ActionRestart, true
	case "monitor":
		return service.ActionMonitor, true
	case "unmonitor":
		return service.ActionUnmonitor, true
	default:
		return service.ActionIgnore, false
	}
}
