package server

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/huddle/internal/collab"
)

func routes(opts Options) *mux.Router {
	r := mux.NewRouter()

	if opts.Gateway != nil {
		r.Handle("/ws", opts.Gateway)
	}
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", listSessions(opts.Service)).Methods(http.MethodGet)
	api.HandleFunc("/documents/{documentID}/versions", listVersions(opts.Service)).Methods(http.MethodGet)

	if opts.Pprof {
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func listSessions(svc *collab.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": svc.Sessions()})
	}
}

func listVersions(svc *collab.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := mux.Vars(r)["documentID"]

		versions, err := svc.History(r.Context(), documentID)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"documentId": documentID,
			"versions":   versions,
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch collab.CodeOf(err) {
	case collab.CodeValidation:
		status = http.StatusBadRequest
	case collab.CodeNotFound:
		status = http.StatusNotFound
	case collab.CodeUnauthorized:
		status = http.StatusUnauthorized
	default:
		log.Error().Err(err).Msg("api request failed")
	}

	writeJSON(w, status, map[string]string{
		"code":    string(collab.CodeOf(err)),
		"message": collab.MessageOf(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}
