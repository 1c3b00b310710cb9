package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidpullgo/internal/storage"
	"vidpullgo/internal/websocket"
)

func NewRouter(store *storage.Storage, hub *websocket.Hub, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/status", GetStatusHandler(store))
	r.Get("/runs/last", GetLastRunHandler(store))
	r.Get("/failed", GetFailedHandler(store))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if hub != nil {
		r.Get("/ws", hub.WsHandler)
	}
	return r
}

func GetStatusHandler(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Status())
	}
}

func GetLastRunHandler(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last, ok := store.LastRun()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no finished run"})
			return
		}
		writeJSON(w, http.StatusOK, last)
	}
}

func GetFailedHandler(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.FailedItems())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.Write([]byte(`{"error": "failed to encode response"}`))
	}
}
