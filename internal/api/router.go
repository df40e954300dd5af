package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/initialize", h.Initialize).Methods("POST")
	r.HandleFunc("/deceased", h.ListDeceased).Methods("GET")
	r.HandleFunc("/lots", h.ListLots).Methods("GET")
	r.HandleFunc("/lots/at", h.LotAt).Methods("GET")
	r.HandleFunc("/sync", h.Sync).Methods("POST")
	r.HandleFunc("/sync/status", h.SyncStatus).Methods("GET")
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	r.Use(h.logRequests)
	return r
}
