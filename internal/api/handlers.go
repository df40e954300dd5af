package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ChaseHampton/memorease/internal/db"
	"github.com/ChaseHampton/memorease/internal/lots"
	"github.com/ChaseHampton/memorease/internal/processor"
	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Handlers serves the local mirror to the UI process on the same device.
type Handlers struct {
	store  db.LocalStore
	syncer *processor.Syncer
	logger zerolog.Logger
}

func NewHandlers(store db.LocalStore, syncer *processor.Syncer, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		syncer: syncer,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

type OutcomeResponse struct {
	Outcome    string `json:"outcome"`
	Message    string `json:"message"`
	Level      string `json:"level"`
	Count      int    `json:"count"`
	RunID      string `json:"run_id"`
	Reason     string `json:"reason,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type StatusResponse struct {
	State string           `json:"state"`
	Last  *OutcomeResponse `json:"last"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type LotResponse struct {
	LotID     int64                   `json:"lot_id"`
	LotNumber string                  `json:"lot_number"`
	Center    Point                   `json:"center"`
	Polygon   []search.Coordinate     `json:"polygon"`
	Deceased  []search.DeceasedRecord `json:"deceased"`
}

func (h *Handlers) Initialize(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Initialize(r.Context()); err != nil {
		h.fail(w, "failed to initialize local store", err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDeceased returns the local snapshot, filtered by name when q is set.
func (h *Handlers) ListDeceased(w http.ResponseWriter, r *http.Request) {
	records, ok := h.readRecords(w, r)
	if !ok {
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		records = lots.SearchByName(records, q)
	}
	writeJSON(w, http.StatusOK, search.SearchResponse{Data: records})
}

func (h *Handlers) ListLots(w http.ResponseWriter, r *http.Request) {
	records, ok := h.readRecords(w, r)
	if !ok {
		return
	}
	groups := lots.GroupByLot(records)
	out := make([]LotResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, lotResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handlers) LotAt(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		http.Error(w, "invalid lat", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		http.Error(w, "invalid lon", http.StatusBadRequest)
		return
	}

	records, ok := h.readRecords(w, r)
	if !ok {
		return
	}
	g, found := lots.LotAt(lots.GroupByLot(records), lat, lon)
	if !found {
		http.Error(w, "no lot at that point", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, lotResponse(g))
}

// Sync answers 502 when the run failed so the UI can style the toast.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	out := h.syncer.Sync(r.Context())
	status := http.StatusOK
	if out.Kind == processor.Failed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, outcomeResponse(out))
}

func (h *Handlers) SyncStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{State: h.syncer.State().String()}
	if last, ok := h.syncer.LastOutcome(); ok {
		o := outcomeResponse(last)
		resp.Last = &o
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) readRecords(w http.ResponseWriter, r *http.Request) ([]search.DeceasedRecord, bool) {
	rows, err := h.store.ReadAll(r.Context())
	if err != nil {
		h.fail(w, "failed to read local store", err, http.StatusInternalServerError)
		return nil, false
	}
	records, malformed := db.ConvertRows(rows)
	if malformed > 0 {
		h.logger.Warn().Int("malformed", malformed).Msg("rows with unreadable coordinates left off the map")
	}
	return records, true
}

func (h *Handlers) fail(w http.ResponseWriter, msg string, err error, status int) {
	h.logger.Error().Err(err).Msg(msg)
	http.Error(w, msg, status)
}

func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		h.logger.Debug().Str("method", r.Method).Str("route", route).Dur("took", time.Since(start)).Msg("request")
	})
}

func outcomeResponse(out processor.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Outcome:    out.Kind.String(),
		Message:    out.Message(),
		Level:      out.Level(),
		Count:      out.Count,
		RunID:      out.RunID,
		Reason:     out.Reason,
		DurationMs: out.Duration.Milliseconds(),
	}
}

func lotResponse(g lots.Group) LotResponse {
	resp := LotResponse{
		LotID:     g.LotID,
		LotNumber: g.LotNumber,
		Center:    Point{Lat: lots.Lat(g.Center), Lon: lots.Lon(g.Center)},
		Deceased:  g.Deceased,
	}
	if len(g.Polygon) > 0 {
		for _, p := range g.Polygon[0] {
			resp.Polygon = append(resp.Polygon, search.Coordinate{lots.Lat(p), lots.Lon(p)})
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
