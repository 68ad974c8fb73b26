package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-rental/internal/agency"
	"github.com/ukydev/fleet-rental/internal/db"
	"github.com/ukydev/fleet-rental/internal/models"
	"github.com/ukydev/fleet-rental/internal/source"
)

const maxLinesBody = 1 << 20

// FleetHandler serves fleet queries. The agency itself is not synchronized,
// so every access goes through mu.
type FleetHandler struct {
	mu     sync.RWMutex
	agency *agency.Agency
	store  db.VehicleCollection
}

// NewFleetHandler creates a fleet handler. store may be nil, in which case
// loaded vehicles only live in memory.
func NewFleetHandler(a *agency.Agency, store db.VehicleCollection) *FleetHandler {
	return &FleetHandler{agency: a, store: store}
}

type fleetSummary struct {
	Name     string           `json:"name"`
	Count    int              `json:"count"`
	Vehicles []models.Vehicle `json:"vehicles"`
}

type rentalQuote struct {
	Vehicle models.Vehicle `json:"vehicle"`
	Days    int            `json:"days"`
	Cost    float64        `json:"cost"`
}

type loadResponse struct {
	agency.LoadReport
	PersistError string `json:"persist_error,omitempty"`
}

// Summary returns the agency name, vehicle count and fleet in insertion order.
func (h *FleetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	summary := fleetSummary{
		Name:     h.agency.Name(),
		Count:    h.agency.Len(),
		Vehicles: h.agency.Fleet(),
	}
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, summary)
}

// SummaryText returns the plain-text rendering of the agency.
func (h *FleetHandler) SummaryText(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	text := h.agency.String()
	h.mu.RUnlock()
	writeText(w, text)
}

// CarsReport returns the plain-text car report for ?days=N (default 1).
func (h *FleetHandler) CarsReport(w http.ResponseWriter, r *http.Request) {
	days, ok := daysParam(w, r)
	if !ok {
		return
	}
	h.mu.RLock()
	text := h.agency.CarsReport(days)
	h.mu.RUnlock()
	writeText(w, text)
}

// Cars returns every car ordered by plate.
func (h *FleetHandler) Cars(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	cars := h.agency.CarsSortedByPlate()
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, cars)
}

// Vans returns every van ordered by cargo volume.
func (h *FleetHandler) Vans(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	vans := h.agency.VansSortedByVolume()
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, vans)
}

// Brands returns the brand to models grouping.
func (h *FleetHandler) Brands(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	brands := h.agency.BrandsWithModels()
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, brands)
}

// Quote prices renting one vehicle for ?days=N.
func (h *FleetHandler) Quote(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.Error(w, "Unknown vehicle kind", http.StatusBadRequest)
		return
	}
	days, ok := daysParam(w, r)
	if !ok {
		return
	}

	h.mu.RLock()
	v, found := h.agency.Find(kind, r.PathValue("plate"))
	h.mu.RUnlock()
	if !found {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rentalQuote{Vehicle: v, Days: days, Cost: v.RentalCost(days)})
}

// LoadLines loads fleet records posted as plain text, one per line, and
// persists the vehicles that were added. Failures are numbered by their line
// in the request body.
func (h *FleetHandler) LoadLines(w http.ResponseWriter, r *http.Request) {
	lines, err := source.FromReader(http.MaxBytesReader(w, r.Body, maxLinesBody)).Lines()
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(lines) == 0 {
		http.Error(w, "No fleet lines in request body", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	report := h.agency.Stage(lines)
	h.mu.Unlock()
	// listeners may block on the broker, readers must not wait for them
	h.agency.Announce(report.Added)

	resp := loadResponse{LoadReport: report}
	if h.store != nil && len(report.Added) > 0 {
		if err := db.SaveVehicles(r.Context(), h.store, report.Added); err != nil {
			log.WithError(err).Error("Failed to persist loaded vehicles")
			resp.PersistError = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func daysParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 1, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return days, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}
