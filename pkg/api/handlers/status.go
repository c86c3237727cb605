package handlers

import (
	"context"
	"net/http"
	"time"
)

// Status is the payload of GET /status.
type Status struct {
	Device       string       `json:"device"`
	Version      string       `json:"version"`
	Uptime       string       `json:"uptime"`
	SelectedUnit uint32       `json:"selected_unit"`
	Slots        []SlotStatus `json:"slots"`
	Queue        QueueStatus  `json:"queue"`
	Media        MediaStatus  `json:"media"`
	Units        []UnitStatus `json:"units"`
	Heap         *HeapStatus  `json:"heap,omitempty"`
	Disc         string       `json:"disc,omitempty"`
	Connections  int32        `json:"connections"`
}

// SlotStatus mirrors one asynchronous reply slot.
type SlotStatus struct {
	Class   string `json:"class"`
	Result  int32  `json:"result"`
	Pending bool   `json:"pending"`
}

// QueueStatus reports the service queue occupancy.
type QueueStatus struct {
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
}

// MediaStatus reports the storage device lifecycle.
type MediaStatus struct {
	Attached bool `json:"attached"`
	Started  bool `json:"started"`
}

// UnitStatus describes one logical unit.
type UnitStatus struct {
	Index       uint32 `json:"index"`
	Backend     string `json:"backend"`
	SectorSize  uint32 `json:"sector_size"`
	SectorCount uint32 `json:"sector_count"`
	ReadOnly    bool   `json:"read_only"`
}

// HeapStatus reports arena usage in bytes.
type HeapStatus struct {
	Size        int `json:"size"`
	Used        int `json:"used"`
	Free        int `json:"free"`
	Allocations int `json:"allocations"`
	LargestFree int `json:"largest_free"`
}

// StatusHandler serves GET /status.
type StatusHandler struct {
	source  Source
	timeout time.Duration
}

// NewStatusHandler creates a status handler over source.
func NewStatusHandler(source Source) *StatusHandler {
	return &StatusHandler{source: source, timeout: 5 * time.Second}
}

// Get handles GET /status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		WriteError(w, http.StatusServiceUnavailable, "service not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	writeJSON(w, http.StatusOK, okResponse(h.source.Status(ctx)))
}
