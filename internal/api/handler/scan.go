package handler

import (
	"context"
	"net/http"

	"github.com/lottoloop/chain-custody/internal/models"
)

// ScanService is the scanner surface the admin API needs: coarse status and
// a manual trigger. Internal errors never cross this boundary.
type ScanService interface {
	Status(ctx context.Context) models.ScanStatus
	TriggerNow(ctx context.Context) (started bool, reason string)
}

type ScanHandler struct {
	scanner ScanService
}

func NewScanHandler(scanner ScanService) *ScanHandler {
	return &ScanHandler{scanner: scanner}
}

// GetStatus reports the scanner's current position against the chain head.
func (h *ScanHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.scanner.Status(r.Context()))
}

type triggerResponse struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}

// Trigger runs one scan cycle synchronously, unless one is already running.
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	started, reason := h.scanner.TriggerNow(r.Context())
	status := http.StatusOK
	if !started {
		status = http.StatusConflict
	}
	RespondJSON(w, status, triggerResponse{Started: started, Reason: reason})
}
