package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"coffee-machine-backend/internal/store"
)

// Dispatcher queues refill alerts for a machine.
type Dispatcher interface {
	Dispatch(machineID int64) bool
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	webpush *webpush.Options
	alerts  Dispatcher
	log     *zap.Logger
}

// NewHandler creates a new API handler. alerts may be nil.
func NewHandler(s store.Store, webpushOptions *webpush.Options, alerts Dispatcher, log *zap.Logger) *Handler {
	return &Handler{
		store:   s,
		webpush: webpushOptions,
		alerts:  alerts,
		log:     log,
	}
}

func (h *Handler) alert(machineID int64) {
	if h.alerts == nil {
		return
	}
	if !h.alerts.Dispatch(machineID) {
		h.log.Warn("Refill alert not queued", zap.Int64("machine_id", machineID))
	}
}
