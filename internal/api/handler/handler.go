// Package handler exposes the ledger over HTTP (gin) and streams committed
// events to the owner over websockets.
package handler

import (
	"log/slog"

	"mediaguard/backend/internal/eventhub"
	"mediaguard/backend/internal/ledger"
)

// Handler carries the services the HTTP routes call into.
type Handler struct {
	Ledger *ledger.Service
	Hub    *eventhub.Hub
	Auth   *Authenticator

	log *slog.Logger
}

func NewHandler(l *ledger.Service, hub *eventhub.Hub, auth *Authenticator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Ledger: l, Hub: hub, Auth: auth, log: logger.With("component", "http")}
}
