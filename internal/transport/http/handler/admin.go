package handler

import (
	"net/http"

	"github.com/barbershop-booking/internal/application/admin"
	"github.com/barbershop-booking/internal/notify"
	"github.com/go-chi/chi/v5"
)

// AdminNotificationHandler serves the operator's manual push tools.
type AdminNotificationHandler struct {
	svc admin.Service
}

func NewAdminNotificationHandler(svc admin.Service) *AdminNotificationHandler {
	return &AdminNotificationHandler{svc: svc}
}

func (h *AdminNotificationHandler) DefaultMessage(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.DefaultMessage(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Push sends one operator-written notification. Unlike the relay endpoint it
// reports failures in the usual error envelope.
func (h *AdminNotificationHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req notify.RelayRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Push(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type broadcastEnvelope struct {
	Sent       int               `json:"sent"`
	Recipients []admin.Recipient `json:"recipients"`
}

func (h *AdminNotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req admin.BroadcastRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	out, err := h.svc.Broadcast(r.Context(), req)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		httpError(w, err)
		return
	}
	sent := 0
	for _, rc := range out {
		if rc.Outcome == string(notify.OutcomeDelivered) {
			sent++
		}
	}
	if out == nil {
		out = []admin.Recipient{}
	}
	writeJSON(w, http.StatusOK, broadcastEnvelope{Sent: sent, Recipients: out})
}
