package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/barbershop-booking/internal/application/relay"
	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/pkg/validate"
)

// RelayHandler is the server side of the push relay contract used by
// RelaySink. Its responses always carry a notify.RelayResponse body.
type RelayHandler struct {
	svc relay.Service
}

func NewRelayHandler(svc relay.Service) *RelayHandler { return &RelayHandler{svc: svc} }

func (h *RelayHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req notify.RelayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, notify.RelayResponse{Error: notify.CodeInvalidRequest})
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, notify.RelayResponse{Error: notify.CodeInvalidRequest})
		return
	}
	d, err := h.svc.Send(r.Context(), req)
	if err != nil {
		status, code := relayStatus(err)
		if status == http.StatusBadGateway {
			slog.Warn("relay delivery failed", "recipient", req.RecipientID, "err", err)
		}
		writeJSON(w, status, notify.RelayResponse{Error: code})
		return
	}
	writeJSON(w, http.StatusOK, notify.RelayResponse{Success: true, DeliveryID: d.DeliveryID})
}

func relayStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotOptedIn):
		return http.StatusPreconditionFailed, notify.CodeNotOptedIn
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusGone, notify.CodeTokenNotRegistered
	default:
		return http.StatusBadGateway, notify.CodeDeliveryFailed
	}
}
