package handler

import (
	"net/http"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/infra/buildinfo"
)

func (h *Handler) handleConnections(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.cluster.Links())
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Targets) == 0 {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("targets are required"))
		return
	}

	id, sent := h.cluster.Send(req.Targets, req.Kind, []byte(req.Body))
	if !sent {
		h.logger.WarnContext(r.Context(), "message not sent", "id", id, "targets", req.Targets)
		h.writeError(w, r, http.StatusNotFound, domain.ErrSendFailure.Code,
			domain.ErrSendFailure.WithDetailsf("no route to any of %v", req.Targets).Error())
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, SendMessageResponse{ID: id, Sent: true})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, StatusResponse{
		Status: h.cluster.Status(),
		Build:  buildinfo.Get(),
	})
}
