package handler

import (
	"crypto/x509"
	"net/http"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/trust"
)

func (h *Handler) handleIdentity(w http.ResponseWriter, r *http.Request) {
	id := h.cluster.Identity()
	h.writeJSON(w, r, http.StatusOK, IdentityResponse{
		Name:           id.Name,
		Fingerprint:    id.Fingerprint(),
		NotAfter:       id.Leaf.NotAfter,
		CertificatePEM: string(id.CertificatePEM()),
	})
}

func (h *Handler) handleListTrust(w http.ResponseWriter, r *http.Request) {
	peers, err := h.cluster.TrustedPeers()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	connected := make(map[string]bool)
	for _, l := range h.cluster.Links() {
		if l.State == "open" {
			connected[l.Peer] = true
		}
	}

	out := make([]TrustEntry, 0, len(peers))
	for _, p := range peers {
		e := TrustEntry{
			Name:        p.Name,
			Alias:       p.Alias(),
			Host:        p.Host,
			Port:        p.Port,
			Fingerprint: p.Fingerprint(),
			Connected:   connected[p.Name],
		}
		if cert, err := x509.ParseCertificate(p.Certificate); err == nil {
			e.NotAfter = cert.NotAfter
		}
		out = append(out, e)
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) handleAddTrust(w http.ResponseWriter, r *http.Request) {
	var req AddTrustRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := domain.ValidateNodeName(req.Name); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if req.Host == "" || req.Port < 1 || req.Port > 65535 {
		h.handleServiceError(w, r, domain.ErrInvalidTrustEntry.WithDetails("host and port 1-65535 are required"))
		return
	}
	der, _, err := trust.ParseCertificatePEM([]byte(req.CertificatePEM))
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInvalidTrustEntry.WithCause(err))
		return
	}

	p := trust.Peer{Name: req.Name, Host: req.Host, Port: req.Port, Certificate: der}
	if err := h.cluster.Trust(p); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, TrustEntry{
		Name:        p.Name,
		Alias:       p.Alias(),
		Host:        p.Host,
		Port:        p.Port,
		Fingerprint: p.Fingerprint(),
	})
}

func (h *Handler) handleRemoveTrust(w http.ResponseWriter, r *http.Request) {
	trustMsg, connMsg, err := h.cluster.Untrust(r.PathValue("name"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, RemoveTrustResponse{Trust: trustMsg, Connection: connMsg})
}

func (h *Handler) handleRefreshTrust(w http.ResponseWriter, r *http.Request) {
	opened, err := h.cluster.CheckTrusted(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, RefreshTrustResponse{Opened: opened})
}
