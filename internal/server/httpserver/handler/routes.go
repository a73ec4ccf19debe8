package handler

import (
	"net/http"
	"sort"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/routing"
)

func (h *Handler) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.cluster.ListTables())
}

func (h *Handler) handleGetTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	entries, ok := h.cluster.Entries(table)
	if !ok {
		h.handleServiceError(w, r, domain.ErrRouteMiss.WithDetailsf("no table %q", table))
		return
	}
	out := TableResponse{Name: table, Entries: make([]routing.Entry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, e)
	}
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].Name < out.Entries[j].Name })
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	table, name := r.PathValue("table"), r.PathValue("name")
	e, ok := h.cluster.Entry(table, name)
	if !ok {
		h.handleServiceError(w, r, domain.ErrRouteMiss.WithDetailsf("%s/%s", table, name))
		return
	}
	h.writeJSON(w, r, http.StatusOK, e)
}

func (h *Handler) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	if !h.writable(w, r, table) {
		return
	}
	var req AddEntryRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("name is required"))
		return
	}
	h.cluster.AddEntry(table, req.Name)
	e, _ := h.cluster.Entry(table, req.Name)
	h.writeJSON(w, r, http.StatusCreated, e)
}

func (h *Handler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	table, name := r.PathValue("table"), r.PathValue("name")
	if !h.writable(w, r, table) {
		return
	}
	if !h.cluster.DeleteEntry(table, name) {
		h.handleServiceError(w, r, domain.ErrRouteMiss.WithDetailsf("%s/%s", table, name))
		return
	}
	h.writeJSON(w, r, http.StatusOK, nil)
}

// writable rejects admin writes to the table the node maintains itself.
func (h *Handler) writable(w http.ResponseWriter, r *http.Request, table string) bool {
	if table == domain.TableServers {
		h.handleServiceError(w, r, domain.ErrReservedTable.WithDetails(table))
		return false
	}
	return true
}
