package handlers

import (
	"context"
	"net/http"
)

// TypeLister lists the entity types known to the registry
type TypeLister interface {
	Types(ctx context.Context) ([]string, error)
}

// RegistryHandler exposes the registry vocabulary to reviewers
type RegistryHandler struct {
	Types TypeLister
}

// ListTypes returns the distinct registry entity types
func (h *RegistryHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	if h.Types == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	types, err := h.Types.Types(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}
