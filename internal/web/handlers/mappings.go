package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fefal-etl/internal/store"
	"github.com/fefal-etl/internal/survey"
)

// MappingsHandler handles the mapping store
type MappingsHandler struct {
	Store store.MappingStore
}

// ListColumnRenames returns the learned column renames
func (h *MappingsHandler) ListColumnRenames(w http.ResponseWriter, r *http.Request) {
	renames, err := h.Store.ColumnRenames(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renames)
}

// UpsertColumnRename stores a column rename, replacing the previous one
func (h *MappingsHandler) UpsertColumnRename(w http.ResponseWriter, r *http.Request) {
	var req store.ColumnRename
	if !decode(w, r, &req) {
		return
	}
	if err := h.Store.UpsertColumnRename(r.Context(), req); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// ListEntityTypes returns the entity-type mappings
func (h *MappingsHandler) ListEntityTypes(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.Store.EntityTypeMappings(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappings)
}

// UpsertEntityType stores an entity-type mapping
func (h *MappingsHandler) UpsertEntityType(w http.ResponseWriter, r *http.Request) {
	var req store.EntityTypeMapping
	if !decode(w, r, &req) {
		return
	}
	if err := h.Store.UpsertEntityTypeMapping(r.Context(), req); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// GetGroups returns the column groups of a year
func (h *MappingsHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	def, err := h.Store.Groups(r.Context(), year)
	if err != nil {
		writeFailure(w, fmt.Errorf("groups for %d: %w", year, err))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// PutGroups replaces the column groups of a year
func (h *MappingsHandler) PutGroups(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	var groups []survey.ColumnGroup
	if !decode(w, r, &groups) {
		return
	}
	if err := h.Store.UpsertGroups(r.Context(), store.GroupDefinition{Year: year, Groups: groups}); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func parseYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil || year <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid year")
		return 0, false
	}
	return year, true
}
