package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/fefal-etl/internal/audit"
	"github.com/fefal-etl/internal/columns"
	"github.com/fefal-etl/internal/dedupe"
	"github.com/fefal-etl/internal/pipeline"
	"github.com/fefal-etl/internal/registry"
	"github.com/fefal-etl/internal/sheet"
	"github.com/fefal-etl/internal/survey"
)

// InputLoader fetches the registry, mappings and reference lists of a run
type InputLoader interface {
	Load(ctx context.Context) (*pipeline.Inputs, error)
}

// RunsHandler handles survey runs and their review
type RunsHandler struct {
	Pipeline    *pipeline.Pipeline
	Loader      InputLoader
	Sessions    *Sessions
	Audit       audit.Recorder
	ReadOptions sheet.ReadOptions
	Config      *Config
	Log         *zerolog.Logger
}

type runView struct {
	*Session
	Summary pipeline.Summary `json:"summary"`
}

type runDetail struct {
	runView
	Layout     []pipeline.GroupLayout `json:"layout"`
	Resolution *columns.Resolution    `json:"resolution"`
	Collisions []registry.Collision   `json:"collisions,omitempty"`
}

type partitionView struct {
	Name    string         `json:"name"`
	Columns []string       `json:"columns"`
	Entries []dedupe.Entry `json:"entries"`
}

type removedView struct {
	Name    string                 `json:"name"`
	Columns []string               `json:"columns"`
	Entries []survey.RemovalRecord `json:"entries"`
}

type overrideRequest struct {
	RegistryID int64  `json:"registry_id"`
	Line       int    `json:"line"`
	Note       string `json:"note,omitempty"`
}

// CreateRun runs the pipeline over an uploaded .xlsx or .csv file
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if h.Config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing upload field 'file'")
		return
	}
	defer file.Close()

	var table *survey.Table
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xlsm":
		table, err = sheet.ReadXLSX(file, header.Filename, h.ReadOptions)
	case ".csv":
		table, err = sheet.ReadCSV(file, header.Filename, h.ReadOptions)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file type: %s", filepath.Ext(header.Filename)))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, err := h.Loader.Load(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.Pipeline.Run(table, in)
	if err != nil {
		h.Log.Warn().Err(err).Str("file", header.Filename).Msg("run failed")
		writeFailure(w, err)
		return
	}

	sess := h.Sessions.Add(header.Filename, res)
	h.Log.Info().Str("run", sess.ID.String()).Str("file", header.Filename).
		Int("final", len(res.Partitions.Final)).Msg("run stored")
	writeJSON(w, http.StatusCreated, runView{Session: sess, Summary: res.Summary()})
}

// ListRuns lists the stored runs with their summaries
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	sessions := h.Sessions.List()
	out := make([]runView, 0, len(sessions))
	for _, sess := range sessions {
		sess.View(func(res *pipeline.Result) error {
			out = append(out, runView{Session: sess, Summary: res.Summary()})
			return nil
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRun returns a run with its column resolution
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var detail runDetail
	sess.View(func(res *pipeline.Result) error {
		detail = runDetail{
			runView:    runView{Session: sess, Summary: res.Summary()},
			Layout:     append([]pipeline.GroupLayout(nil), res.Layout...),
			Resolution: res.Resolution,
			Collisions: append([]registry.Collision(nil), res.Collisions...),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, detail)
}

// GetPartition returns final, duplicates, unmatched or removed rows
func (h *RunsHandler) GetPartition(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["partition"]

	var body interface{}
	sess.View(func(res *pipeline.Result) error {
		// Reviews reorder the partitions in place, so the body holds copies
		// that stay valid once the lock is released.
		p := res.Partitions
		switch name {
		case "final":
			body = partitionView{Name: name, Columns: p.Columns, Entries: copyEntries(p.Final)}
		case "duplicates":
			body = partitionView{Name: name, Columns: p.Columns, Entries: copyEntries(p.Duplicates)}
		case "unmatched":
			body = partitionView{Name: name, Columns: p.Columns, Entries: copyEntries(p.Unmatched)}
		case "removed":
			body = removedView{Name: name, Columns: res.RemovedColumns, Entries: append([]survey.RemovalRecord{}, res.Removed...)}
		}
		return nil
	})
	if body == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown partition: %s", name))
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func copyEntries(entries []dedupe.Entry) []dedupe.Entry {
	return append([]dedupe.Entry{}, entries...)
}

// Override promotes a duplicate to canonical for its registry id
func (h *RunsHandler) Override(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, audit.ActionOverride, func(p *dedupe.Partitions, req overrideRequest) (*int, error) {
		prev, ok := p.Canonical(req.RegistryID)
		if err := p.Override(req.RegistryID, req.Line); err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return &prev.Line, nil
	})
}

// Resolve assigns a registry id to an unmatched row
func (h *RunsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, audit.ActionResolve, func(p *dedupe.Partitions, req overrideRequest) (*int, error) {
		return nil, p.Resolve(req.Line, req.RegistryID)
	})
}

// review applies one manual change under the session lock and records it
func (h *RunsHandler) review(w http.ResponseWriter, r *http.Request, action string, apply func(*dedupe.Partitions, overrideRequest) (*int, error)) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Line < 2 || req.RegistryID <= 0 {
		writeError(w, http.StatusBadRequest, "line and registry_id are required")
		return
	}

	var summary pipeline.Summary
	var displaced *int
	err := sess.View(func(res *pipeline.Result) error {
		var err error
		if displaced, err = apply(res.Partitions, req); err != nil {
			return err
		}
		summary = res.Summary()
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	h.Log.Info().Str("run", sess.ID.String()).Str("action", action).Int("line", req.Line).Int64("registry_id", req.RegistryID).Msg("manual review applied")
	if h.Audit != nil {
		d := audit.Decision{
			RunID:         sess.ID.String(),
			Year:          summary.Year,
			Action:        action,
			Line:          req.Line,
			RegistryID:    req.RegistryID,
			DisplacedLine: displaced,
			Reviewer:      r.Header.Get("X-Reviewer"),
			Note:          req.Note,
		}
		if err := h.Audit.Record(r.Context(), d); err != nil {
			h.Log.Error().Err(err).Str("run", sess.ID.String()).Msg("failed to record review decision")
		}
	}
	writeJSON(w, http.StatusOK, runView{Session: sess, Summary: summary})
}

// ListDecisions returns the review trail of a run
func (h *RunsHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	decisions := []audit.Decision{}
	if h.Audit != nil {
		found, err := h.Audit.ForRun(r.Context(), sess.ID.String())
		if err != nil {
			writeFailure(w, err)
			return
		}
		decisions = append(decisions, found...)
	}
	writeJSON(w, http.StatusOK, decisions)
}

// DownloadWorkbook streams the result workbook
func (h *RunsHandler) DownloadWorkbook(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var wb sheet.Workbook
	var year int
	sess.View(func(res *pipeline.Result) error {
		wb = res.Workbook()
		year = res.Year
		return nil
	})
	f, err := wb.Build()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=inquerito_%d_limpo.xlsx", year))
	if err := f.Write(w); err != nil {
		h.Log.Error().Err(err).Str("run", sess.ID.String()).Msg("workbook write failed")
	}
}

func (h *RunsHandler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run ID")
		return nil, false
	}
	sess, ok := h.Sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Run not found")
		return nil, false
	}
	return sess, true
}
