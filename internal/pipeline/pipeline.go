// Package pipeline sequences the cleaning stages over one survey
// spreadsheet and produces the final, duplicate and unmatched partitions
package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fefal-etl/internal/columns"
	"github.com/fefal-etl/internal/config"
	"github.com/fefal-etl/internal/debug"
	"github.com/fefal-etl/internal/dedupe"
	"github.com/fefal-etl/internal/derive"
	"github.com/fefal-etl/internal/logging"
	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/registry"
	"github.com/fefal-etl/internal/store"
	"github.com/fefal-etl/internal/survey"
	"github.com/fefal-etl/internal/validation"
)

// Pipeline runs the cleaning stages with one configuration
type Pipeline struct {
	cfg        *config.Config
	prefixes   *normalize.Prefixes
	abbrev     *normalize.AbbrevRules
	sentinels  normalize.Sentinels
	log        *zerolog.Logger
	localDebug bool
}

// New validates cfg and compiles its patterns
func New(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prefixes, err := normalize.CompilePrefixes(cfg.Prefixes)
	if err != nil {
		return nil, &survey.ConfigurationError{Field: "prefixes", Reason: err.Error()}
	}
	abbrev, err := normalize.NewAbbrevRules(cfg.Abbreviations)
	if err != nil {
		return nil, &survey.ConfigurationError{Field: "abbreviations", Reason: err.Error()}
	}
	return &Pipeline{
		cfg:       cfg,
		prefixes:  prefixes,
		abbrev:    abbrev,
		sentinels: cfg.NullSentinels(),
		log:       logging.Default(),
	}, nil
}

// SetLogger replaces the default logger
func (p *Pipeline) SetLogger(l *zerolog.Logger) { p.log = l }

// SetDebug enables per-row tracing in the entity validator
func (p *Pipeline) SetDebug(enabled bool) { p.localDebug = enabled }

// run is the state of one Run call
type run struct {
	p  *Pipeline
	in *Inputs

	sheet      *survey.Table
	ds         *survey.Dataset
	learned    map[string]string
	resolution *columns.Resolution
	invalid    *validation.InvalidEntities
	records    []survey.EntityRecord
	removed    []survey.RemovalRecord
	removedCol []string
	collisions []registry.Collision
	warnings   []string

	canonical  []int
	duplicates []int
	partitions *dedupe.Partitions
	layout     []GroupLayout
}

// Run cleans sheet against the given input snapshots. sheet and in are not
// modified. Any stage failure aborts the run and no result is returned.
func (p *Pipeline) Run(sheet *survey.Table, in *Inputs) (*Result, error) {
	debug.DebugHeader(p.localDebug)
	defer debug.DebugFooter(p.localDebug)
	started := time.Now()

	if in == nil {
		in = &Inputs{}
	}
	r := &run{
		p:       p,
		in:      in,
		sheet:   sheet.Clone(),
		learned: store.RenameMap(in.Renames),
		invalid: validation.NewInvalidEntities(),
	}

	steps := []struct {
		stage Stage
		fn    func() error
	}{
		{StageSplitGroups, r.splitGroups},
		{StageNormalizeHeaders, r.normalizeHeaders},
		{StageResolveColumns, r.resolveColumns},
		{StageValidateEntities, r.validateEntities},
		{StageComputeDerived, r.computeDerived},
		{StageRegistryMatch, r.registryMatch},
		{StageDeduplicatePhase1, r.deduplicateExact},
		{StageDeduplicatePhase2, r.deduplicateByID},
		{StagePartition, r.partition},
	}

	for _, s := range steps {
		done := debug.DebugTiming(p.localDebug, string(s.stage))
		if err := s.fn(); err != nil {
			p.log.Error().Err(err).Str("stage", string(s.stage)).Msg("run aborted")
			return nil, &StageError{Stage: s.stage, Err: err}
		}
		done()
		p.log.Debug().Str("stage", string(s.stage)).Int("rows", r.rows()).Msg("stage complete")
	}

	res := r.result()
	p.log.Info().
		Str("stage", string(StageDone)).
		Int("rows", res.InputRows).
		Int("final", len(res.Partitions.Final)).
		Int("duplicates", len(res.Partitions.Duplicates)).
		Int("unmatched", len(res.Partitions.Unmatched)).
		Int("removed", len(res.Removed)).
		Dur("took", time.Since(started)).
		Msg("run complete")
	return res, nil
}

func (r *run) rows() int {
	if r.ds == nil {
		return r.sheet.Len()
	}
	return r.ds.Len()
}

func (r *run) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	r.p.log.Warn().Msg(msg)
}

func (r *run) identification() *survey.Table {
	return r.ds.Group(survey.GroupIdentification)
}

func (r *run) splitGroups() error {
	ds, err := survey.SplitGroups(r.sheet, r.in.Groups)
	if err != nil {
		return err
	}
	if _, err := ds.MustGroup(survey.GroupIdentification); err != nil {
		return err
	}
	r.ds = ds
	return nil
}

// normalizeHeaders canonicalizes every header and applies learned renames
// outside the identification group, whose renames go through the resolver
func (r *run) normalizeHeaders() error {
	for _, t := range r.ds.Groups {
		seen := make(map[string]bool, len(t.Columns))
		for i, h := range t.Columns {
			name := normalize.Text(h)
			if name == "" {
				name = fmt.Sprintf("coluna_%d", i+1)
			}
			if seen[name] {
				unique := name
				for n := 2; seen[unique]; n++ {
					unique = fmt.Sprintf("%s_%d", name, n)
				}
				r.warn("group %s: header %q repeats, renamed to %q", t.Name, h, unique)
				name = unique
			}
			seen[name] = true
			t.Columns[i] = name
		}
		if t.Name != survey.GroupIdentification {
			for from, to := range columns.ApplyLearned(t, r.learned) {
				r.p.log.Debug().Str("group", t.Name).Str("from", from).Str("to", to).Msg("learned rename")
			}
		}
	}
	return nil
}

func (r *run) resolveColumns() error {
	cfg := r.p.cfg
	id := r.identification()

	res, err := columns.Resolve(id.Columns, cfg.Schema, r.learned)
	r.resolution = res
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		r.warn("%s", w)
	}
	res.Apply(id)

	r.mapEntityTypes(id)
	r.removedCol = r.ds.Columns()

	name := cfg.Identity.Name
	r.remove(survey.ReasonNullEntity, func(i int) bool {
		return !r.p.sentinels.IsNull(id.Value(i, name))
	})
	return nil
}

// mapEntityTypes rewrites survey type labels to registry labels. Stored
// mappings win over the config file.
func (r *run) mapEntityTypes(id *survey.Table) {
	col := r.p.cfg.Identity.Type
	if !id.Has(col) {
		values := make([]survey.Cell, id.Len())
		for i := range values {
			values[i] = survey.Text(r.p.cfg.Identity.DefaultType)
		}
		id.AppendColumn(col, values)
	}

	labels := make(map[string]string, len(r.p.cfg.EntityTypes)+len(r.in.EntityTypes))
	for from, to := range r.p.cfg.EntityTypes {
		labels[normalize.Text(from)] = to
	}
	for from, to := range store.TypeMap(r.in.EntityTypes) {
		labels[from] = to
	}
	if len(labels) == 0 {
		return
	}
	for i := range id.Rows {
		if to, ok := labels[normalize.Value(id.Value(i, col))]; ok {
			id.Set(i, col, survey.Text(to))
		}
	}
}

// remove drops the rows keep rejects, recording them with reason, and
// returns the kept row indices
func (r *run) remove(reason survey.Reason, keep func(i int) bool) []int {
	keepRow := make([]bool, r.ds.Len())
	var kept []int
	for i := range keepRow {
		keepRow[i] = keep(i)
		if keepRow[i] {
			kept = append(kept, i)
			continue
		}
		r.removed = append(r.removed, survey.RemovalRecord{
			Line:   r.ds.Lines[i],
			Values: r.ds.Row(i),
			Reason: reason,
		})
	}
	r.ds.Filter(func(i int) bool { return keepRow[i] })
	return kept
}

func (r *run) validateEntities() error {
	cfg := r.p.cfg
	id := r.identification()
	nameCol, typeCol := cfg.Identity.Name, cfg.Identity.Type

	v := validation.NewEntityValidator(cfg.Validation, r.in.Concelhos, r.in.Freguesias, r.p.prefixes, r.p.abbrev)
	v.SetDebug(r.p.localDebug)
	outcomes, acc := v.ValidateTable(id, nameCol, typeCol)
	r.invalid.Merge(acc)

	records := make([]survey.EntityRecord, len(outcomes))
	for i, o := range outcomes {
		records[i] = survey.EntityRecord{
			Line:     r.ds.Lines[i],
			RawName:  id.Value(i, nameCol).AsText(),
			Name:     o.Value,
			NameNorm: r.p.prefixes.Strip(o.Value),
			Type:     normalize.Text(id.Value(i, typeCol).AsText()),
			Status:   o.Status,
		}
		if o.Valid() {
			id.Set(i, nameCol, survey.Text(o.Value))
		}
	}

	kept := r.remove(survey.ReasonInvalidEntity, func(i int) bool { return outcomes[i].Valid() })
	r.records = make([]survey.EntityRecord, len(kept))
	for j, i := range kept {
		r.records[j] = records[i]
	}
	if n := r.invalid.Len(); n > 0 {
		r.p.log.Info().Int("distinct", n).Msg("invalid entity values")
	}
	return nil
}

func (r *run) computeDerived() error {
	cfg := r.p.cfg
	id := r.identification()

	r.scaleCompleteness(id)

	d := &derive.Deriver{Sentinels: r.p.sentinels, Layouts: cfg.TimeLayouts}
	skipped, err := d.Apply(r.ds, cfg.Derived)
	if err != nil {
		return err
	}
	for _, name := range skipped {
		r.p.log.Debug().Str("column", name).Msg("derived column skipped")
	}

	for _, tr := range cfg.Transforms {
		if err := tr.Apply(r.ds); err != nil {
			return err
		}
	}

	r.additionalFields(id)

	if cfg.PruneEmpty {
		for _, t := range r.ds.Groups {
			if t.Name == survey.GroupIdentification {
				continue
			}
			if dropped := derive.PruneEmpty(t, r.p.sentinels); len(dropped) > 0 {
				r.p.log.Info().Str("group", t.Name).Strs("columns", dropped).Msg("empty columns dropped")
			}
		}
	}

	for i := range r.records {
		if f, ok := id.Value(i, cfg.Identity.Completeness).AsFloat(); ok {
			v := f
			r.records[i].Completeness = &v
		}
		if n, ok := id.Value(i, cfg.Identity.Duration).AsInt(); ok {
			v := n
			r.records[i].DurationSeconds = &v
		}
	}
	return nil
}

// scaleCompleteness rescales the completion percentage to 0-100 against
// the batch maximum. Negative and non-numeric values become empty.
func (r *run) scaleCompleteness(id *survey.Table) {
	col := r.p.cfg.Identity.Completeness
	if !id.Has(col) {
		return
	}
	values := id.Column(col)
	max := math.Inf(-1)
	for i, c := range values {
		f, ok := c.AsFloat()
		if !ok || f < 0 {
			values[i] = survey.Empty()
			continue
		}
		values[i] = survey.Number(f)
		if f > max {
			max = f
		}
	}
	if max > 0 {
		for i, c := range values {
			if f, ok := c.AsFloat(); ok {
				values[i] = survey.Int(int64(math.RoundToEven(f / max * 100)))
			}
		}
	}
	id.InsertColumn(0, col, values)
}

// additionalFields adds the survey year and responsible name and fills
// the submission date from the end date
func (r *run) additionalFields(id *survey.Table) {
	cfg := r.p.cfg
	if cfg.Year > 0 {
		values := make([]survey.Cell, id.Len())
		for i := range values {
			values[i] = survey.Int(int64(cfg.Year))
		}
		derive.Place(id, derive.Spec{Name: cfg.Identity.Year, Anchor: derive.AnchorLast, Offset: 1}, values)
	}

	if !id.Has(cfg.Identity.Responsible) {
		id.AppendColumn(cfg.Identity.Responsible, make([]survey.Cell, id.Len()))
	}

	sub, end := cfg.Identity.Submitted, cfg.Identity.End
	if !id.Has(sub) {
		return
	}
	for i := range id.Rows {
		if !r.p.sentinels.IsNull(id.Value(i, sub)) {
			continue
		}
		fill := survey.Empty()
		if id.Has(end) && !r.p.sentinels.IsNull(id.Value(i, end)) {
			fill = id.Value(i, end)
		}
		id.Set(i, sub, fill)
	}
}

func (r *run) registryMatch() error {
	ix := registry.NewIndex(r.in.Registry, r.p.prefixes, r.p.abbrev)
	r.collisions = ix.Collisions()

	values := make([]survey.Cell, len(r.records))
	matched := 0
	for i := range r.records {
		rec := &r.records[i]
		id, ok := ix.Match(rec.NameNorm, rec.Type)
		if !ok {
			continue
		}
		rec.RegistryID = &id
		values[i] = survey.Int(id)
		matched++
	}
	r.identification().InsertColumn(0, r.p.cfg.Identity.ID, values)

	r.p.log.Info().Int("matched", matched).Int("unmatched", len(r.records)-matched).Int("registry", ix.Len()).Msg("registry match")
	return nil
}

func (r *run) deduplicateExact() error {
	rows := make([]survey.Row, r.ds.Len())
	for i := range rows {
		rows[i] = r.ds.Row(i)
	}
	res := dedupe.ExactText(r.records, rows, r.p.sentinels)
	r.canonical = res.Canonical
	r.duplicates = append(r.duplicates, res.Duplicates...)
	return nil
}

func (r *run) deduplicateByID() error {
	sub := make([]survey.EntityRecord, len(r.canonical))
	for j, i := range r.canonical {
		sub[j] = r.records[i]
	}
	res := dedupe.ByRegistryID(sub)

	canonical := make([]int, len(res.Canonical))
	for k, j := range res.Canonical {
		canonical[k] = r.canonical[j]
	}
	for _, j := range res.Duplicates {
		r.duplicates = append(r.duplicates, r.canonical[j])
	}
	sort.Ints(canonical)
	sort.Ints(r.duplicates)
	r.canonical = canonical
	return nil
}

func (r *run) partition() error {
	cfg := r.p.cfg
	for _, t := range r.ds.Groups {
		t.DropColumns(cfg.HelperColumns...)
		r.layout = append(r.layout, GroupLayout{Name: t.Name, Columns: append([]string(nil), t.Columns...)})
	}

	p := &dedupe.Partitions{Columns: r.ds.Columns(), IDColumn: cfg.Identity.ID}
	entry := func(i int, reason survey.Reason) dedupe.Entry {
		return dedupe.Entry{
			Line:       r.ds.Lines[i],
			RegistryID: r.records[i].RegistryID,
			Reason:     reason,
			Record:     r.records[i],
			Values:     r.ds.Row(i),
		}
	}
	for _, i := range r.canonical {
		if r.records[i].Matched() {
			p.Final = append(p.Final, entry(i, ""))
		} else {
			p.Unmatched = append(p.Unmatched, entry(i, survey.ReasonUnmatched))
		}
	}
	for _, i := range r.duplicates {
		p.Duplicates = append(p.Duplicates, entry(i, survey.ReasonDuplicate))
	}
	r.partitions = p
	return nil
}

func (r *run) result() *Result {
	return &Result{
		Year:           r.p.cfg.Year,
		InputRows:      r.sheet.Len(),
		Layout:         r.layout,
		Partitions:     r.partitions,
		Removed:        r.removed,
		RemovedColumns: r.removedCol,
		Invalid:        r.invalid,
		Resolution:     r.resolution,
		Collisions:     r.collisions,
		Warnings:       r.warnings,
	}
}
