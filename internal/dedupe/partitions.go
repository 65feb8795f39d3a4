package dedupe

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fefal-etl/internal/survey"
)

// ErrNotFound is returned when an override names an unknown row or id
var ErrNotFound = errors.New("not found")

// Entry is one row of a partition
type Entry struct {
	Line       int                 `json:"line"`
	RegistryID *int64              `json:"registry_id,omitempty"`
	Reason     survey.Reason       `json:"reason,omitempty"`
	Record     survey.EntityRecord `json:"record"`
	Values     survey.Row          `json:"values"`
}

// sameRow compares the full value set, source line included
func (e Entry) sameRow(o Entry) bool {
	return e.Line == o.Line && e.Values.Equal(o.Values)
}

// Partitions are the three disjoint outputs of a run. Every entry shares
// the Columns header.
type Partitions struct {
	Columns []string `json:"columns"`
	// IDColumn is the header that carries the registry id in Values
	IDColumn   string  `json:"id_column"`
	Final      []Entry `json:"final"`
	Duplicates []Entry `json:"duplicates"`
	Unmatched  []Entry `json:"unmatched"`
}

// Total is |final| + |duplicates| + |unmatched|
func (p *Partitions) Total() int {
	return len(p.Final) + len(p.Duplicates) + len(p.Unmatched)
}

// Canonical returns the final entry holding registryID
func (p *Partitions) Canonical(registryID int64) (Entry, bool) {
	if i := p.finalIndex(registryID); i >= 0 {
		return p.Final[i], true
	}
	return Entry{}, false
}

// Alternates returns the duplicates holding registryID
func (p *Partitions) Alternates(registryID int64) []Entry {
	var out []Entry
	for _, e := range p.Duplicates {
		if e.RegistryID != nil && *e.RegistryID == registryID {
			out = append(out, e)
		}
	}
	return out
}

// Override makes the duplicate at line the canonical row for registryID.
// The new canonical leaves the duplicates, the displaced canonical joins
// them, and duplicates with the same full value set as the new canonical
// are dropped.
func (p *Partitions) Override(registryID int64, line int) error {
	fi := p.finalIndex(registryID)
	if fi < 0 {
		return fmt.Errorf("registry id %d has no canonical row: %w", registryID, ErrNotFound)
	}
	di := -1
	for i, e := range p.Duplicates {
		if e.Line == line && e.RegistryID != nil && *e.RegistryID == registryID {
			di = i
			break
		}
	}
	if di < 0 {
		return fmt.Errorf("line %d is not a duplicate of registry id %d: %w", line, registryID, ErrNotFound)
	}

	promoted := p.Duplicates[di]
	promoted.Reason = ""
	displaced := p.Final[fi]
	displaced.Reason = survey.ReasonDuplicate

	p.Duplicates = append(p.Duplicates[:di:di], p.Duplicates[di+1:]...)
	p.Final[fi] = promoted
	p.Duplicates = append(p.Duplicates, displaced)

	kept := p.Duplicates[:0]
	for _, e := range p.Duplicates {
		if !e.sameRow(promoted) {
			kept = append(kept, e)
		}
	}
	p.Duplicates = kept

	p.sort()
	return nil
}

// Resolve assigns registryID to the unmatched row at line and moves it to
// the final partition, or to the duplicates when the id already has a
// canonical row
func (p *Partitions) Resolve(line int, registryID int64) error {
	ui := -1
	for i, e := range p.Unmatched {
		if e.Line == line {
			ui = i
			break
		}
	}
	if ui < 0 {
		return fmt.Errorf("line %d is not unmatched: %w", line, ErrNotFound)
	}

	e := p.Unmatched[ui]
	p.Unmatched = append(p.Unmatched[:ui:ui], p.Unmatched[ui+1:]...)

	id := registryID
	e.RegistryID = &id
	e.Record.RegistryID = &id
	e.Record.Status = survey.StatusValid
	e.Values = e.Values.Clone()
	for i, c := range p.Columns {
		if c == p.IDColumn && i < len(e.Values) {
			e.Values[i] = survey.Int(id)
		}
	}

	if p.finalIndex(registryID) >= 0 {
		e.Reason = survey.ReasonDuplicate
		p.Duplicates = append(p.Duplicates, e)
	} else {
		e.Reason = ""
		p.Final = append(p.Final, e)
	}

	p.sort()
	return nil
}

func (p *Partitions) finalIndex(registryID int64) int {
	for i, e := range p.Final {
		if e.RegistryID != nil && *e.RegistryID == registryID {
			return i
		}
	}
	return -1
}

func (p *Partitions) sort() {
	for _, part := range [][]Entry{p.Final, p.Duplicates, p.Unmatched} {
		sort.SliceStable(part, func(i, j int) bool { return part[i].Line < part[j].Line })
	}
}
