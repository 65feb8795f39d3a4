package survey

// Status is the entity validation outcome
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// Reason tags why a row left the final partition
type Reason string

const (
	ReasonInvalidEntity Reason = "invalid-entity"
	ReasonNullEntity    Reason = "null-entity"
	ReasonDuplicate     Reason = "duplicate"
	ReasonUnmatched     Reason = "unmatched"
)

// Label returns the Portuguese text written to review sheets
func (r Reason) Label() string {
	switch r {
	case ReasonInvalidEntity:
		return "ENTIDADE INVALIDA"
	case ReasonNullEntity:
		return "VALOR DE ENTIDADE NULO"
	case ReasonDuplicate:
		return "DUPLICADO"
	case ReasonUnmatched:
		return "SEM CORRESPONDENCIA NO REGISTO"
	default:
		return string(r)
	}
}

// EntityRecord is the resolved identity of one response
type EntityRecord struct {
	Line            int      `json:"line"`
	RawName         string   `json:"raw_name"`
	Name            string   `json:"name"`
	NameNorm        string   `json:"name_norm"`
	Type            string   `json:"type"`
	RegistryID      *int64   `json:"registry_id,omitempty"`
	Status          Status   `json:"status"`
	Completeness    *float64 `json:"completeness,omitempty"`
	DurationSeconds *int64   `json:"duration_seconds,omitempty"`
}

// Matched reports whether a registry id was assigned
func (e EntityRecord) Matched() bool { return e.RegistryID != nil }

// RemovalRecord is a row routed out of the final partition
type RemovalRecord struct {
	Line   int    `json:"line"`
	Values Row    `json:"values"`
	Reason Reason `json:"reason"`
}
