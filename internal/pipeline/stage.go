package pipeline

// Stage is one step of a run. Stages run once each, in Stages order.
type Stage string

const (
	StageSplitGroups       Stage = "split_groups"
	StageNormalizeHeaders  Stage = "normalize_headers"
	StageResolveColumns    Stage = "resolve_columns"
	StageValidateEntities  Stage = "validate_entities"
	StageComputeDerived    Stage = "compute_derived"
	StageRegistryMatch     Stage = "registry_match"
	StageDeduplicatePhase1 Stage = "deduplicate_phase1"
	StageDeduplicatePhase2 Stage = "deduplicate_phase2"
	StagePartition         Stage = "partition"
	StageDone              Stage = "done"
)

// Stages is the fixed stage order
var Stages = []Stage{
	StageSplitGroups,
	StageNormalizeHeaders,
	StageResolveColumns,
	StageValidateEntities,
	StageComputeDerived,
	StageRegistryMatch,
	StageDeduplicatePhase1,
	StageDeduplicatePhase2,
	StagePartition,
	StageDone,
}

// StageError wraps the error that stopped a run
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }
