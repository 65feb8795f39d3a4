package validation

// InvalidEntities collects the raw values that failed validation during a
// run. Each batch fills its own accumulator and merges it once at the end.
type InvalidEntities struct {
	values []string
	counts map[string]int
}

// NewInvalidEntities returns an empty accumulator
func NewInvalidEntities() *InvalidEntities {
	return &InvalidEntities{counts: make(map[string]int)}
}

// Add records one invalid value; repeated values keep their first position
func (a *InvalidEntities) Add(value string) {
	if a == nil {
		return
	}
	if a.counts == nil {
		a.counts = make(map[string]int)
	}
	if a.counts[value] == 0 {
		a.values = append(a.values, value)
	}
	a.counts[value]++
}

// Merge folds other into a, keeping a's values first
func (a *InvalidEntities) Merge(other *InvalidEntities) {
	if a == nil || other == nil {
		return
	}
	for _, v := range other.values {
		if a.counts == nil {
			a.counts = make(map[string]int)
		}
		if a.counts[v] == 0 {
			a.values = append(a.values, v)
		}
		a.counts[v] += other.counts[v]
	}
}

// Values returns the distinct invalid values in first-seen order
func (a *InvalidEntities) Values() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.values...)
}

// Count returns how many times value was recorded
func (a *InvalidEntities) Count(value string) int {
	if a == nil {
		return 0
	}
	return a.counts[value]
}

// Len returns the number of distinct invalid values
func (a *InvalidEntities) Len() int {
	if a == nil {
		return 0
	}
	return len(a.values)
}
