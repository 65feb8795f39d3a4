package columns

import (
	"fmt"
	"strings"
)

// ColumnResolutionError lists critical canonical columns that no header
// resolved to
type ColumnResolutionError struct {
	Missing []string
}

func (e *ColumnResolutionError) Error() string {
	return fmt.Sprintf("missing critical columns: %s", strings.Join(e.Missing, ", "))
}
