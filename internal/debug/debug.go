package debug

import (
	"fmt"
	"time"

	"github.com/fefal-etl/internal/logging"
)

// DebugHeader marks the start of a traced call
func DebugHeader(enabled bool) {
	if enabled {
		logging.Default().Debug().Msg("=== DEBUG START ===")
	}
}

// DebugFooter marks the end of a traced call
func DebugFooter(enabled bool) {
	if enabled {
		logging.Default().Debug().Msg("=== DEBUG END ===")
	}
}

// DebugOutput logs a formatted trace line when enabled
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if enabled {
		logging.Default().Debug().Msg(fmt.Sprintf(format, args...))
	}
}

// DebugTiming logs the duration of operation when the returned func runs
func DebugTiming(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	logging.Default().Debug().Str("operation", operation).Msg("starting")

	return func() {
		logging.Default().Debug().
			Str("operation", operation).
			Dur("took", time.Since(start)).
			Msg("completed")
	}
}
