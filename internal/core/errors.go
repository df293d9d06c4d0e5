package core

import (
	"fmt"
	"strings"
)

// SchemaError reports a source that is not the expected table: required
// columns are missing entirely or the header itself is unusable. It is
// distinct from an empty result.
type SchemaError struct {
	Missing []string
	Reason  string
}

func (e *SchemaError) Error() string {
	switch {
	case len(e.Missing) > 0 && e.Reason != "":
		return fmt.Sprintf("schema error: %s (missing columns: %s)", e.Reason, strings.Join(e.Missing, ", "))
	case len(e.Missing) > 0:
		return fmt.Sprintf("schema error: missing columns: %s", strings.Join(e.Missing, ", "))
	default:
		return "schema error: " + e.Reason
	}
}

// SourceError wraps a failure of the external row source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
