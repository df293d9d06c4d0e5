// Package sheets defines the ports through which the ledger reads its raw
// rows. Adapters live in the subpackages.
package sheets

import (
	"context"

	"saldo/internal/core"
)

// Ports for inbound row sources.
type (
	// RowSource returns the current rows of the ledger table, header names
	// as record keys and cell text exactly as delivered. Fetch failures are
	// reported as *core.SourceError, a source that is not a table as
	// *core.SchemaError.
	RowSource interface {
		Records(ctx context.Context) ([]core.RawRecord, error)
	}

	// Describer names a source in logs and status output.
	Describer interface {
		Describe() string
	}
)

// Describe returns src's description, or "unknown" when it has none.
func Describe(src RowSource) string {
	if d, ok := src.(Describer); ok {
		return d.Describe()
	}
	return "unknown"
}
