//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"saldo/internal/ledger"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ReadLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" &&
		os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewFromEnv(ctx)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	recs, err := client.Records(ctx)
	if err != nil {
		t.Fatalf("Failed to read worksheet: %v", err)
	}
	t.Logf("Read %d rows from %s", len(recs), client.Describe())

	l, err := ledger.NewNormalizer(ledger.DefaultConfig(), nil).Normalize(recs)
	if err != nil {
		t.Fatalf("Failed to normalize worksheet: %v", err)
	}
	t.Logf("Ledger: %d transactions, %d dropped, %d coerced amounts",
		len(l.Transactions), l.DroppedRows, l.CoercedAmounts)

	for i := 1; i < len(l.Transactions); i++ {
		if l.Transactions[i].Date.Before(l.Transactions[i-1].Date.Time) {
			t.Fatalf("transactions not sorted at %d", i)
		}
	}
}
