package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"saldo/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves a single values.get response.
func fakeSheets(t *testing.T, status int, values [][]interface{}) (*httptest.Server, *url.URL) {
	t.Helper()
	seen := &url.URL{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = *r.URL
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"permission denied"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"range":          "'Controle de Gastos'!A1:F10",
			"majorDimension": "ROWS",
			"values":         values,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, "sheet-id", "")
}

func TestClient_Records(t *testing.T) {
	srv, req := fakeSheets(t, http.StatusOK, [][]interface{}{
		{"Data", "Valor", "Categoria", "Tipo (Entrada/Saída)"},
		{"01/03/2024", "R$ 1.000,00", "Salário", "ENTRADA"},
		{},
		{"05/03/2024", "-R$ 200,00", "Investimento"},
	})
	c := newTestClient(t, srv)

	recs, err := c.Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0]["Valor"] != "R$ 1.000,00" || recs[0]["Categoria"] != "Salário" {
		t.Errorf("unexpected first record: %v", recs[0])
	}
	if v, ok := recs[1]["Tipo (Entrada/Saída)"]; !ok || v != "" {
		t.Errorf("short row should be padded, got %q (present=%v)", v, ok)
	}

	if !strings.Contains(req.Path, "/v4/spreadsheets/sheet-id/values/") {
		t.Errorf("unexpected path %q", req.Path)
	}
	if !strings.Contains(req.Path, "Controle de Gastos") {
		t.Errorf("default sheet name not requested: %q", req.Path)
	}
	if got := req.Query().Get("valueRenderOption"); got != "FORMATTED_VALUE" {
		t.Errorf("valueRenderOption = %q", got)
	}
}

func TestClient_RecordsEmptySheet(t *testing.T) {
	srv, _ := fakeSheets(t, http.StatusOK, nil)
	recs, err := newTestClient(t, srv).Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}

func TestClient_RecordsBlankHeaderIsSchemaError(t *testing.T) {
	srv, _ := fakeSheets(t, http.StatusOK, [][]interface{}{
		{"", ""},
		{"01/03/2024", "R$ 1,00"},
	})
	_, err := newTestClient(t, srv).Records(context.Background())
	var se *core.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestClient_RecordsSourceError(t *testing.T) {
	srv, _ := fakeSheets(t, http.StatusForbidden, nil)
	_, err := newTestClient(t, srv).Records(context.Background())
	var se *core.SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
	if se.Source != "sheets:sheet-id/Controle de Gastos" {
		t.Errorf("Source = %q", se.Source)
	}
}

func TestClient_NilServiceIsSourceError(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetName: "y"}
	_, err := c.Records(context.Background())
	var se *core.SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+string(os.PathSeparator)+"missing.json")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuoteSheet(t *testing.T) {
	tests := map[string]string{
		"Controle de Gastos": "'Controle de Gastos'",
		"Joe's":              "'Joe''s'",
	}
	for in, want := range tests {
		if got := quoteSheet(in); got != want {
			t.Errorf("quoteSheet(%q) = %q, want %q", in, got, want)
		}
	}
}
