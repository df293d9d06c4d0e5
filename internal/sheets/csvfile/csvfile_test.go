package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"saldo/internal/core"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		comma rune
		want  []core.RawRecord
	}{
		{
			name:  "comma with quoted amounts",
			input: "Data,Valor,Categoria\n01/03/2024,\"R$ 1.000,00\",Salário\n05/03/2024,\"-R$ 200,00\",Investimento\n",
			want: []core.RawRecord{
				{"Data": "01/03/2024", "Valor": "R$ 1.000,00", "Categoria": "Salário"},
				{"Data": "05/03/2024", "Valor": "-R$ 200,00", "Categoria": "Investimento"},
			},
		},
		{
			name:  "semicolon sniffed",
			input: "Data;Valor;Categoria\n01/03/2024;R$ 1.000,00;Salário\n",
			want: []core.RawRecord{
				{"Data": "01/03/2024", "Valor": "R$ 1.000,00", "Categoria": "Salário"},
			},
		},
		{
			name:  "explicit delimiter",
			input: "Data|Valor\n01/03/2024|R$ 1,00\n",
			comma: '|',
			want:  []core.RawRecord{{"Data": "01/03/2024", "Valor": "R$ 1,00"}},
		},
		{
			name:  "bom short rows and blank lines",
			input: "\ufeffData,Valor,Categoria\n01/03/2024,\"R$ 1,00\"\n,,\n",
			want:  []core.RawRecord{{"Data": "01/03/2024", "Valor": "R$ 1,00", "Categoria": ""}},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input), tt.comma)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if len(got[i]) != len(tt.want[i]) {
					t.Errorf("record %d = %v, want %v", i, got[i], tt.want[i])
					continue
				}
				for k, v := range tt.want[i] {
					if got[i][k] != v {
						t.Errorf("record %d[%q] = %q, want %q", i, k, got[i][k], v)
					}
				}
			}
		})
	}
}

func TestParseDuplicateHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("Data,Data\n1,2\n"), 0)
	var se *core.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestSourceRereadsFile(t *testing.T) {
	path := writeFile(t, "Data,Valor,Categoria\n01/03/2024,\"R$ 1,00\",A\n")
	src := New(path, 0)

	recs, err := src.Records(context.Background())
	if err != nil || len(recs) != 1 {
		t.Fatalf("first read: %v err=%v", recs, err)
	}

	if err := os.WriteFile(path, []byte("Data,Valor,Categoria\n01/03/2024,\"R$ 1,00\",A\n02/03/2024,\"R$ 2,00\",B\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	recs, err = src.Records(context.Background())
	if err != nil || len(recs) != 2 {
		t.Fatalf("second read: %v err=%v", recs, err)
	}
}

func TestSourceMissingFile(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "missing.csv"), 0)
	_, err := src.Records(context.Background())

	var se *core.SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped ErrNotExist, got %v", err)
	}
	if !strings.HasPrefix(src.Describe(), "csv:") {
		t.Errorf("Describe() = %q", src.Describe())
	}
}

func TestSourceCancelledContext(t *testing.T) {
	path := writeFile(t, "Data\n01/03/2024\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(path, 0).Records(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
