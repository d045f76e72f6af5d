package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"000001_market_schema.up.sql", "000001"},
		{"000002_add_index.down.sql", "000002"},
		{"nounderscore.sql", "nounderscore.sql"},
	}
	for _, tt := range tests {
		if got := extractVersion(tt.filename); got != tt.want {
			t.Errorf("extractVersion(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestListMigrationFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql", "notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	m := NewMigrator(nil, dir, zerolog.Nop())
	files, err := m.listMigrationFiles(".up.sql")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"000001_a.up.sql", "000002_b.up.sql"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}
