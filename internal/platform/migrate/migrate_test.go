package migrate

import (
	"testing"
	"testing/fstest"

	"cityfps-server/migrations"
)

func TestPendingSortsSQLFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.sql":   {Data: []byte("SELECT 2;")},
		"0001_a.sql":   {Data: []byte("SELECT 1;")},
		"README.md":    {Data: []byte("notes")},
		"old/0000.sql": {Data: []byte("SELECT 0;")},
	}
	names, err := Pending(fsys)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_a.sql" || names[1] != "0002_b.sql" {
		t.Fatalf("unexpected order: %v", names)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := Pending(migrations.FS)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_player_sessions.sql" {
		t.Fatalf("expected player_sessions migration first, got %v", names)
	}
}
