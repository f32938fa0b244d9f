package mariadb

import "testing"

func TestSplitStatements(t *testing.T) {
	sql := "CREATE TABLE a (x INT);\n\n-- comment\nCREATE TABLE b (y INT);\n"
	got := splitStatements(sql)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x INT)" {
		t.Errorf("unexpected first statement %q", got[0])
	}
	if got[1] != "-- comment\nCREATE TABLE b (y INT)" {
		t.Errorf("unexpected second statement %q", got[1])
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("expected at least 2 migrations, got %d", len(entries))
	}
}
