package migrations

import (
	"strings"
	"testing"
)

func TestLoadMigrationFilesOrdered(t *testing.T) {
	files, err := loadMigrationFiles()
	if err != nil {
		t.Fatalf("load migration files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(files))
	}
	if files[0].version != "0001" || files[1].version != "0002" {
		t.Fatalf("unexpected version order: %q %q", files[0].version, files[1].version)
	}
	for _, f := range files {
		if len(f.statements) == 0 {
			t.Fatalf("migration %s has no statements", f.name)
		}
	}
}

func TestBuildTasksMigrationMatchesStoreColumns(t *testing.T) {
	files, err := loadMigrationFiles()
	if err != nil {
		t.Fatalf("load migration files: %v", err)
	}

	ddl := strings.Join(files[0].statements, "\n")
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS build_tasks") {
		t.Fatalf("first migration should create build_tasks: %s", files[0].name)
	}
	// 任务存储读写的每一列都必须在迁移里声明。
	for _, column := range []string{
		"id", "target_string", "difficulty", "model_id", "metadata",
		"status", "attempts", "max_retries", "last_error", "error_code",
		"result", "mean_score", "created_at", "updated_at",
	} {
		if !strings.Contains(ddl, column) {
			t.Errorf("build_tasks migration missing column %q", column)
		}
	}
}

func TestBuildRecordsMigrationMatchesRecordColumns(t *testing.T) {
	files, err := loadMigrationFiles()
	if err != nil {
		t.Fatalf("load migration files: %v", err)
	}

	ddl := strings.Join(files[1].statements, "\n")
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS build_records") {
		t.Fatalf("second migration should create build_records: %s", files[1].name)
	}
	for _, column := range []string{
		"task_id", "target_string", "difficulty", "model_id",
		"score_shape_overlap", "score_components", "score_s3", "score_mean",
		"mc_score_shape_overlap", "mc_score_components", "mc_score_s3", "mc_score_mean",
		"raw_output", "commands", "violations", "errors", "created_at",
	} {
		if !strings.Contains(ddl, column) {
			t.Errorf("build_records migration missing column %q", column)
		}
	}
}

func TestSplitSQLStatements(t *testing.T) {
	statements := splitSQLStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a(x);\n   ")
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(statements), statements)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	cases := map[string]string{
		"0001_build_tasks.sql": "0001",
		"0002.sql":             "0002",
		"legacy":               "legacy",
	}
	for name, want := range cases {
		if got := parseMigrationVersion(name); got != want {
			t.Errorf("parseMigrationVersion(%q) = %q, want %q", name, got, want)
		}
	}
}
