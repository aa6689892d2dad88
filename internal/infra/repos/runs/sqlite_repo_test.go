package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmrzaf/tablefill/internal/domain"
)

func TestInitCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "runs.db")
	repo := NewSQLiteRepository(dbPath)

	if err := repo.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if repo.DB() == nil {
		t.Fatal("expected db handle to be initialized")
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	repo := NewSQLiteRepository(filepath.Join(t.TempDir(), "runs.db"))
	if err := repo.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	started := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	run := &domain.Run{
		Table:         "dbo.Addresses",
		SchemaSource:  "create_table_addresses.sql",
		SchemaHash:    "abc123",
		TargetID:      "local",
		TargetName:    "LOCAL",
		TargetKind:    domain.TargetKindSQLite,
		Seed:          42,
		Locale:        "au",
		RowsRequested: 10,
		Status:        domain.RunStatusRunning,
		StartedAt:     started,
	}
	if err := repo.Create(run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" {
		t.Fatal("expected generated id")
	}

	older := &domain.Run{
		Table: "Orders", SchemaSource: "catalog", SchemaHash: "def", TargetID: "local",
		TargetName: "LOCAL", TargetKind: domain.TargetKindSQLite, Locale: "us",
		RowsRequested: 5, Status: domain.RunStatusFailed, StartedAt: started.Add(-time.Hour),
		Error: "boom",
	}
	if err := repo.Create(older); err != nil {
		t.Fatal(err)
	}

	done := started.Add(2 * time.Second)
	stats, _ := json.Marshal(domain.RunStats{RowsGenerated: 10, RowsInserted: 10, Batches: 1})
	run.Status = domain.RunStatusSuccess
	run.CompletedAt = &done
	run.Stats = stats
	if err := repo.Update(run); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.RunStatusSuccess || got.Table != "dbo.Addresses" || got.Seed != 42 {
		t.Fatalf("unexpected run: %#v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("unexpected completed_at: %v", got.CompletedAt)
	}
	var gotStats domain.RunStats
	if err := json.Unmarshal(got.Stats, &gotStats); err != nil {
		t.Fatal(err)
	}
	if gotStats.RowsInserted != 10 {
		t.Fatalf("unexpected stats: %#v", gotStats)
	}

	all, err := repo.List(0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != run.ID {
		t.Fatalf("expected newest run first, got %#v", all)
	}

	failed, err := repo.List(10, string(domain.RunStatusFailed))
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Error != "boom" {
		t.Fatalf("unexpected failed runs: %#v", failed)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if err := repo.Update(&domain.Run{ID: "missing"}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows on update, got %v", err)
	}
}
