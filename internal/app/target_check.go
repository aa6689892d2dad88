package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/exec"
	"github.com/mmrzaf/tablefill/internal/infra/targets/mysql"
	"github.com/mmrzaf/tablefill/internal/infra/targets/postgres"
	"github.com/mmrzaf/tablefill/internal/infra/targets/sqlite"
	"github.com/mmrzaf/tablefill/internal/infra/targets/sqlserver"
	"github.com/mmrzaf/tablefill/internal/validation"
)

// NewTarget builds an unconnected target for a resolved profile.
func NewTarget(t *domain.TargetConfig) (exec.Target, error) {
	switch t.Kind {
	case domain.TargetKindPostgres:
		return postgres.NewPostgresTarget(t.DSN, t.Schema), nil
	case domain.TargetKindSQLite:
		return sqlite.NewSQLiteTarget(t.DSN), nil
	case domain.TargetKindMySQL:
		return mysql.NewMySQLTarget(t.DSN, t.Database), nil
	case domain.TargetKindSQLServer:
		return sqlserver.NewSQLServerTarget(t.DSN, t.Schema), nil
	default:
		return nil, fmt.Errorf("unsupported target kind: %s", t.Kind)
	}
}

// CheckTarget connects, pings and reads the server version. The returned
// check is filled in on failure too, with the error recorded.
func CheckTarget(ctx context.Context, t *domain.TargetConfig) (*domain.TargetCheck, error) {
	if t == nil {
		return nil, fmt.Errorf("target is required")
	}
	check := &domain.TargetCheck{
		ID:        uuid.NewString(),
		TargetID:  t.ID,
		CheckedAt: time.Now().UTC(),
	}
	fail := func(err error) (*domain.TargetCheck, error) {
		check.OK = false
		check.Error = err.Error()
		return check, err
	}

	val := validation.NewValidator(nil)
	if err := val.ValidateTarget(t); err != nil {
		return fail(err)
	}

	start := time.Now()
	tgt, err := NewTarget(resolveTargetForRun(t, ""))
	if err != nil {
		return fail(err)
	}
	if err := tgt.Connect(ctx); err != nil {
		check.LatencyMS = time.Since(start).Milliseconds()
		return fail(err)
	}
	defer tgt.Close()

	if err := tgt.Ping(ctx); err != nil {
		check.LatencyMS = time.Since(start).Milliseconds()
		return fail(err)
	}
	check.OK = true
	check.LatencyMS = time.Since(start).Milliseconds()

	if ver, err := tgt.ServerVersion(ctx); err == nil {
		check.ServerVer = ver
	}
	return check, nil
}
