package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/logging"
	"github.com/mmrzaf/tablefill/internal/synth"
)

const (
	DefaultBatchSize        = 1000
	DefaultMaxInsertRetries = 3
)

// ErrNothingToInsert is returned for tables whose every column is identity or
// defaulted.
var ErrNothingToInsert = errors.New("every column is identity or defaulted: nothing to insert")

// Target is a connected destination table store. Callers own the connection:
// Connect before use and Close after.
type Target interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error
	ServerVersion(ctx context.Context) (string, error)
	DescribeTable(ctx context.Context, table string) (*domain.TableSchema, error)
	TruncateTable(ctx context.Context, table string) error
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]interface{}) error
	IsUniqueViolation(err error) bool
}

type PopulateOptions struct {
	Rows             int64
	BatchSize        int
	MaxInsertRetries int
	Truncate         bool
	// OnProgress receives the number of rows settled (inserted or failed).
	OnProgress func(done, total int64)
}

type Executor struct {
	synth  *synth.Synthesizer
	logger *logging.Logger
}

func NewExecutor(s *synth.Synthesizer, logger *logging.Logger) *Executor {
	return &Executor{
		synth:  s,
		logger: logging.OrDiscard(logger).WithComponent("exec"),
	}
}

// Populate synthesizes opts.Rows rows for table and inserts them in batches.
// Key uniqueness holds across the whole call. A row that cannot be generated
// is counted in RowsFailed and skipped. A batch rejected for a duplicate key
// is replayed row by row, regenerating each colliding row up to
// MaxInsertRetries times. Any other insert error aborts the run.
func (e *Executor) Populate(ctx context.Context, table *domain.TableSchema, target Target, opts PopulateOptions) (*domain.RunStats, error) {
	if opts.Rows <= 0 {
		return nil, fmt.Errorf("row count must be positive: %d", opts.Rows)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxInsertRetries <= 0 {
		opts.MaxInsertRetries = DefaultMaxInsertRetries
	}

	start := time.Now()
	plan, err := e.synth.Plan(table, synth.ExpectedRows(opts.Rows))
	if err != nil {
		return nil, fmt.Errorf("failed to plan table '%s': %w", table.Name, err)
	}
	columns := plan.Columns()
	if len(columns) == 0 {
		return nil, ErrNothingToInsert
	}

	stats := &domain.RunStats{SkippedColumns: plan.Skipped()}
	tableName := table.Qualified()

	if opts.Truncate {
		if err := target.TruncateTable(ctx, tableName); err != nil {
			return stats, fmt.Errorf("failed to truncate table '%s': %w", tableName, err)
		}
	}

	e.logger.Infow("populate.start", map[string]any{
		"table": tableName, "rows": opts.Rows, "batch_size": opts.BatchSize,
		"columns": len(columns), "skipped": len(stats.SkippedColumns),
	})

	batch := make([][]interface{}, 0, opts.BatchSize)
	var attempted int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.insert(ctx, plan, target, tableName, columns, batch, opts, stats); err != nil {
			return err
		}
		stats.Batches++
		batch = batch[:0]
		if opts.OnProgress != nil {
			opts.OnProgress(stats.RowsInserted+stats.RowsFailed, opts.Rows)
		}
		return nil
	}

	for attempted < opts.Rows {
		if err := ctx.Err(); err != nil {
			return e.finish(stats, start), err
		}

		attempted++
		row, err := plan.NextRow()
		if err != nil {
			stats.RowsFailed++
			e.logger.Warnw("populate.row_failed", map[string]any{"table": tableName, "error": err.Error()})
			continue
		}
		stats.RowsGenerated++
		batch = append(batch, row.Values)

		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return e.finish(stats, start), err
			}
		}
	}
	if err := flush(); err != nil {
		return e.finish(stats, start), err
	}

	e.finish(stats, start)
	e.logger.Infow("populate.done", map[string]any{
		"table": tableName, "inserted": stats.RowsInserted, "failed": stats.RowsFailed,
		"retries": stats.Retries, "batches": stats.Batches, "duration_s": stats.DurationSeconds,
	})
	return stats, nil
}

func (e *Executor) finish(stats *domain.RunStats, start time.Time) *domain.RunStats {
	stats.DurationSeconds = time.Since(start).Seconds()
	return stats
}

func (e *Executor) insert(ctx context.Context, plan *synth.Plan, target Target, tableName string, columns []string, batch [][]interface{}, opts PopulateOptions, stats *domain.RunStats) error {
	err := target.InsertBatch(ctx, tableName, columns, batch)
	if err == nil {
		stats.RowsInserted += int64(len(batch))
		return nil
	}
	if !target.IsUniqueViolation(err) {
		return fmt.Errorf("failed to insert batch into '%s': %w", tableName, err)
	}

	e.logger.Warnw("populate.batch_conflict", map[string]any{
		"table": tableName, "rows": len(batch), "error": err.Error(),
	})
	for _, row := range batch {
		if err := e.insertRow(ctx, plan, target, tableName, columns, row, opts, stats); err != nil {
			return err
		}
	}
	return nil
}

// insertRow inserts one row, regenerating it while it collides with rows
// already in the table.
func (e *Executor) insertRow(ctx context.Context, plan *synth.Plan, target Target, tableName string, columns []string, row []interface{}, opts PopulateOptions, stats *domain.RunStats) error {
	for retry := 0; ; retry++ {
		err := target.InsertBatch(ctx, tableName, columns, [][]interface{}{row})
		if err == nil {
			stats.RowsInserted++
			return nil
		}
		if !target.IsUniqueViolation(err) {
			return fmt.Errorf("failed to insert row into '%s': %w", tableName, err)
		}
		if retry >= opts.MaxInsertRetries {
			stats.RowsFailed++
			e.logger.Warnw("populate.row_conflict", map[string]any{
				"table": tableName, "retries": retry, "error": err.Error(),
			})
			return nil
		}

		stats.Retries++
		fresh, genErr := plan.NextRow()
		if genErr != nil {
			stats.RowsFailed++
			e.logger.Warnw("populate.row_failed", map[string]any{"table": tableName, "error": genErr.Error()})
			return nil
		}
		row = fresh.Values
	}
}
