package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/synth"
)

var errDuplicate = errors.New("duplicate key")

// memTarget keeps inserted rows in memory and rejects a whole batch when any
// row repeats a value of the unique column.
type memTarget struct {
	mu        sync.Mutex
	unique    string
	existing  map[string]struct{}
	rows      []map[string]interface{}
	batches   int
	truncated bool
	failWith  error
	alwaysDup bool
}

func newMemTarget(unique string) *memTarget {
	return &memTarget{unique: unique, existing: make(map[string]struct{})}
}

func (m *memTarget) Connect(context.Context) error { return nil }
func (m *memTarget) Close() error                  { return nil }
func (m *memTarget) Ping(context.Context) error    { return nil }

func (m *memTarget) ServerVersion(context.Context) (string, error) { return "mem", nil }

func (m *memTarget) DescribeTable(context.Context, string) (*domain.TableSchema, error) {
	return nil, errors.New("not supported")
}

func (m *memTarget) TruncateTable(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.truncated = true
	m.rows = nil
	return nil
}

func (m *memTarget) InsertBatch(_ context.Context, _ string, columns []string, rows [][]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.failWith != nil {
		return m.failWith
	}
	if m.alwaysDup {
		return errDuplicate
	}

	idx := -1
	for i, c := range columns {
		if c == m.unique {
			idx = i
		}
	}
	if idx >= 0 {
		pending := make(map[string]struct{}, len(rows))
		for _, r := range rows {
			key := fmt.Sprint(r[idx])
			if _, dup := m.existing[key]; dup {
				return errDuplicate
			}
			if _, dup := pending[key]; dup {
				return errDuplicate
			}
			pending[key] = struct{}{}
		}
		for k := range pending {
			m.existing[k] = struct{}{}
		}
	}

	for _, r := range rows {
		rec := make(map[string]interface{}, len(columns))
		for i, c := range columns {
			rec[c] = r[i]
		}
		m.rows = append(m.rows, rec)
	}
	return nil
}

func (m *memTarget) IsUniqueViolation(err error) bool {
	return errors.Is(err, errDuplicate)
}

func intPtr(v int) *int { return &v }

func codesTable() *domain.TableSchema {
	return &domain.TableSchema{
		Name:   "Vouchers",
		Schema: "dbo",
		Columns: []domain.ColumnDescriptor{
			{Name: "VoucherID", Type: domain.SQLTypeInt, Identity: true, PrimaryKey: true},
			{Name: "Code", Type: domain.SQLTypeInt, Unique: true},
			{Name: "Balance", Type: domain.SQLTypeDecimal, Precision: intPtr(8), Scale: intPtr(2)},
			{Name: "IssuedAt", Type: domain.SQLTypeDateTime, HasDefault: true, Default: "now()"},
		},
	}
}

func TestPopulateInsertsInBatches(t *testing.T) {
	target := newMemTarget("Code")
	ex := NewExecutor(synth.New(synth.WithSeed(1)), nil)

	var progress []int64
	stats, err := ex.Populate(context.Background(), codesTable(), target, PopulateOptions{
		Rows:       25,
		BatchSize:  10,
		OnProgress: func(done, total int64) { progress = append(progress, done) },
	})
	require.NoError(t, err)

	assert.EqualValues(t, 25, stats.RowsGenerated)
	assert.EqualValues(t, 25, stats.RowsInserted)
	assert.Zero(t, stats.RowsFailed)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, []string{"VoucherID", "IssuedAt"}, stats.SkippedColumns)
	assert.Equal(t, []int64{10, 20, 25}, progress)

	require.Len(t, target.rows, 25)
	for _, r := range target.rows {
		assert.NotContains(t, r, "VoucherID")
		assert.NotContains(t, r, "IssuedAt")
		assert.Contains(t, r, "Code")
		assert.Contains(t, r, "Balance")
	}
	assert.False(t, target.truncated)
}

func TestPopulateReplaysConflictingBatch(t *testing.T) {
	const seed = 7
	const rows = 40
	table := codesTable()

	// A synthesizer with the same seed reproduces the first rows, which stand
	// in for data left by an earlier run.
	plan, err := synth.New(synth.WithSeed(seed)).Plan(table, synth.ExpectedRows(rows))
	require.NoError(t, err)
	target := newMemTarget("Code")
	for i := 0; i < 5; i++ {
		r, err := plan.NextRow()
		require.NoError(t, err)
		require.Equal(t, "Code", r.Columns[0])
		target.existing[fmt.Sprint(r.Values[0])] = struct{}{}
	}

	ex := NewExecutor(synth.New(synth.WithSeed(seed)), nil)
	stats, err := ex.Populate(context.Background(), table, target, PopulateOptions{Rows: rows, BatchSize: 10})
	require.NoError(t, err)

	assert.EqualValues(t, rows, stats.RowsInserted)
	assert.Zero(t, stats.RowsFailed)
	assert.Equal(t, 5, stats.Retries)
	assert.Len(t, target.rows, rows)
	assert.Len(t, target.existing, rows+5)
}

func TestPopulateGivesUpOnPersistentConflicts(t *testing.T) {
	target := newMemTarget("Code")
	target.alwaysDup = true
	ex := NewExecutor(synth.New(synth.WithSeed(3)), nil)

	stats, err := ex.Populate(context.Background(), codesTable(), target, PopulateOptions{
		Rows: 4, BatchSize: 4, MaxInsertRetries: 2,
	})
	require.NoError(t, err)
	assert.Zero(t, stats.RowsInserted)
	assert.EqualValues(t, 4, stats.RowsFailed)
	assert.Equal(t, 8, stats.Retries)
	// one batch attempt plus three per row
	assert.Equal(t, 1+4*3, target.batches)
}

func TestPopulateAbortsOnInsertError(t *testing.T) {
	target := newMemTarget("Code")
	target.failWith = errors.New("connection reset")
	ex := NewExecutor(synth.New(synth.WithSeed(3)), nil)

	stats, err := ex.Populate(context.Background(), codesTable(), target, PopulateOptions{Rows: 30, BatchSize: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NotNil(t, stats)
	assert.Zero(t, stats.RowsInserted)
	assert.Equal(t, 1, target.batches)
}

func TestPopulateCountsUngeneratableRows(t *testing.T) {
	table := &domain.TableSchema{
		Name: "Flags",
		Columns: []domain.ColumnDescriptor{
			{Name: "Enabled", Type: domain.SQLTypeBit, Unique: true},
		},
	}
	target := newMemTarget("Enabled")
	ex := NewExecutor(synth.New(synth.WithSeed(5)), nil)

	stats, err := ex.Populate(context.Background(), table, target, PopulateOptions{Rows: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.RowsInserted)
	assert.EqualValues(t, 3, stats.RowsFailed)
	assert.EqualValues(t, 2, stats.RowsGenerated)
}

func TestPopulateTruncatesFirst(t *testing.T) {
	target := newMemTarget("Code")
	target.rows = []map[string]interface{}{{"Code": int64(1)}}
	ex := NewExecutor(synth.New(synth.WithSeed(1)), nil)

	_, err := ex.Populate(context.Background(), codesTable(), target, PopulateOptions{Rows: 3, Truncate: true})
	require.NoError(t, err)
	assert.True(t, target.truncated)
	assert.Len(t, target.rows, 3)
}

func TestPopulateRejectsDegenerateInput(t *testing.T) {
	ex := NewExecutor(synth.New(synth.WithSeed(1)), nil)
	target := newMemTarget("")

	onlySkipped := &domain.TableSchema{
		Name: "Audit",
		Columns: []domain.ColumnDescriptor{
			{Name: "AuditID", Type: domain.SQLTypeBigInt, Identity: true},
			{Name: "At", Type: domain.SQLTypeDateTime, HasDefault: true},
		},
	}
	_, err := ex.Populate(context.Background(), onlySkipped, target, PopulateOptions{Rows: 1})
	assert.ErrorIs(t, err, ErrNothingToInsert)

	_, err = ex.Populate(context.Background(), codesTable(), target, PopulateOptions{Rows: 0})
	assert.Error(t, err)

	unsupported := &domain.TableSchema{
		Name:    "Odd",
		Columns: []domain.ColumnDescriptor{{Name: "Shape", Type: domain.SQLType("geometry")}},
	}
	_, err = ex.Populate(context.Background(), unsupported, target, PopulateOptions{Rows: 1})
	var typeErr *synth.UnsupportedTypeError
	assert.ErrorAs(t, err, &typeErr)
	assert.Zero(t, target.batches)
}

func TestPopulateStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := newMemTarget("Code")
	ex := NewExecutor(synth.New(synth.WithSeed(1)), nil)
	stats, err := ex.Populate(ctx, codesTable(), target, PopulateOptions{Rows: 10})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Zero(t, stats.RowsInserted)
	assert.Zero(t, target.batches)
}
