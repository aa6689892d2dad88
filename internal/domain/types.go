package domain

import (
	"encoding/json"
	"time"
)

const (
	TargetKindPostgres  = "postgres"
	TargetKindSQLite    = "sqlite"
	TargetKindMySQL     = "mysql"
	TargetKindSQLServer = "sqlserver"
)

type TargetConfig struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Kind     string            `json:"kind" yaml:"kind"`
	DSN      string            `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Schema   string            `json:"schema,omitempty" yaml:"schema,omitempty"`
	Database string            `json:"database,omitempty" yaml:"database,omitempty"`
	Options  map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

type TargetCheck struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id"`
	OK        bool      `json:"ok"`
	LatencyMS int64     `json:"latency_ms"`
	ServerVer string    `json:"server_version,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type Run struct {
	ID            string          `json:"id" yaml:"id"`
	Table         string          `json:"table" yaml:"table"`
	SchemaSource  string          `json:"schema_source" yaml:"schema_source"`
	SchemaHash    string          `json:"schema_hash" yaml:"schema_hash"`
	ConfigHash    string          `json:"config_hash" yaml:"config_hash"`
	TargetID      string          `json:"target_id" yaml:"target_id"`
	TargetName    string          `json:"target_name" yaml:"target_name"`
	TargetKind    string          `json:"target_kind" yaml:"target_kind"`
	Seed          int64           `json:"seed" yaml:"seed"`
	Locale        string          `json:"locale" yaml:"locale"`
	RowsRequested int64           `json:"rows_requested" yaml:"rows_requested"`
	Status        RunStatus       `json:"status" yaml:"status"`
	StartedAt     time.Time       `json:"started_at" yaml:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Stats         json.RawMessage `json:"stats,omitempty" yaml:"-"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

type RunStats struct {
	RowsGenerated   int64    `json:"rows_generated" yaml:"rows_generated"`
	RowsInserted    int64    `json:"rows_inserted" yaml:"rows_inserted"`
	RowsFailed      int64    `json:"rows_failed" yaml:"rows_failed"`
	Batches         int      `json:"batches" yaml:"batches"`
	Retries         int      `json:"retries" yaml:"retries"`
	SkippedColumns  []string `json:"skipped_columns,omitempty" yaml:"skipped_columns,omitempty"`
	DurationSeconds float64  `json:"duration_seconds" yaml:"duration_seconds"`
}

// PopulateRequest names a table (by schema file or live catalog), a target and
// how many rows to synthesize into it.
type PopulateRequest struct {
	SchemaPath    string        `json:"schema_path,omitempty"`
	Table         string        `json:"table,omitempty"`
	TargetID      string        `json:"target_id,omitempty"`
	Target        *TargetConfig `json:"target,omitempty"`
	Rows          int64         `json:"rows"`
	Seed          *int64        `json:"seed,omitempty"`
	Locale        string        `json:"locale,omitempty"`
	BatchSize     int           `json:"batch_size,omitempty"`
	InferIdentity bool          `json:"infer_identity,omitempty"`
	Truncate      bool          `json:"truncate,omitempty"`
}

// RuleSet is the on-disk form of custom naming rules.
type RuleSet struct {
	Rules []RuleSpec `json:"rules" yaml:"rules"`
}

type RuleSpec struct {
	Name      string        `json:"name" yaml:"name"`
	Match     []string      `json:"match" yaml:"match"`
	Exclude   []string      `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Types     []string      `json:"types,omitempty" yaml:"types,omitempty"`
	Generator GeneratorSpec `json:"generator" yaml:"generator"`
}

type GeneratorSpec struct {
	Type   string                 `json:"type" yaml:"type"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}
