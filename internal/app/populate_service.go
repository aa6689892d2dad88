package app

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/tablefill/internal/config"
	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/exec"
	"github.com/mmrzaf/tablefill/internal/hashing"
	"github.com/mmrzaf/tablefill/internal/infra/repos/runs"
	"github.com/mmrzaf/tablefill/internal/infra/repos/schemas"
	"github.com/mmrzaf/tablefill/internal/infra/repos/targets"
	"github.com/mmrzaf/tablefill/internal/locale"
	"github.com/mmrzaf/tablefill/internal/logging"
	"github.com/mmrzaf/tablefill/internal/registry"
	"github.com/mmrzaf/tablefill/internal/schema"
	"github.com/mmrzaf/tablefill/internal/synth"
	"github.com/mmrzaf/tablefill/internal/validation"
)

// Settings are the generation defaults a request can override.
type Settings struct {
	Locale       string
	BatchSize    int
	NullRate     float64
	RulesFile    string
	DateWindow   string
	RecentWindow string
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Locale:       cfg.Locale,
		BatchSize:    cfg.BatchSize,
		NullRate:     cfg.NullRate,
		RulesFile:    cfg.RulesFile,
		DateWindow:   cfg.DateWindow,
		RecentWindow: cfg.RecentWindow,
	}
}

type PopulateService struct {
	schemaRepo  *schemas.FileRepository
	targetRepo  targets.Repository
	runRepo     runs.Repository
	genRegistry *registry.GeneratorRegistry
	validator   *validation.Validator
	settings    Settings
	logger      *logging.Logger
}

func NewPopulateService(
	schemaRepo *schemas.FileRepository,
	targetRepo targets.Repository,
	runRepo runs.Repository,
	genRegistry *registry.GeneratorRegistry,
	settings Settings,
	logger *logging.Logger,
) *PopulateService {
	if genRegistry == nil {
		genRegistry = registry.DefaultGeneratorRegistry()
	}
	return &PopulateService{
		schemaRepo:  schemaRepo,
		targetRepo:  targetRepo,
		runRepo:     runRepo,
		genRegistry: genRegistry,
		validator:   validation.NewValidator(genRegistry),
		settings:    settings,
		logger:      logging.OrDiscard(logger).WithComponent("app"),
	}
}

// Populate runs req to completion and returns its run record. The record is
// returned with the error when the run started but failed.
func (s *PopulateService) Populate(ctx context.Context, req *domain.PopulateRequest) (*domain.Run, error) {
	return s.PopulateWithProgress(ctx, req, nil)
}

func (s *PopulateService) PopulateWithProgress(ctx context.Context, req *domain.PopulateRequest, onProgress func(done, total int64)) (*domain.Run, error) {
	if err := s.validator.ValidatePopulateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid populate request: %w", err)
	}

	targetCfg, err := s.ResolveTarget(req)
	if err != nil {
		return nil, err
	}
	effective := resolveTargetForRun(targetCfg, "")

	tgt, err := NewTarget(effective)
	if err != nil {
		return nil, err
	}
	if err := tgt.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to target %s: %w", targetCfg.Name, err)
	}
	defer tgt.Close()

	table, fromFile, err := s.loadTableFile(req, targetCfg.Kind)
	if err != nil {
		return nil, err
	}
	if fromFile {
		// The profile decides where rows go, not the script's qualifier.
		if table.Schema != "" {
			s.logger.Debug("Ignoring schema qualifier %s of %s; target %s decides", table.Schema, table.Name, targetCfg.Name)
			t := *table
			t.Schema = ""
			table = &t
		}
	} else {
		table, err = tgt.DescribeTable(ctx, req.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", req.Table, err)
		}
	}

	localeCode := firstNonEmpty(req.Locale, s.settings.Locale, locale.DefaultCode)
	seed := generateSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.settings.BatchSize
	}
	if batchSize <= 0 {
		batchSize = exec.DefaultBatchSize
	}

	ruleSet, err := s.LoadRules()
	if err != nil {
		return nil, err
	}
	synthesizer, err := s.NewSynthesizer(localeCode, seed, ruleSet)
	if err != nil {
		return nil, err
	}

	schemaHash, err := hashing.HashTableSchema(table)
	if err != nil {
		return nil, fmt.Errorf("failed to hash schema: %w", err)
	}
	configHash, err := hashing.HashRunConfig(table, effective, hashing.RunSettings{
		Rows:      req.Rows,
		Seed:      seed,
		Locale:    strings.ToLower(localeCode),
		NullRate:  s.settings.NullRate,
		BatchSize: batchSize,
		Rules:     ruleSet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash run config: %w", err)
	}

	run := &domain.Run{
		Table:         table.Qualified(),
		SchemaSource:  table.Source,
		SchemaHash:    schemaHash,
		ConfigHash:    configHash,
		TargetID:      targetCfg.ID,
		TargetName:    targetCfg.Name,
		TargetKind:    targetCfg.Kind,
		Seed:          seed,
		Locale:        strings.ToLower(localeCode),
		RowsRequested: req.Rows,
		Status:        domain.RunStatusRunning,
		StartedAt:     time.Now(),
	}
	if s.runRepo != nil {
		if err := s.runRepo.Create(run); err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	s.logger.Info("Starting run %s: table=%s, target=%s, rows=%d, seed=%d", run.ID, run.Table, targetCfg.Name, req.Rows, seed)

	executor := exec.NewExecutor(synthesizer, s.logger)
	stats, err := executor.Populate(ctx, table, tgt, exec.PopulateOptions{
		Rows:       req.Rows,
		BatchSize:  batchSize,
		Truncate:   req.Truncate,
		OnProgress: onProgress,
	})
	s.finishRun(run, stats, err)
	if err != nil {
		s.logger.Error("Run %s failed: %v", run.ID, err)
		return run, err
	}

	s.logger.Info("Run %s completed: %d inserted, %d failed, %.2fs",
		run.ID, stats.RowsInserted, stats.RowsFailed, stats.DurationSeconds)
	return run, nil
}

func (s *PopulateService) finishRun(run *domain.Run, stats *domain.RunStats, runErr error) {
	now := time.Now()
	run.CompletedAt = &now
	if stats != nil {
		if b, err := json.Marshal(stats); err == nil {
			run.Stats = b
		}
	}
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = domain.RunStatusSuccess
	}
	if s.runRepo == nil {
		return
	}
	if err := s.runRepo.Update(run); err != nil {
		s.logger.Error("Failed to update run %s: %v", run.ID, err)
	}
}

// ResolveTarget picks the inline target, the named profile, or the default
// profile, in that order.
func (s *PopulateService) ResolveTarget(req *domain.PopulateRequest) (*domain.TargetConfig, error) {
	var cfg *domain.TargetConfig
	switch {
	case req.Target != nil:
		cfg = req.Target
	case s.targetRepo == nil:
		return nil, errors.New("no target given and no target profiles configured")
	case req.TargetID != "":
		t, err := s.targetRepo.Get(req.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load target: %w", err)
		}
		cfg = t
	default:
		t, err := targets.Default(s.targetRepo)
		if err != nil {
			return nil, err
		}
		cfg = t
	}
	if err := s.validator.ValidateTarget(cfg); err != nil {
		return nil, fmt.Errorf("target validation failed: %w", err)
	}
	return cfg, nil
}

// ResolveTable loads the table a request names without writing anything. A
// schema file wins over the live catalog; a target is only connected when no
// file defines the table.
func (s *PopulateService) ResolveTable(ctx context.Context, req *domain.PopulateRequest) (*domain.TableSchema, error) {
	if req == nil || (req.SchemaPath == "" && req.Table == "") {
		return nil, errors.New("either schema_path or table must be provided")
	}

	var cfg *domain.TargetConfig
	if req.Target != nil || req.TargetID != "" {
		c, err := s.ResolveTarget(req)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	dialect := ""
	if cfg != nil {
		dialect = cfg.Kind
	}

	table, ok, err := s.loadTableFile(req, dialect)
	if err != nil || ok {
		return table, err
	}

	if cfg == nil {
		if cfg, err = s.ResolveTarget(req); err != nil {
			return nil, fmt.Errorf("table %s is not defined in a schema file and no target is available: %w", req.Table, err)
		}
	}
	tgt, err := NewTarget(resolveTargetForRun(cfg, ""))
	if err != nil {
		return nil, err
	}
	if err := tgt.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to target %s: %w", cfg.Name, err)
	}
	defer tgt.Close()
	return tgt.DescribeTable(ctx, req.Table)
}

// loadTableFile reports false when the table must come from the catalog.
func (s *PopulateService) loadTableFile(req *domain.PopulateRequest, dialect string) (*domain.TableSchema, bool, error) {
	opts := schema.ParseOptions{Dialect: dialect, InferIdentity: req.InferIdentity, Logger: s.logger}

	repo := s.schemaRepo
	if repo == nil {
		repo = schemas.NewFileRepository(".", s.logger)
	}
	if req.SchemaPath != "" {
		t, err := repo.Load(req.SchemaPath, req.Table, opts)
		if err != nil {
			return nil, false, err
		}
		return t, true, nil
	}
	if s.schemaRepo == nil {
		return nil, false, nil
	}
	t, err := s.schemaRepo.Find(req.Table, opts)
	if err != nil {
		s.logger.Debug("No schema file for %s, using the catalog: %v", req.Table, err)
		return nil, false, nil
	}
	return t, true, nil
}

// LoadRules reads the configured rules file. No file means no custom rules.
func (s *PopulateService) LoadRules() (*domain.RuleSet, error) {
	if s.settings.RulesFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.settings.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var set domain.RuleSet
	if filepath.Ext(s.settings.RulesFile) == ".json" {
		err = json.Unmarshal(data, &set)
	} else {
		err = yaml.Unmarshal(data, &set)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if err := s.validator.ValidateRuleSet(&set); err != nil {
		return nil, fmt.Errorf("rules file validation failed: %w", err)
	}
	return &set, nil
}

// NewSynthesizer builds a synthesizer from the service settings, with custom
// rules ahead of the built-in catalog.
func (s *PopulateService) NewSynthesizer(localeCode string, seed int64, ruleSet *domain.RuleSet) (*synth.Synthesizer, error) {
	pack, err := locale.Lookup(firstNonEmpty(localeCode, s.settings.Locale, locale.DefaultCode))
	if err != nil {
		return nil, err
	}
	for _, w := range []string{s.settings.DateWindow, s.settings.RecentWindow} {
		if w == "" {
			continue
		}
		if err := validation.ValidateWindow(w); err != nil {
			return nil, err
		}
	}
	custom, err := synth.CustomRules(ruleSet, s.genRegistry)
	if err != nil {
		return nil, err
	}

	return synth.New(
		synth.WithLocale(pack),
		synth.WithSeed(seed),
		synth.WithRules(custom),
		synth.WithNullRate(s.settings.NullRate),
		synth.WithDateWindow(s.settings.DateWindow),
		synth.WithRecentWindow(s.settings.RecentWindow),
		synth.WithLogger(s.logger),
	), nil
}

// PreviewRows generates n rows without touching any datastore.
func (s *PopulateService) PreviewRows(table *domain.TableSchema, n int, seed int64) ([]domain.Row, error) {
	ruleSet, err := s.LoadRules()
	if err != nil {
		return nil, err
	}
	synthesizer, err := s.NewSynthesizer("", seed, ruleSet)
	if err != nil {
		return nil, err
	}
	return synthesizer.GenerateRows(table, n)
}

func (s *PopulateService) GetRun(id string) (*domain.Run, error) {
	if s.runRepo == nil {
		return nil, errors.New("run history is not configured")
	}
	return s.runRepo.Get(id)
}

func (s *PopulateService) ListRuns(limit int, status string) ([]*domain.Run, error) {
	if s.runRepo == nil {
		return nil, errors.New("run history is not configured")
	}
	return s.runRepo.List(limit, status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func generateSeed() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}
