package schemas

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/logging"
	"github.com/mmrzaf/tablefill/internal/schema"
)

// FilePatterns are the names treated as table definition scripts when a
// directory is scanned.
var FilePatterns = []string{"create_table*.sql", "*_table.sql"}

type SchemaFile struct {
	Path   string   `json:"path" yaml:"path"`
	Tables []string `json:"tables" yaml:"tables"`
}

type FileRepository struct {
	baseDir string
	logger  *logging.Logger
}

func NewFileRepository(baseDir string, logger *logging.Logger) *FileRepository {
	return &FileRepository{baseDir: baseDir, logger: logging.OrDiscard(logger).WithComponent("schemas")}
}

func IsSchemaFile(name string) bool {
	name = strings.ToLower(filepath.Base(name))
	for _, p := range FilePatterns {
		if wildcard.Match(p, name) {
			return true
		}
	}
	return false
}

// List scans the base directory, not recursively. Files that do not parse are
// skipped with a warning.
func (r *FileRepository) List() ([]*SchemaFile, error) {
	if _, err := os.Stat(r.baseDir); os.IsNotExist(err) {
		return []*SchemaFile{}, nil
	}

	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, err
	}

	files := make([]*SchemaFile, 0)
	for _, entry := range entries {
		if entry.IsDir() || !IsSchemaFile(entry.Name()) {
			continue
		}
		path := filepath.Join(r.baseDir, entry.Name())
		tables, err := r.parse(path, schema.ParseOptions{})
		if err != nil {
			r.logger.Warn("Skipping schema file %s: %v", path, err)
			continue
		}
		f := &SchemaFile{Path: path}
		for _, t := range tables {
			f.Tables = append(f.Tables, t.Qualified())
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Find returns the first discovered definition of table. A bare name matches
// a schema-qualified definition.
func (r *FileRepository) Find(table string, opts schema.ParseOptions) (*domain.TableSchema, error) {
	files, err := r.List()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		for _, name := range f.Tables {
			if tableNameMatches(name, table) {
				return r.Load(f.Path, table, opts)
			}
		}
	}
	return nil, fmt.Errorf("no schema file in %s defines table %s", r.baseDir, table)
}

// Load parses path and returns the table called name. An empty name selects
// the script's only table.
func (r *FileRepository) Load(path, name string, opts schema.ParseOptions) (*domain.TableSchema, error) {
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	tables, err := r.parse(path, opts)
	if err != nil {
		return nil, err
	}

	if name == "" {
		if len(tables) > 1 {
			names := make([]string, 0, len(tables))
			for _, t := range tables {
				names = append(names, t.Qualified())
			}
			return nil, fmt.Errorf("%s defines %d tables (%s): name one", path, len(tables), strings.Join(names, ", "))
		}
		return tables[0], nil
	}
	for _, t := range tables {
		if tableNameMatches(t.Qualified(), name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("table %s not found in %s", name, path)
}

func (r *FileRepository) parse(path string, opts schema.ParseOptions) ([]*domain.TableSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tables, err := schema.ParseScript(string(data), opts)
	if err != nil {
		if errors.Is(err, schema.ErrNoCreateTable) {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, t := range tables {
		t.Source = path
	}
	return tables, nil
}

func tableNameMatches(defined, wanted string) bool {
	if strings.EqualFold(defined, wanted) {
		return true
	}
	if strings.Contains(wanted, ".") {
		return false
	}
	if idx := strings.LastIndex(defined, "."); idx >= 0 {
		return strings.EqualFold(defined[idx+1:], wanted)
	}
	return false
}
