package targets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/logging"
)

// FileRepository reads YAML or JSON profiles in baseDir. A file holds one
// profile, whose id defaults to the file name less the extension, or a map of
// named sections.
type FileRepository struct {
	baseDir string
	logger  *logging.Logger
}

func NewFileRepository(baseDir string, logger *logging.Logger) *FileRepository {
	return &FileRepository{baseDir: baseDir, logger: logging.OrDiscard(logger)}
}

func (r *FileRepository) List() ([]*domain.TargetConfig, error) {
	if _, err := os.Stat(r.baseDir); os.IsNotExist(err) {
		return []*domain.TargetConfig{}, nil
	}

	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, err
	}

	targets := make([]*domain.TargetConfig, 0)
	for _, entry := range entries {
		if entry.IsDir() || !isProfileFile(entry.Name()) {
			continue
		}

		path := filepath.Join(r.baseDir, entry.Name())
		loaded, err := r.loadTargets(path)
		if err != nil {
			r.logger.Warnw("targets.profile_skipped", map[string]any{"path": path, "error": err.Error()})
			continue
		}
		targets = append(targets, loaded...)
	}

	return targets, nil
}

func (r *FileRepository) Get(id string) (*domain.TargetConfig, error) {
	targets, err := r.List()
	if err != nil {
		return nil, err
	}

	for _, t := range targets {
		if strings.EqualFold(t.ID, id) || strings.EqualFold(t.Name, id) {
			return t, nil
		}
	}

	return nil, fmt.Errorf("target not found: %s", id)
}

// GetByPath loads a profile file that must live inside baseDir and hold
// exactly one profile.
func (r *FileRepository) GetByPath(path string) (*domain.TargetConfig, error) {
	full, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	loaded, err := r.loadTargets(full)
	if err != nil {
		return nil, err
	}
	if len(loaded) != 1 {
		ids := make([]string, len(loaded))
		for i, t := range loaded {
			ids[i] = t.ID
		}
		return nil, fmt.Errorf("%s holds %d profiles (%s); name one by id", filepath.Base(full), len(loaded), strings.Join(ids, ", "))
	}
	return loaded[0], nil
}

func (r *FileRepository) resolve(path string) (string, error) {
	base, err := filepath.Abs(r.baseDir)
	if err != nil {
		return "", err
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, path)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside %s", path, r.baseDir)
	}
	return full, nil
}

// loadTargets reads either a single profile or a file of named sections,
// one profile per section (LOCAL, REMOTE, DEFAULT). A section name stands in
// for a missing id and name.
func (r *FileRepository) loadTargets(path string) ([]*domain.TargetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	isJSON := filepath.Ext(path) == ".json"
	decode := func(out any) error {
		if isJSON {
			return json.Unmarshal(data, out)
		}
		return yaml.Unmarshal(data, out)
	}

	var raw map[string]any
	if err := decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if !isSectionFile(raw) {
		var target domain.TargetConfig
		if err := decode(&target); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		normalizeProfile(&target, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		return []*domain.TargetConfig{&target}, nil
	}

	var sections map[string]domain.TargetConfig
	if err := decode(&sections); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*domain.TargetConfig, 0, len(names))
	for _, name := range names {
		target := sections[name]
		normalizeProfile(&target, name)
		out = append(out, &target)
	}
	return out, nil
}

func normalizeProfile(t *domain.TargetConfig, fallbackID string) {
	if t.ID == "" {
		t.ID = fallbackID
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
}

var profileKeys = map[string]bool{
	"id": true, "name": true, "kind": true, "dsn": true,
	"schema": true, "database": true, "options": true,
}

// isSectionFile reports whether every top-level entry is a nested profile
// rather than a profile field.
func isSectionFile(raw map[string]any) bool {
	if len(raw) == 0 {
		return false
	}
	for k, v := range raw {
		if profileKeys[strings.ToLower(k)] {
			return false
		}
		if _, ok := v.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func isProfileFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
