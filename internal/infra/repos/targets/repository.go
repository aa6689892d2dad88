package targets

import (
	"fmt"
	"strings"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// Repository resolves target profiles by id or name.
type Repository interface {
	List() ([]*domain.TargetConfig, error)
	Get(id string) (*domain.TargetConfig, error)
}

// DefaultProfiles are tried in order when no target is named.
var DefaultProfiles = []string{"LOCAL", "DEFAULT"}

// Default picks the LOCAL profile, then DEFAULT, then the only profile when
// exactly one exists.
func Default(repo Repository) (*domain.TargetConfig, error) {
	list, err := repo.List()
	if err != nil {
		return nil, err
	}
	for _, name := range DefaultProfiles {
		for _, t := range list {
			if strings.EqualFold(t.ID, name) || strings.EqualFold(t.Name, name) {
				return t, nil
			}
		}
	}
	if len(list) == 1 {
		return list[0], nil
	}
	return nil, fmt.Errorf("no default target: define a %s or %s profile, or pass --target",
		DefaultProfiles[0], DefaultProfiles[1])
}

// Chain looks a profile up in each repository in turn. Earlier repositories
// shadow later ones that share an id.
type Chain []Repository

func (c Chain) List() ([]*domain.TargetConfig, error) {
	seen := make(map[string]bool)
	out := make([]*domain.TargetConfig, 0)
	for _, repo := range c {
		list, err := repo.List()
		if err != nil {
			return nil, err
		}
		for _, t := range list {
			key := strings.ToLower(t.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func (c Chain) Get(id string) (*domain.TargetConfig, error) {
	for _, repo := range c {
		if t, err := repo.Get(id); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("target not found: %s", id)
}
