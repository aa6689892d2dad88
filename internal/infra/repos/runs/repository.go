package runs

import "github.com/mmrzaf/tablefill/internal/domain"

// Repository stores the history of populate runs.
type Repository interface {
	Create(run *domain.Run) error
	Update(run *domain.Run) error
	Get(id string) (*domain.Run, error)
	List(limit int, status string) ([]*domain.Run, error)
}
