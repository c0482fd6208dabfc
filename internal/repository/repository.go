package repository

import (
	"context"
	"database/sql"
	"time"

	"set_and_wait/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// EventRepo is the append-only wait audit trail.
type EventRepo interface {
	Append(ctx context.Context, e models.WaitEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.WaitEvent, error)
}

type Repository struct {
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
		Auth:      NewOperatorSQLite(db),
	}
}
