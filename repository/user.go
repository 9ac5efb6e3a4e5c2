package repository

import (
	"context"

	"github.com/fastygo/dashboard/domain"
)

// InsertResult tells the caller whether Insert created the row or found it already present.
type InsertResult int

const (
	Inserted InsertResult = iota + 1
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

type UserFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindBySubject(ctx context.Context, sub string) (*domain.User, error)
	// Insert creates user unless a row with the same email or subject exists.
	// A uniqueness conflict is reported as AlreadyExists, not as an error.
	Insert(ctx context.Context, user *domain.User) (InsertResult, error)
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}
