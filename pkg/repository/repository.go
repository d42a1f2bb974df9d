package repository

import (
	"context"

	"github.com/glitchidea/glichflow/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm store for rows that need no custom SQL. The
// filter argument is a struct whose non-zero fields become equality
// conditions.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error)
	Create(ctx context.Context, row *T) error
	Update(ctx context.Context, id string, changes map[string]any) error
	Delete(ctx context.Context, id string) error
}
