package repository

import (
	"context"
	"errors"

	"github.com/glitchidea/glichflow/pkg/db/option"
	"gorm.io/gorm"
)

var errNoChanges = errors.New("repository: update without changes")

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (s *store[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	var rows []*T
	if err := s.query(ctx, filter, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne uses Limit(1).Find rather than First so a miss is not an error
// and does not reach the gorm error log.
func (s *store[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var rows []*T
	if err := s.query(ctx, filter, opts).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *store[T]) Count(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error) {
	var n int64
	err := s.query(ctx, filter, opts).Count(&n).Error
	return n, err
}

func (s *store[T]) Create(ctx context.Context, row *T) error {
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *store[T]) Update(ctx context.Context, id string, changes map[string]any) error {
	if len(changes) == 0 {
		return errNoChanges
	}
	return s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(changes).Error
}

func (s *store[T]) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(new(T)).Error
}

func (s *store[T]) query(ctx context.Context, filter *T, opts []option.QueryOption) *gorm.DB {
	q := s.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		q = q.Where(filter)
	}
	for _, opt := range opts {
		q = opt.Apply(q)
	}
	return q
}
