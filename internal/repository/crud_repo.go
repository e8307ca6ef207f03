package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope narrows a list query. Scopes passed together are ANDed.
type Scope = func(*gorm.DB) *gorm.DB

// Store is the id-keyed create/read/update/delete surface shared by the
// exam, question bank, fee and recruitment records.
type Store[T any] interface {
	Create(ctx context.Context, rec *T) error
	Update(ctx context.Context, rec *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context, offset, limit int, order string, scopes ...Scope) ([]T, int64, error)
}

type gormStore[T any] struct {
	db       *gorm.DB
	preloads []string
}

// NewStore returns a gorm-backed Store; preloads are applied on reads
func NewStore[T any](db *gorm.DB, preloads ...string) Store[T] {
	return &gormStore[T]{db: db, preloads: preloads}
}

func (s *gormStore[T]) Create(ctx context.Context, rec *T) error {
	return GetDB(ctx, s.db).Create(rec).Error
}

func (s *gormStore[T]) Update(ctx context.Context, rec *T) error {
	return GetDB(ctx, s.db).Omit(clause.Associations).Save(rec).Error
}

func (s *gormStore[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, s.db).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *gormStore[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	rec := new(T)
	if err := s.withPreloads(GetDB(ctx, s.db)).First(rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByIDForUpdate row-locks the record; only meaningful inside RunInTx
func (s *gormStore[T]) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*T, error) {
	rec := new(T)
	if err := GetDB(ctx, s.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *gormStore[T]) List(ctx context.Context, offset, limit int, order string, scopes ...Scope) ([]T, int64, error) {
	var items []T
	var total int64

	db := GetDB(ctx, s.db)
	if err := db.Model(new(T)).Scopes(scopes...).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if order == "" {
		order = "created_at desc"
	}
	query := s.withPreloads(db).Scopes(scopes...).Order(order)
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *gormStore[T]) withPreloads(db *gorm.DB) *gorm.DB {
	for _, p := range s.preloads {
		db = db.Preload(p)
	}
	return db
}

// Eq filters column = value when value is non-empty
func Eq(column, value string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if value == "" {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}

// Search filters rows where any of columns contains term, case-insensitively
func Search(term string, columns ...string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(columns) == 0 {
			return db
		}
		like := "%" + term + "%"
		cond := ""
		args := make([]interface{}, 0, len(columns))
		for i, c := range columns {
			if i > 0 {
				cond += " OR "
			}
			cond += c + " ILIKE ?"
			args = append(args, like)
		}
		return db.Where("("+cond+")", args...)
	}
}
