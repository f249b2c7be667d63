package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/domain/repository"
	"github.com/oksasatya/go-sweet-shop/internal/domain/search"
)

const sweetColumns = `id, name, description, price, category, image, quantity, created_at, version`

type SweetRepository struct {
	pool *pgxpool.Pool
}

func NewSweetRepository(pool *pgxpool.Pool) *SweetRepository {
	return &SweetRepository{pool: pool}
}

func scanSweet(row pgx.Row) (*entity.Sweet, error) {
	var (
		s        entity.Sweet
		category string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &category, &s.Image, &s.Quantity, &s.CreatedAt, &s.Version); err != nil {
		return nil, err
	}
	c, err := entity.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("sweet %s: %w", s.ID, err)
	}
	s.Category = c
	return &s, nil
}

func (r *SweetRepository) query(ctx context.Context, sql string, args ...any) ([]entity.Sweet, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.Sweet, 0)
	for rows.Next() {
		s, err := scanSweet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SweetRepository) List(ctx context.Context) ([]entity.Sweet, error) {
	return r.query(ctx, `SELECT `+sweetColumns+` FROM sweets ORDER BY created_at, id`)
}

func (r *SweetRepository) Find(ctx context.Context, f search.Filter) ([]entity.Sweet, error) {
	if f.MatchesNothing() {
		return []entity.Sweet{}, nil
	}
	where, args := f.SQL(1)
	return r.query(ctx, `SELECT `+sweetColumns+` FROM sweets WHERE `+where+` ORDER BY created_at, id`, args...)
}

func (r *SweetRepository) Create(ctx context.Context, s *entity.Sweet) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sweets (id, name, description, price, category, image, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, version
	`, s.ID, s.Name, s.Description, s.Price, s.Category.String(), s.Image, s.Quantity)
	return row.Scan(&s.CreatedAt, &s.Version)
}

func (r *SweetRepository) GetByID(ctx context.Context, id string) (*entity.Sweet, error) {
	if !validID(id) {
		return nil, entity.ErrSweetNotFound
	}
	s, err := scanSweet(r.pool.QueryRow(ctx, `SELECT `+sweetColumns+` FROM sweets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrSweetNotFound
	}
	return s, err
}

func (r *SweetRepository) Update(ctx context.Context, id string, mutate func(*entity.Sweet) error) (*entity.Sweet, error) {
	if !validID(id) {
		return nil, entity.ErrSweetNotFound
	}
	var updated *entity.Sweet
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanSweet(tx.QueryRow(ctx, `SELECT `+sweetColumns+` FROM sweets WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.ErrSweetNotFound
		}
		if err != nil {
			return err
		}
		next := *current
		if err := mutate(&next); err != nil {
			return err
		}
		updated, err = scanSweet(tx.QueryRow(ctx, `
			UPDATE sweets
			SET name = $2, description = $3, price = $4, category = $5, image = $6, quantity = $7,
			    version = version + 1
			WHERE id = $1
			RETURNING `+sweetColumns,
			id, next.Name, next.Description, next.Price, next.Category.String(), next.Image, next.Quantity))
		return err
	})
	if err != nil {
		return nil, mapQuantityError(err)
	}
	return updated, nil
}

func (r *SweetRepository) Delete(ctx context.Context, id string) (*entity.Sweet, error) {
	if !validID(id) {
		return nil, entity.ErrSweetNotFound
	}
	s, err := scanSweet(r.pool.QueryRow(ctx, `DELETE FROM sweets WHERE id = $1 RETURNING `+sweetColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrSweetNotFound
	}
	return s, err
}

func (r *SweetRepository) AdjustQuantity(ctx context.Context, id string, delta int) (*entity.Sweet, error) {
	if !validID(id) {
		return nil, entity.ErrSweetNotFound
	}
	s, err := scanSweet(r.pool.QueryRow(ctx, `
		UPDATE sweets
		SET quantity = quantity + $2, version = version + 1
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+sweetColumns, id, delta))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapQuantityError(err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sweets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, entity.ErrSweetNotFound
	}
	return nil, entity.ErrOutOfStock
}

// mapQuantityError turns an integer overflow on the quantity column into a
// validation error.
func mapQuantityError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.NumericValueOutOfRange {
		return entity.QuantityRangeError()
	}
	return err
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var _ repository.SweetRepository = (*SweetRepository)(nil)
