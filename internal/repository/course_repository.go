package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CourseRepository читает каталог курсов. Сам каталог ведётся вне движка.
type CourseRepository struct {
	*base.Repository
}

func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{Repository: base.NewRepository(pool)}
}

// GetByID получает курс по ID
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	query := `
		SELECT id, provider_id, title, base_rate, duration_minutes, is_active
		FROM courses
		WHERE id = $1
	`

	var c model.Course
	err := r.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.ProviderID,
		&c.Title,
		&c.BaseRate,
		&c.DurationMinutes,
		&c.IsActive,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course by id: %w", err)
	}

	return &c, nil
}
