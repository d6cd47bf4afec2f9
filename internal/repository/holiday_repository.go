package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// HolidayRepository reads the organization holiday table. Loaded once at
// startup into the working calendar; there is no runtime mutation path.
type HolidayRepository interface {
	ListAll(ctx context.Context) ([]domain.Holiday, error)
}

type holidayRepository struct {
	pool *pgxpool.Pool
}

// NewHolidayRepository builds the repository.
func NewHolidayRepository(pool *pgxpool.Pool) HolidayRepository {
	return &holidayRepository{pool: pool}
}

func (r *holidayRepository) ListAll(ctx context.Context) ([]domain.Holiday, error) {
	const query = `SELECT id, name, holiday_date FROM holidays ORDER BY holiday_date ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Holiday
	for rows.Next() {
		var holiday domain.Holiday
		if err := rows.Scan(&holiday.ID, &holiday.Name, &holiday.Date); err != nil {
			return nil, err
		}
		result = append(result, holiday)
	}
	return result, rows.Err()
}
