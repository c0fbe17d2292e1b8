package crdb

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
)

// InsertTaxRate appends a versioned rate row; existing rows are never
// mutated.
func (r *Repository) InsertTaxRate(ctx context.Context, rate domain.TaxRate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tax_rates (id, rate, valid_from)
		VALUES ($1, $2, $3)
	`, rate.ID, rate.Rate, rate.ValidFrom)
	return err
}

// CurrentTaxRate returns the rate effective at the given instant: the newest
// row whose valid_from is not after it. Zero when no rate is configured.
func (r *Repository) CurrentTaxRate(ctx context.Context, tx pgx.Tx, at time.Time) (float64, error) {
	var rate float64
	q := `SELECT rate FROM tax_rates WHERE valid_from <= $1 ORDER BY valid_from DESC LIMIT 1`
	var err error
	if tx != nil {
		err = tx.QueryRow(ctx, q, at).Scan(&rate)
	} else {
		err = r.pool.QueryRow(ctx, q, at).Scan(&rate)
	}
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return rate, err
}
