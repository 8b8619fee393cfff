package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// RateCardRepo stores rate-card entries in insertion order.
type RateCardRepo struct {
	db DBTX
}

func NewRateCardRepo(conn DBTX) *RateCardRepo {
	return &RateCardRepo{db: conn}
}

// List returns the rate card in its stored order.
func (r *RateCardRepo) List(ctx context.Context) ([]sow.RateCardItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, rate FROM rate_card ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("listing rate card: %w", err)
	}
	defer rows.Close()

	var items []sow.RateCardItem
	for rows.Next() {
		var it sow.RateCardItem
		if err := rows.Scan(&it.Name, &it.Rate); err != nil {
			return nil, fmt.Errorf("scanning rate card row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Upsert sets the rate for a role. New roles go to the end of the card.
func (r *RateCardRepo) Upsert(ctx context.Context, item sow.RateCardItem) error {
	if err := validateItem(item); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO rate_card (name, rate, position, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM rate_card), ?)
		ON CONFLICT(name) DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`,
		strings.TrimSpace(item.Name), item.Rate, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting rate %q: %w", item.Name, err)
	}
	return nil
}

// Delete removes a role from the card.
func (r *RateCardRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rate_card WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting rate %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting rate %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("rate %q: %w", name, ErrNotFound)
	}
	return nil
}

// Clear empties the card.
func (r *RateCardRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rate_card`); err != nil {
		return fmt.Errorf("clearing rate card: %w", err)
	}
	return nil
}

func validateItem(it sow.RateCardItem) error {
	if strings.TrimSpace(it.Name) == "" {
		return errors.New("rate card entry needs a name")
	}
	if math.IsNaN(it.Rate) || math.IsInf(it.Rate, 0) || it.Rate <= 0 {
		return fmt.Errorf("rate for %q must be a positive number", it.Name)
	}
	return nil
}
