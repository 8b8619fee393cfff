package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// Store bundles the repositories over one database handle.
type Store struct {
	db       *sql.DB
	Settings *SettingsRepo
	RateCard *RateCardRepo
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db, Settings: NewSettingsRepo(db), RateCard: NewRateCardRepo(db)}
}

func (s *Store) Close() error { return s.db.Close() }

// WithinTx runs fn in a transaction, committing when it returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListRateCard returns the stored card.
func (s *Store) ListRateCard(ctx context.Context) ([]sow.RateCardItem, error) {
	return s.RateCard.List(ctx)
}

// ReplaceRateCard swaps the whole card atomically. Order is kept; when a name
// repeats, the first entry wins. An invalid entry leaves the old card intact.
func (s *Store) ReplaceRateCard(ctx context.Context, items []sow.RateCardItem) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx DBTX) error {
		repo := NewRateCardRepo(tx)
		if err := repo.Clear(ctx); err != nil {
			return err
		}
		seen := make(map[string]bool, len(items))
		for _, it := range items {
			name := strings.TrimSpace(it.Name)
			if seen[name] {
				continue
			}
			seen[name] = true
			if err := repo.Upsert(ctx, it); err != nil {
				return err
			}
		}
		return nil
	})
}
