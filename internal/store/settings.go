package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/sow-workbench/internal/render"
)

const (
	keyBrand         = "brand"
	keySelectedModel = "selected_model"
)

// SettingsRepo is a key/value table holding brand settings and the selected
// model.
type SettingsRepo struct {
	db DBTX
}

func NewSettingsRepo(conn DBTX) *SettingsRepo {
	return &SettingsRepo{db: conn}
}

// Get returns the raw value for key.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("setting %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("reading setting %q: %w", key, err)
	}
	return v, nil
}

// Set inserts or replaces key.
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing setting %q: %w", key, err)
	}
	return nil
}

// BrandSettings returns the stored brand merged over the defaults. Nothing
// stored yet yields the defaults.
func (r *SettingsRepo) BrandSettings(ctx context.Context) (render.BrandSettings, error) {
	raw, err := r.Get(ctx, keyBrand)
	if errors.Is(err, ErrNotFound) {
		return render.DefaultBrand(), nil
	}
	if err != nil {
		return render.BrandSettings{}, err
	}
	var b render.BrandSettings
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return render.BrandSettings{}, fmt.Errorf("decoding brand settings: %w", err)
	}
	return b.Merge(), nil
}

// SaveBrandSettings stores b after merging it over the defaults, so invalid
// fields never reach the database.
func (r *SettingsRepo) SaveBrandSettings(ctx context.Context, b render.BrandSettings) error {
	data, err := json.Marshal(b.Merge())
	if err != nil {
		return fmt.Errorf("encoding brand settings: %w", err)
	}
	return r.Set(ctx, keyBrand, string(data))
}

// SelectedModel returns the model chosen for generation, ErrNotFound if none.
func (r *SettingsRepo) SelectedModel(ctx context.Context) (string, error) {
	return r.Get(ctx, keySelectedModel)
}

func (r *SettingsRepo) SaveSelectedModel(ctx context.Context, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("model is required")
	}
	return r.Set(ctx, keySelectedModel, model)
}
