package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GetDesign(ctx context.Context, id string) (*design.Design, error) {
	var (
		name, preview string
		document      []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT name, document, preview FROM designs WHERE id=$1`, id).
		Scan(&name, &document, &preview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDesignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get design: %w", err)
	}

	var d design.Design
	if err := json.Unmarshal(document, &d); err != nil {
		return nil, fmt.Errorf("decode design %s: %w", id, err)
	}
	d.ID = id
	if d.Name == "" {
		d.Name = name
	}
	if d.Preview == "" {
		d.Preview = preview
	}
	return &d, nil
}

// SaveDesign inserts or replaces a design. A design without an ID gets one
// assigned by the database and written back to d.
func (s *PostgresStore) SaveDesign(ctx context.Context, d *design.Design) error {
	document, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode design: %w", err)
	}

	if d.ID == "" {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO designs (name, document, preview)
			VALUES ($1, $2, $3)
			RETURNING id
		`, d.Name, document, d.Preview).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("insert design: %w", err)
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO designs (id, name, document, preview)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			document = EXCLUDED.document,
			preview = EXCLUDED.preview,
			updated_at = NOW()
	`, d.ID, d.Name, document, d.Preview)
	if err != nil {
		return fmt.Errorf("save design: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDesigns(ctx context.Context, limit int) ([]DesignSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, preview, updated_at
		FROM designs
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()

	out := make([]DesignSummary, 0)
	for rows.Next() {
		var item DesignSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.Preview, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*design.User, error) {
	var user design.User
	err := s.db.QueryRowContext(ctx, `SELECT id, name, avatar FROM users WHERE LOWER(email)=LOWER($1)`, strings.TrimSpace(email)).
		Scan(&user.ID, &user.Name, &user.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

const brandColumns = `id, name, email, phone, tagline, industry, logo, wordmark, icon, attributes`

func (s *PostgresStore) GetBrand(ctx context.Context, id string) (*design.Brand, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id=$1`, id)
	return s.loadBrand(ctx, row)
}

// GetBrandForUser picks brandID among the user's brands, falling back to
// the user's oldest brand when brandID is empty or not theirs.
func (s *PostgresStore) GetBrandForUser(ctx context.Context, userID, brandID string) (*design.Brand, error) {
	if brandID != "" {
		row := s.db.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id=$1 AND user_id=$2`, brandID, userID)
		brand, err := s.loadBrand(ctx, row)
		if err == nil || !errors.Is(err, ErrBrandNotFound) {
			return brand, err
		}
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+brandColumns+`
		FROM brands
		WHERE user_id=$1
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, userID)
	return s.loadBrand(ctx, row)
}

func (s *PostgresStore) loadBrand(ctx context.Context, row *sql.Row) (*design.Brand, error) {
	var (
		brand      design.Brand
		attributes []byte
	)
	err := row.Scan(
		&brand.ID, &brand.Name, &brand.Email, &brand.Phone, &brand.Tagline,
		&brand.Industry, &brand.Logo, &brand.Wordmark, &brand.Icon, &attributes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBrandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get brand: %w", err)
	}
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &brand.Attributes); err != nil {
			return nil, fmt.Errorf("decode brand attributes: %w", err)
		}
	}

	if brand.Colors, err = s.brandColors(ctx, brand.ID); err != nil {
		return nil, err
	}
	if brand.Fonts, err = s.brandFonts(ctx, brand.ID); err != nil {
		return nil, err
	}
	return &brand, nil
}

func (s *PostgresStore) brandColors(ctx context.Context, brandID string) ([]design.Color, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value, is_primary, rank
		FROM brand_colors
		WHERE brand_id=$1
		ORDER BY rank ASC, id ASC
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("list brand colors: %w", err)
	}
	defer rows.Close()

	out := make([]design.Color, 0)
	for rows.Next() {
		var c design.Color
		if err := rows.Scan(&c.Value, &c.Primary, &c.Rank); err != nil {
			return nil, fmt.Errorf("scan brand color: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) brandFonts(ctx context.Context, brandID string) ([]design.Font, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, url, bold, italic, google
		FROM brand_fonts
		WHERE brand_id=$1
		ORDER BY id ASC
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("list brand fonts: %w", err)
	}
	defer rows.Close()

	out := make([]design.Font, 0)
	for rows.Next() {
		var f design.Font
		if err := rows.Scan(&f.Name, &f.Value, &f.URL, &f.Bold, &f.Italic, &f.Google); err != nil {
			return nil, fmt.Errorf("scan brand font: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
