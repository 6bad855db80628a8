package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/db/migrations"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

func openTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn, PoolOptions{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrations.FS); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func seedBrand(t *testing.T, ctx context.Context, db *sql.DB, userID, name string, createdAt time.Time) string {
	t.Helper()
	var id string
	err := db.QueryRowContext(ctx, `
		INSERT INTO brands (user_id, name, tagline, logo, attributes, created_at)
		VALUES ($1, $2, 'Built to last', 'https://cdn.example.com/logo.svg', '{"website": "acme.test", "founded": 1999}', $3)
		RETURNING id
	`, userID, name, createdAt).Scan(&id)
	if err != nil {
		t.Fatalf("insert brand: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO brand_colors (brand_id, value, is_primary, rank) VALUES
			($1, '#F2C94C', FALSE, 1),
			($1, '#1A428A', TRUE, 0)
	`, id); err != nil {
		t.Fatalf("insert colors: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO brand_fonts (brand_id, name, bold, google) VALUES ($1, 'Brand Sans', TRUE, TRUE)
	`, id); err != nil {
		t.Fatalf("insert fonts: %v", err)
	}
	return id
}

func TestPostgresBrandLookup(t *testing.T) {
	s, ctx := openTestStore(t)

	var userID string
	if err := s.DB().QueryRowContext(ctx, `
		INSERT INTO users (email, name, avatar) VALUES ('avi@example.com', 'Avi', 'https://cdn.example.com/avi.png')
		RETURNING id
	`).Scan(&userID); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	base := time.Now().Add(-time.Hour)
	first := seedBrand(t, ctx, s.DB(), userID, "Acme", base)
	second := seedBrand(t, ctx, s.DB(), userID, "Acme Labs", base.Add(time.Minute))

	user, err := s.GetUserByEmail(ctx, "  AVI@example.com ")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if user.ID != userID || user.Name != "Avi" {
		t.Fatalf("unexpected user %+v", user)
	}

	brand, err := s.GetBrandForUser(ctx, userID, second)
	if err != nil {
		t.Fatalf("GetBrandForUser failed: %v", err)
	}
	if brand.ID != second {
		t.Errorf("expected requested brand %s, got %s", second, brand.ID)
	}

	brand, err = s.GetBrandForUser(ctx, userID, "not-theirs")
	if err != nil {
		t.Fatalf("GetBrandForUser fallback failed: %v", err)
	}
	if brand.ID != first {
		t.Errorf("expected oldest brand %s, got %s", first, brand.ID)
	}

	wantColors := []design.Color{
		{Value: "#1A428A", Primary: true, Rank: 0},
		{Value: "#F2C94C", Rank: 1},
	}
	if diff := cmp.Diff(wantColors, brand.Colors); diff != "" {
		t.Errorf("colors mismatch (-want +got):\n%s", diff)
	}
	if len(brand.Fonts) != 1 || !brand.Fonts[0].Bold || brand.Fonts[0].Name != "Brand Sans" {
		t.Errorf("unexpected fonts %+v", brand.Fonts)
	}
	if v, _ := brand.Attributes.Get("website"); v != "acme.test" {
		t.Errorf("expected website attribute, got %q", v)
	}
	if v, _ := brand.Attributes.Get("founded"); v != "1999" {
		t.Errorf("expected numeric attribute kept literally, got %q", v)
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.GetBrandForUser(ctx, "00000000-0000-0000-0000-000000000000", ""); !errors.Is(err, ErrBrandNotFound) {
		t.Errorf("expected ErrBrandNotFound, got %v", err)
	}
	if _, err := s.GetBrand(ctx, first); err != nil {
		t.Errorf("GetBrand failed: %v", err)
	}
}

func TestPostgresDesignRoundTrip(t *testing.T) {
	s, ctx := openTestStore(t)

	fill := "#000000"
	d := &design.Design{
		Name:  "Flyer",
		Width: 1080,
		Pages: []*design.Page{{
			ID: "p1",
			Children: []*design.Element{
				{ID: "e1", Type: "text", Name: "{name}", Text: "Hi", Fill: &fill},
			},
		}},
	}
	if err := s.SaveDesign(ctx, d); err != nil {
		t.Fatalf("SaveDesign insert failed: %v", err)
	}
	if d.ID == "" {
		t.Fatal("expected generated id")
	}

	d.Preview = "https://cdn.example.com/p.png"
	d.Pages[0].Children[0].Text = "Acme"
	if err := s.SaveDesign(ctx, d); err != nil {
		t.Fatalf("SaveDesign update failed: %v", err)
	}

	got, err := s.GetDesign(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDesign failed: %v", err)
	}
	if got.Preview != d.Preview || got.Pages[0].Children[0].Text != "Acme" || *got.Pages[0].Children[0].Fill != fill {
		t.Errorf("unexpected design %+v", got)
	}

	list, err := s.ListDesigns(ctx, 10)
	if err != nil {
		t.Fatalf("ListDesigns failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != d.ID || list[0].Name != "Flyer" {
		t.Errorf("unexpected list %+v", list)
	}

	if _, err := s.GetDesign(ctx, "missing"); !errors.Is(err, ErrDesignNotFound) {
		t.Errorf("expected ErrDesignNotFound, got %v", err)
	}
}
