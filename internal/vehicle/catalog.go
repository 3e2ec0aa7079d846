package vehicle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status values for a catalog listing, driven by staff commands.
const (
	StatusAvailable = "tersedia"
	StatusBooked    = "booking"
	StatusSold      = "terjual"
)

// Catalog persists vehicle listings to PostgreSQL.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	if db == nil {
		return nil
	}
	return &Catalog{db: db}
}

// CreateVehicle inserts a new listing and returns its id.
func (c *Catalog) CreateVehicle(ctx context.Context, tenantID string, f Fields, photoURLs []string) (string, error) {
	if c == nil || c.db == nil {
		return "", fmt.Errorf("vehicle: catalog unavailable")
	}

	id := uuid.NewString()
	now := time.Now()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO vehicles (
			id, tenant_id, make, model, year, price, mileage, color,
			transmission, photo_count, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, id, tenantID, f.Make, f.Model, f.Year, f.Price, f.Mileage, f.Color,
		string(f.Transmission), len(photoURLs), StatusAvailable, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("vehicle: create listing: %w", err)
	}

	for i, url := range photoURLs {
		if _, err := c.db.ExecContext(ctx, `
			INSERT INTO vehicle_photos (id, vehicle_id, url, position, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), id, url, i, now); err != nil {
			return "", fmt.Errorf("vehicle: attach photo: %w", err)
		}
	}

	return id, nil
}

// UpdateStatus changes a listing's availability, scoped to the tenant.
func (c *Catalog) UpdateStatus(ctx context.Context, tenantID, vehicleID, status string) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("vehicle: catalog unavailable")
	}

	result, err := c.db.ExecContext(ctx, `
		UPDATE vehicles SET status = $1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4
	`, status, time.Now(), tenantID, vehicleID)
	if err != nil {
		return fmt.Errorf("vehicle: update status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("vehicle: listing %s not found", vehicleID)
	}
	return nil
}

// CountByStatus returns listing counts per status for a tenant.
func (c *Catalog) CountByStatus(ctx context.Context, tenantID string) (map[string]int, error) {
	if c == nil || c.db == nil {
		return nil, fmt.Errorf("vehicle: catalog unavailable")
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM vehicles
		WHERE tenant_id = $1
		GROUP BY status
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("vehicle: count listings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("vehicle: scan count row: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ListRecent returns the newest listings for a tenant, newest first.
func (c *Catalog) ListRecent(ctx context.Context, tenantID string, limit int) ([]Listing, error) {
	if c == nil || c.db == nil {
		return nil, fmt.Errorf("vehicle: catalog unavailable")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, make, model, year, price, status
		FROM vehicles
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("vehicle: list listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Make, &l.Model, &l.Year, &l.Price, &l.Status); err != nil {
			return nil, fmt.Errorf("vehicle: scan listing row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// FindByModel returns the newest available listing matching a model name,
// or nil when the tenant has no such unit.
func (c *Catalog) FindByModel(ctx context.Context, tenantID, model string) (*Listing, error) {
	if c == nil || c.db == nil {
		return nil, fmt.Errorf("vehicle: catalog unavailable")
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT id, make, model, year, price, status
		FROM vehicles
		WHERE tenant_id = $1 AND LOWER(model) = LOWER($2) AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID, model, StatusAvailable)

	var l Listing
	if err := row.Scan(&l.ID, &l.Make, &l.Model, &l.Year, &l.Price, &l.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("vehicle: find by model: %w", err)
	}
	return &l, nil
}

// PhotoURLs returns the stored photo URLs for a listing, in upload order.
func (c *Catalog) PhotoURLs(ctx context.Context, tenantID, vehicleID string) ([]string, error) {
	if c == nil || c.db == nil {
		return nil, fmt.Errorf("vehicle: catalog unavailable")
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT p.url
		FROM vehicle_photos p
		JOIN vehicles v ON v.id = p.vehicle_id
		WHERE v.tenant_id = $1 AND p.vehicle_id = $2
		ORDER BY p.position ASC
	`, tenantID, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("vehicle: list photos: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("vehicle: scan photo row: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Listing is a catalog row surfaced to staff inventory queries.
type Listing struct {
	ID     string
	Make   string
	Model  string
	Year   int
	Price  int64
	Status string
}
