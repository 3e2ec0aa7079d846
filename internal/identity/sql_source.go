package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLRosterSource reads the staff roster maintained by the admin portal.
type SQLRosterSource struct {
	db *sql.DB
}

func NewSQLRosterSource(db *sql.DB) *SQLRosterSource {
	if db == nil {
		return nil
	}
	return &SQLRosterSource{db: db}
}

func (s *SQLRosterSource) ListStaff(ctx context.Context, tenantID string) ([]StaffIdentity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, phone, name, role
		FROM staff_roster
		WHERE tenant_id = $1 AND active = TRUE
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("identity: list staff: %w", err)
	}
	defer rows.Close()

	var staff []StaffIdentity
	for rows.Next() {
		var s StaffIdentity
		if err := rows.Scan(&s.TenantID, &s.Phone, &s.Name, &s.Role); err != nil {
			return nil, fmt.Errorf("identity: scan staff row: %w", err)
		}
		staff = append(staff, s)
	}

	return staff, rows.Err()
}
