package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrAccountNotFound means no tenant owns the gateway account.
var ErrAccountNotFound = errors.New("tenancy: gateway account not found")

// AccountDirectory maps gateway account ids onto tenants.
type AccountDirectory struct {
	db *sql.DB
}

func NewAccountDirectory(db *sql.DB) *AccountDirectory {
	if db == nil {
		return nil
	}
	return &AccountDirectory{db: db}
}

// TenantForAccount resolves the owning tenant of a gateway account.
func (d *AccountDirectory) TenantForAccount(ctx context.Context, accountID string) (string, error) {
	if d == nil || d.db == nil {
		return "", fmt.Errorf("tenancy: account directory unavailable")
	}

	var tenantID string
	err := d.db.QueryRowContext(ctx, `
		SELECT tenant_id FROM gateway_accounts
		WHERE account_id = $1 AND active = TRUE
	`, accountID).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("tenancy: resolve account: %w", err)
	}
	return tenantID, nil
}
