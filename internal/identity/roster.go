package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/sync/singleflight"

	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

// StaffRole identifies the staff member's authorization level.
type StaffRole string

const (
	RoleOwner StaffRole = "owner"
	RoleAdmin StaffRole = "admin"
	RoleSales StaffRole = "sales"
)

// StaffIdentity is one entry of the external staff roster. Read-only here.
type StaffIdentity struct {
	TenantID string
	Phone    string
	Name     string
	Role     StaffRole
}

// RosterSource loads the staff roster for a tenant from persistence.
type RosterSource interface {
	ListStaff(ctx context.Context, tenantID string) ([]StaffIdentity, error)
}

type rosterEntry struct {
	byPhone   map[string]StaffIdentity
	fetchedAt time.Time
}

// Roster caches per-tenant staff lookups with a TTL. Expired entries are
// served stale while a background refresh runs, so the request path never
// blocks on the roster source.
type Roster struct {
	source RosterSource
	logger *logging.Logger
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]rosterEntry
	group singleflight.Group

	now func() time.Time
}

// NewRoster creates a roster cache with a 5-minute TTL.
func NewRoster(source RosterSource, logger *logging.Logger) *Roster {
	if logger == nil {
		logger = logging.Default()
	}
	return &Roster{
		source: source,
		logger: logger,
		ttl:    5 * time.Minute,
		cache:  make(map[string]rosterEntry),
		now:    time.Now,
	}
}

// WithTTL overrides the cache TTL.
func (r *Roster) WithTTL(ttl time.Duration) *Roster {
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// ResolveStaff looks up a normalized phone in the tenant's roster. A miss is
// not an error: the sender is simply treated as a customer.
func (r *Roster) ResolveStaff(ctx context.Context, tenantID, phone string) (*StaffIdentity, bool) {
	if r == nil || r.source == nil {
		return nil, false
	}
	phone = strings.TrimSpace(phone)
	if tenantID == "" || phone == "" {
		return nil, false
	}

	entry, ok := r.lookup(tenantID)
	if !ok {
		fresh, err := r.refresh(ctx, tenantID)
		if err != nil {
			r.logger.Error("roster load failed", "error", err, "tenant_id", tenantID)
			return nil, false
		}
		entry = fresh
	} else if r.now().Sub(entry.fetchedAt) > r.ttl {
		// Serve stale, refresh in the background.
		go func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := r.refresh(refreshCtx, tenantID); err != nil {
				r.logger.Warn("roster refresh failed; serving stale", "error", err, "tenant_id", tenantID)
			}
		}()
	}

	staff, found := entry.byPhone[phone]
	if !found {
		return nil, false
	}
	return &staff, true
}

// VerifyPhoneBinding validates an operator-supplied phone from a verification
// command and resolves it against the roster. The binding is accepted only on
// an exact roster match.
func (r *Roster) VerifyPhoneBinding(ctx context.Context, tenantID, rawPhone string) (*StaffIdentity, error) {
	sender := Normalize(rawPhone)
	if sender.Kind != SenderPhone || sender.Phone == "" {
		return nil, fmt.Errorf("identity: verification requires a phone number, got %q", rawPhone)
	}

	// Reject numbers that cannot be real before touching the roster.
	if parsed, err := phonenumbers.Parse("+"+sender.Phone, ""); err != nil || !phonenumbers.IsValidNumber(parsed) {
		return nil, fmt.Errorf("identity: %q is not a valid phone number", rawPhone)
	}

	staff, ok := r.ResolveStaff(ctx, tenantID, sender.Phone)
	if !ok {
		return nil, fmt.Errorf("identity: phone %s not on the staff roster", sender.Phone)
	}
	return staff, nil
}

func (r *Roster) lookup(tenantID string) (rosterEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[tenantID]
	return entry, ok
}

func (r *Roster) refresh(ctx context.Context, tenantID string) (rosterEntry, error) {
	v, err, _ := r.group.Do(tenantID, func() (any, error) {
		staff, err := r.source.ListStaff(ctx, tenantID)
		if err != nil {
			return rosterEntry{}, err
		}
		byPhone := make(map[string]StaffIdentity, len(staff))
		for _, s := range staff {
			sender := Normalize(s.Phone)
			if sender.Phone == "" {
				continue
			}
			s.Phone = sender.Phone
			byPhone[sender.Phone] = s
		}
		entry := rosterEntry{byPhone: byPhone, fetchedAt: r.now()}
		r.mu.Lock()
		r.cache[tenantID] = entry
		r.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return rosterEntry{}, err
	}
	return v.(rosterEntry), nil
}
