package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autolumiku/dealership-ai-platform/internal/identity"
)

// ErrStaleConversation signals a lost optimistic-lock race: the conversation
// was updated by a concurrent message since it was read. Callers re-read and
// re-apply.
var ErrStaleConversation = errors.New("conversation: stale version")

// ErrNotFound is returned when a conversation cannot be located for the
// tenant. Often this means "reject the command", not a fatal failure.
var ErrNotFound = errors.New("conversation: not found")

// Store persists conversations and their messages to PostgreSQL. Every query
// is tenant partitioned; no cross-tenant path exists.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// GetOrCreate returns the live conversation for the identity tuple, creating
// it when the customer is unknown. New conversations start with no workflow,
// an empty context, and active status.
func (s *Store) GetOrCreate(ctx context.Context, tenantID, accountID, customerKey string, senderKind identity.SenderKind, convType Type) (*Conversation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("conversation: tenantID is mandatory")
	}

	conv, err := s.getLive(ctx, tenantID, accountID, customerKey)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	fresh := &Conversation{
		ID:            uuid.New(),
		TenantID:      tenantID,
		AccountID:     accountID,
		CustomerKey:   customerKey,
		SenderKind:    senderKind,
		Type:          convType,
		Status:        StatusActive,
		Version:       1,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	contextJSON, err := json.Marshal(fresh.Context)
	if err != nil {
		return nil, fmt.Errorf("conversation: encode context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, tenant_id, account_id, customer_key, sender_kind, type,
			status, context, version, last_message_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, fresh.ID, tenantID, accountID, customerKey, string(senderKind),
		string(convType), string(StatusActive), contextJSON, fresh.Version,
		now, now, now,
	)
	if err != nil {
		// Another message for the same identity may have created it first.
		if strings.Contains(err.Error(), "duplicate key") {
			return s.getLive(ctx, tenantID, accountID, customerKey)
		}
		return nil, fmt.Errorf("conversation: create: %w", err)
	}

	return fresh, nil
}

// Get fetches a conversation by id within the tenant partition.
func (s *Store) Get(ctx context.Context, tenantID string, id uuid.UUID) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, selectConversation+`
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return scanConversation(row)
}

func (s *Store) getLive(ctx context.Context, tenantID, accountID, customerKey string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, selectConversation+`
		WHERE tenant_id = $1 AND account_id = $2 AND customer_key = $3 AND status != 'closed'
	`, tenantID, accountID, customerKey)
	return scanConversation(row)
}

const selectConversation = `
	SELECT id, tenant_id, account_id, customer_key, sender_kind, type,
		   status, context, version, last_message_at, escalated_at,
		   created_at, updated_at
	FROM conversations
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var senderKind, convType, status string
	var contextJSON []byte
	var escalatedAt sql.NullTime

	err := row.Scan(
		&conv.ID, &conv.TenantID, &conv.AccountID, &conv.CustomerKey,
		&senderKind, &convType, &status, &contextJSON, &conv.Version,
		&conv.LastMessageAt, &escalatedAt, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: scan: %w", err)
	}

	conv.SenderKind = identity.SenderKind(senderKind)
	conv.Type = Type(convType)
	conv.Status = Status(status)
	if escalatedAt.Valid {
		conv.EscalatedAt = &escalatedAt.Time
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &conv.Context); err != nil {
			return nil, fmt.Errorf("conversation: decode context: %w", err)
		}
	}

	return &conv, nil
}

// Save writes the conversation back using optimistic versioning. Rapid
// successive messages for one identity race on the context bag (photo
// appends especially); the version check turns a lost update into
// ErrStaleConversation so the caller can re-read and re-apply.
func (s *Store) Save(ctx context.Context, conv *Conversation) error {
	contextJSON, err := json.Marshal(conv.Context)
	if err != nil {
		return fmt.Errorf("conversation: encode context: %w", err)
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			type = $1, status = $2, context = $3,
			version = version + 1, last_message_at = $4,
			escalated_at = $5, updated_at = $6
		WHERE tenant_id = $7 AND id = $8 AND version = $9
	`, string(conv.Type), string(conv.Status), contextJSON,
		conv.LastMessageAt, conv.EscalatedAt, now,
		conv.TenantID, conv.ID, conv.Version,
	)
	if err != nil {
		return fmt.Errorf("conversation: save: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation: save result: %w", err)
	}
	if rows == 0 {
		return ErrStaleConversation
	}

	conv.Version++
	conv.UpdatedAt = now
	return nil
}

// Close marks the conversation closed. Conversations are never hard-deleted.
func (s *Store) Close(ctx context.Context, tenantID string, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = 'closed', updated_at = $1
		WHERE tenant_id = $2 AND id = $3
	`, time.Now(), tenantID, id)
	if err != nil {
		return fmt.Errorf("conversation: close: %w", err)
	}
	return nil
}

// AppendMessage persists one message. Messages are immutable once written
// except for the outbound dispatch status.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_id, direction, content, intent,
			media_url, media_type, dispatch_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, msg.ID, msg.ConversationID, string(msg.Direction), msg.Content,
		msg.Intent, msg.MediaURL, msg.MediaType, msg.DispatchStatus,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("conversation: append message: %w", err)
	}
	return nil
}

// UpdateDispatchStatus records the delivery outcome of an outbound message.
func (s *Store) UpdateDispatchStatus(ctx context.Context, messageID uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET dispatch_status = $1 WHERE id = $2
	`, status, messageID)
	if err != nil {
		return fmt.Errorf("conversation: update dispatch status: %w", err)
	}
	return nil
}

// History returns the newest messages for a conversation, newest first.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, direction, content, intent,
			   COALESCE(media_url, ''), COALESCE(media_type, ''),
			   COALESCE(dispatch_status, ''), created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: history: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var direction string
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &direction, &msg.Content,
			&msg.Intent, &msg.MediaURL, &msg.MediaType, &msg.DispatchStatus,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		msg.Direction = Direction(direction)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
