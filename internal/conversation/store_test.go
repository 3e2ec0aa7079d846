package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolumiku/dealership-ai-platform/internal/identity"
)

var conversationColumns = []string{
	"id", "tenant_id", "account_id", "customer_key", "sender_kind", "type",
	"status", "context", "version", "last_message_at", "escalated_at",
	"created_at", "updated_at",
}

func conversationRow(id uuid.UUID, ctxBag Context, version int64) *sqlmock.Rows {
	contextJSON, _ := json.Marshal(ctxBag)
	now := time.Now()
	return sqlmock.NewRows(conversationColumns).AddRow(
		id, "t1", "acct-1", "628123", "phone", "customer",
		"active", contextJSON, version, now, nil, now, now,
	)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM conversations\s+WHERE tenant_id = \$1 AND account_id = \$2 AND customer_key = \$3`).
		WithArgs("t1", "acct-1", "628123").
		WillReturnRows(conversationRow(id, Context{}, 4))

	conv, err := store.GetOrCreate(context.Background(), "t1", "acct-1", "628123", identity.SenderPhone, TypeCustomer)
	require.NoError(t, err)
	assert.Equal(t, id, conv.ID)
	assert.Equal(t, int64(4), conv.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateInsertsWhenMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM conversations`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO conversations`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conv, err := store.GetOrCreate(context.Background(), "t1", "acct-1", "628123", identity.SenderPhone, TypeCustomer)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, conv.Status)
	assert.Equal(t, int64(1), conv.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateDuplicateKeyRace(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM conversations`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO conversations`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint`))
	mock.ExpectQuery(`SELECT .* FROM conversations`).
		WillReturnRows(conversationRow(id, Context{}, 1))

	conv, err := store.GetOrCreate(context.Background(), "t1", "acct-1", "628123", identity.SenderPhone, TypeCustomer)
	require.NoError(t, err)
	assert.Equal(t, id, conv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateRequiresTenant(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.GetOrCreate(context.Background(), "", "acct", "key", identity.SenderPhone, TypeCustomer)
	assert.Error(t, err)
}

func TestSaveBumpsVersion(t *testing.T) {
	store, mock := newMockStore(t)
	conv := &Conversation{ID: uuid.New(), TenantID: "t1", Type: TypeCustomer, Status: StatusActive, Version: 3}

	mock.ExpectExec(`UPDATE conversations SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), conv))
	assert.Equal(t, int64(4), conv.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveStaleVersion(t *testing.T) {
	store, mock := newMockStore(t)
	conv := &Conversation{ID: uuid.New(), TenantID: "t1", Type: TypeCustomer, Status: StatusActive, Version: 3}

	mock.ExpectExec(`UPDATE conversations SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Save(context.Background(), conv)
	assert.ErrorIs(t, err, ErrStaleConversation)
	assert.Equal(t, int64(3), conv.Version, "version must not advance on a lost race")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePersistsContextBag(t *testing.T) {
	store, mock := newMockStore(t)
	conv := &Conversation{ID: uuid.New(), TenantID: "t1", Type: TypeStaff, Status: StatusActive, Version: 1}
	draft := conv.Context.BeginUpload(time.Now())
	draft.Photos = []MediaRef{{URL: "a.jpg", MediaType: "image"}}

	contextJSON, err := json.Marshal(conv.Context)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE conversations SET`).
		WithArgs("staff", "active", contextJSON, sqlmock.AnyArg(), nil, sqlmock.AnyArg(),
			"t1", conv.ID, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), conv))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM conversations`).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "t1", uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRestoresContextBag(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	bag := Context{}
	draft := bag.BeginUpload(time.Now().UTC().Truncate(time.Second))
	draft.Step = StepPhotoAwaitingData
	draft.Photos = []MediaRef{{URL: "a.jpg", MediaType: "image"}}

	mock.ExpectQuery(`SELECT .* FROM conversations`).
		WillReturnRows(conversationRow(id, bag, 2))

	conv, err := store.Get(context.Background(), "t1", id)
	require.NoError(t, err)
	restored := conv.Context.UploadDraft()
	require.NotNil(t, restored)
	assert.Equal(t, StepPhotoAwaitingData, restored.Step)
	require.Len(t, restored.Photos, 1)
	assert.Equal(t, "a.jpg", restored.Photos[0].URL)
}

func TestAppendMessageFillsDefaults(t *testing.T) {
	store, mock := newMockStore(t)
	msg := &Message{ConversationID: uuid.New(), Direction: DirectionInbound, Content: "halo"}

	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AppendMessage(context.Background(), msg))
	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestUpdateDispatchStatus(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE messages SET dispatch_status`).
		WithArgs(DispatchSent, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateDispatchStatus(context.Background(), id, DispatchSent))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryNewestFirst(t *testing.T) {
	store, mock := newMockStore(t)
	convID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "conversation_id", "direction", "content", "intent",
		"media_url", "media_type", "dispatch_status", "created_at",
	}).
		AddRow(uuid.New(), convID, "outbound", "balasan", "customer_greeting", "", "", "sent", now).
		AddRow(uuid.New(), convID, "inbound", "halo", "customer_greeting", "", "", "", now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT .* FROM messages`).
		WithArgs(convID, 20).
		WillReturnRows(rows)

	history, err := store.History(context.Background(), convID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, DirectionOutbound, history[0].Direction)
	assert.Equal(t, "halo", history[1].Content)
}
