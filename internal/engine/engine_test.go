package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolumiku/dealership-ai-platform/internal/conversation"
	"github.com/autolumiku/dealership-ai-platform/internal/identity"
	"github.com/autolumiku/dealership-ai-platform/internal/messaging"
	"github.com/autolumiku/dealership-ai-platform/internal/upload"
	"github.com/autolumiku/dealership-ai-platform/internal/vehicle"
)

type memStore struct {
	convs      map[string]*conversation.Conversation
	conv       *conversation.Conversation // first conversation created
	messages   []*conversation.Message
	saveErrs   []error
	saves      int
	freshOnGet *conversation.Conversation
}

func (m *memStore) GetOrCreate(_ context.Context, tenantID, accountID, customerKey string, senderKind identity.SenderKind, convType conversation.Type) (*conversation.Conversation, error) {
	if m.convs == nil {
		m.convs = map[string]*conversation.Conversation{}
	}
	if c, ok := m.convs[customerKey]; ok {
		return c, nil
	}
	c := &conversation.Conversation{
		ID:          uuid.New(),
		TenantID:    tenantID,
		AccountID:   accountID,
		CustomerKey: customerKey,
		SenderKind:  senderKind,
		Type:        convType,
		Status:      conversation.StatusActive,
		Version:     1,
	}
	m.convs[customerKey] = c
	if m.conv == nil {
		m.conv = c
	}
	return c, nil
}

func (m *memStore) Get(_ context.Context, _ string, id uuid.UUID) (*conversation.Conversation, error) {
	if m.freshOnGet != nil {
		return m.freshOnGet, nil
	}
	for _, c := range m.convs {
		if c.ID == id {
			return c, nil
		}
	}
	return m.conv, nil
}

func (m *memStore) Save(context.Context, *conversation.Conversation) error {
	m.saves++
	if m.saves <= len(m.saveErrs) {
		return m.saveErrs[m.saves-1]
	}
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, msg *conversation.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memStore) UpdateDispatchStatus(_ context.Context, id uuid.UUID, status string) error {
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.DispatchStatus = status
		}
	}
	return nil
}

func (m *memStore) History(context.Context, uuid.UUID, int) ([]conversation.Message, error) {
	return nil, nil
}

func (m *memStore) outbound() []*conversation.Message {
	var out []*conversation.Message
	for _, msg := range m.messages {
		if msg.Direction == conversation.DirectionOutbound {
			out = append(out, msg)
		}
	}
	return out
}

type memRoster struct {
	staff map[string]*identity.StaffIdentity
}

func (m *memRoster) ResolveStaff(_ context.Context, _ string, phone string) (*identity.StaffIdentity, bool) {
	s, ok := m.staff[phone]
	return s, ok
}

func (m *memRoster) VerifyPhoneBinding(_ context.Context, _ string, rawPhone string) (*identity.StaffIdentity, error) {
	normalized := identity.Normalize(rawPhone)
	if s, ok := m.staff[normalized.Phone]; ok {
		return s, nil
	}
	return nil, errors.New("identity: phone not on roster")
}

type memUploads struct {
	started   int
	photos    int
	dataCalls []string
}

func (m *memUploads) Start(context.Context, *conversation.Conversation) upload.Outcome {
	m.started++
	return upload.Outcome{Reply: "kirim foto"}
}

func (m *memUploads) StartWithData(_ context.Context, _ *conversation.Conversation, data string) upload.Outcome {
	m.dataCalls = append(m.dataCalls, data)
	return upload.Outcome{Reply: "data diterima"}
}

func (m *memUploads) HandlePhoto(context.Context, *conversation.Conversation, conversation.MediaRef) upload.Outcome {
	m.photos++
	return upload.Outcome{Reply: "foto diterima"}
}

func (m *memUploads) HandleData(_ context.Context, _ *conversation.Conversation, text string) upload.Outcome {
	m.dataCalls = append(m.dataCalls, text)
	return upload.Outcome{Reply: "data diproses"}
}

type memInventory struct {
	statusCalls []string
	listing     *vehicle.Listing
	photoURLs   []string
}

func (m *memInventory) UpdateStatus(_ context.Context, _ string, vehicleID, status string) error {
	m.statusCalls = append(m.statusCalls, vehicleID+" "+status)
	return nil
}

func (m *memInventory) CountByStatus(context.Context, string) (map[string]int, error) {
	return map[string]int{vehicle.StatusAvailable: 3, vehicle.StatusSold: 1}, nil
}

func (m *memInventory) ListRecent(context.Context, string, int) ([]vehicle.Listing, error) {
	if m.listing == nil {
		return nil, nil
	}
	return []vehicle.Listing{*m.listing}, nil
}

func (m *memInventory) FindByModel(_ context.Context, _ string, model string) (*vehicle.Listing, error) {
	if m.listing != nil && strings.EqualFold(m.listing.Model, model) {
		return m.listing, nil
	}
	return nil, nil
}

func (m *memInventory) PhotoURLs(context.Context, string, string) ([]string, error) {
	return m.photoURLs, nil
}

type memSender struct {
	texts  []messaging.OutboundText
	images [][]messaging.OutboundImage
	err    error
}

func (m *memSender) SendText(_ context.Context, msg messaging.OutboundText) (messaging.SendResult, error) {
	if m.err != nil {
		return messaging.SendResult{}, m.err
	}
	m.texts = append(m.texts, msg)
	return messaging.SendResult{MessageID: fmt.Sprintf("out-%d", len(m.texts))}, nil
}

func (m *memSender) SendImages(_ context.Context, msgs []messaging.OutboundImage) ([]messaging.SendResult, error) {
	m.images = append(m.images, msgs)
	return make([]messaging.SendResult, len(msgs)), nil
}

type fixedReplier struct{ reply string }

func (f fixedReplier) Reply(context.Context, conversation.CompletionRequest) string { return f.reply }

type engineFixture struct {
	engine    *Engine
	store     *memStore
	roster    *memRoster
	uploads   *memUploads
	inventory *memInventory
	sender    *memSender
}

func newFixture() *engineFixture {
	f := &engineFixture{
		store:     &memStore{},
		roster:    &memRoster{staff: map[string]*identity.StaffIdentity{}},
		uploads:   &memUploads{},
		inventory: &memInventory{},
		sender:    &memSender{},
	}
	f.engine = New(f.store, f.roster, f.uploads, f.inventory, f.sender, nil).
		WithResponder(fixedReplier{reply: "balasan ai"})
	return f
}

func (f *engineFixture) addStaff(phone, name string) {
	f.roster.staff[phone] = &identity.StaffIdentity{TenantID: "t1", Phone: phone, Name: name, Role: identity.RoleSales}
}

func customerEvent(text string) InboundEvent {
	return InboundEvent{
		TenantID:  "t1",
		AccountID: "acct-1",
		Sender:    "08123456789@s.whatsapp.net",
		Text:      text,
		Timestamp: time.Now(),
	}
}

func staffEvent(text string) InboundEvent {
	ev := customerEvent(text)
	ev.Sender = "628999888777@s.whatsapp.net"
	return ev
}

func TestHandleInboundCustomerGreeting(t *testing.T) {
	f := newFixture()

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("Halo, selamat siang"))
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentCustomerGreeting, res.Intent)
	assert.Contains(t, res.Reply, "Selamat datang")

	require.Len(t, f.sender.texts, 1)
	assert.Equal(t, "628123456789", f.sender.texts[0].To)

	out := f.store.outbound()
	require.Len(t, out, 1)
	assert.Equal(t, conversation.DispatchSent, out[0].DispatchStatus)
}

func TestHandleInboundStaffUploadInit(t *testing.T) {
	f := newFixture()
	f.addStaff("628999888777", "Budi")

	res, err := f.engine.HandleInbound(context.Background(), staffEvent("mau upload mobil"))
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentStaffUploadInit, res.Intent)
	assert.Equal(t, 1, f.uploads.started)
	assert.Equal(t, conversation.TypeStaff, f.store.conv.Type)
}

func TestHandleInboundUploadTriggerFromCustomerIsNotCommand(t *testing.T) {
	f := newFixture()

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("mau upload mobil"))
	require.NoError(t, err)
	assert.NotEqual(t, conversation.IntentStaffUploadInit, res.Intent)
	assert.Zero(t, f.uploads.started)
}

func TestHandleInboundPhotoRoutedToActiveUpload(t *testing.T) {
	f := newFixture()
	f.addStaff("628999888777", "Budi")

	_, err := f.engine.HandleInbound(context.Background(), staffEvent("upload"))
	require.NoError(t, err)
	f.store.conv.Context.BeginUpload(time.Now())

	ev := staffEvent("")
	ev.MediaURL = "https://cdn.example/a.jpg"
	ev.MediaType = "image/jpeg"
	res, err := f.engine.HandleInbound(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 1, f.uploads.photos)
	assert.Equal(t, "foto diterima", res.Reply)
}

func TestHandleInboundDeviceVerification(t *testing.T) {
	f := newFixture()
	f.addStaff("628999888777", "Budi")

	ev := customerEvent("verifikasi 0899 9888 777")
	ev.Sender = "123456789012345@lid"
	res, err := f.engine.HandleInbound(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentStaffVerify, res.Intent)
	assert.Contains(t, res.Reply, "Budi")
	require.NotNil(t, f.store.conv.Context.Verified)
	assert.Equal(t, "628999888777", f.store.conv.Context.Verified.Phone)

	// Staff commands work on the next message from the same device.
	res, err = f.engine.HandleInbound(context.Background(), InboundEvent{
		TenantID: "t1", AccountID: "acct-1", Sender: "123456789012345@lid",
		Text: "upload", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentStaffUploadInit, res.Intent)
}

func TestHandleInboundVerifiedBindingRevokedWhenOffRoster(t *testing.T) {
	f := newFixture()

	ev := customerEvent("halo")
	ev.Sender = "123456789012345@lid"
	_, err := f.engine.HandleInbound(context.Background(), ev)
	require.NoError(t, err)

	f.store.conv.Context.Verified = &conversation.VerifiedBinding{Phone: "628999888777", VerifiedAt: time.Now()}
	f.store.conv.Type = conversation.TypeStaff

	res, err := f.engine.HandleInbound(context.Background(), InboundEvent{
		TenantID: "t1", AccountID: "acct-1", Sender: "123456789012345@lid",
		Text: "upload", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.NotEqual(t, conversation.IntentStaffUploadInit, res.Intent)
	assert.Nil(t, f.store.conv.Context.Verified)
	assert.Equal(t, conversation.TypeCustomer, f.store.conv.Type)
}

func TestHandleInboundComplaintEscalates(t *testing.T) {
	f := newFixture()

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("saya mau komplain, unit yang dikirim rusak"))
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.True(t, f.store.conv.IsEscalated())
	assert.Contains(t, res.Reply, "tim kami")
}

func TestHandleInboundEscalatedConversationSuppressed(t *testing.T) {
	f := newFixture()

	_, err := f.engine.HandleInbound(context.Background(), customerEvent("halo"))
	require.NoError(t, err)
	conversation.Escalate(f.store.conv, time.Now())

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("ada kabar?"))
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.Empty(t, res.Reply)
	require.Len(t, f.sender.texts, 1, "only the greeting reply should have been sent")

	// Inbound messages are still recorded while a human owns the thread.
	var inbound int
	for _, m := range f.store.messages {
		if m.Direction == conversation.DirectionInbound {
			inbound++
		}
	}
	assert.Equal(t, 2, inbound)
}

func TestHandleInboundEscalationTriggerSuppressedWhileEscalated(t *testing.T) {
	f := newFixture()

	_, err := f.engine.HandleInbound(context.Background(), customerEvent("halo"))
	require.NoError(t, err)
	conversation.Escalate(f.store.conv, time.Now())

	// Text that would escalate a fresh conversation must stay silent once a
	// human already owns the thread.
	res, err := f.engine.HandleInbound(context.Background(), customerEvent("tolong hubungi admin sekarang"))
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.False(t, res.Escalated)
	assert.Empty(t, res.Reply)
	require.Len(t, f.sender.texts, 1, "only the greeting reply should have been sent")
}

func TestHandleInboundStaffBotResumeReactivatesCustomer(t *testing.T) {
	f := newFixture()
	f.addStaff("628999888777", "Budi")

	_, err := f.engine.HandleInbound(context.Background(), customerEvent("saya mau komplain, unit yang dikirim rusak"))
	require.NoError(t, err)
	customer := f.store.conv
	require.True(t, customer.IsEscalated())

	res, err := f.engine.HandleInbound(context.Background(), staffEvent("bot on 08123456789"))
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentStaffBotResume, res.Intent)
	assert.Contains(t, res.Reply, "628123456789")
	assert.False(t, customer.IsEscalated())
	assert.Nil(t, customer.EscalatedAt)

	// The customer gets automated replies again.
	sent := len(f.sender.texts)
	res, err = f.engine.HandleInbound(context.Background(), customerEvent("halo, sudah ada kabar?"))
	require.NoError(t, err)
	assert.False(t, res.Suppressed)
	assert.NotEmpty(t, res.Reply)
	assert.Len(t, f.sender.texts, sent+1)
}

func TestHandleInboundStaffBotResumeOwnConversation(t *testing.T) {
	f := newFixture()
	f.addStaff("628999888777", "Budi")

	res, err := f.engine.HandleInbound(context.Background(), staffEvent("bot on"))
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentStaffBotResume, res.Intent)
	assert.Contains(t, res.Reply, "percakapan ini")
}

func TestHandleInboundFallbackStreakEscalates(t *testing.T) {
	f := newFixture()
	f.engine.WithResponder(fixedReplier{reply: conversation.FallbackReply})

	for i := 0; i < 3; i++ {
		res, err := f.engine.HandleInbound(context.Background(), customerEvent("hmm gimana ya"))
		require.NoError(t, err)
		assert.False(t, res.Escalated)
	}
	assert.Equal(t, 3, f.store.conv.Context.ErrorStreak)

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("hmm gimana ya"))
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.True(t, f.store.conv.IsEscalated())
}

func TestHandleInboundGoodReplyClearsErrorStreak(t *testing.T) {
	f := newFixture()

	_, err := f.engine.HandleInbound(context.Background(), customerEvent("halo"))
	require.NoError(t, err)
	f.store.conv.Context.ErrorStreak = 2

	_, err = f.engine.HandleInbound(context.Background(), customerEvent("hmm gimana ya"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.conv.Context.ErrorStreak)
}

func TestHandleInboundDiscardsReplyAfterMidflightEscalation(t *testing.T) {
	f := newFixture()
	_, err := f.engine.HandleInbound(context.Background(), customerEvent("halo"))
	require.NoError(t, err)

	escalatedAt := time.Now()
	f.store.freshOnGet = &conversation.Conversation{
		ID:          f.store.conv.ID,
		TenantID:    "t1",
		Status:      conversation.StatusEscalated,
		EscalatedAt: &escalatedAt,
	}

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("tolong dijelaskan unit ini bagaimana riwayatnya"))
	require.NoError(t, err)
	assert.Empty(t, res.Reply)
	require.Len(t, f.sender.texts, 1)
}

func TestHandleInboundStaffStatusUpdate(t *testing.T) {
	f := newFixture()
	f.addStaff("628999888777", "Budi")

	res, err := f.engine.HandleInbound(context.Background(), staffEvent("status veh-42 terjual"))
	require.NoError(t, err)
	assert.Equal(t, conversation.IntentStaffStatus, res.Intent)
	assert.Contains(t, res.Reply, "veh-42")
	require.Len(t, f.inventory.statusCalls, 1)
	assert.Equal(t, "veh-42 terjual", f.inventory.statusCalls[0])
}

func TestHandleInboundStaffStats(t *testing.T) {
	f := newFixture()
	f.addStaff("628999888777", "Budi")

	res, err := f.engine.HandleInbound(context.Background(), staffEvent("statistik"))
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "3 tersedia")
	assert.Contains(t, res.Reply, "1 terjual")
}

func TestHandleInboundPriceQuoteFromCatalog(t *testing.T) {
	f := newFixture()
	f.inventory.listing = &vehicle.Listing{
		ID: "veh-7", Make: "Honda", Model: "Brio", Year: 2020,
		Price: 120_000_000, Status: vehicle.StatusAvailable,
	}

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("berapa harga brio?"))
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "Rp 120000000")
	assert.Equal(t, int64(120_000_000), f.store.conv.Context.LastQuotedPrice)
	assert.Equal(t, "veh-7", f.store.conv.Context.LastVehicleID)
}

func TestHandleInboundLowballOfferEscalates(t *testing.T) {
	f := newFixture()
	f.inventory.listing = &vehicle.Listing{
		ID: "veh-7", Make: "Honda", Model: "Brio", Year: 2020,
		Price: 120_000_000, Status: vehicle.StatusAvailable,
	}

	_, err := f.engine.HandleInbound(context.Background(), customerEvent("berapa harga brio?"))
	require.NoError(t, err)

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("bisa nego 100jt?"))
	require.NoError(t, err)
	assert.True(t, res.Escalated)
}

func TestHandleInboundPhotoConfirmSendsBatch(t *testing.T) {
	f := newFixture()
	f.inventory.listing = &vehicle.Listing{
		ID: "veh-7", Make: "Honda", Model: "Brio", Year: 2020,
		Price: 120_000_000, Status: vehicle.StatusAvailable,
	}
	f.inventory.photoURLs = []string{"a.jpg", "b.jpg"}

	_, err := f.engine.HandleInbound(context.Background(), customerEvent("ada foto brio?"))
	require.NoError(t, err)

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("ya boleh"))
	require.NoError(t, err)
	require.Len(t, f.sender.images, 1)
	assert.Len(t, f.sender.images[0], 2)
	assert.Contains(t, res.Reply, "foto")
}

func TestHandleInboundStaleSaveRetried(t *testing.T) {
	f := newFixture()
	f.store.saveErrs = []error{conversation.ErrStaleConversation}

	_, err := f.engine.HandleInbound(context.Background(), customerEvent("halo"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.saves)
}

func TestHandleInboundDispatchFailureRecorded(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("gateway unreachable")

	res, err := f.engine.HandleInbound(context.Background(), customerEvent("halo"))
	require.NoError(t, err, "a failed send must not fail inbound processing")
	assert.NotEmpty(t, res.Reply)

	out := f.store.outbound()
	require.Len(t, out, 1)
	assert.Equal(t, conversation.DispatchFailed, out[0].DispatchStatus)
}
