package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/autolumiku/dealership-ai-platform/internal/conversation"
	"github.com/autolumiku/dealership-ai-platform/internal/identity"
	"github.com/autolumiku/dealership-ai-platform/internal/messaging"
	"github.com/autolumiku/dealership-ai-platform/internal/observability/metrics"
	"github.com/autolumiku/dealership-ai-platform/internal/tenancy"
	"github.com/autolumiku/dealership-ai-platform/internal/upload"
	"github.com/autolumiku/dealership-ai-platform/internal/vehicle"
	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

// InboundEvent is one message arriving from the gateway webhook.
type InboundEvent struct {
	TenantID  string
	AccountID string
	Sender    string
	Text      string
	MediaURL  string
	MediaType string
	Timestamp time.Time
}

// Result summarizes what the engine did with one inbound event.
type Result struct {
	ConversationID uuid.UUID
	Intent         conversation.Intent
	Reply          string
	Escalated      bool
	Suppressed     bool
}

// ConversationStore is the persistence boundary the engine drives.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, tenantID, accountID, customerKey string, senderKind identity.SenderKind, convType conversation.Type) (*conversation.Conversation, error)
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*conversation.Conversation, error)
	Save(ctx context.Context, conv *conversation.Conversation) error
	AppendMessage(ctx context.Context, msg *conversation.Message) error
	UpdateDispatchStatus(ctx context.Context, messageID uuid.UUID, status string) error
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error)
}

// StaffDirectory resolves sender phones against the tenant's staff roster.
type StaffDirectory interface {
	ResolveStaff(ctx context.Context, tenantID, phone string) (*identity.StaffIdentity, bool)
	VerifyPhoneBinding(ctx context.Context, tenantID, rawPhone string) (*identity.StaffIdentity, error)
}

// UploadFlow is the vehicle upload workflow the engine routes staff
// messages into.
type UploadFlow interface {
	Start(ctx context.Context, conv *conversation.Conversation) upload.Outcome
	StartWithData(ctx context.Context, conv *conversation.Conversation, data string) upload.Outcome
	HandlePhoto(ctx context.Context, conv *conversation.Conversation, media conversation.MediaRef) upload.Outcome
	HandleData(ctx context.Context, conv *conversation.Conversation, text string) upload.Outcome
}

// Inventory is the catalog surface used by staff commands and customer
// inquiries.
type Inventory interface {
	UpdateStatus(ctx context.Context, tenantID, vehicleID, status string) error
	CountByStatus(ctx context.Context, tenantID string) (map[string]int, error)
	ListRecent(ctx context.Context, tenantID string, limit int) ([]vehicle.Listing, error)
	FindByModel(ctx context.Context, tenantID, model string) (*vehicle.Listing, error)
	PhotoURLs(ctx context.Context, tenantID, vehicleID string) ([]string, error)
}

// WindowStore records recent inbound traffic for workflow look-back.
type WindowStore interface {
	Append(ctx context.Context, conversationID string, entry conversation.WindowEntry) error
}

// Replier generates free-form replies.
type Replier interface {
	Reply(ctx context.Context, req conversation.CompletionRequest) string
}

// Sender dispatches outbound messages.
type Sender interface {
	SendText(ctx context.Context, msg messaging.OutboundText) (messaging.SendResult, error)
	SendImages(ctx context.Context, msgs []messaging.OutboundImage) ([]messaging.SendResult, error)
}

const (
	historyLimit       = 20
	saveRetryLimit     = 3
	inventoryListLimit = 10
)

var errConversationGone = errors.New("engine: conversation disappeared during save")

// Engine is the inbound message pipeline: identity resolution, conversation
// state, intent routing, escalation gating, and outbound dispatch.
type Engine struct {
	store     ConversationStore
	roster    StaffDirectory
	uploads   UploadFlow
	inventory Inventory
	window    WindowStore
	responder Replier
	escalator *conversation.Escalator
	sender    Sender
	metrics   *metrics.EngineMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func New(store ConversationStore, roster StaffDirectory, uploads UploadFlow, inventory Inventory, sender Sender, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:     store,
		roster:    roster,
		uploads:   uploads,
		inventory: inventory,
		sender:    sender,
		escalator: conversation.NewEscalator(logger),
		logger:    logger,
		tracer:    otel.Tracer("autolumiku/engine"),
		now:       time.Now,
	}
}

// WithResponder attaches the AI delegate for free-form customer replies.
func (e *Engine) WithResponder(r Replier) *Engine {
	e.responder = r
	return e
}

// WithWindow attaches the recent-message window store.
func (e *Engine) WithWindow(w WindowStore) *Engine {
	e.window = w
	return e
}

// WithEscalator overrides the default escalation policy.
func (e *Engine) WithEscalator(esc *conversation.Escalator) *Engine {
	if esc != nil {
		e.escalator = esc
	}
	return e
}

// WithMetrics attaches engine metrics recording.
func (e *Engine) WithMetrics(m *metrics.EngineMetrics) *Engine {
	e.metrics = m
	return e
}

// HandleInbound runs one inbound message through the full pipeline and
// dispatches any reply it produces. Errors are returned only for failures
// that leave the message unprocessed; a failed outbound send after
// successful processing is logged and recorded, not returned.
func (e *Engine) HandleInbound(ctx context.Context, ev InboundEvent) (*Result, error) {
	ctx = tenancy.WithTenantID(ctx, ev.TenantID)
	ctx, span := e.tracer.Start(ctx, "engine.handle_inbound")
	defer span.End()

	sender := identity.Normalize(ev.Sender)
	span.SetAttributes(
		attribute.String("engine.tenant_id", ev.TenantID),
		attribute.String("engine.sender_kind", string(sender.Kind)),
	)

	staff, convType := e.resolveSender(ctx, ev.TenantID, sender)

	conv, err := e.store.GetOrCreate(ctx, ev.TenantID, ev.AccountID, sender.Key(), sender.Kind, convType)
	if err != nil {
		return nil, fmt.Errorf("engine: load conversation: %w", err)
	}

	// A device sender with a verified binding keeps staff standing only
	// while the bound phone is still on the roster.
	if staff == nil && sender.IsDevice() && conv.Context.Verified != nil {
		if s, ok := e.roster.ResolveStaff(ctx, ev.TenantID, conv.Context.Verified.Phone); ok {
			staff = s
		} else {
			conv.Context.Verified = nil
			conv.Type = conversation.TypeCustomer
		}
	}
	if staff != nil {
		conv.Type = conversation.TypeStaff
	}

	cls := conversation.Classify(conv, ev.Text)
	span.SetAttributes(attribute.String("engine.intent", string(cls.Intent)))
	if e.metrics != nil {
		e.metrics.ObserveInbound(string(cls.Intent), string(conv.Type))
	}

	if err := e.recordInbound(ctx, conv, ev, cls); err != nil {
		return nil, err
	}

	res := &Result{ConversationID: conv.ID, Intent: cls.Intent}

	// Photos route into an active upload before intent handling; the text
	// of a captioned photo is not treated as a separate command.
	if isImage(ev.MediaType) && conv.Type == conversation.TypeStaff && conv.Context.UploadDraft() != nil {
		outcome := e.uploads.HandlePhoto(ctx, conv, conversation.MediaRef{
			URL: ev.MediaURL, MediaType: ev.MediaType, ReceivedAt: ev.Timestamp,
		})
		res.Reply = outcome.Reply
		return e.finish(ctx, conv, res)
	}

	switch conv.Type {
	case conversation.TypeStaff:
		e.handleStaff(ctx, conv, ev, cls, staff, res)
	default:
		e.handleCustomer(ctx, conv, ev, cls, res)
	}

	return e.finish(ctx, conv, res)
}

// resolveSender maps a normalized sender onto the roster. Device senders
// cannot be resolved by phone and start out as customers until verified.
func (e *Engine) resolveSender(ctx context.Context, tenantID string, sender identity.SenderID) (*identity.StaffIdentity, conversation.Type) {
	if sender.IsDevice() {
		return nil, conversation.TypeCustomer
	}
	if staff, ok := e.roster.ResolveStaff(ctx, tenantID, sender.Phone); ok {
		return staff, conversation.TypeStaff
	}
	return nil, conversation.TypeCustomer
}

func (e *Engine) recordInbound(ctx context.Context, conv *conversation.Conversation, ev InboundEvent, cls conversation.Classification) error {
	msg := &conversation.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Direction:      conversation.DirectionInbound,
		Content:        ev.Text,
		Intent:         string(cls.Intent),
		MediaURL:       ev.MediaURL,
		MediaType:      ev.MediaType,
		CreatedAt:      ev.Timestamp,
	}
	if err := e.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("engine: persist inbound message: %w", err)
	}
	conv.LastMessageAt = ev.Timestamp

	if e.window != nil {
		entry := conversation.WindowEntry{
			Text: ev.Text, MediaURL: ev.MediaURL, MediaType: ev.MediaType, ReceivedAt: ev.Timestamp,
		}
		if err := e.window.Append(ctx, conv.ID.String(), entry); err != nil {
			e.logger.Warn("recent window append failed", "error", err, "conversation_id", conv.ID)
		}
	}
	return nil
}

func (e *Engine) handleStaff(ctx context.Context, conv *conversation.Conversation, ev InboundEvent, cls conversation.Classification, staff *identity.StaffIdentity, res *Result) {
	switch cls.Intent {
	case conversation.IntentStaffUploadInit:
		outcome := e.uploads.Start(ctx, conv)
		res.Reply = outcome.Reply

	case conversation.IntentStaffUploadData:
		var outcome upload.Outcome
		if conv.Context.UploadDraft() != nil {
			outcome = e.uploads.HandleData(ctx, conv, cls.Payload)
		} else {
			outcome = e.uploads.StartWithData(ctx, conv, cls.Payload)
		}
		res.Reply = outcome.Reply

	case conversation.IntentStaffStatus:
		res.Reply = e.handleStatusUpdate(ctx, conv.TenantID, cls.Payload)

	case conversation.IntentStaffInventory:
		res.Reply = e.handleInventoryQuery(ctx, conv.TenantID)

	case conversation.IntentStaffStats:
		res.Reply = e.handleStatsQuery(ctx, conv.TenantID)

	case conversation.IntentStaffBotResume:
		res.Reply = e.handleBotResume(ctx, conv, cls.Payload)

	case conversation.IntentStaffVerify:
		res.Reply = e.handleVerify(ctx, conv, cls.Payload)

	default:
		// Free text while an upload is open is treated as vehicle data.
		if conv.Context.UploadDraft() != nil && strings.TrimSpace(ev.Text) != "" {
			outcome := e.uploads.HandleData(ctx, conv, ev.Text)
			res.Reply = outcome.Reply
			return
		}
		if staff != nil {
			e.logger.Debug("staff message without command", "tenant_id", conv.TenantID, "staff", staff.Name)
		}
	}
}

func (e *Engine) handleCustomer(ctx context.Context, conv *conversation.Conversation, ev InboundEvent, cls conversation.Classification, res *Result) {
	// The verification command is the one path by which an ambiguous
	// device sender can claim staff standing.
	if cls.Intent == conversation.IntentStaffVerify {
		res.Reply = e.handleVerify(ctx, conv, cls.Payload)
		return
	}

	if conv.IsEscalated() {
		// A human owns this conversation; record the message, say nothing.
		// Re-matching an escalation trigger must not produce another reply.
		res.Suppressed = true
		return
	}

	offer, _ := vehicle.ParsePrice(ev.Text)
	decision := e.escalator.Evaluate(ctx, conv, ev.Text, cls, offer)
	if decision.Escalate {
		conversation.Escalate(conv, e.now())
		if e.metrics != nil {
			e.metrics.ObserveEscalation(string(decision.Trigger))
		}
		res.Escalated = true
		res.Reply = "Baik, saya sambungkan dengan tim kami ya. Mohon ditunggu sebentar."
		return
	}

	switch cls.Intent {
	case conversation.IntentCustomerGreeting:
		res.Reply = "Halo! Selamat datang. Ada yang bisa kami bantu? Silakan tanya unit, harga, atau jadwal test drive."

	case conversation.IntentCustomerPrice:
		res.Reply = e.handlePriceInquiry(ctx, conv, ev.Text)

	case conversation.IntentCustomerPhotos:
		res.Reply = e.handlePhotoRequest(ctx, conv, ev.Text)

	case conversation.IntentCustomerConfirm:
		e.handlePhotoConfirm(ctx, conv, res)

	case conversation.IntentCustomerTest:
		res.Reply = "Boleh! Test drive bisa diatur. Kapan waktu yang pas untuk Anda? Tim kami akan siapkan unitnya."

	default:
		res.Reply = e.generateReply(ctx, conv, ev.Text)
	}
}

// handleStatusUpdate parses "<vehicleID> <status>" and applies it.
func (e *Engine) handleStatusUpdate(ctx context.Context, tenantID, payload string) string {
	parts := strings.Fields(payload)
	if len(parts) != 2 {
		return "Format: status <ID unit> <terjual|booking|tersedia>"
	}
	vehicleID, status := parts[0], strings.ToLower(parts[1])

	if err := e.inventory.UpdateStatus(ctx, tenantID, vehicleID, status); err != nil {
		e.logger.Warn("status update failed", "error", err, "tenant_id", tenantID, "vehicle_id", vehicleID)
		return fmt.Sprintf("Unit %s tidak ditemukan. Cek kembali ID-nya ya.", vehicleID)
	}
	return fmt.Sprintf("Status unit %s diubah menjadi %s.", vehicleID, status)
}

// handleBotResume ends a handoff. Escalation lands on customer conversations,
// so the command takes the customer's number as its target; without one it
// reactivates the staff sender's own conversation.
func (e *Engine) handleBotResume(ctx context.Context, conv *conversation.Conversation, payload string) string {
	if strings.TrimSpace(payload) == "" {
		conversation.ResumeAutomated(conv)
		return "Bot diaktifkan kembali untuk percakapan ini."
	}

	target := identity.Normalize(payload)
	if target.Kind != identity.SenderPhone || target.Phone == "" {
		return "Format: bot on <nomor pelanggan>"
	}
	customer, err := e.store.GetOrCreate(ctx, conv.TenantID, conv.AccountID, target.Key(), target.Kind, conversation.TypeCustomer)
	if err != nil {
		e.logger.Warn("bot resume target lookup failed", "error", err, "tenant_id", conv.TenantID)
		return "Percakapan pelanggan tidak ditemukan."
	}
	conversation.ResumeAutomated(customer)
	if err := e.saveConversation(ctx, customer); err != nil {
		e.logger.Error("bot resume save failed", "error", err, "conversation_id", customer.ID)
		return "Gagal mengaktifkan bot. Coba lagi ya."
	}
	return fmt.Sprintf("Bot diaktifkan kembali untuk %s.", target.Phone)
}

func (e *Engine) handleInventoryQuery(ctx context.Context, tenantID string) string {
	listings, err := e.inventory.ListRecent(ctx, tenantID, inventoryListLimit)
	if err != nil {
		e.logger.Error("inventory query failed", "error", err, "tenant_id", tenantID)
		return "Maaf, data stok sedang tidak bisa diambil."
	}
	if len(listings) == 0 {
		return "Belum ada unit di katalog."
	}
	var b strings.Builder
	b.WriteString("Stok terbaru:\n")
	for _, l := range listings {
		fmt.Fprintf(&b, "- %s %s %d, Rp %d (%s) [%s]\n", l.Make, l.Model, l.Year, l.Price, l.Status, l.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) handleStatsQuery(ctx context.Context, tenantID string) string {
	counts, err := e.inventory.CountByStatus(ctx, tenantID)
	if err != nil {
		e.logger.Error("stats query failed", "error", err, "tenant_id", tenantID)
		return "Maaf, statistik sedang tidak bisa diambil."
	}
	return fmt.Sprintf("Statistik unit: %d tersedia, %d booking, %d terjual.",
		counts[vehicle.StatusAvailable], counts[vehicle.StatusBooked], counts[vehicle.StatusSold])
}

// handleVerify binds a device conversation to a staff phone number. The
// claimed number must parse as a valid phone and be on the roster.
func (e *Engine) handleVerify(ctx context.Context, conv *conversation.Conversation, payload string) string {
	staff, err := e.roster.VerifyPhoneBinding(ctx, conv.TenantID, payload)
	if err != nil {
		e.logger.Warn("verification rejected", "error", err, "tenant_id", conv.TenantID)
		return "Verifikasi gagal. Pastikan nomor terdaftar sebagai staff."
	}
	conv.Context.Verified = &conversation.VerifiedBinding{Phone: staff.Phone, VerifiedAt: e.now()}
	conv.Type = conversation.TypeStaff
	return fmt.Sprintf("Terverifikasi sebagai %s. Perintah staff sekarang aktif.", staff.Name)
}

// handlePriceInquiry quotes from the catalog when the text names a model we
// stock; otherwise the AI delegate answers.
func (e *Engine) handlePriceInquiry(ctx context.Context, conv *conversation.Conversation, text string) string {
	extraction := vehicle.Extract(text)
	if extraction.Fields.Model != "" {
		listing, err := e.inventory.FindByModel(ctx, conv.TenantID, extraction.Fields.Model)
		if err != nil {
			e.logger.Warn("catalog lookup failed", "error", err, "tenant_id", conv.TenantID)
		} else if listing != nil {
			conv.Context.LastVehicleID = listing.ID
			conv.Context.LastQuotedPrice = listing.Price
			return fmt.Sprintf("%s %s %d harganya Rp %d. Unit ready, bisa lihat langsung. Mau saya kirimkan fotonya?",
				listing.Make, listing.Model, listing.Year, listing.Price)
		}
	}
	return e.generateReply(ctx, conv, text)
}

func (e *Engine) handlePhotoRequest(ctx context.Context, conv *conversation.Conversation, text string) string {
	extraction := vehicle.Extract(text)
	if extraction.Fields.Model != "" {
		listing, err := e.inventory.FindByModel(ctx, conv.TenantID, extraction.Fields.Model)
		if err == nil && listing != nil {
			conv.Context.LastVehicleID = listing.ID
		}
	}
	if conv.Context.LastVehicleID == "" {
		return "Unit yang mana ya? Sebutkan modelnya, nanti saya kirimkan fotonya."
	}
	return "Siap, saya kirimkan fotonya ya?"
}

// handlePhotoConfirm sends the photo set of the last discussed vehicle.
func (e *Engine) handlePhotoConfirm(ctx context.Context, conv *conversation.Conversation, res *Result) {
	if conv.Context.LastVehicleID == "" {
		res.Reply = e.generateReply(ctx, conv, "ya")
		return
	}
	urls, err := e.inventory.PhotoURLs(ctx, conv.TenantID, conv.Context.LastVehicleID)
	if err != nil || len(urls) == 0 {
		if err != nil {
			e.logger.Warn("photo lookup failed", "error", err, "vehicle_id", conv.Context.LastVehicleID)
		}
		res.Reply = "Maaf, foto unit ini belum tersedia."
		return
	}

	images := make([]messaging.OutboundImage, 0, len(urls))
	for _, u := range urls {
		images = append(images, messaging.OutboundImage{
			AccountID: conv.AccountID, To: conv.CustomerKey, ImageURL: u,
		})
	}
	if _, err := e.sender.SendImages(ctx, images); err != nil {
		e.logger.Error("photo batch send failed", "error", err, "conversation_id", conv.ID)
	}
	res.Reply = "Itu foto-fotonya. Ada yang mau ditanyakan lagi?"
}

// generateReply asks the AI delegate, then re-reads the conversation before
// allowing dispatch: a reply generated before a handoff never goes out after
// it.
func (e *Engine) generateReply(ctx context.Context, conv *conversation.Conversation, text string) string {
	if e.responder == nil {
		return conversation.FallbackReply
	}

	history, err := e.store.History(ctx, conv.ID, historyLimit)
	if err != nil {
		e.logger.Warn("history load failed", "error", err, "conversation_id", conv.ID)
	}

	msgs := make([]conversation.ChatMessage, 0, len(history)+1)
	for i := len(history) - 1; i >= 0; i-- {
		role := conversation.ChatRoleUser
		if history[i].Direction == conversation.DirectionOutbound {
			role = conversation.ChatRoleAssistant
		}
		msgs = append(msgs, conversation.ChatMessage{Role: role, Content: history[i].Content})
	}
	msgs = append(msgs, conversation.ChatMessage{Role: conversation.ChatRoleUser, Content: text})

	start := e.now()
	reply := e.responder.Reply(ctx, conversation.CompletionRequest{
		System:   systemPrompt,
		Messages: msgs,
	})
	if e.metrics != nil {
		outcome := "ok"
		if reply == conversation.FallbackReply {
			outcome = "fallback"
		}
		e.metrics.ObserveAILatency(outcome, time.Since(start).Seconds())
	}

	// Consecutive fallbacks feed the error-rate escalation trigger; one good
	// exchange clears the streak.
	if reply == conversation.FallbackReply {
		conv.Context.ErrorStreak++
	} else {
		conv.Context.ErrorStreak = 0
	}

	// Escalation may have happened while the delegate was thinking.
	fresh, err := e.store.Get(ctx, conv.TenantID, conv.ID)
	if err == nil && fresh != nil && fresh.IsEscalated() {
		conv.Status = conversation.StatusEscalated
		conv.EscalatedAt = fresh.EscalatedAt
		return ""
	}
	return reply
}

const systemPrompt = "Anda adalah asisten penjualan dealer mobil bekas di Indonesia. " +
	"Jawab singkat, ramah, dan dalam Bahasa Indonesia. Jangan menjanjikan harga " +
	"atau diskon di luar data yang diberikan. Arahkan pembeli serius untuk datang ke dealer."

// finish persists the conversation and dispatches the reply.
func (e *Engine) finish(ctx context.Context, conv *conversation.Conversation, res *Result) (*Result, error) {
	if err := e.saveConversation(ctx, conv); err != nil {
		return nil, err
	}
	if res.Reply == "" {
		return res, nil
	}

	out := &conversation.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Direction:      conversation.DirectionOutbound,
		Content:        res.Reply,
		Intent:         string(res.Intent),
		DispatchStatus: conversation.DispatchPending,
		CreatedAt:      e.now(),
	}
	if err := e.store.AppendMessage(ctx, out); err != nil {
		return nil, fmt.Errorf("engine: persist outbound message: %w", err)
	}

	_, err := e.sender.SendText(ctx, messaging.OutboundText{
		AccountID: conv.AccountID,
		To:        conv.CustomerKey,
		Text:      res.Reply,
	})
	status := conversation.DispatchSent
	if err != nil {
		status = conversation.DispatchFailed
		e.logger.Error("outbound dispatch failed", "error", err, "conversation_id", conv.ID)
	}
	if err := e.store.UpdateDispatchStatus(ctx, out.ID, status); err != nil {
		e.logger.Warn("dispatch status update failed", "error", err, "message_id", out.ID)
	}
	return res, nil
}

// saveConversation retries optimistic-lock conflicts by rebasing this
// handler's context changes onto the stored version.
func (e *Engine) saveConversation(ctx context.Context, conv *conversation.Conversation) error {
	var lastErr error
	for attempt := 0; attempt < saveRetryLimit; attempt++ {
		err := e.store.Save(ctx, conv)
		if err == nil {
			return nil
		}
		if !errors.Is(err, conversation.ErrStaleConversation) {
			return fmt.Errorf("engine: save conversation: %w", err)
		}
		lastErr = err

		fresh, getErr := e.store.Get(ctx, conv.TenantID, conv.ID)
		if getErr != nil {
			return fmt.Errorf("engine: reload conversation after conflict: %w", getErr)
		}
		if fresh == nil {
			return errConversationGone
		}
		// Escalation set elsewhere wins over whatever this handler decided.
		if fresh.IsEscalated() {
			conv.Status = conversation.StatusEscalated
			conv.EscalatedAt = fresh.EscalatedAt
		}
		conv.Version = fresh.Version
	}
	return fmt.Errorf("engine: save conversation: %w", lastErr)
}

func isImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image")
}
