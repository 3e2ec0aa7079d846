package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/autolumiku/dealership-ai-platform/internal/conversation"
	"github.com/autolumiku/dealership-ai-platform/internal/vehicle"
	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

// CatalogWriter promotes a completed draft into a vehicle record.
type CatalogWriter interface {
	CreateVehicle(ctx context.Context, tenantID string, f vehicle.Fields, photoURLs []string) (string, error)
}

// DuplicateChecker suppresses accidental repeat creation.
type DuplicateChecker interface {
	Check(ctx context.Context, tenantID string, f vehicle.Fields) (string, bool, error)
	Remember(ctx context.Context, tenantID string, f vehicle.Fields, vehicleID string) error
}

// PhotoLookback scans the conversation's recent messages for photos already
// sent before the init command arrived.
type PhotoLookback interface {
	RecentPhotos(ctx context.Context, conversationID string, lookback time.Duration) ([]conversation.MediaRef, error)
}

// Outcome is what a workflow step wants said and done.
type Outcome struct {
	Reply     string
	VehicleID string
	Created   bool
	Duplicate bool
}

// Workflow drives the multi-step photo+data capture flow that turns a chat
// exchange into a vehicle listing. State lives in the conversation's context
// bag; the workflow itself is stateless.
type Workflow struct {
	catalog   CatalogWriter
	dupes     DuplicateChecker
	window    PhotoLookback
	logger    *logging.Logger
	tracer    trace.Tracer
	minPhotos int
	maxPhotos int
	lookback  time.Duration
}

func NewWorkflow(catalog CatalogWriter, dupes DuplicateChecker, window PhotoLookback, logger *logging.Logger) *Workflow {
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{
		catalog:   catalog,
		dupes:     dupes,
		window:    window,
		logger:    logger,
		tracer:    otel.Tracer("autolumiku/upload"),
		minPhotos: 6,
		maxPhotos: 12,
		lookback:  10 * time.Minute,
	}
}

// WithPhotoLimits overrides the minimum and maximum photo counts.
func (w *Workflow) WithPhotoLimits(min, max int) *Workflow {
	if min > 0 {
		w.minPhotos = min
	}
	if max >= min && max > 0 {
		w.maxPhotos = max
	}
	return w
}

// WithLookback overrides the side-entry look-back window.
func (w *Workflow) WithLookback(d time.Duration) *Workflow {
	if d > 0 {
		w.lookback = d
	}
	return w
}

// Start handles an upload-init command without accompanying data. Photos
// already captured in the recent window enter the draft immediately, which
// can move the workflow straight past awaiting_photo.
func (w *Workflow) Start(ctx context.Context, conv *conversation.Conversation) Outcome {
	ctx, span := w.tracer.Start(ctx, "upload.start")
	defer span.End()

	draft := conv.Context.BeginUpload(time.Now())
	w.adoptRecentPhotos(ctx, conv, draft)
	span.SetAttributes(attribute.Int("upload.adopted_photos", len(draft.Photos)))

	switch {
	case len(draft.Photos) >= w.minPhotos:
		draft.Step = conversation.StepAwaitingCompletion
		return Outcome{Reply: w.promptData(len(draft.Photos))}
	case len(draft.Photos) > 0:
		draft.Step = conversation.StepPhotoAwaitingData
		return Outcome{Reply: w.promptMorePhotos(len(draft.Photos))}
	default:
		draft.Step = conversation.StepAwaitingPhoto
		return Outcome{Reply: fmt.Sprintf("Siap! Silakan kirim foto kendaraan (minimal %d foto), lalu kirim datanya.", w.minPhotos)}
	}
}

// StartWithData handles an upload trigger that carries descriptive text. If
// extraction succeeds and enough qualifying photos were already captured
// recently, the workflow completes in one step.
func (w *Workflow) StartWithData(ctx context.Context, conv *conversation.Conversation, data string) Outcome {
	ctx, span := w.tracer.Start(ctx, "upload.start_with_data")
	defer span.End()

	draft := conv.Context.BeginUpload(time.Now())
	w.adoptRecentPhotos(ctx, conv, draft)

	extraction := vehicle.Extract(data)
	if !extraction.Success {
		// Keep whatever photos we adopted; ask for the missing data.
		if len(draft.Photos) >= w.minPhotos {
			draft.Step = conversation.StepAwaitingCompletion
		} else if len(draft.Photos) > 0 {
			draft.Step = conversation.StepPhotoAwaitingData
		} else {
			draft.Step = conversation.StepAwaitingPhoto
		}
		return Outcome{Reply: missingFieldsReply(extraction.Missing)}
	}

	draft.Extracted = &extraction.Fields
	if len(draft.Photos) >= w.minPhotos {
		return w.finalize(ctx, conv, draft)
	}

	if len(draft.Photos) > 0 {
		draft.Step = conversation.StepPhotoAwaitingData
	} else {
		draft.Step = conversation.StepAwaitingPhoto
	}
	return Outcome{Reply: fmt.Sprintf(
		"Data diterima: %s %s %d. Sekarang kirim foto kendaraan (minimal %d foto).",
		extraction.Fields.Make, extraction.Fields.Model, extraction.Fields.Year, w.minPhotos,
	)}
}

// HandlePhoto appends a received photo to the draft and advances the step
// once the minimum count is reached.
func (w *Workflow) HandlePhoto(ctx context.Context, conv *conversation.Conversation, media conversation.MediaRef) Outcome {
	ctx, span := w.tracer.Start(ctx, "upload.handle_photo")
	defer span.End()

	draft := conv.Context.UploadDraft()
	if draft == nil {
		return Outcome{}
	}

	if len(draft.Photos) < w.maxPhotos {
		draft.Photos = append(draft.Photos, media)
	}
	span.SetAttributes(attribute.Int("upload.photo_count", len(draft.Photos)))

	switch draft.Step {
	case conversation.StepAwaitingPhoto:
		draft.Step = conversation.StepPhotoAwaitingData
	case conversation.StepPhotoAwaitingData, conversation.StepAwaitingCompletion:
		// stays, may advance below
	default:
		return Outcome{}
	}

	if len(draft.Photos) >= w.minPhotos {
		draft.Step = conversation.StepAwaitingCompletion
		// Data may have arrived before the final photo.
		if draft.Extracted != nil {
			return w.finalize(ctx, conv, draft)
		}
		return Outcome{Reply: w.promptData(len(draft.Photos))}
	}

	return Outcome{Reply: w.promptMorePhotos(len(draft.Photos))}
}

// HandleData processes a data-bearing message while the workflow is active.
// Extraction failure never regresses the step; it re-prompts with the exact
// missing fields.
func (w *Workflow) HandleData(ctx context.Context, conv *conversation.Conversation, text string) Outcome {
	ctx, span := w.tracer.Start(ctx, "upload.handle_data")
	defer span.End()

	draft := conv.Context.UploadDraft()
	if draft == nil {
		return Outcome{}
	}

	extraction := vehicle.Extract(text)
	if !extraction.Success {
		return Outcome{Reply: missingFieldsReply(extraction.Missing)}
	}

	draft.Extracted = &extraction.Fields

	if len(draft.Photos) >= w.minPhotos {
		return w.finalize(ctx, conv, draft)
	}

	// Data-first: hold the fields until enough photos arrive.
	return Outcome{Reply: fmt.Sprintf(
		"Data tersimpan. Masih butuh %d foto lagi sebelum unit bisa diupload.",
		w.minPhotos-len(draft.Photos),
	)}
}

// finalize checks for duplicates and promotes the draft into a catalog
// record. The minimum-photo invariant is enforced here: the workflow can
// never complete with fewer photos than required.
func (w *Workflow) finalize(ctx context.Context, conv *conversation.Conversation, draft *conversation.UploadDraft) Outcome {
	if draft.Extracted == nil || len(draft.Photos) < w.minPhotos {
		return Outcome{Reply: w.promptMorePhotos(len(draft.Photos))}
	}
	fields := *draft.Extracted

	if w.dupes != nil {
		existingID, dup, err := w.dupes.Check(ctx, conv.TenantID, fields)
		if err != nil {
			w.logger.Warn("duplicate check failed; proceeding", "error", err, "tenant_id", conv.TenantID)
		} else if dup {
			draft.Step = conversation.StepComplete
			conv.Context.EndUpload()
			return Outcome{
				Duplicate: true,
				VehicleID: existingID,
				Reply: fmt.Sprintf(
					"Unit %s %s %d sepertinya baru saja diupload (ID: %s). Tidak dibuat listing baru.",
					fields.Make, fields.Model, fields.Year, existingID,
				),
			}
		}
	}

	photoURLs := make([]string, 0, len(draft.Photos))
	for _, p := range draft.Photos {
		photoURLs = append(photoURLs, p.URL)
	}

	vehicleID, err := w.catalog.CreateVehicle(ctx, conv.TenantID, fields, photoURLs)
	if err != nil {
		w.logger.Error("vehicle creation failed", "error", err, "tenant_id", conv.TenantID)
		return Outcome{Reply: "Maaf, terjadi kendala saat menyimpan unit. Silakan coba lagi."}
	}

	if w.dupes != nil {
		if err := w.dupes.Remember(ctx, conv.TenantID, fields, vehicleID); err != nil {
			w.logger.Warn("failed to record duplicate window", "error", err, "vehicle_id", vehicleID)
		}
	}

	draft.Step = conversation.StepComplete
	photoCount := len(draft.Photos)
	conv.Context.EndUpload()

	w.logger.Info("vehicle listing created",
		"tenant_id", conv.TenantID,
		"vehicle_id", vehicleID,
		"make", fields.Make,
		"model", fields.Model,
		"year", fields.Year,
	)

	return Outcome{
		Created:   true,
		VehicleID: vehicleID,
		Reply: fmt.Sprintf(
			"Unit berhasil diupload! %s %s %d, Rp %d, %d foto. ID: %s",
			fields.Make, fields.Model, fields.Year, fields.Price, photoCount, vehicleID,
		),
	}
}

func (w *Workflow) adoptRecentPhotos(ctx context.Context, conv *conversation.Conversation, draft *conversation.UploadDraft) {
	if w.window == nil {
		return
	}
	photos, err := w.window.RecentPhotos(ctx, conv.ID.String(), w.lookback)
	if err != nil {
		w.logger.Warn("photo look-back failed", "error", err, "conversation_id", conv.ID)
		return
	}
	if len(photos) > w.maxPhotos {
		photos = photos[:w.maxPhotos]
	}
	draft.Photos = photos
}

func (w *Workflow) promptMorePhotos(have int) string {
	return fmt.Sprintf("Foto %d/%d diterima. Kirim %d foto lagi.", have, w.minPhotos, w.minPhotos-have)
}

func (w *Workflow) promptData(have int) string {
	return fmt.Sprintf("Foto lengkap (%d). Sekarang kirim data kendaraan. Contoh: %s", have, vehicle.ExampleInput)
}

func missingFieldsReply(missing []string) string {
	return fmt.Sprintf(
		"Data belum lengkap. Mohon lengkapi: %s. Contoh: %s",
		strings.Join(missing, ", "), vehicle.ExampleInput,
	)
}
