package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateHumanRequest(t *testing.T) {
	e := NewEscalator(nil)
	tests := []string{
		"saya mau ngomong sama orang",
		"bisa bicara dengan admin?",
		"tolong hubungi sales",
		"jangan bot terus dong",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			d := e.Evaluate(context.Background(), customerConv(), text, Classification{Intent: IntentGeneralInquiry, Confidence: patternConfidence}, 0)
			assert.True(t, d.Escalate)
			assert.Equal(t, TriggerHumanRequest, d.Trigger)
		})
	}
}

func TestEvaluateComplaint(t *testing.T) {
	e := NewEscalator(nil)
	for _, text := range []string{
		"saya kecewa dengan pelayanannya",
		"ini penipuan ya?",
		"saya minta refund sekarang",
	} {
		d := e.Evaluate(context.Background(), customerConv(), text, Classification{Confidence: patternConfidence}, 0)
		assert.True(t, d.Escalate, text)
		assert.Equal(t, TriggerComplaint, d.Trigger, text)
	}
}

func TestEvaluateLowConfidence(t *testing.T) {
	e := NewEscalator(nil)

	d := e.Evaluate(context.Background(), customerConv(), "xyz", Classification{Confidence: 0.2}, 0)
	assert.True(t, d.Escalate)
	assert.Equal(t, TriggerLowConfidence, d.Trigger)

	// The fallback confidence sits above the threshold on purpose.
	d = e.Evaluate(context.Background(), customerConv(), "terima kasih", Classification{Confidence: fallbackConfidence}, 0)
	assert.False(t, d.Escalate)
}

func TestEvaluateNegotiationLimit(t *testing.T) {
	e := NewEscalator(nil).WithNegotiationLimit(10)
	conv := customerConv()
	conv.Context.LastQuotedPrice = 120_000_000

	// Within 10% of the quote: no escalation.
	d := e.Evaluate(context.Background(), conv, "bisa nego 110jt?", Classification{Confidence: patternConfidence}, 110_000_000)
	assert.False(t, d.Escalate)

	// Below the floor: hand off to a human.
	d = e.Evaluate(context.Background(), conv, "bisa nego 100jt?", Classification{Confidence: patternConfidence}, 100_000_000)
	assert.True(t, d.Escalate)
	assert.Equal(t, TriggerNegotiation, d.Trigger)
}

func TestEvaluateNegotiationNeedsQuote(t *testing.T) {
	e := NewEscalator(nil)

	// No quoted price on record: a nego keyword alone never escalates.
	d := e.Evaluate(context.Background(), customerConv(), "bisa nego 50jt?", Classification{Confidence: patternConfidence}, 50_000_000)
	assert.False(t, d.Escalate)
}

func TestEvaluateErrorStreak(t *testing.T) {
	e := NewEscalator(nil).WithErrorLimit(3)
	conv := customerConv()
	conv.Context.ErrorStreak = 3

	d := e.Evaluate(context.Background(), conv, "halo", Classification{Confidence: patternConfidence}, 0)
	assert.True(t, d.Escalate)
	assert.Equal(t, TriggerErrorRate, d.Trigger)

	conv.Context.ErrorStreak = 2
	d = e.Evaluate(context.Background(), conv, "halo", Classification{Confidence: patternConfidence}, 0)
	assert.False(t, d.Escalate)
}

func TestEscalateAndResume(t *testing.T) {
	conv := customerConv()
	conv.Status = StatusActive
	conv.Context.ErrorStreak = 5

	now := time.Now()
	Escalate(conv, now)
	assert.True(t, conv.IsEscalated())
	require.NotNil(t, conv.EscalatedAt)
	assert.Equal(t, now, *conv.EscalatedAt)

	ResumeAutomated(conv)
	assert.False(t, conv.IsEscalated())
	assert.Nil(t, conv.EscalatedAt)
	assert.Zero(t, conv.Context.ErrorStreak)
}

func TestEscalationDoesNotTouchUploadState(t *testing.T) {
	conv := staffConv()
	draft := conv.Context.BeginUpload(time.Now())
	draft.Step = StepPhotoAwaitingData

	Escalate(conv, time.Now())
	assert.Equal(t, StepPhotoAwaitingData, conv.UploadStep())

	ResumeAutomated(conv)
	assert.Equal(t, StepPhotoAwaitingData, conv.UploadStep())
}
