package conversation

import (
	"context"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

var escalationTracer = otel.Tracer("autolumiku/escalation")

// EscalationTrigger names what tripped the escalation gate.
type EscalationTrigger string

const (
	TriggerNone          EscalationTrigger = ""
	TriggerHumanRequest  EscalationTrigger = "human_request"
	TriggerLowConfidence EscalationTrigger = "low_confidence"
	TriggerComplaint     EscalationTrigger = "complaint"
	TriggerNegotiation   EscalationTrigger = "negotiation_limit"
	TriggerErrorRate     EscalationTrigger = "error_rate"
)

type escalationPattern struct {
	regex   *regexp.Regexp
	trigger EscalationTrigger
	keyword string
}

// escalationPatterns is checked in order; explicit human requests outrank
// complaint markers.
var escalationPatterns = []escalationPattern{
	{regex: regexp.MustCompile(`(?i)\b(?:mau|minta|bisa)\s+(?:ngomong|bicara|chat)\s+(?:sama|dengan|dgn)\s+(?:orang|manusia|admin|sales|cs)\b`), trigger: TriggerHumanRequest, keyword: "minta bicara orang"},
	{regex: regexp.MustCompile(`(?i)\b(?:hubungi|panggil|sambungkan)\s+(?:admin|sales|cs|customer\s*service)\b`), trigger: TriggerHumanRequest, keyword: "hubungi admin"},
	{regex: regexp.MustCompile(`(?i)\bjangan\s+bot\b|\bbukan\s+bot\b|\bbot\s+terus\b`), trigger: TriggerHumanRequest, keyword: "tolak bot"},
	{regex: regexp.MustCompile(`(?i)\b(?:komplain|complaint|kecewa|marah|lapor(?:kan)?)\b`), trigger: TriggerComplaint, keyword: "komplain"},
	{regex: regexp.MustCompile(`(?i)\b(?:penipuan|tipu|scam|palsu|bohong)\b`), trigger: TriggerComplaint, keyword: "penipuan"},
	{regex: regexp.MustCompile(`(?i)\b(?:refund|kembalikan\s+(?:uang|dp)|uang\s+kembali)\b`), trigger: TriggerComplaint, keyword: "refund"},
}

var negotiationRe = regexp.MustCompile(`(?i)\b(?:nego|tawar|turunin|kurangi?n?)\b`)

// EscalationDecision is the outcome of evaluating one inbound message.
type EscalationDecision struct {
	Escalate bool
	Trigger  EscalationTrigger
	Keyword  string
}

// Escalator decides when a conversation should be handed to a human. While
// escalated, automated replies are suppressed; the decision gates response
// generation, it never touches the upload workflow state.
type Escalator struct {
	logger              *logging.Logger
	confidenceThreshold float64
	negotiationLimitPct int
	errorLimit          int
}

func NewEscalator(logger *logging.Logger) *Escalator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Escalator{
		logger:              logger,
		confidenceThreshold: 0.3,
		negotiationLimitPct: 10,
		errorLimit:          3,
	}
}

// WithNegotiationLimit sets the discount percentage beyond which price
// negotiation is escalated.
func (e *Escalator) WithNegotiationLimit(pct int) *Escalator {
	if pct > 0 {
		e.negotiationLimitPct = pct
	}
	return e
}

// WithErrorLimit sets the per-conversation error streak that forces a
// hand-off.
func (e *Escalator) WithErrorLimit(limit int) *Escalator {
	if limit > 0 {
		e.errorLimit = limit
	}
	return e
}

// Evaluate checks one inbound customer message against the escalation
// triggers.
func (e *Escalator) Evaluate(ctx context.Context, conv *Conversation, text string, cls Classification, offeredPrice int64) EscalationDecision {
	_, span := escalationTracer.Start(ctx, "escalation.evaluate")
	defer span.End()

	decision := e.evaluate(conv, text, cls, offeredPrice)
	if decision.Escalate {
		span.SetAttributes(
			attribute.String("escalation.trigger", string(decision.Trigger)),
			attribute.String("tenant.id", conv.TenantID),
		)
		e.logger.Info("conversation escalation triggered",
			"trigger", decision.Trigger,
			"keyword", decision.Keyword,
			"tenant_id", conv.TenantID,
			"conversation_id", conv.ID,
		)
	}
	return decision
}

func (e *Escalator) evaluate(conv *Conversation, text string, cls Classification, offeredPrice int64) EscalationDecision {
	for _, p := range escalationPatterns {
		if p.regex.MatchString(text) {
			return EscalationDecision{Escalate: true, Trigger: p.trigger, Keyword: p.keyword}
		}
	}

	if cls.Confidence < e.confidenceThreshold {
		return EscalationDecision{Escalate: true, Trigger: TriggerLowConfidence}
	}

	if quoted := conv.Context.LastQuotedPrice; quoted > 0 && offeredPrice > 0 && negotiationRe.MatchString(text) {
		floor := quoted - quoted*int64(e.negotiationLimitPct)/100
		if offeredPrice < floor {
			return EscalationDecision{Escalate: true, Trigger: TriggerNegotiation, Keyword: "nego"}
		}
	}

	if conv.Context.ErrorStreak >= e.errorLimit {
		return EscalationDecision{Escalate: true, Trigger: TriggerErrorRate}
	}

	return EscalationDecision{}
}

// Escalate flips the conversation into the escalated state.
func Escalate(conv *Conversation, now time.Time) {
	conv.Status = StatusEscalated
	conv.EscalatedAt = &now
}

// ResumeAutomated clears the escalation and returns the conversation to
// automated handling. This is the only way out of the escalated state.
func ResumeAutomated(conv *Conversation) {
	conv.Status = StatusActive
	conv.EscalatedAt = nil
	conv.Context.ErrorStreak = 0
}
