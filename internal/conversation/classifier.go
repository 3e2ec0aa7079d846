package conversation

import (
	"regexp"
	"strings"
)

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentStaffUploadInit  Intent = "staff_upload_init"
	IntentStaffUploadData  Intent = "staff_upload_data"
	IntentStaffStatus      Intent = "staff_status_update"
	IntentStaffInventory   Intent = "staff_inventory_query"
	IntentStaffVerify      Intent = "staff_verify"
	IntentStaffStats       Intent = "staff_statistics"
	IntentStaffBotResume   Intent = "staff_bot_resume"
	IntentCustomerGreeting Intent = "customer_greeting"
	IntentCustomerVehicle  Intent = "customer_vehicle_inquiry"
	IntentCustomerPrice    Intent = "customer_price_inquiry"
	IntentCustomerTest     Intent = "customer_test_drive"
	IntentCustomerPhotos   Intent = "customer_photo_request"
	IntentCustomerConfirm  Intent = "customer_photo_confirm"
	IntentGeneralInquiry   Intent = "general_inquiry"
)

// Classification carries the matched intent, the rule confidence, and any
// payload text remaining after the matched command prefix.
type Classification struct {
	Intent     Intent
	Confidence float64
	Payload    string
}

// Rule confidences: pattern hits are high confidence, the fallback is
// deliberately lower so the escalation threshold can sit beneath it.
const (
	patternConfidence  = 0.9
	fallbackConfidence = 0.5
)

// Upload-initiation phrasings staff actually use: the slash command, the bare
// word, and the common colloquial variants.
var uploadTriggerRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^/upload\b`),
	regexp.MustCompile(`(?i)^upload\b`),
	regexp.MustCompile(`(?i)^(?:saya\s+|aku\s+)?(?:mau|ingin|mo|pengen)\s+(?:upload|jual|pasang)(?:\s+(?:mobil|unit|kendaraan))?\b`),
	regexp.MustCompile(`(?i)^(?:tambah|input|masukin|masukkan)\s+(?:mobil|unit|kendaraan)\b`),
}

type intentRule struct {
	name      string
	staffOnly bool
	pattern   *regexp.Regexp
	intent    Intent
}

// intentRules is evaluated top to bottom, first match wins. Order is the
// priority: staff commands before customer intents, fallback last.
var intentRules = []intentRule{
	{name: "staff status update", staffOnly: true,
		pattern: regexp.MustCompile(`(?i)^status\s+(\S+\s+(?:terjual|booking|tersedia))\b`),
		intent:  IntentStaffStatus},
	{name: "staff inventory query", staffOnly: true,
		pattern: regexp.MustCompile(`(?i)^(?:stok|stock|inventory|daftar\s+(?:mobil|unit))\b`),
		intent:  IntentStaffInventory},
	{name: "staff verification", staffOnly: false,
		pattern: regexp.MustCompile(`(?i)^verifikasi\s+(\+?[\d\s.-]{8,})$`),
		intent:  IntentStaffVerify},
	{name: "staff statistics", staffOnly: true,
		pattern: regexp.MustCompile(`(?i)^(?:statistik|stats|laporan)\b`),
		intent:  IntentStaffStats},
	{name: "staff bot resume", staffOnly: true,
		pattern: regexp.MustCompile(`(?i)^(?:bot\s+(?:on|aktif)|aktifkan\s+bot)(?:\s+(\+?[\d\s.-]{8,}))?\s*$`),
		intent:  IntentStaffBotResume},
	{name: "customer greeting",
		pattern: regexp.MustCompile(`(?i)^(?:halo|hallo|hai|hi|hey|selamat\s+(?:pagi|siang|sore|malam)|assalamualaikum|permisi|p)\b`),
		intent:  IntentCustomerGreeting},
	{name: "customer price inquiry",
		pattern: regexp.MustCompile(`(?i)\b(?:harga|berapa(?:an)?|brp|nego|kredit|dp|cicilan)\b`),
		intent:  IntentCustomerPrice},
	{name: "customer test drive",
		pattern: regexp.MustCompile(`(?i)\btest\s*drive|coba\s+(?:mobil|unit)\b`),
		intent:  IntentCustomerTest},
	{name: "customer photo request",
		pattern: regexp.MustCompile(`(?i)\b(?:foto|photo|gambar|pic)\b`),
		intent:  IntentCustomerPhotos},
	{name: "customer photo confirm",
		pattern: regexp.MustCompile(`(?i)^(?:ya|iya|yup|yes|ok|oke|okay|boleh|mau|siap)\b`),
		intent:  IntentCustomerConfirm},
	{name: "customer vehicle inquiry",
		pattern: regexp.MustCompile(`(?i)\b(?:mobil|unit|kendaraan|avanza|brio|xenia|ertiga|ready|tersedia)\b`),
		intent:  IntentCustomerVehicle},
}

// Classify resolves the intent of an inbound text against the ordered rule
// table. Staff-only rules match only when the conversation's resolved
// identity is staff; identical text from a customer falls through.
//
// An upload trigger without trailing data initializes the workflow; the same
// trigger followed by descriptive text is data-bearing and may complete the
// workflow directly when enough photos were already captured.
func Classify(conv *Conversation, text string) Classification {
	trimmed := strings.TrimSpace(text)
	isStaff := conv != nil && conv.Type == TypeStaff

	if isStaff {
		for _, re := range uploadTriggerRes {
			loc := re.FindStringIndex(trimmed)
			if loc == nil {
				continue
			}
			payload := strings.TrimSpace(trimmed[loc[1]:])
			if payload == "" {
				return Classification{Intent: IntentStaffUploadInit, Confidence: patternConfidence}
			}
			return Classification{Intent: IntentStaffUploadData, Confidence: patternConfidence, Payload: payload}
		}
	}

	for _, rule := range intentRules {
		if rule.staffOnly && !isStaff {
			continue
		}
		if m := rule.pattern.FindStringSubmatch(trimmed); m != nil {
			payload := ""
			if len(m) > 1 {
				payload = strings.TrimSpace(m[1])
			}
			return Classification{Intent: rule.intent, Confidence: patternConfidence, Payload: payload}
		}
	}

	return Classification{Intent: IntentGeneralInquiry, Confidence: fallbackConfidence}
}
