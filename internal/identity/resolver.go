package identity

import "strings"

// SenderKind distinguishes phone-backed identities from opaque device ids.
type SenderKind string

const (
	// SenderPhone carries stable phone semantics.
	SenderPhone SenderKind = "phone"
	// SenderDevice is a linked-device id with no phone semantics of its own.
	// It must never be auto-promoted to staff.
	SenderDevice SenderKind = "device"
)

const defaultCountryCode = "62"

// SenderID is the resolved form of a raw transport identifier. Exactly one of
// Phone or DeviceID is populated, keyed by Kind. VerifiedPhone is a lookup
// back-reference recorded after an explicit verification command; it is never
// a source of authority by itself.
type SenderID struct {
	Kind          SenderKind
	Phone         string
	DeviceID      string
	VerifiedPhone string
}

// Key returns the stable identity key used to partition conversations.
func (s SenderID) Key() string {
	if s.Kind == SenderDevice {
		return s.DeviceID
	}
	return s.Phone
}

// IsDevice reports whether the sender is an ambiguous device identity.
func (s SenderID) IsDevice() bool {
	return s.Kind == SenderDevice
}

// Normalize resolves a raw transport identifier into a SenderID.
//
// Linked-device identifiers (an "@lid" routing domain) are tagged as device
// identities and left untouched. Phone-bearing identifiers are reduced to
// digits, the national trunk prefix is replaced with the country code, and a
// bare mobile-prefix number gets the country code prepended. The function is
// idempotent: normalizing an already-normalized value yields the same value.
func Normalize(raw string) SenderID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SenderID{Kind: SenderPhone}
	}

	local := raw
	domain := ""
	if at := strings.Index(raw, "@"); at >= 0 {
		local = raw[:at]
		domain = raw[at+1:]
	}

	if isDeviceDomain(domain) {
		return SenderID{Kind: SenderDevice, DeviceID: raw}
	}

	digits := sanitizeDigits(local)
	switch {
	case digits == "":
		return SenderID{Kind: SenderPhone}
	case strings.HasPrefix(digits, "0"):
		digits = defaultCountryCode + digits[1:]
	case strings.HasPrefix(digits, "8") && len(digits) >= 9 && len(digits) <= 12:
		digits = defaultCountryCode + digits
	}

	return SenderID{Kind: SenderPhone, Phone: digits}
}

// isDeviceDomain reports whether the routing domain marks a linked device.
func isDeviceDomain(domain string) bool {
	return strings.EqualFold(domain, "lid")
}

func sanitizeDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
