package vehicle

import (
	"regexp"
	"strconv"
	"strings"
)

// Transmission is the drivetrain category of a listing.
type Transmission string

const (
	TransmissionAutomatic Transmission = "Automatic"
	TransmissionManual    Transmission = "Manual"
	TransmissionCVT       Transmission = "CVT"
)

// Fields holds the structured listing data extracted from free text.
type Fields struct {
	Make         string
	Model        string
	Year         int
	Price        int64
	Mileage      int
	Color        string
	Transmission Transmission
}

// Extraction is the result of parsing a free-text vehicle description.
// Missing holds the user-facing labels of absent required fields.
type Extraction struct {
	Success    bool
	Fields     Fields
	Missing    []string
	Confidence float64
}

// ExampleInput is shown to staff when extraction fails.
const ExampleInput = "Toyota Avanza 2019 150jt hitam manual km 45rb"

// Missing-field labels, in required order.
const (
	labelMake  = "merek"
	labelModel = "model"
	labelYear  = "tahun"
	labelPrice = "harga"
)

const extractConfidence = 0.9

var (
	yearRe = regexp.MustCompile(`\b(19\d{2}|20[0-2]\d)\b`)

	// "120jt", "1,5 juta", "Rp 120 jt"
	priceMillionRe = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(?:jt|juta)\b`)

	// "km 30rb", "km 30.000", "30rb km", "45 ribu km"
	mileageAfterKmRe  = regexp.MustCompile(`(?i)\bkm[\s.:]*([\d.]+)\s*(rb|ribu)?\b`)
	mileageBeforeKmRe = regexp.MustCompile(`(?i)\b([\d.]+)\s*(rb|ribu)?\s*km\b`)

	numberTokenRe = regexp.MustCompile(`\b\d[\d.]*\b`)

	wordSplitRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Automatic-family terms are checked before manual, then CVT as its own
// category. Default is Manual when nothing matches.
var transmissionRules = []struct {
	keywords []string
	result   Transmission
}{
	{keywords: []string{"matic", "matik", "metik", "automatic", "otomatis", "a/t", "at"}, result: TransmissionAutomatic},
	{keywords: []string{"manual", "m/t", "mt"}, result: TransmissionManual},
	{keywords: []string{"cvt"}, result: TransmissionCVT},
}

var colorNames = []string{
	"hitam", "putih", "merah", "biru", "silver", "abu-abu", "abu",
	"hijau", "kuning", "coklat", "emas", "oranye", "orange", "ungu", "maroon",
}

var brandNames = []string{
	"toyota", "honda", "daihatsu", "suzuki", "mitsubishi", "nissan", "mazda",
	"hyundai", "kia", "wuling", "isuzu", "datsun", "bmw", "mercedes", "lexus",
	"chevrolet", "ford", "peugeot", "renault",
}

// modelToMake supplies the brand when the text only names a model.
var modelToMake = map[string]string{
	"avanza": "Toyota", "innova": "Toyota", "kijang": "Toyota", "rush": "Toyota",
	"fortuner": "Toyota", "yaris": "Toyota", "vios": "Toyota", "calya": "Toyota",
	"agya": "Toyota", "alphard": "Toyota", "camry": "Toyota", "raize": "Toyota",
	"corolla": "Toyota", "veloz": "Toyota",
	"brio": "Honda", "jazz": "Honda", "mobilio": "Honda", "civic": "Honda",
	"city": "Honda", "accord": "Honda", "crv": "Honda", "hrv": "Honda",
	"brv": "Honda", "wrv": "Honda", "freed": "Honda",
	"xenia": "Daihatsu", "terios": "Daihatsu", "ayla": "Daihatsu",
	"sigra": "Daihatsu", "sirion": "Daihatsu", "luxio": "Daihatsu",
	"ertiga": "Suzuki", "baleno": "Suzuki", "ignis": "Suzuki",
	"karimun": "Suzuki", "xl7": "Suzuki", "swift": "Suzuki",
	"xpander": "Mitsubishi", "pajero": "Mitsubishi", "outlander": "Mitsubishi",
	"livina": "Nissan", "serena": "Nissan", "march": "Nissan",
	"cx5": "Mazda", "cx3": "Mazda",
	"almaz": "Wuling", "confero": "Wuling", "cortez": "Wuling",
	"panther": "Isuzu",
}

// ParsePrice reads a standalone rupiah amount from free text, in either the
// abbreviated million form or as a bare figure. Used to read a buyer's offer
// during negotiation.
func ParsePrice(text string) (int64, bool) {
	lower := strings.ToLower(text)
	price, span := extractPrice(lower)
	if price == 0 {
		price = extractBarePrice(lower, span)
	}
	return price, price > 0
}

// Extract parses a free-text vehicle description into structured fields.
// It is deterministic: regex and dictionary driven, no AI involvement.
// Required fields are make, model, year and price; when any are absent the
// result carries success=false and the exact missing labels, never a guessed
// default.
func Extract(text string) Extraction {
	lower := strings.ToLower(text)
	words := tokenize(lower)

	f := Fields{
		Color:        "Unknown",
		Transmission: TransmissionManual,
	}

	if y, ok := extractYear(lower); ok {
		f.Year = y
	}
	price, priceSpan := extractPrice(lower)
	f.Price = price
	if m, ok := extractMileage(lower); ok {
		f.Mileage = m
	}
	if f.Price == 0 {
		f.Price = extractBarePrice(lower, priceSpan)
	}
	if t, ok := extractTransmission(lower, words); ok {
		f.Transmission = t
	}
	if c, ok := extractColor(words); ok {
		f.Color = c
	}

	f.Make, f.Model = extractMakeModel(words)

	var missing []string
	if f.Make == "" {
		missing = append(missing, labelMake)
	}
	if f.Model == "" {
		missing = append(missing, labelModel)
	}
	if f.Year == 0 {
		missing = append(missing, labelYear)
	}
	if f.Price == 0 {
		missing = append(missing, labelPrice)
	}

	if len(missing) > 0 {
		return Extraction{Success: false, Fields: f, Missing: missing}
	}
	return Extraction{Success: true, Fields: f, Confidence: extractConfidence}
}

func tokenize(lower string) []string {
	parts := wordSplitRe.Split(lower, -1)
	words := parts[:0]
	for _, p := range parts {
		if p != "" {
			words = append(words, p)
		}
	}
	return words
}

func extractYear(lower string) (int, bool) {
	m := yearRe.FindString(lower)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// extractPrice handles the explicit million multiplier ("120jt", "1,5 juta").
// Returns the matched span so the bare-number pass can skip it.
func extractPrice(lower string) (int64, []int) {
	loc := priceMillionRe.FindStringSubmatchIndex(lower)
	if loc == nil {
		return 0, nil
	}
	raw := strings.ReplaceAll(lower[loc[2]:loc[3]], ",", ".")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, nil
	}
	return int64(value * 1_000_000), loc[:2]
}

// extractBarePrice accepts a number without unit only when it is already
// large enough to plausibly be a full price.
func extractBarePrice(lower string, skip []int) int64 {
	for _, loc := range numberTokenRe.FindAllStringIndex(lower, -1) {
		if skip != nil && loc[0] >= skip[0] && loc[1] <= skip[1] {
			continue
		}
		digits := strings.ReplaceAll(lower[loc[0]:loc[1]], ".", "")
		value, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			continue
		}
		if value > 10_000_000 {
			return value
		}
	}
	return 0
}

func extractMileage(lower string) (int, bool) {
	for _, re := range []*regexp.Regexp{mileageAfterKmRe, mileageBeforeKmRe} {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		digits := strings.ReplaceAll(m[1], ".", "")
		value, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if m[2] != "" {
			return value * 1000, true
		}
		if value < 1_000_000 {
			return value, true
		}
	}
	return 0, false
}

func extractTransmission(lower string, words []string) (Transmission, bool) {
	for _, rule := range transmissionRules {
		for _, kw := range rule.keywords {
			if strings.ContainsAny(kw, "/") {
				if strings.Contains(lower, kw) {
					return rule.result, true
				}
				continue
			}
			for _, w := range words {
				if w == kw {
					return rule.result, true
				}
			}
		}
	}
	return "", false
}

func extractColor(words []string) (string, bool) {
	for _, name := range colorNames {
		for _, w := range words {
			if w == name || (name == "abu-abu" && w == "abu") {
				return titleCase(name), true
			}
		}
	}
	return "", false
}

func extractMakeModel(words []string) (make_, model string) {
	for _, brand := range brandNames {
		if idx := indexOfWord(words, brand); idx >= 0 {
			make_ = titleCase(brand)
			// The word following the brand is usually the model.
			if idx+1 < len(words) && !isNumeric(words[idx+1]) {
				model = titleCase(words[idx+1])
			}
			break
		}
	}

	for _, w := range words {
		brand, ok := modelToMake[w]
		if !ok {
			continue
		}
		if model == "" {
			model = titleCase(w)
		}
		if make_ == "" {
			make_ = brand
		}
		break
	}

	return make_, model
}

func indexOfWord(words []string, target string) int {
	for i, w := range words {
		if w == target {
			return i
		}
	}
	return -1
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
