package ranking

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nepbay/voice-search/internal/models"
)

// Confidence starts at the base and is bumped by a fixed weight per detected
// signal, capped at 1.0.
const (
	confidenceBase    = 0.5
	confidenceB2B     = 0.1
	confidenceLocal   = 0.1
	confidenceUrgency = 0.05
	confidencePrice   = 0.15
	confidenceAttr    = 0.1

	// Bare numeric ranges above this bound are not treated as prices
	// ("1500000-2000000" is a serial number, not a budget).
	maxPlausiblePrice = 1_000_000

	minTokenLen = 3
)

var b2bKeywords = []string{
	"bulk order", "wholesale", "bulk", "business", "b2b", "industrial",
	"commercial", "distributor", "reseller", "merchant", "corporate",
}

var localityKeywords = []string{
	"made in nepal", "nepal made", "local brand", "swadeshi", "local",
	"nepal", "domestic", "handmade",
}

var veryHighUrgencyKeywords = []string{"same day", "critical", "emergency", "express"}

var highUrgencyKeywords = []string{"immediately", "urgent", "asap", "today", "now"}

var colorKeywords = []string{
	"red", "blue", "green", "yellow", "black", "white", "pink", "purple",
	"orange", "brown", "grey", "gray", "silver", "gold", "maroon", "navy",
	"beige", "cream",
}

var sizeKeywords = []string{
	"one size", "small", "s", "medium", "m", "large", "l", "xl", "xxl", "xs",
}

// IntentParser extracts a structured SearchIntent from free text. All patterns
// are compiled once in the constructor; regexp.Regexp carries no matcher state
// between calls, so a single parser is safe for concurrent use.
type IntentParser struct {
	b2bPattern      *regexp.Regexp
	localityPattern *regexp.Regexp
	veryHigh        []*regexp.Regexp
	high            []*regexp.Regexp

	underPattern   *regexp.Regexp
	abovePattern   *regexp.Regexp
	betweenPattern *regexp.Regexp
	rangePattern   *regexp.Regexp

	colorPatterns []*regexp.Regexp
	sizePatterns  []*regexp.Regexp

	multiSpace *regexp.Regexp
}

func NewIntentParser() *IntentParser {
	return &IntentParser{
		b2bPattern:      keywordAlternation(b2bKeywords),
		localityPattern: keywordAlternation(localityKeywords),
		veryHigh:        keywordPatterns(veryHighUrgencyKeywords),
		high:            keywordPatterns(highUrgencyKeywords),

		underPattern:   regexp.MustCompile(`\bunder\s+(\d+(?:\.\d+)?)`),
		abovePattern:   regexp.MustCompile(`\babove\s+(\d+(?:\.\d+)?)`),
		betweenPattern: regexp.MustCompile(`\bbetween\s+(\d+(?:\.\d+)?)\s*(?:and|to|-)\s*(\d+(?:\.\d+)?)`),
		rangePattern:   regexp.MustCompile(`\b(\d+)\s*-\s*(\d+)\b`),

		colorPatterns: keywordPatterns(colorKeywords),
		sizePatterns:  keywordPatterns(sizeKeywords),

		multiSpace: regexp.MustCompile(`\s+`),
	}
}

// keywordAlternation builds a single whole-word pattern matching any of the
// keywords. Longer phrases are tried first so "bulk order" wins over "bulk".
func keywordAlternation(keywords []string) *regexp.Regexp {
	sorted := make([]string, len(keywords))
	copy(sorted, keywords)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	escaped := make([]string, len(sorted))
	for i, kw := range sorted {
		escaped[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(escaped, "|") + `)\b`)
}

func keywordPatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return patterns
}

// Parse derives a SearchIntent from a raw query. The returned intent's Query
// field holds the cleaned residual terms: intent-signaling keywords stripped,
// whitespace collapsed, tokens shorter than three characters dropped. Price and
// attribute extraction run against the original lowercased query so that
// keyword stripping cannot disturb their patterns.
func (ip *IntentParser) Parse(rawQuery string) *models.SearchIntent {
	intent := &models.SearchIntent{
		Urgency:    models.UrgencyNormal,
		SortBy:     models.SortRelevance,
		Confidence: confidenceBase,
	}

	original := strings.ToLower(strings.TrimSpace(rawQuery))
	working := original

	if ip.b2bPattern.MatchString(working) {
		working = ip.b2bPattern.ReplaceAllString(working, " ")
		intent.IsB2B = true
		intent.Confidence += confidenceB2B
	}

	if ip.localityPattern.MatchString(working) {
		working = ip.localityPattern.ReplaceAllString(working, " ")
		intent.MadeInNepal = true
		intent.Confidence += confidenceLocal
	}

	// very_high keywords outrank high keywords; the first match wins and only
	// that keyword is stripped.
	working, intent.Urgency = ip.extractUrgency(working)
	if intent.Urgency != models.UrgencyNormal {
		intent.Confidence += confidenceUrgency
	}

	intent.Query = ip.cleanQuery(working)

	if ip.extractPrice(original, intent) {
		intent.Confidence += confidencePrice
	}

	if ip.extractAttributes(original, intent) {
		intent.Confidence += confidenceAttr
	}

	switch {
	case intent.MaxPrice != nil:
		intent.SortBy = models.SortPriceAsc
	case intent.Urgency != models.UrgencyNormal:
		intent.SortBy = models.SortDeliverySpeed
	}

	if intent.Confidence > 1.0 {
		intent.Confidence = 1.0
	}

	return intent
}

func (ip *IntentParser) extractUrgency(query string) (string, models.Urgency) {
	for _, p := range ip.veryHigh {
		if p.MatchString(query) {
			return p.ReplaceAllString(query, " "), models.UrgencyVeryHigh
		}
	}
	for _, p := range ip.high {
		if p.MatchString(query) {
			return p.ReplaceAllString(query, " "), models.UrgencyHigh
		}
	}
	return query, models.UrgencyNormal
}

func (ip *IntentParser) cleanQuery(query string) string {
	words := strings.Fields(ip.multiSpace.ReplaceAllString(query, " "))
	kept := words[:0]
	for _, w := range words {
		if len(w) >= minTokenLen {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// extractPrice tries the price patterns in priority order against the original
// lowercased query; the first successful pattern wins. Malformed ranges are
// silently ignored rather than rejected as errors.
func (ip *IntentParser) extractPrice(original string, intent *models.SearchIntent) bool {
	if m := ip.underPattern.FindStringSubmatch(original); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			intent.MaxPrice = &v
			return true
		}
	}

	if m := ip.abovePattern.FindStringSubmatch(original); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			intent.MinPrice = &v
			return true
		}
	}

	if m := ip.betweenPattern.FindStringSubmatch(original); m != nil {
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo == nil && errHi == nil {
			intent.MinPrice = &lo
			intent.MaxPrice = &hi
			return true
		}
	}

	if m := ip.rangePattern.FindStringSubmatch(original); m != nil {
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo == nil && errHi == nil && lo > 0 && lo < hi && hi < maxPlausiblePrice {
			intent.MinPrice = &lo
			intent.MaxPrice = &hi
			return true
		}
	}

	return false
}

func (ip *IntentParser) extractAttributes(original string, intent *models.SearchIntent) bool {
	found := false
	for i, p := range ip.colorPatterns {
		if p.MatchString(original) {
			// Colors are reported in their canonical uppercase vocabulary
			// form ("RED"); consumers compare case-insensitively.
			intent.Color = strings.ToUpper(colorKeywords[i])
			found = true
			break
		}
	}
	for i, p := range ip.sizePatterns {
		if p.MatchString(original) {
			intent.Size = sizeKeywords[i]
			found = true
			break
		}
	}
	return found
}
