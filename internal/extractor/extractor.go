// Package extractor recovers structured car attributes from free-form
// listing text. Extraction is a best-effort heuristic cascade: it never
// fails and always returns a populated CarAttributes.
package extractor

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Extractor extracts CarAttributes from listing text. It is safe for
// concurrent use.
type Extractor struct {
	dict *Dictionary
	now  func() time.Time
}

// New returns an Extractor over the built-in brand dictionary. A nil clock
// means time.Now; the clock bounds the accepted model year.
func New(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{dict: defaultDictionary, now: now}
}

var defaultExtractor = New(nil)

// Extract runs the default Extractor over text.
func Extract(text string) CarAttributes {
	return defaultExtractor.Extract(text)
}

type input struct {
	text            string
	tokens          []token
	firstLine       string
	firstLineTokens []token
	maxYear         int
}

func (e *Extractor) prepare(text string) *input {
	text = norm.NFKC.String(text)
	first := firstLine(text)
	return &input{
		text:            text,
		tokens:          tokenize(text),
		firstLine:       first,
		firstLineTokens: tokenize(first),
		maxYear:         e.now().Year() + 2,
	}
}

// firstLine is the first non-blank line that is not an "ID:" header.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToUpper(line), "ID:") {
			continue
		}
		return line
	}
	return ""
}

func defaults() CarAttributes {
	return CarAttributes{Brand: UnknownBrand, Model: UnknownModel}
}

// Extract returns the attributes found in text. Any internal failure yields
// the defaults.
func (e *Extractor) Extract(text string) (attrs CarAttributes) {
	defer func() {
		if recover() != nil {
			attrs = defaults()
		}
	}()

	in := e.prepare(text)
	attrs = defaults()

	for _, s := range e.stages() {
		if id, ok := s(in); ok {
			attrs.Brand, attrs.Model = id.brand, id.model
			break
		}
	}

	attrs.Year = extractYear(in.text, in.tokens, in.maxYear)
	attrs.Price, attrs.Currency = extractPrice(in.text)
	attrs.Mileage = extractMileage(in.text)
	attrs.EngineVolume = extractEngineVolume(in.text)
	attrs.Transmission = extractTransmission(in.tokens)
	attrs.DriveType = extractDriveType(in.tokens)
	return attrs
}
