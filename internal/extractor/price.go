package extractor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyRUB = "RUB"
)

// number matches space-grouped, separator-grouped or plain decimals.
// Alternation order matters: grouped forms must win over the plain one.
const number = `(\d{1,3}(?:[ \x{00A0}]\d{3})+|\d{1,3}(?:[.,]\d{3})+|\d+(?:[.,]\d+)?)`

const (
	thousandQualifier = `тыс\.?|тысяч[а-я]*|thousand|k|к`
	millionQualifier  = `млн\.?|миллион[а-я]*|million|mln`
	qualifier         = `(` + thousandQualifier + `|` + millionQualifier + `)`
	currencyWord      = `(\$|€|₽|usd|eur|euro|евро|долл[а-я]*\.?|dollars?|у\.\s?е\.?|уе|руб[а-я]*\.?|rub|rur|р\.)`
	currencySymbol    = `(\$|€|₽|usd|eur)`
	leftBoundary      = `(?:^|[^\d.,])`
	priceKeyword      = `(?:цена|стоимость|прайс|price|cost)`
)

type priceRange struct {
	min, max decimal.Decimal
}

var (
	fiatRange    = priceRange{decimal.NewFromInt(300), decimal.NewFromInt(2_000_000)}
	rubleRange   = priceRange{decimal.NewFromInt(10_000), decimal.NewFromInt(500_000_000)}
	keywordRange = priceRange{decimal.NewFromInt(100), decimal.NewFromInt(500_000_000)}
)

func (r priceRange) contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(r.min) && v.LessThanOrEqual(r.max)
}

// pricePattern knows where the amount, qualifier and currency sit in its
// submatches; an index of 0 means the pattern has no such group. A non-empty
// unit group marks a distance rather than a price.
type pricePattern struct {
	re       *regexp.Regexp
	amount   int
	qual     int
	currency int
	unit     int
}

// Patterns are tried in order; the first in-range candidate wins.
var pricePatterns = []pricePattern{
	{
		re:     regexp.MustCompile(`(?i)` + leftBoundary + number + `\s*` + qualifier + `\s*` + currencyWord),
		amount: 1, qual: 2, currency: 3,
	},
	{
		re:       regexp.MustCompile(`(?i)` + currencySymbol + `\s*` + number + `(?:\s*` + qualifier + `)?(\s*(?:км|km))?`),
		currency: 1, amount: 2, qual: 3, unit: 4,
	},
	{
		re:     regexp.MustCompile(`(?i)` + leftBoundary + number + `\s*` + currencyWord),
		amount: 1, currency: 2,
	},
	{
		re:     regexp.MustCompile(`(?i)` + priceKeyword + `\s*[:\-–—]?\s*(?:от\s+|за\s+)?` + number + `(?:\s*` + qualifier + `)?(?:\s*` + currencyWord + `)?`),
		amount: 1, qual: 2, currency: 3,
	},
}

func normalizeCurrency(raw string) string {
	s := fold(strings.TrimSpace(raw))
	switch {
	case s == "$" || s == "usd" || strings.HasPrefix(s, "долл") || strings.HasPrefix(s, "dollar") ||
		strings.HasPrefix(s, "у.") || s == "уе":
		return CurrencyUSD
	case s == "€" || s == "eur" || s == "euro" || s == "евро":
		return CurrencyEUR
	case s == "₽" || strings.HasPrefix(s, "руб") || s == "rub" || s == "rur" || s == "р.":
		return CurrencyRUB
	default:
		return ""
	}
}

// parseAmount reads a matched number. Space- and separator-grouped forms are
// thousands groups; anything else is a plain decimal with "," or ".".
func parseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.NewReplacer(" ", "", "\u00a0", "").Replace(raw)
	if groupedNumber.MatchString(s) {
		s = strings.NewReplacer(".", "", ",", "").Replace(s)
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}

var groupedNumber = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)

func applyQualifier(v decimal.Decimal, qual string) decimal.Decimal {
	q := fold(qual)
	switch {
	case q == "":
		return v
	case strings.HasPrefix(q, "млн") || strings.HasPrefix(q, "миллион") || q == "million" || q == "mln":
		return v.Mul(decimal.NewFromInt(1_000_000))
	default:
		return v.Mul(decimal.NewFromInt(1_000))
	}
}

// dangling reports a one-letter qualifier glued to a following word, as the
// "к" in "км".
func dangling(text string, end int, qual string) bool {
	if utf8.RuneCountInString(qual) != 1 || end >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return unicode.IsLetter(r)
}

func rangeFor(currency string) priceRange {
	switch currency {
	case CurrencyUSD, CurrencyEUR:
		return fiatRange
	case CurrencyRUB:
		return rubleRange
	default:
		return keywordRange
	}
}

// extractPrice returns the first plausible price and its currency code.
// Bare digit runs without a currency or price keyword never qualify.
func extractPrice(text string) (*decimal.Decimal, string) {
	for _, p := range pricePatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(text, -1) {
			group := func(n int) string {
				if n == 0 || idx[2*n] < 0 {
					return ""
				}
				return text[idx[2*n]:idx[2*n+1]]
			}
			if group(p.unit) != "" {
				continue
			}
			v, ok := parseAmount(group(p.amount))
			if !ok {
				continue
			}
			if q := group(p.qual); q != "" {
				if dangling(text, idx[2*p.qual+1], q) {
					continue
				}
				v = applyQualifier(v, q)
			}
			currency := normalizeCurrency(group(p.currency))
			if !rangeFor(currency).contains(v) {
				continue
			}
			v = v.Round(2)
			return &v, currency
		}
	}
	return nil, ""
}
