package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const minYear = 1980

// unitSuffixes follow numbers that are never model years.
var unitSuffixes = []string{"км", "km", "руб", "usd", "eur", "тыс", "л.с", "hp", "miles", "р."}

var currencySymbols = []string{"$", "€", "₽"}

// followedByUnit reports a unit word or currency symbol after text[:end]. A
// symbol separated by space and followed by digits opens the next amount, as
// in "2018 $15000", so it does not count.
func followedByUnit(text string, end int) bool {
	tail := text[end:]
	rest := fold(strings.TrimLeft(tail, " \t "))
	for _, c := range currencySymbols {
		if strings.HasPrefix(tail, c) {
			return true
		}
		if after, ok := strings.CutPrefix(rest, c); ok {
			after = strings.TrimLeft(after, " \t ")
			return after == "" || after[0] < '0' || after[0] > '9'
		}
	}
	for _, u := range unitSuffixes {
		if strings.HasPrefix(rest, u) {
			return true
		}
	}
	return false
}

func precededBySymbol(text string, start int) bool {
	head := strings.TrimRight(text[:start], " \t ")
	return strings.HasSuffix(head, "$") || strings.HasSuffix(head, "€") || strings.HasSuffix(head, "₽")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// yearToken matches a four-digit number, optionally with the Russian "г" or
// "г.в" year marker glued on.
var yearToken = regexp.MustCompile(`^(\d{4})(?:г|гв|г\.в)?$`)

func yearOf(t token) (int, bool) {
	m := yearToken.FindStringSubmatch(t.Lower)
	if m == nil {
		return 0, false
	}
	v, _ := strconv.Atoi(m[1])
	return v, true
}

// extractYear returns the first standalone year token in [1980, maxYear].
// Numbers carrying a unit or currency are skipped.
func extractYear(text string, tokens []token, maxYear int) *int {
	for _, t := range tokens {
		v, ok := yearOf(t)
		if !ok || v < minYear || v > maxYear {
			continue
		}
		if followedByUnit(text, t.End) || precededBySymbol(text, t.Start) {
			continue
		}
		return intPtr(v)
	}
	return nil
}

const maxMileage = 2_000_000

var (
	mileageKeyword   = regexp.MustCompile(`(?i)(?:пробег|одометр|mileage|odometer)\s*[:\-–—]?\s*(?:около\s+|~\s*)?` + number + `(?:\s*(` + thousandQualifier + `)(?:[^\p{L}]|$))?`)
	mileageQualified = regexp.MustCompile(`(?i)` + leftBoundary + number + `\s*(` + thousandQualifier + `)\s*(?:км|km)`)
	mileagePlain     = regexp.MustCompile(`(?i)` + leftBoundary + number + `\s*(?:км|km)(?:[^\p{L}/]|$)`)
)

// extractMileage reads kilometres from a keyword, a thousand-qualified
// distance or a plain km-suffixed number, in that order.
func extractMileage(text string) *int {
	for _, re := range []*regexp.Regexp{mileageKeyword, mileageQualified, mileagePlain} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, ok := parseAmount(m[1])
			if !ok {
				continue
			}
			if len(m) > 2 && m[2] != "" {
				v = v.Mul(decimal.NewFromInt(1_000))
			}
			if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(maxMileage)) {
				continue
			}
			return intPtr(int(v.IntPart()))
		}
	}
	return nil
}

var (
	engineSuffixed = regexp.MustCompile(`(?i)(?:^|[^\d.,])(\d[.,]\d)\s*(?:литр[а-я]*|л|l|t)(?:[^\p{L}]|$)`)
	engineKeyword  = regexp.MustCompile(`(?i)(?:объ[её]м|двигатель|мотор|engine)\s*[:\-–—]?\s*(\d[.,]\d)`)
)

const (
	minEngine = 0.6
	maxEngine = 8.5
)

// extractEngineVolume returns the displacement in litres as "N.N".
func extractEngineVolume(text string) string {
	for _, re := range []*regexp.Regexp{engineSuffixed, engineKeyword} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := strings.Replace(m[1], ",", ".", 1)
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < minEngine || f > maxEngine {
				continue
			}
			return v
		}
	}
	return ""
}

var (
	automaticPrefixes = []string{"автомат", "акпп", "вариатор", "робот", "типтроник", "automatic", "tiptronic", "steptronic"}
	automaticTokens   = []string{"cvt", "dsg", "pdk", "s-tronic", "robot"}
	manualPrefixes    = []string{"механи", "мкпп", "ручн", "manual"}
)

// extractTransmission returns the gearbox named earliest in the text.
// Two-letter codes are matched case-sensitively to avoid English prepositions.
func extractTransmission(tokens []token) Transmission {
	for _, t := range tokens {
		switch {
		case t.Raw == "AT" || t.Raw == "АКП" || hasAnyPrefix(t.Lower, automaticPrefixes) || lo.Contains(automaticTokens, t.Lower):
			return TransmissionAutomatic
		case t.Raw == "MT" || t.Raw == "МКП" || hasAnyPrefix(t.Lower, manualPrefixes):
			return TransmissionManual
		}
	}
	return TransmissionUnknown
}

var (
	allWheelPrefixes = []string{"полноприв", "xdrive", "4matic", "4motion", "quattro", "all-wheel", "awd", "4wd", "4x4", "4х4"}
	frontPrefixes    = []string{"переднеприв", "fwd", "front-wheel"}
	rearPrefixes     = []string{"заднеприв", "rwd", "rear-wheel"}
)

func driveAdjective(lower string) DriveType {
	switch {
	case strings.HasPrefix(lower, "полн"):
		return DriveAllWheel
	case strings.HasPrefix(lower, "передн"):
		return DriveFront
	case strings.HasPrefix(lower, "задн"):
		return DriveRear
	default:
		return DriveUnknown
	}
}

// extractDriveType returns the drivetrain named earliest in the text, either
// as a code or as an adjective next to "привод".
func extractDriveType(tokens []token) DriveType {
	for i, t := range tokens {
		switch {
		case hasAnyPrefix(t.Lower, allWheelPrefixes):
			return DriveAllWheel
		case hasAnyPrefix(t.Lower, frontPrefixes):
			return DriveFront
		case hasAnyPrefix(t.Lower, rearPrefixes):
			return DriveRear
		}
		if i+1 < len(tokens) && strings.HasPrefix(tokens[i+1].Lower, "привод") {
			if d := driveAdjective(t.Lower); d != DriveUnknown {
				return d
			}
		}
		if strings.HasPrefix(t.Lower, "привод") && i+1 < len(tokens) {
			if d := driveAdjective(tokens[i+1].Lower); d != DriveUnknown {
				return d
			}
		}
	}
	return DriveUnknown
}

func hasAnyPrefix(s string, prefixes []string) bool {
	return lo.ContainsBy(prefixes, func(p string) bool { return strings.HasPrefix(s, p) })
}
