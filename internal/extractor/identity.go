package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

type identity struct {
	brand string
	model string
}

// stage resolves brand and model from prepared input or reports that it
// could not. Stages run in order and the first success wins.
type stage func(in *input) (identity, bool)

// Words that never name a brand or a model. Template labels are included so
// rendered attributes read back cleanly.
var stopWords = lo.SliceToMap([]string{
	"продаю", "продам", "продается", "продаеться", "продажа", "срочно", "срочная", "обмен", "торг",
	"авто", "автомобиль", "автомобиля", "машина", "машину", "тачка", "цена", "стоимость", "год", "года",
	"г", "в", "на", "и", "с", "от", "за", "по", "для", "без", "или", "я", "мы", "есть", "новый", "новая",
	"новое", "отличный", "отличное", "отличном", "хороший", "хорошем", "идеальном", "состояние",
	"состоянии", "пробег", "двигатель", "коробка", "привод", "марка", "модель", "комплектация", "км",
	"id", "vin", "selling", "sell", "sale", "for", "car", "price", "the", "a", "in", "new", "year",
	"brand", "model", "mileage", "urgent", "звоните", "пишите", "тел", "телефон", "объявление",
}, func(w string) (string, struct{}) { return w, struct{}{} })

// Service words trailing a model name that belong to the listing rather than
// the car.
var serviceWords = lo.SliceToMap([]string{
	"год", "года", "г", "гв", "year", "yr", "trim", "new", "новый", "новая", "новое", "комплектация",
	"рестайлинг", "в", "in",
}, func(w string) (string, struct{}) { return w, struct{}{} })

func isStopWord(lower string) bool {
	_, ok := stopWords[lower]
	return ok
}

// Stop words that still occur inside model names, as in "Tesla Model Y".
var modelWords = lo.SliceToMap([]string{"model"}, func(w string) (string, struct{}) { return w, struct{}{} })

// isYearToken reports a four-digit number that reads as a year, with or
// without a glued "г"/"г.в" marker. Model numbers such as 2107 or 3008 fall
// outside this window.
func isYearToken(t token) bool {
	v, ok := yearOf(t)
	return ok && v >= 1950 && v <= 2099
}

var decimalToken = regexp.MustCompile(`^\d+[.,]\d+$`)

func breaksModel(t token) bool {
	if _, ok := modelWords[t.Lower]; ok {
		return false
	}
	return isYearToken(t) || (isDigits(t.Raw) && len(t.Raw) > 4) || decimalToken.MatchString(t.Raw) || isStopWord(t.Lower)
}

// collectModel gathers up to limit model tokens starting at tokens[start].
// Collection stops at a year, a long digit run, a decimal such as an engine
// volume, a stop word or punctuation. Trailing service and stop words are
// dropped.
func collectModel(tokens []token, start, limit int) string {
	var parts []string
	for j := start; j < len(tokens) && len(parts) < limit; j++ {
		t := tokens[j]
		if j > start && t.Break {
			break
		}
		if breaksModel(t) {
			break
		}
		parts = append(parts, t.Raw)
	}
	for len(parts) > 0 {
		last := fold(parts[len(parts)-1])
		if _, ok := serviceWords[last]; !ok && !isStopWord(last) {
			break
		}
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}

var bracketPattern = regexp.MustCompile(`\[([^\]\n]+)\]\s*\[([^\]\n]*)\]\s*\[(\d{4})\]`)

func (e *Extractor) bracketed(in *input) (identity, bool) {
	m := bracketPattern.FindStringSubmatch(in.text)
	if m == nil {
		return identity{}, false
	}
	brand := strings.TrimSpace(m[1])
	if isStopWord(fold(brand)) {
		return identity{}, false
	}
	if canonical, ok := e.dict.Lookup(brand); ok {
		brand = canonical
	}
	return identity{brand: brand, model: strings.TrimSpace(m[2])}, true
}

func (e *Extractor) firstLineDictionary(in *input) (identity, bool) {
	brand, _, end, ok := e.dict.Find(in.firstLineTokens)
	if !ok {
		return identity{}, false
	}
	return identity{brand: brand, model: collectModel(in.firstLineTokens, end, 4)}, true
}

var genericPattern = regexp.MustCompile(`^([\p{L}][\p{L}\p{N}\-]*)\s+((?:[\p{L}\p{N}\-]+\s+){0,2}?[\p{L}\p{N}\-]+)\s+((?:19|20)\d{2})(?:[^\p{N}]|$)`)

// genericFirstLine tries "Word Word(s) Year" at every word start of the first
// line and keeps the first candidate whose brand is not a stop word.
func (e *Extractor) genericFirstLine(in *input) (identity, bool) {
	for _, t := range in.firstLineTokens {
		m := genericPattern.FindStringSubmatch(in.firstLine[t.Start:])
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[3])
		if year < minYear || year > in.maxYear {
			continue
		}
		if isStopWord(fold(m[1])) {
			continue
		}
		words := strings.Fields(m[2])
		if isStopWord(fold(words[0])) {
			continue
		}
		return identity{brand: m[1], model: strings.Join(words, " ")}, true
	}
	return identity{}, false
}

func (e *Extractor) wholeTextDictionary(in *input) (identity, bool) {
	brand, _, end, ok := e.dict.Find(in.tokens)
	if !ok {
		return identity{}, false
	}
	return identity{brand: brand, model: collectModel(in.tokens, end, 2)}, true
}

var nonLetters = regexp.MustCompile(`[^\p{L}\s]+`)

// fallbackWords takes the first two non-stop-word alphabetic tokens of the
// first line.
func (e *Extractor) fallbackWords(in *input) (identity, bool) {
	words := lo.Filter(strings.Fields(nonLetters.ReplaceAllString(in.firstLine, " ")), func(w string, _ int) bool {
		return !isStopWord(fold(w))
	})
	if len(words) < 2 {
		return identity{}, false
	}
	return identity{brand: words[0], model: words[1]}, true
}

func (e *Extractor) stages() []stage {
	return []stage{
		e.bracketed,
		e.firstLineDictionary,
		e.genericFirstLine,
		e.wholeTextDictionary,
		e.fallbackWords,
	}
}
