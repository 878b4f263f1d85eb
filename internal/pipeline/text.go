package pipeline

import (
	"regexp"
	"strings"

	"github.com/vroommarket/listingbot/internal/sanitize"
)

// Contact and call-to-action phrases the destination channel must not carry;
// buyers contact the channel through the footer instead.
var contactPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)приглашаем[^\n.!?]*на просмотр[^\n.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)звоните[^\n.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)пишите[^\n.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)для уточнения деталей[^\n.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)контакты[^\n.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)свяжитесь[^\n.!?]*для подробностей[^\n.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)записи на тест-драйв[^\n.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)посмотреть автомобиль[^\n.!?]*[.!?]?`),
	regexp.MustCompile(`(?:\+7|\b8)[\s(-]*\d{3}[\s)-]*\d{3}[\s-]*\d{2}[\s-]*\d{2}`),
}

var (
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	idHeader      = regexp.MustCompile(`(?i)^\s*ID:\s*\S+\s*\n?`)
)

// FinalizeText prepares rewritten text for publication: markup and contact
// phrases are removed, blank lines collapsed, an "ID: <customID>" header
// prepended and the footer appended.
func FinalizeText(text, customID, footer string) string {
	text = idHeader.ReplaceAllString(sanitize.Text(text), "")
	for _, re := range contactPhrases {
		text = re.ReplaceAllString(text, "")
	}
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	var b strings.Builder
	b.WriteString("ID: ")
	b.WriteString(customID)
	b.WriteString("\n")
	b.WriteString(text)
	if footer = strings.TrimSpace(footer); footer != "" {
		b.WriteString("\n\n")
		b.WriteString(footer)
	}
	return b.String()
}
