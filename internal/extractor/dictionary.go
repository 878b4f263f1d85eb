package extractor

import (
	"regexp"
	"strings"
)

// token is one word of listing text. Lower is the folded form used for
// dictionary and keyword lookups; Break is set when punctuation (not just
// whitespace) separates the token from the previous one. Start and End are
// byte offsets into the tokenized string.
type token struct {
	Raw        string
	Lower      string
	Break      bool
	Start, End int
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’+.\-][\p{L}\p{N}]+)*`)

func fold(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "ё", "е")
}

func tokenize(s string) []token {
	locs := tokenPattern.FindAllStringIndex(s, -1)
	tokens := make([]token, 0, len(locs))
	prevEnd := 0
	for i, loc := range locs {
		raw := s[loc[0]:loc[1]]
		gap := s[prevEnd:loc[0]]
		tokens = append(tokens, token{
			Raw:   raw,
			Lower: fold(raw),
			Break: i > 0 && strings.TrimSpace(gap) != "",
			Start: loc[0],
			End:   loc[1],
		})
		prevEnd = loc[1]
	}
	return tokens
}

type trieNode struct {
	children map[string]*trieNode
	brand    string
}

// Dictionary is an immutable token trie of brand aliases. Lookups prefer the
// longest alias starting at a position, so "land rover" beats "land".
type Dictionary struct {
	root *trieNode
}

// NewDictionary builds a Dictionary from brand entries. Later entries never
// override an alias claimed by an earlier one.
func NewDictionary(entries []brandEntry) *Dictionary {
	root := &trieNode{children: make(map[string]*trieNode)}
	for _, e := range entries {
		aliases := append([]string{e.Name}, e.Aliases...)
		for _, alias := range aliases {
			toks := tokenize(alias)
			if len(toks) == 0 {
				continue
			}
			node := root
			for _, t := range toks {
				next, ok := node.children[t.Lower]
				if !ok {
					next = &trieNode{children: make(map[string]*trieNode)}
					node.children[t.Lower] = next
				}
				node = next
			}
			if node.brand == "" {
				node.brand = e.Name
			}
		}
	}
	return &Dictionary{root: root}
}

// matchAt returns the brand of the longest alias starting at tokens[i] and
// the number of tokens it spans.
func (d *Dictionary) matchAt(tokens []token, i int) (string, int) {
	node := d.root
	brand, width := "", 0
	for j := i; j < len(tokens); j++ {
		next, ok := node.children[tokens[j].Lower]
		if !ok {
			break
		}
		node = next
		if node.brand != "" {
			brand, width = node.brand, j-i+1
		}
	}
	return brand, width
}

// Find scans tokens left to right and returns the first alias match: the
// canonical brand and the token span [start, end).
func (d *Dictionary) Find(tokens []token) (brand string, start, end int, ok bool) {
	for i := range tokens {
		if b, w := d.matchAt(tokens, i); w > 0 {
			return b, i, i + w, true
		}
	}
	return "", 0, 0, false
}

// Lookup returns the canonical brand for a single alias, if known.
func (d *Dictionary) Lookup(alias string) (string, bool) {
	toks := tokenize(alias)
	if len(toks) == 0 {
		return "", false
	}
	b, w := d.matchAt(toks, 0)
	if w != len(toks) {
		return "", false
	}
	return b, true
}

var defaultDictionary = NewDictionary(brandTable)
