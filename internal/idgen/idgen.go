// Package idgen issues short, store-unique listing identifiers of the form
// XXX-XXX (six digits).
package idgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
)

// DefaultMaxAttempts bounds how many candidates Next draws before giving up.
const DefaultMaxAttempts = 50

// ErrExhausted is returned when no unused id was found within the attempt budget.
var ErrExhausted = errors.New("no unused custom id found")

// Checker reports whether a custom id is already persisted.
type Checker interface {
	CustomIDExists(ctx context.Context, id string) (bool, error)
}

// Generator hands out ids that are neither persisted nor reserved by another
// in-flight listing. Next is serialised by a mutex so two workers can never
// claim the same id.
type Generator struct {
	mu          sync.Mutex
	checker     Checker
	reserved    map[string]struct{}
	maxAttempts int
	intn        func(n int) int
}

// New creates a Generator backed by checker.
func New(checker Checker) *Generator {
	return &Generator{
		checker:     checker,
		reserved:    make(map[string]struct{}),
		maxAttempts: DefaultMaxAttempts,
		intn:        rand.IntN,
	}
}

func (g *Generator) candidate() string {
	return fmt.Sprintf("%03d-%03d", g.intn(1000), g.intn(1000))
}

// Next returns a fresh id and reserves it until Release is called.
func (g *Generator) Next(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for range g.maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		id := g.candidate()
		if _, taken := g.reserved[id]; taken {
			continue
		}

		exists, err := g.checker.CustomIDExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check custom id %s: %w", id, err)
		}
		if exists {
			continue
		}

		g.reserved[id] = struct{}{}
		return id, nil
	}

	return "", ErrExhausted
}

// Release drops the in-memory reservation for id. Call it once the id is
// persisted or the listing carrying it was abandoned.
func (g *Generator) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reserved, id)
}

var (
	idPattern     = regexp.MustCompile(`^\d{3}-\d{3}$`)
	headerPattern = regexp.MustCompile(`(?i)ID:\s*(\d{3}-\d{3})`)
)

// Valid reports whether id has the XXX-XXX shape.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}

// Extract returns the id from an "ID: XXX-XXX" header in text, or "".
func Extract(text string) string {
	m := headerPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
