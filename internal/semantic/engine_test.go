package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngine_ExpandAbbreviation(t *testing.T) {
	e := NewEngine(nil)
	expansions := e.Expand("auth")
	assert.Contains(t, expansions, "auth")
	assert.Contains(t, expansions, "authenticate")
	assert.Contains(t, expansions, "login")
}

func TestEngine_ExpandStemmedForm(t *testing.T) {
	e := NewEngine(nil)
	expansions := e.Expand("authenticating")
	assert.Contains(t, expansions, "authenticate")
}

func TestEngine_ExpandDomainGroup(t *testing.T) {
	e := NewEngine(nil)
	expansions := e.Expand("login")
	assert.Contains(t, expansions, "signin")
	assert.Contains(t, expansions, "authenticate")
}

func TestEngine_ExpandUnknownTermReturnsItself(t *testing.T) {
	e := NewEngine(nil)
	expansions := e.Expand("xyzzy123")
	assert.Equal(t, []string{"xyzzy123"}, expansions)
}

func TestEngine_ExpandLanguageJargon(t *testing.T) {
	e := NewEngine(nil)
	expansions := e.Expand("goroutine")
	assert.Contains(t, expansions, "concurrent")
}

func TestEngine_FuzzyFallback(t *testing.T) {
	e := NewEngine(nil)
	matches := e.FuzzyFallback("authentification", []string{"authentication", "database", "cache"})
	assert.Contains(t, matches, "authentication")
}

func TestEngine_ExpandFallsBackToFuzzyOnMiss(t *testing.T) {
	e := NewEngine(nil)
	expansions := e.Expand("authentification")
	assert.Contains(t, expansions, "authentication")
	// fuzzy hit should pull in its group too, not just the matched term
	assert.Contains(t, expansions, "login")
}
