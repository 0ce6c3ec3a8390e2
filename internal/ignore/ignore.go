// Package ignore implements the gitignore-semantics candidate-exclusion
// matcher used by the File Scanner, Candidate Discovery, and Indexer.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// essentialPatterns can never be overridden by a user or rule pattern; they
// are always checked first and always win.
var essentialPatterns = []string{
	"**/.git/**",
	".git/**",
	"**/.context/**",
	".context/**",
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
}

// pattern is one compiled gitignore-style rule.
type pattern struct {
	raw       string
	negate    bool
	dirOnly   bool
	anchored  bool // pattern contained a "/" before the final segment
	glob      string
}

// Matcher evaluates a path against essential, user, and rule-contributed
// ignore blocks. A path matched by the essential block is always ignored;
// otherwise the user block's verdict applies, and a matching pattern in the
// rule-contributed block overrides it. Within a block the last-matching
// pattern wins (gitignore semantics).
type Matcher struct {
	essential []pattern
	user      []pattern
	rules     []pattern
}

// New compiles the essential block. Call AddUserPatterns/AddRulePatterns to
// layer in `.ctxignore` and rule-contributed blocks.
func New() *Matcher {
	return &Matcher{essential: compile(essentialPatterns)}
}

// NewFromRoot builds a Matcher with the essential block plus the user
// `.ctxignore` file at <root>/.ctxignore, if present.
func NewFromRoot(root string) (*Matcher, error) {
	m := New()
	lines, err := readLines(filepath.Join(root, ".ctxignore"))
	if err != nil {
		return nil, err
	}
	m.AddUserPatterns(lines)
	return m, nil
}

// AddUserPatterns appends raw gitignore-syntax lines to the user block.
func (m *Matcher) AddUserPatterns(lines []string) {
	m.user = append(m.user, compile(lines)...)
}

// AddRulePatterns appends raw gitignore-syntax lines contributed by a
// matched Domain/Rule Registry rule.
func (m *Matcher) AddRulePatterns(lines []string) {
	m.rules = append(m.rules, compile(lines)...)
}

// IsIgnored reports whether relPath (workspace-relative) should be excluded.
// Paths are normalised to forward slashes before matching, per spec.
func (m *Matcher) IsIgnored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	if matchBlock(m.essential, relPath) {
		return true
	}

	ignored := false
	if v, matched := matchBlockVerdict(m.user, relPath); matched {
		ignored = v
	}
	if v, matched := matchBlockVerdict(m.rules, relPath); matched {
		ignored = v
	}
	return ignored
}

// Filter returns the subset of paths that are not ignored.
func (m *Matcher) Filter(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !m.IsIgnored(p) {
			out = append(out, p)
		}
	}
	return out
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func compile(lines []string) []pattern {
	out := make([]pattern, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		p := pattern{raw: trimmed}
		if strings.HasPrefix(trimmed, "!") {
			p.negate = true
			trimmed = trimmed[1:]
		}
		if strings.HasSuffix(trimmed, "/") {
			p.dirOnly = true
			trimmed = strings.TrimSuffix(trimmed, "/")
		}
		if strings.Contains(strings.TrimPrefix(trimmed, "/"), "/") {
			p.anchored = true
		}
		trimmed = strings.TrimPrefix(trimmed, "/")

		glob := trimmed
		if !p.anchored && !strings.HasPrefix(glob, "**/") {
			glob = "**/" + glob
		}
		if p.dirOnly {
			glob = glob + "/**"
		}
		p.glob = glob
		out = append(out, p)
	}
	return out
}

// matchBlock reports whether any pattern in the block matches, ignoring
// negation (used for the essential block, which cannot be negated back in).
func matchBlock(patterns []pattern, path string) bool {
	for _, p := range patterns {
		if globMatch(p.glob, path) {
			return true
		}
	}
	return false
}

// matchBlockVerdict returns the verdict of the LAST matching pattern in the
// block (gitignore semantics: later patterns override earlier ones), and
// whether any pattern matched at all.
func matchBlockVerdict(patterns []pattern, path string) (ignored bool, matched bool) {
	for _, p := range patterns {
		if globMatch(p.glob, path) {
			ignored = !p.negate
			matched = true
		}
	}
	return ignored, matched
}

func globMatch(glob, path string) bool {
	ok, err := doublestar.Match(glob, path)
	if err != nil {
		return false
	}
	if ok {
		return true
	}
	// A directory-anchored pattern like "foo/**" should also match "foo"
	// itself (the directory entry, before recursion reaches its children).
	if strings.HasSuffix(glob, "/**") {
		base := strings.TrimSuffix(glob, "/**")
		if ok, _ := doublestar.Match(base, path); ok {
			return true
		}
	}
	return false
}
