// Package symbols implements the Symbol Extractor (spec §4.4): a per-language
// ordered regex rule set matched against full file content, with a
// brace/indentation heuristic for end-line detection.
package symbols

import (
	"regexp"
	"sort"
	"strings"

	"github.com/standardbeagle/ctxpack/internal/types"
)

// maxEndLineLookahead caps the brace/indentation end-line search (spec §5).
const maxEndLineLookahead = 500

// rule is one ordered (kind, pattern) pair. Pattern's first capture group is
// the symbol name; matching is anchored to line starts via the (?m) flag.
type rule struct {
	kind    types.SymbolKind
	pattern *regexp.Regexp
	indent  bool // true for indentation-delimited languages (python)
}

func mustRule(kind types.SymbolKind, expr string) rule {
	return rule{kind: kind, pattern: regexp.MustCompile(`(?m)` + expr)}
}

var tsRules = []rule{
	mustRule(types.KindClass, `^[ \t]*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`),
	mustRule(types.KindInterface, `^[ \t]*(?:export\s+)?interface\s+(\w+)`),
	mustRule(types.KindClass, `^[ \t]*(?:export\s+)?type\s+(\w+)\s*=`),
	mustRule(types.KindFunction, `^[ \t]*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s+(\w+)`),
	mustRule(types.KindFunction, `^[ \t]*(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(?[^=;]*\)?\s*=>`),
	mustRule(types.KindMethod, `^[ \t]+(?:public\s+|private\s+|protected\s+|static\s+|async\s+)*(\w+)\s*\([^)]*\)\s*(?::\s*\w[\w<>\[\],\s]*)?\s*\{`),
}

var phpRules = []rule{
	mustRule(types.KindClass, `^[ \t]*(?:abstract\s+|final\s+)?class\s+(\w+)`),
	mustRule(types.KindInterface, `^[ \t]*interface\s+(\w+)`),
	mustRule(types.KindClass, `^[ \t]*trait\s+(\w+)`),
	mustRule(types.KindFunction, `^[ \t]*(?:public\s+|private\s+|protected\s+|static\s+|abstract\s+|final\s+)*function\s+&?(\w+)\s*\(`),
}

var pythonRules = []rule{
	{kind: types.KindClass, pattern: regexp.MustCompile(`(?m)^[ \t]*class\s+(\w+)`), indent: true},
	{kind: types.KindFunction, pattern: regexp.MustCompile(`(?m)^[ \t]*(?:async\s+)?def\s+(\w+)\s*\(`), indent: true},
}

var goRules = []rule{
	mustRule(types.KindClass, `^type\s+(\w+)\s+struct\b`),
	mustRule(types.KindInterface, `^type\s+(\w+)\s+interface\b`),
	mustRule(types.KindFunction, `^func\s+(?:\([^)]*\)\s*)?(\w+)\s*\(`),
}

var rustRules = []rule{
	mustRule(types.KindClass, `^[ \t]*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)`),
	mustRule(types.KindClass, `^[ \t]*(?:pub(?:\([^)]*\))?\s+)?enum\s+(\w+)`),
	mustRule(types.KindInterface, `^[ \t]*(?:pub(?:\([^)]*\))?\s+)?trait\s+(\w+)`),
	mustRule(types.KindClass, `^[ \t]*impl(?:<[^>]*>)?\s+(?:[\w:]+\s+for\s+)?([\w:]+)`),
	mustRule(types.KindFunction, `^[ \t]*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+(\w+)`),
}

var rubyRules = []rule{
	{kind: types.KindClass, pattern: regexp.MustCompile(`(?m)^[ \t]*class\s+(\w+)`), indent: true},
	{kind: types.KindClass, pattern: regexp.MustCompile(`(?m)^[ \t]*module\s+(\w+)`), indent: true},
	{kind: types.KindFunction, pattern: regexp.MustCompile(`(?m)^[ \t]*def\s+(?:self\.)?(\w+[?!=]?)`), indent: true},
}

// javaRules also serves kotlin, csharp, and swift (spec §4.4).
var javaRules = []rule{
	mustRule(types.KindClass, `^[ \t]*(?:public\s+|private\s+|protected\s+|abstract\s+|final\s+|static\s+|data\s+|open\s+)*class\s+(\w+)`),
	mustRule(types.KindInterface, `^[ \t]*(?:public\s+)?(?:interface|protocol)\s+(\w+)`),
	mustRule(types.KindClass, `^[ \t]*(?:public\s+)?enum\s+(?:class\s+)?(\w+)`),
	mustRule(types.KindFunction, `^[ \t]*(?:public\s+|private\s+|protected\s+|static\s+|final\s+|abstract\s+|override\s+)*fun\s+(\w+)\s*\(`),
	mustRule(types.KindMethod, `^[ \t]*(?:public\s+|private\s+|protected\s+|static\s+|final\s+|abstract\s+|override\s+)*func\s+(\w+)\s*\(`),
	mustRule(types.KindMethod, `^[ \t]*(?:public\s+|private\s+|protected\s+|static\s+|final\s+|abstract\s+|override\s+|virtual\s+|async\s+)*\w[\w<>\[\],.]*\s+(\w+)\s*\([^)]*\)\s*\{`),
}

var genericRules = []rule{
	mustRule(types.KindClass, `^[ \t]*class\s+(\w+)`),
	mustRule(types.KindFunction, `^[ \t]*(?:function|fn|func|def)\s+(\w+)\s*\(`),
}

var rulesByLanguage = map[string][]rule{
	"typescript": tsRules,
	"javascript": tsRules,
	"php":        phpRules,
	"python":     pythonRules,
	"go":         goRules,
	"rust":       rustRules,
	"ruby":       rubyRules,
	"java":       javaRules,
	"kotlin":     javaRules,
	"csharp":     javaRules,
	"swift":      javaRules,
}

// keywordBlocklist drops matches that are really control-flow or declarator
// keywords a permissive pattern mistook for a name.
var keywordBlocklist = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"else": true, "do": true, "try": true, "return": true, "new": true,
	"function": true, "class": true, "public": true, "private": true,
	"static": true, "void": true, "var": true, "let": true, "const": true,
}

// Extract returns the de-duplicated symbol set for one file's content, using
// the rule set for language (falling back to the generic rule set for
// unrecognised languages).
func Extract(filePath, language, content string) []types.Symbol {
	rules, ok := rulesByLanguage[language]
	if !ok {
		rules = genericRules
	}

	lineStarts := computeLineStarts(content)
	seen := make(map[string]bool)
	var out []types.Symbol

	for _, r := range rules {
		matches := r.pattern.FindAllStringSubmatchIndex(content, -1)
		for _, m := range matches {
			if len(m) < 4 {
				continue
			}
			name := content[m[2]:m[3]]
			if name == "" || keywordBlocklist[name] || seen[name] {
				continue
			}
			seen[name] = true

			startLine := lineForOffset(lineStarts, m[0])
			var endLine int
			if r.indent {
				endLine = indentEndLine(content, lineStarts, startLine)
			} else {
				endLine = braceEndLine(content, lineStarts, m[1], startLine)
			}

			out = append(out, types.Symbol{
				FilePath:  filePath,
				Name:      name,
				Kind:      r.kind,
				StartLine: startLine,
				EndLine:   endLine,
				Signature: strings.TrimSpace(content[m[0]:min(m[1]+1, len(content))]),
			})
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// computeLineStarts returns the byte offset of the first character of each
// line (0-indexed), for fast offset->line-number lookup.
func computeLineStarts(content string) []int {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineForOffset returns the 1-based line number containing offset.
func lineForOffset(lineStarts []int, offset int) int {
	i := sort.Search(len(lineStarts), func(i int) bool { return lineStarts[i] > offset })
	return i // sort.Search returns the count of starts <= offset, i.e. the 1-based line number
}

// braceEndLine tracks a combined "{("/")}"" balance from the first opening
// character at or after matchEnd, capped at maxEndLineLookahead lines past
// startLine (spec §4.4, §5).
func braceEndLine(content string, lineStarts []int, matchEnd, startLine int) int {
	idx := strings.IndexAny(content[matchEnd:], "{(")
	if idx < 0 {
		return startLine
	}
	pos := matchEnd + idx
	depth := 0
	capLine := startLine + maxEndLineLookahead

	for i := pos; i < len(content); i++ {
		switch content[i] {
		case '{', '(':
			depth++
		case '}', ')':
			depth--
			if depth == 0 {
				line := lineForOffset(lineStarts, i)
				if line > capLine {
					return capLine
				}
				return line
			}
		}
		if lineForOffset(lineStarts, i) > capLine {
			return capLine
		}
	}
	return lineForOffset(lineStarts, len(content)-1)
}

// indentEndLine finds the last contiguous line at a deeper indent than
// startLine's own indent (python/ruby block bodies), capped at
// maxEndLineLookahead lines.
func indentEndLine(content string, lineStarts []int, startLine int) int {
	lines := strings.Split(content, "\n")
	idx := startLine - 1
	if idx < 0 || idx >= len(lines) {
		return startLine
	}
	base := indentWidth(lines[idx])
	end := startLine

	for i := idx + 1; i < len(lines) && i-idx <= maxEndLineLookahead; i++ {
		if strings.TrimSpace(lines[i]) == "" {
			end = i + 1
			continue
		}
		if indentWidth(lines[i]) > base {
			end = i + 1
			continue
		}
		break
	}
	return end
}

func indentWidth(line string) int {
	n := 0
	for _, c := range line {
		switch c {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
