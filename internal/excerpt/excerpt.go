// Package excerpt implements the Excerpt Extractor (spec §4.15): for each
// selected candidate, compute the union of its header region, highlight-
// line windows, and relevant symbol ranges, and render it as a line-
// numbered, gap-annotated excerpt bounded by maxLinesPerFile.
package excerpt

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/types"
)

// Excerpt is the rendered output for one candidate file.
type Excerpt struct {
	Path      string
	Content   string
	Truncated bool
}

// Extractor renders excerpts per spec §4.15, using cfg's windowing knobs.
type Extractor struct {
	cfg config.Excerpt
}

func New(cfg config.Excerpt) *Extractor {
	return &Extractor{cfg: cfg}
}

var symbolKindPriority = map[types.SymbolKind]int{
	types.KindClass:     0,
	types.KindInterface: 1,
	types.KindFunction:  2,
	types.KindMethod:    3,
	types.KindConstant:  4,
	types.KindVariable:  5,
}

// Extract builds one Excerpt for filePath's full content, given the
// candidate's symbol set, a symbolMatch flag (drives symbol-kind priority
// vs. start-line priority), and externally supplied highlight lines
// (changed lines from a diff, or a stacktrace hit line).
func (x *Extractor) Extract(filePath, content string, symbols []types.Symbol, symbolMatch bool, highlightLines []int) Excerpt {
	lines := splitLines(content)
	total := len(lines)

	if total <= x.cfg.SmallFileLines {
		return Excerpt{Path: filePath, Content: renderAll(lines), Truncated: false}
	}

	included := make(map[int]bool)
	headerLines := x.cfg.HeaderLines
	if headerLines < 10 {
		headerLines = 10
	}
	for i := 1; i <= headerLines && i <= total; i++ {
		included[i] = true
	}

	window := x.cfg.WindowSize
	if window <= 0 {
		window = config.DefaultWindowSize
	}
	for _, hl := range highlightLines {
		lo := hl - window
		if lo < 1 {
			lo = 1
		}
		hi := hl + window
		if hi > total {
			hi = total
		}
		for i := lo; i <= hi; i++ {
			included[i] = true
		}
	}

	orderedSymbols := prioritizeSymbols(symbols, symbolMatch)
	maxLines := x.cfg.MaxLinesPerFile
	if maxLines <= 0 {
		maxLines = config.DefaultMaxLinesPerFile
	}
	for _, sym := range orderedSymbols {
		if len(included) >= maxLines {
			break
		}
		start, end := sym.StartLine, sym.EndLine
		if start < 1 {
			start = 1
		}
		if end > total {
			end = total
		}
		for i := start; i <= end && len(included) < maxLines; i++ {
			included[i] = true
		}
	}

	if len(included) > maxLines {
		included = trimToBudget(included, maxLines)
	}

	content2 := renderWithGaps(lines, included)
	return Excerpt{Path: filePath, Content: content2, Truncated: len(included) < total}
}

func splitLines(content string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func renderAll(lines []string) string {
	var sb strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&sb, "%d\t%s\n", i+1, l)
	}
	return sb.String()
}

// prioritizeSymbols orders symbols by kind priority (class > interface >
// function > method > constant > variable) when the candidate was matched
// by an explicit symbol mention; otherwise by ascending start line, which
// favors the first-occurring relevant region for stacktrace/diff hits.
func prioritizeSymbols(symbols []types.Symbol, symbolMatch bool) []types.Symbol {
	out := make([]types.Symbol, len(symbols))
	copy(out, symbols)
	if symbolMatch {
		sortStable(out, func(a, b types.Symbol) bool {
			pa, pb := symbolKindPriority[a.Kind], symbolKindPriority[b.Kind]
			if pa != pb {
				return pa < pb
			}
			return a.StartLine < b.StartLine
		})
	} else {
		sortStable(out, func(a, b types.Symbol) bool { return a.StartLine < b.StartLine })
	}
	return out
}

func sortStable(s []types.Symbol, less func(a, b types.Symbol) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// trimToBudget drops the highest line numbers first, keeping the header and
// earliest-included regions intact when over budget.
func trimToBudget(included map[int]bool, budget int) map[int]bool {
	lineNums := make([]int, 0, len(included))
	for l := range included {
		lineNums = append(lineNums, l)
	}
	sortInts(lineNums)
	out := make(map[int]bool, budget)
	for i := 0; i < budget && i < len(lineNums); i++ {
		out[lineNums[i]] = true
	}
	return out
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// renderWithGaps emits kept lines, each prefixed with its 1-based line
// number, inserting a "// … (lines omitted)" marker for every contiguous
// gap of excluded lines.
func renderWithGaps(lines []string, included map[int]bool) string {
	var sb strings.Builder
	inGap := false
	for i, l := range lines {
		lineNo := i + 1
		if !included[lineNo] {
			if !inGap {
				sb.WriteString("// … (lines omitted)\n")
				inGap = true
			}
			continue
		}
		inGap = false
		fmt.Fprintf(&sb, "%d\t%s\n", lineNo, l)
	}
	return sb.String()
}
