package excerpt

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/types"
)

func defaultCfg() config.Excerpt {
	return config.Default(".").Excerpt
}

func makeLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line" + strconv.Itoa(i+1)
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestExtract_SmallFileIncludesEverything(t *testing.T) {
	x := New(defaultCfg())
	content := makeLines(50)
	ex := x.Extract("small.go", content, nil, false, nil)
	assert.False(t, ex.Truncated)
	assert.Contains(t, ex.Content, "1\tline1")
	assert.Contains(t, ex.Content, "50\tline50")
	assert.NotContains(t, ex.Content, "lines omitted")
}

func TestExtract_LargeFileKeepsHeaderAndTruncates(t *testing.T) {
	x := New(defaultCfg())
	content := makeLines(500)
	ex := x.Extract("big.go", content, nil, false, nil)
	assert.True(t, ex.Truncated)
	assert.Contains(t, ex.Content, "1\tline1")
	assert.Contains(t, ex.Content, "10\tline10")
	assert.Contains(t, ex.Content, "lines omitted")
}

func TestExtract_HighlightLinesProduceWindow(t *testing.T) {
	x := New(defaultCfg())
	content := makeLines(500)
	ex := x.Extract("big.go", content, nil, false, []int{300})
	assert.Contains(t, ex.Content, "300\tline300")
	assert.Contains(t, ex.Content, "280\tline280")
	assert.Contains(t, ex.Content, "320\tline320")
}

func TestExtract_SymbolMatchPrioritizesClassOverFunction(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxLinesPerFile = 30
	x := New(cfg)
	content := makeLines(500)
	symbols := []types.Symbol{
		{Name: "helper", Kind: types.KindFunction, StartLine: 400, EndLine: 410},
		{Name: "Widget", Kind: types.KindClass, StartLine: 200, EndLine: 210},
	}
	ex := x.Extract("big.go", content, symbols, true, nil)
	assert.Contains(t, ex.Content, "200\tline200")
}

func TestExtract_NonSymbolMatchPrioritizesByStartLine(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxLinesPerFile = 30
	x := New(cfg)
	content := makeLines(500)
	symbols := []types.Symbol{
		{Name: "late", Kind: types.KindFunction, StartLine: 450, EndLine: 460},
		{Name: "early", Kind: types.KindMethod, StartLine: 150, EndLine: 160},
	}
	ex := x.Extract("big.go", content, symbols, false, nil)
	assert.Contains(t, ex.Content, "150\tline150")
}

func TestExtract_RespectsMaxLinesPerFile(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxLinesPerFile = 50
	x := New(cfg)
	content := makeLines(1000)
	symbols := []types.Symbol{
		{Name: "a", Kind: types.KindClass, StartLine: 100, EndLine: 300},
	}
	ex := x.Extract("huge.go", content, symbols, true, nil)
	require.True(t, ex.Truncated)
	count := strings.Count(ex.Content, "\t")
	assert.LessOrEqual(t, count, 50)
}

func TestPrioritizeSymbols_OrdersByKindWhenSymbolMatch(t *testing.T) {
	symbols := []types.Symbol{
		{Name: "c", Kind: types.KindVariable, StartLine: 1},
		{Name: "a", Kind: types.KindClass, StartLine: 5},
		{Name: "b", Kind: types.KindFunction, StartLine: 3},
	}
	ordered := prioritizeSymbols(symbols, true)
	require.Len(t, ordered, 3)
	assert.Equal(t, "a", ordered[0].Name)
	assert.Equal(t, "b", ordered[1].Name)
	assert.Equal(t, "c", ordered[2].Name)
}

func TestPrioritizeSymbols_OrdersByStartLineWhenNoSymbolMatch(t *testing.T) {
	symbols := []types.Symbol{
		{Name: "late", Kind: types.KindClass, StartLine: 90},
		{Name: "early", Kind: types.KindVariable, StartLine: 5},
	}
	ordered := prioritizeSymbols(symbols, false)
	require.Len(t, ordered, 2)
	assert.Equal(t, "early", ordered[0].Name)
}
