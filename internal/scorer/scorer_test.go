package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/types"
)

func defaultScoring() config.Scoring {
	return config.Default(".").Scoring
}

func TestScore_FileHintExactOutranksKeywordMatch(t *testing.T) {
	s := New(defaultScoring())
	candidates := map[string]types.CandidateSignals{
		"internal/auth/login.go":  {FileHintExact: true},
		"internal/store/cache.go": {KeywordMatch: true},
	}
	ranked := s.Score(candidates, types.ResolvedTask{}, nil)
	require.Len(t, ranked, 2)
	assert.Equal(t, "internal/auth/login.go", ranked[0].Path)
}

func TestScore_EntryPointBonusAppliesHigherMultiplierWithHit(t *testing.T) {
	s := New(defaultScoring())
	candidates := map[string]types.CandidateSignals{
		"internal/api/UserController.go": {StacktraceHit: true},
		"internal/api/plain.go":           {StacktraceHit: true},
	}
	ranked := s.Score(candidates, types.ResolvedTask{}, nil)
	var controllerScore, plainScore float64
	for _, r := range ranked {
		if r.Path == "internal/api/UserController.go" {
			controllerScore = r.Score
		}
		if r.Path == "internal/api/plain.go" {
			plainScore = r.Score
		}
	}
	assert.Greater(t, controllerScore, plainScore)
}

func TestScore_ChurnBonusAppliesAboveThreshold(t *testing.T) {
	s := New(defaultScoring())
	candidates := map[string]types.CandidateSignals{
		"a.go": {KeywordMatch: true},
		"b.go": {KeywordMatch: true},
	}
	vcs := map[string]types.VcsSignal{
		"a.go": {ChurnScore: 0.9},
	}
	ranked := s.Score(candidates, types.ResolvedTask{}, vcs)
	var aScore, bScore float64
	for _, r := range ranked {
		if r.Path == "a.go" {
			aScore = r.Score
		}
		if r.Path == "b.go" {
			bScore = r.Score
		}
	}
	assert.Greater(t, aScore, bScore)
}

func TestSelect_ReservesExactHintsFirst(t *testing.T) {
	s := New(defaultScoring())
	candidates := map[string]types.CandidateSignals{
		"internal/a.go": {FileHintExact: true},
		"internal/b.go": {KeywordMatch: true},
	}
	ranked := s.Score(candidates, types.ResolvedTask{}, nil)
	selected := s.Select(ranked, candidates, nil)
	require.NotEmpty(t, selected)
	assert.Equal(t, "internal/a.go", selected[0].Path)
}

func TestSelect_ExcludesTestFilesFromOtherQuotaButIncludesViaTestQuota(t *testing.T) {
	cfg := defaultScoring()
	cfg.MaxFiles = 10
	s := New(cfg)
	candidates := map[string]types.CandidateSignals{
		"internal/auth/login.go":      {KeywordMatch: true, SymbolMatch: true},
		"internal/auth/login_test.go": {TestFile: true},
	}
	ranked := s.Score(candidates, types.ResolvedTask{}, nil)
	selected := s.Select(ranked, candidates, nil)
	var paths []string
	for _, r := range selected {
		paths = append(paths, r.Path)
	}
	assert.Contains(t, paths, "internal/auth/login.go")
	assert.Contains(t, paths, "internal/auth/login_test.go")
}

func TestSelect_NormalizesTopScoreToOne(t *testing.T) {
	s := New(defaultScoring())
	candidates := map[string]types.CandidateSignals{
		"a.go": {FileHintExact: true},
		"b.go": {KeywordMatch: true},
	}
	ranked := s.Score(candidates, types.ResolvedTask{}, nil)
	selected := s.Select(ranked, candidates, nil)
	require.NotEmpty(t, selected)
	assert.InDelta(t, 1.0, selected[0].Score, 0.0001)
}

func TestIsEntryPoint_MatchesControllerAndMainFiles(t *testing.T) {
	assert.True(t, isEntryPoint("internal/api/UserController.go"))
	assert.True(t, isEntryPoint("cmd/ctxpack/main.go"))
	assert.False(t, isEntryPoint("internal/util/strings.go"))
}

func TestDomainWeight_DefaultsToOneWhenNoDomains(t *testing.T) {
	w := domainWeight("internal/billing/invoice.go", types.ResolvedTask{})
	assert.Equal(t, 1.0, w)
}

func TestDomainWeight_MatchesPathSubstring(t *testing.T) {
	task := types.ResolvedTask{DomainWeight: map[string]int{"billing": 4, "auth": 1}}
	w := domainWeight("internal/billing/invoice.go", task)
	assert.InDelta(t, 0.8, w, 0.0001)
}
