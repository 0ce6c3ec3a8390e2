package pack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/resolver"
	"github.com/standardbeagle/ctxpack/internal/types"
)

func TestSlug_LowercasesAndCollapsesAndCaps(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	slug := Slug("Fix the Bug in UserController!! Now", now)
	require.True(t, len(slug) > len("20260305-093000-"))
	assert.Contains(t, slug, "20260305-093000-")
	assert.NotContains(t, slug, "!")
	assert.NotContains(t, slug, " ")
}

func TestSlug_EmptyTaskFallsBackToTask(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	slug := Slug("   ---   ", now)
	assert.Equal(t, "20260305-093000-task", slug)
}

func TestSlug_CapsTaskPortionAt40Chars(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	longTask := "this is a very long task description that exceeds the forty character cap by a wide margin"
	slug := Slug(longTask, now)
	taskPart := slug[len("20260305-093000-"):]
	assert.LessOrEqual(t, len(taskPart), 40)
}

func TestNewManifest_ComputesBudgetAndTags(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	result := resolver.Result{
		Task: types.ResolvedTask{
			RawText: "payment webhook bug",
			Domains: []string{"payments"},
		},
		Files: []resolver.File{
			{Path: "app/Services/StripeService.php", Score: 1.0, Reasons: []string{"exact file match"}, Content: "0123456789"},
		},
	}

	m := NewManifest("20260305-093000-payment-webhook-bug", now, result)
	assert.Equal(t, FormatVersion, m.Version)
	assert.Equal(t, "20260305-093000-payment-webhook-bug", m.Slug)
	assert.Equal(t, []string{"payments"}, m.Tags)
	require.Len(t, m.Files, 1)
	assert.Equal(t, "app/Services/StripeService.php", m.Files[0].Path)
	assert.Equal(t, 10/4, m.BudgetTokens)
}
