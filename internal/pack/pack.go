// Package pack owns the core contract of one context pack invocation: the
// `ctx.json` document (spec §6) and the timestamped, task-derived slug that
// names its output directory. Rendering the rest of the bundle (TASK.md,
// FILES.md, GRAPH.md, PACK.md, DIFF.md, TESTS.md, excerpts/) is the external
// renderer's job (spec §1 Out of scope); this package only owns the part of
// the bundle spec.md calls the "core contract".
package pack

import (
	"regexp"
	"strings"
	"time"

	"github.com/standardbeagle/ctxpack/internal/resolver"
	"github.com/standardbeagle/ctxpack/internal/types"
)

// FormatVersion is the ctx.json schema version this package emits.
const FormatVersion = "1"

// maxSlugTaskLen caps the task-derived portion of a slug, per spec §6.
const maxSlugTaskLen = 40

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// File is one selected result file as it appears in ctx.json's "files" list.
type File struct {
	Path    string   `json:"path"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Manifest is the `ctx.json` document described in spec §6. It is the only
// part of the on-disk bundle this module is contractually responsible for;
// TASK.md/FILES.md/etc. are rendered by an external collaborator from this
// same data.
type Manifest struct {
	Version      string             `json:"version"`
	Timestamp    string             `json:"timestamp"`
	Slug         string             `json:"slug"`
	Task         types.ResolvedTask `json:"task"`
	Files        []File             `json:"files"`
	BudgetTokens int                `json:"budgetTokens"`
	Tags         []string           `json:"tags"`
}

// Slug builds the `YYYYMMDD-HHMMSS-<task-slug>` directory name spec §6
// defines for a pack: the task description lowercased, every run of
// non-alphanumeric characters collapsed to a single hyphen, trimmed of
// leading/trailing hyphens, and capped at 40 characters.
func Slug(taskDescription string, now time.Time) string {
	stamp := now.UTC().Format("20060102-150405")
	taskSlug := slugify(taskDescription)
	if taskSlug == "" {
		taskSlug = "task"
	}
	return stamp + "-" + taskSlug
}

func slugify(s string) string {
	lower := strings.ToLower(s)
	slug := nonAlphanumeric.ReplaceAllString(lower, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugTaskLen {
		slug = strings.Trim(slug[:maxSlugTaskLen], "-")
	}
	return slug
}

// NewManifest builds a ctx.json Manifest from a Task Resolver Result. The
// token budget is the spec's own estimate: total excerpt content length
// divided by 4.
func NewManifest(slug string, now time.Time, result resolver.Result) Manifest {
	files := make([]File, 0, len(result.Files))
	budget := 0
	for _, f := range result.Files {
		files = append(files, File{Path: f.Path, Score: f.Score, Reasons: f.Reasons})
		budget += len(f.Content) / 4
	}

	return Manifest{
		Version:      FormatVersion,
		Timestamp:    now.UTC().Format(time.RFC3339),
		Slug:         slug,
		Task:         result.Task,
		Files:        files,
		BudgetTokens: budget,
		Tags:         append([]string(nil), result.Task.Domains...),
	}
}
