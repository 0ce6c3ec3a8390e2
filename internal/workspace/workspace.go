// Package workspace owns the on-disk layout spec §6 defines for one indexed
// project: the `.context/` store directory, the `project.json` rule-match
// cache, the `domains.json` custom/disabled domain overrides, the
// `.ctxignore` file `init` writes, and the `.context/packs/<slug>/` output
// directory convention. No teacher analogue exists for this file set (the
// teacher's own `.lci` cache concerned itself with a different index
// architecture entirely); built fresh from spec §6's External Interfaces
// section, since both `cmd/ctxpack` and `internal/mcpserver` need the same
// paths and JSON shapes.
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/standardbeagle/ctxpack/internal/types"
)

const (
	// DirName is the store directory created under a project root.
	DirName = ".context"
	// StoreFileName is the Store's SQLite database file, under DirName.
	StoreFileName = "index.db"
	// PacksDirName is the output-bundle parent directory, under DirName.
	PacksDirName = "packs"
	// ProjectFileName caches the Domain/Rule Registry's matched rule names.
	ProjectFileName = "project.json"
	// DomainsFileName holds user-contributed domain overrides.
	DomainsFileName = "domains.json"
	// IgnoreFileName is the user-editable exclusion file at the project root.
	IgnoreFileName = ".ctxignore"
)

// Dir returns <root>/.context.
func Dir(root string) string { return filepath.Join(root, DirName) }

// StorePath returns <root>/.context/index.db.
func StorePath(root string) string { return filepath.Join(Dir(root), StoreFileName) }

// PacksDir returns <root>/.context/packs.
func PacksDir(root string) string { return filepath.Join(Dir(root), PacksDirName) }

// PackDir returns <root>/.context/packs/<slug>.
func PackDir(root, slug string) string { return filepath.Join(PacksDir(root), slug) }

// IgnorePath returns <root>/.ctxignore.
func IgnorePath(root string) string { return filepath.Join(root, IgnoreFileName) }

// EnsureDir creates the `.context` directory if it does not already exist.
func EnsureDir(root string) error {
	return os.MkdirAll(Dir(root), 0o755)
}

// ProjectCache is the persisted shape of `.context/project.json`: which
// Domain/Rule Registry rules matched this workspace, so later runs can skip
// re-probing `Rule.AppliesTo` (spec §4.12).
type ProjectCache struct {
	DetectedAt        string   `json:"detectedAt"`
	ActiveDiscoveries []string `json:"activeDiscoveries"`
}

// LoadProjectCache reads `.context/project.json`. A missing file is not an
// error: it returns a zero-value cache and ok=false, so callers probe rules
// fresh the way spec §4.12 describes for a first run.
func LoadProjectCache(root string) (ProjectCache, bool) {
	var pc ProjectCache
	data, err := os.ReadFile(filepath.Join(Dir(root), ProjectFileName))
	if err != nil {
		return pc, false
	}
	if err := json.Unmarshal(data, &pc); err != nil {
		return ProjectCache{}, false
	}
	return pc, true
}

// SaveProjectCache writes `.context/project.json`.
func SaveProjectCache(root string, pc ProjectCache) error {
	if err := EnsureDir(root); err != nil {
		return err
	}
	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(Dir(root), ProjectFileName), data, 0o644)
}

// DomainOverrides is the persisted shape of `.context/domains.json`: user
// additions and exclusions layered onto the Domain/Rule Registry's built-in
// and framework-contributed domains (spec §6, §4.9 step 5).
type DomainOverrides struct {
	CustomDomains   []types.Domain `json:"customDomains"`
	DisabledDomains []string       `json:"disabledDomains"`
}

// LoadDomainOverrides reads `.context/domains.json`. A missing file yields
// an empty override set, not an error.
func LoadDomainOverrides(root string) (DomainOverrides, bool) {
	var do DomainOverrides
	data, err := os.ReadFile(filepath.Join(Dir(root), DomainsFileName))
	if err != nil {
		return do, false
	}
	if err := json.Unmarshal(data, &do); err != nil {
		return DomainOverrides{}, false
	}
	return do, true
}

// SaveDomainOverrides writes `.context/domains.json`.
func SaveDomainOverrides(root string, do DomainOverrides) error {
	if err := EnsureDir(root); err != nil {
		return err
	}
	data, err := json.MarshalIndent(do, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(Dir(root), DomainsFileName), data, 0o644)
}

// ignoreHeader is the fixed header comment spec §6 requires `init` to
// prepend to the generated `.ctxignore`.
const ignoreHeader = "# Generated by `ctxpack init`.\n" +
	"# Lines below are the concatenated ignore blocks of every matched\n" +
	"# Domain/Rule Registry rule for this workspace. Edit freely; re-running\n" +
	"# `ctxpack init --force` regenerates this file from scratch.\n\n"

// WriteMergedIgnoreFile writes `.ctxignore` at root, concatenating the
// matched rules' ignore blocks under the fixed header (spec §6). force
// controls whether an existing file is overwritten.
func WriteMergedIgnoreFile(root, mergedBlocks string, force bool) error {
	path := IgnorePath(root)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	content := ignoreHeader + mergedBlocks
	return os.WriteFile(path, []byte(content), 0o644)
}
