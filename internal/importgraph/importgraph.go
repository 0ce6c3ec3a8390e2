// Package importgraph implements the Import Graph Builder (spec §4.5): a
// per-language regex extraction of import specifiers, internal/external
// classification, and resolution against the Store's indexed file set.
package importgraph

import (
	"path"
	"regexp"
	"strings"

	"github.com/standardbeagle/ctxpack/internal/types"
)

// Builder resolves import specifiers against a known file set. GoModulePrefix
// is the project's own module path (from go.mod), used to recognise
// internal Go imports; left empty, all Go imports are treated as external.
type Builder struct {
	GoModulePrefix string
}

// New creates a Builder. goModulePrefix may be empty.
func New(goModulePrefix string) *Builder {
	return &Builder{GoModulePrefix: goModulePrefix}
}

var (
	jsImportRe  = regexp.MustCompile(`(?m)(?:import|export)\s+(?:[\w*{}\s,]+\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequireRe = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	phpUseRe    = regexp.MustCompile(`(?m)^\s*use\s+([\w\\]+)`)
	pyImportRe  = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`)
	pyFromRe    = regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import`)
	goImportRe  = regexp.MustCompile(`"([^"]+)"`)
	rustUseRe   = regexp.MustCompile(`(?m)^\s*use\s+([\w:]+)`)
	rubyReqRe   = regexp.MustCompile(`require(?:_relative)?\s+['"]([^'"]+)['"]`)
	javaImplRe  = regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.]+)(?:\.\*)?;`)
)

var pyStdlib = map[string]bool{
	"os": true, "sys": true, "re": true, "json": true, "time": true,
	"math": true, "typing": true, "collections": true, "itertools": true,
	"functools": true, "unittest": true, "logging": true, "pathlib": true,
	"subprocess": true, "asyncio": true, "datetime": true, "http": true,
	"io": true, "abc": true, "dataclasses": true, "enum": true, "random": true,
	"string": true, "shutil": true, "argparse": true, "copy": true,
}

var rubyStdGems = map[string]bool{
	"json": true, "net/http": true, "uri": true, "fileutils": true,
	"logger": true, "time": true, "date": true, "set": true, "yaml": true,
	"erb": true, "openssl": true, "socket": true, "thread": true, "optparse": true,
}

var phpExternalPrefixes = []string{
	"Illuminate", "Symfony", "Psr", "Doctrine", "Monolog", "Carbon",
	"GuzzleHttp", "PHPUnit", "Faker", "League", "Ramsey", "Nesbot", "Composer",
}

// extFallback lists, per language, the extensions tried in order when a
// specifier resolves to no direct hit, along with that language's
// index-file conventions.
var extFallback = map[string][]string{
	"typescript": {".ts", ".tsx", ".js", ".jsx"},
	"javascript": {".js", ".jsx", ".ts", ".tsx"},
	"php":        {".php"},
	"python":     {".py"},
	"go":         {".go"},
	"rust":       {".rs"},
	"ruby":       {".rb"},
	"java":       {".java"},
	"kotlin":     {".kt"},
	"csharp":     {".cs"},
	"swift":      {".swift"},
}

// Extract returns the de-duplicated import edges sourced from filePath.
// fileSet holds every indexed file path (forward-slashed, workspace-relative)
// for resolution.
func (b *Builder) Extract(filePath, language, content string, fileSet map[string]bool) []types.ImportEdge {
	specs := rawSpecifiers(language, content)
	dir := path.Dir(filePath)

	seen := make(map[string]bool)
	var out []types.ImportEdge
	for _, spec := range specs {
		target, ok := b.resolve(language, spec, dir, fileSet)
		if !ok || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, types.ImportEdge{Source: filePath, Target: target})
	}
	return out
}

func rawSpecifiers(language, content string) []string {
	var out []string
	switch language {
	case "typescript", "javascript":
		for _, m := range jsImportRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
		for _, m := range jsRequireRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
	case "php":
		for _, m := range phpUseRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
	case "python":
		for _, m := range pyImportRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
		for _, m := range pyFromRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
	case "go":
		for _, m := range goImportRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
	case "rust":
		for _, m := range rustUseRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
	case "ruby":
		for _, m := range rubyReqRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
	case "java", "kotlin", "csharp", "swift":
		for _, m := range javaImplRe.FindAllStringSubmatch(content, -1) {
			out = append(out, m[1])
		}
	}
	return out
}

// resolve classifies spec as internal/external for language and, if
// internal, resolves it against fileSet. ok is false for external or
// unresolved specifiers, both of which are dropped (spec §4.5).
func (b *Builder) resolve(language, spec, importerDir string, fileSet map[string]bool) (string, bool) {
	switch language {
	case "typescript", "javascript":
		return b.resolveJS(language, spec, importerDir, fileSet)
	case "php":
		return b.resolvePHP(spec, fileSet)
	case "python":
		return b.resolvePython(spec, importerDir, fileSet)
	case "go":
		return b.resolveGo(spec, fileSet)
	case "rust":
		return b.resolveRust(spec, importerDir, fileSet)
	case "ruby":
		return b.resolveRuby(spec, importerDir, fileSet)
	case "java", "kotlin", "csharp", "swift":
		return b.resolveJava(language, spec, fileSet)
	}
	return "", false
}

func (b *Builder) resolveJS(language, spec, importerDir string, fileSet map[string]bool) (string, bool) {
	internal := strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") ||
		strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, "@/")
	if !internal {
		return "", false
	}
	var candidate string
	if strings.HasPrefix(spec, "@/") {
		candidate = strings.TrimPrefix(spec, "@/")
	} else if strings.HasPrefix(spec, "/") {
		candidate = strings.TrimPrefix(spec, "/")
	} else {
		candidate = path.Clean(path.Join(importerDir, spec))
	}
	return resolveWithIndexConventions(candidate, extFallback[language], []string{"/index"}, fileSet)
}

func (b *Builder) resolvePHP(spec string, fileSet map[string]bool) (string, bool) {
	segments := strings.Split(spec, `\`)
	if len(segments) == 0 || segments[0] == "" {
		return "", false
	}
	for _, ext := range phpExternalPrefixes {
		if segments[0] == ext {
			return "", false
		}
	}
	segments[0] = strings.ToLower(segments[0])
	candidate := strings.Join(segments, "/")
	return resolveWithIndexConventions(candidate, extFallback["php"], nil, fileSet)
}

func (b *Builder) resolvePython(spec, importerDir string, fileSet map[string]bool) (string, bool) {
	first, _, _ := strings.Cut(spec, ".")
	if pyStdlib[first] {
		return "", false
	}
	candidate := strings.ReplaceAll(spec, ".", "/")
	return resolveWithIndexConventions(candidate, extFallback["python"], []string{"/__init__"}, fileSet)
}

func (b *Builder) resolveGo(spec string, fileSet map[string]bool) (string, bool) {
	if b.GoModulePrefix == "" || !strings.HasPrefix(spec, b.GoModulePrefix) {
		return "", false
	}
	candidate := strings.TrimPrefix(spec, b.GoModulePrefix)
	candidate = strings.TrimPrefix(candidate, "/")
	return resolveWithIndexConventions(candidate, extFallback["go"], []string{"/" + path.Base(candidate)}, fileSet)
}

func (b *Builder) resolveRust(spec, importerDir string, fileSet map[string]bool) (string, bool) {
	switch {
	case strings.HasPrefix(spec, "crate::"):
		spec = strings.TrimPrefix(spec, "crate::")
	case strings.HasPrefix(spec, "super::"):
		spec = strings.TrimPrefix(spec, "super::")
		importerDir = path.Dir(importerDir)
	case strings.HasPrefix(spec, "self::"):
		spec = strings.TrimPrefix(spec, "self::")
	default:
		return "", false
	}
	candidate := strings.ReplaceAll(spec, "::", "/")
	return resolveWithIndexConventions(candidate, extFallback["rust"], []string{"/mod"}, fileSet)
}

func (b *Builder) resolveRuby(spec, importerDir string, fileSet map[string]bool) (string, bool) {
	if rubyStdGems[spec] {
		return "", false
	}
	candidate := spec
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		candidate = path.Clean(path.Join(importerDir, spec))
	}
	return resolveWithIndexConventions(candidate, extFallback["ruby"], nil, fileSet)
}

func (b *Builder) resolveJava(language, spec string, fileSet map[string]bool) (string, bool) {
	for _, prefix := range []string{"java.", "javax.", "org.", "com.google."} {
		if strings.HasPrefix(spec, prefix) {
			return "", false
		}
	}
	candidate := strings.ReplaceAll(spec, ".", "/")
	return resolveWithIndexConventions(candidate, extFallback[language], nil, fileSet)
}

// resolveWithIndexConventions tries candidate as-is, then candidate+ext for
// each ext in fallback, then candidate+suffix+ext for each indexSuffix (e.g.
// "/index", "/__init__", "/mod"), per language index-file conventions.
func resolveWithIndexConventions(candidate string, fallback, indexSuffixes []string, fileSet map[string]bool) (string, bool) {
	candidate = strings.TrimSuffix(candidate, "/")
	if fileSet[candidate] {
		return candidate, true
	}
	for _, ext := range fallback {
		if fileSet[candidate+ext] {
			return candidate + ext, true
		}
	}
	for _, suffix := range indexSuffixes {
		for _, ext := range fallback {
			if fileSet[candidate+suffix+ext] {
				return candidate + suffix + ext, true
			}
		}
	}
	return "", false
}
