// Package rules implements the Domain/Rule Registry (spec §4.12): an
// ordered list of framework-aware Rules, each able to test whether it
// applies to a workspace, contribute ignore patterns, declare domains, and
// run its own best-effort discovery heuristics.
package rules

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/ctxpack/internal/debug"
	"github.com/standardbeagle/ctxpack/internal/types"
)

// FileLister is the subset of the Store a Rule's discover step needs.
type FileLister interface {
	GetAllFiles(ctx context.Context) ([]types.FileRecord, error)
}

// DiscoveryContext carries the already-resolved candidate set a Rule may
// extend, plus access to the indexed file list.
type DiscoveryContext struct {
	WorkspaceRoot string
	Candidates    map[string]types.CandidateSignals
	Store         FileLister
}

// Rule is one entry in the registry (spec §4.12).
type Rule struct {
	Name           string
	Description    string
	Weight         float64
	IgnorePatterns string
	Domains        []types.Domain

	// AppliesTo reports whether this rule is relevant to workspaceRoot.
	AppliesTo func(workspaceRoot string) bool

	// Discover runs the rule's own best-effort candidate discovery. May be
	// nil for rules that only contribute ignore patterns/domains.
	Discover func(ctx context.Context, dc DiscoveryContext) (map[string]types.CandidateSignals, error)
}

// Registry holds the matched subset of built-in + user rules for one
// workspace, probed once at initialisation and then reused.
type Registry struct {
	workspaceRoot string
	matched       []Rule
	extraDomains  []types.Domain
	disabled      map[string]bool
}

// NewRegistry probes every candidate rule's AppliesTo against workspaceRoot
// and keeps the ones that match. cached, if non-nil, short-circuits the
// probe for names already known to match from a prior run (spec §4.12's
// project-config rule cache).
func NewRegistry(workspaceRoot string, candidates []Rule, cachedNames []string) *Registry {
	cacheSet := make(map[string]bool, len(cachedNames))
	for _, n := range cachedNames {
		cacheSet[n] = true
	}

	r := &Registry{workspaceRoot: workspaceRoot}
	for _, rule := range candidates {
		if cacheSet[rule.Name] {
			r.matched = append(r.matched, rule)
			continue
		}
		if rule.AppliesTo == nil {
			continue
		}
		if rule.AppliesTo(workspaceRoot) {
			r.matched = append(r.matched, rule)
		}
	}
	return r
}

// MatchedNames returns the names of matched rules, for persisting into a
// project-config rule cache.
func (r *Registry) MatchedNames() []string {
	names := make([]string, len(r.matched))
	for i, rule := range r.matched {
		names[i] = rule.Name
	}
	return names
}

// Matched returns the matched rule set, generic rule always included last
// isn't guaranteed here — callers decide ordering when constructing
// candidates.
func (r *Registry) Matched() []Rule {
	return r.matched
}

// Domains returns the union of every matched rule's declared domains, plus
// any domains added with AddDomains, minus any disabled with
// SetDisabledDomains (the `.context/domains.json` overrides from spec §6).
func (r *Registry) Domains() []types.Domain {
	var out []types.Domain
	for _, rule := range r.matched {
		for _, d := range rule.Domains {
			if r.disabled[d.Name] {
				continue
			}
			out = append(out, d)
		}
	}
	for _, d := range r.extraDomains {
		if r.disabled[d.Name] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// AddDomains layers user-contributed custom domains onto the registry's
// matched-rule domains.
func (r *Registry) AddDomains(domains []types.Domain) {
	r.extraDomains = append(r.extraDomains, domains...)
}

// SetDisabledDomains filters the named domains out of Domains(), whether
// they came from a matched rule or from AddDomains.
func (r *Registry) SetDisabledDomains(names []string) {
	r.disabled = make(map[string]bool, len(names))
	for _, n := range names {
		r.disabled[n] = true
	}
}

// GetMergedCtxIgnore concatenates every matched rule's ignore-pattern block.
func (r *Registry) GetMergedCtxIgnore() string {
	var sb strings.Builder
	for _, rule := range r.matched {
		if rule.IgnorePatterns == "" {
			continue
		}
		sb.WriteString(strings.TrimSpace(rule.IgnorePatterns))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Discover runs every matched rule with a non-nil Discover func and merges
// their results into a single candidate map.
func (r *Registry) Discover(ctx context.Context, dc DiscoveryContext) map[string]types.CandidateSignals {
	merged := make(map[string]types.CandidateSignals)
	for _, rule := range r.matched {
		if rule.Discover == nil {
			continue
		}
		found, err := rule.Discover(ctx, dc)
		if err != nil {
			debug.LogDiscovery("rule %s discover failed: %v", rule.Name, err)
			continue
		}
		for path, sig := range found {
			existing := merged[path]
			existing.Merge(sig)
			merged[path] = existing
		}
	}
	return merged
}

// fileExists is a small appliesTo helper shared by the framework rules.
func fileExists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, rel))
	return err == nil
}

// BuiltinRules returns the registry's default rule set: generic plus the
// framework-aware rules grounded on the Node.js and Laravel/Statamic
// discovery heuristics.
func BuiltinRules() []Rule {
	return []Rule{
		genericRule(),
		nodeRule(),
		laravelRule(),
		statamicRule(),
	}
}

// genericRule implements universal, framework-agnostic heuristics: nearby
// config files and suffix-based related-file families (*Controller /
// *Service / *Repository and friends).
func genericRule() Rule {
	return Rule{
		Name:        "generic",
		Description: "Universal config-proximity and suffix-family heuristics",
		Weight:      0.5,
		AppliesTo:   func(string) bool { return true },
		Discover:    genericDiscover,
	}
}

var relatedSuffixGroups = [][]string{
	{"Controller", "Service", "Repository"},
	{"Handler", "Service"},
	{"Model", "Schema", "Migration"},
}

func genericDiscover(ctx context.Context, dc DiscoveryContext) (map[string]types.CandidateSignals, error) {
	found := make(map[string]types.CandidateSignals)
	if dc.Store == nil {
		return found, nil
	}
	allFiles, err := dc.Store.GetAllFiles(ctx)
	if err != nil {
		return nil, err
	}

	for candidatePath := range dc.Candidates {
		ext := filepath.Ext(candidatePath)
		base := strings.TrimSuffix(filepath.Base(candidatePath), ext)
		dir := filepath.Dir(candidatePath)

		stem, suffix := splitKnownSuffix(base)
		if suffix == "" {
			continue
		}
		for _, group := range relatedSuffixGroups {
			if !containsStr(group, suffix) {
				continue
			}
			for _, sibling := range group {
				if sibling == suffix {
					continue
				}
				wantBase := stem + sibling
				for _, f := range allFiles {
					if _, ok := dc.Candidates[f.Path]; ok {
						continue
					}
					if filepath.Dir(f.Path) != dir {
						continue
					}
					if strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path)) == wantBase {
						sig := found[f.Path]
						sig.RelatedFile = true
						found[f.Path] = sig
					}
				}
			}
		}
	}
	return found, nil
}

func splitKnownSuffix(base string) (stem, suffix string) {
	for _, group := range relatedSuffixGroups {
		for _, s := range group {
			if strings.HasSuffix(base, s) && len(base) > len(s) {
				return strings.TrimSuffix(base, s), s
			}
		}
	}
	return base, ""
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// nodeRule implements the Node/JS ecosystem rule, grounded on the
// illegalstudio/context original-source Node.js discovery rule: test-file
// pairing and same-directory index-export pairing.
func nodeRule() Rule {
	return Rule{
		Name:        "node",
		Description: "Node.js ecosystem: package.json-rooted test and index-export pairing",
		Weight:      1.0,
		IgnorePatterns: `
node_modules/
dist/
build/
out/
.next/
.nuxt/
.output/
coverage/
.nyc_output/
.cache/
.parcel-cache/
.turbo/
`,
		Domains:   nodeDomains,
		AppliesTo: func(root string) bool { return fileExists(root, "package.json") },
		Discover:  nodeDiscover,
	}
}

var nodeDomains = []types.Domain{
	{Name: "express", Description: "Express.js routing and middleware",
		Keywords: []string{"express", "router", "middleware", "req", "res", "next", "app.use", "app.get", "app.post"}},
	{Name: "prisma", Description: "Prisma ORM",
		Keywords: []string{"prisma", "schema", "migration", "client", "model", "findmany", "create", "update", "delete"}},
	{Name: "nextjs", Description: "Next.js framework",
		Keywords: []string{"nextjs", "getserversideprops", "getstaticprops", "getstaticpaths", "userouter", "image", "link", "head"}},
	{Name: "nestjs", Description: "NestJS framework",
		Keywords: []string{"nestjs", "@nestjs", "@controller", "@injectable", "@module", "@guard", "@pipe", "@interceptor"}},
	{Name: "react", Description: "React components and hooks",
		Keywords: []string{"react", "usestate", "useeffect", "usecontext", "usereducer", "usememo", "usecallback", "useref", "jsx", "tsx"}},
	{Name: "redux", Description: "Redux state management",
		Keywords: []string{"redux", "store", "reducer", "action", "dispatch", "selector", "slice", "thunk", "saga"}},
	{Name: "vue", Description: "Vue.js framework",
		Keywords: []string{"vue", "ref", "reactive", "computed", "watch", "onmounted", "definecomponent", "setup", "template"}},
	{Name: "graphql", Description: "GraphQL API",
		Keywords: []string{"graphql", "query", "mutation", "subscription", "resolver", "schema", "apollo", "gql"}},
}

func nodeDiscover(ctx context.Context, dc DiscoveryContext) (map[string]types.CandidateSignals, error) {
	found := make(map[string]types.CandidateSignals)
	if dc.Store == nil {
		return found, nil
	}
	allFiles, err := dc.Store.GetAllFiles(ctx)
	if err != nil {
		return nil, err
	}

	discoverNodeTestFiles(dc.Candidates, allFiles, found)
	discoverNodeIndexExports(dc.Candidates, allFiles, found)
	return found, nil
}

func discoverNodeTestFiles(candidates map[string]types.CandidateSignals, allFiles []types.FileRecord, found map[string]types.CandidateSignals) {
	for candidatePath := range candidates {
		ext := filepath.Ext(candidatePath)
		base := strings.TrimSuffix(filepath.Base(candidatePath), ext)
		dir := filepath.Dir(candidatePath)

		patterns := []string{
			path.Join(dir, base+".test"+ext),
			path.Join(dir, base+".spec"+ext),
			path.Join(dir, "__tests__", base+ext),
			path.Join(dir, "__tests__", base+".test"+ext),
			path.Join("tests", base+".test"+ext),
			path.Join("test", base+".test"+ext),
		}

		for _, f := range allFiles {
			if _, ok := candidates[f.Path]; ok {
				continue
			}
			if _, ok := found[f.Path]; ok {
				continue
			}
			for _, p := range patterns {
				if f.Path == p || strings.HasSuffix(f.Path, "/"+p) {
					sig := found[f.Path]
					sig.TestFile = true
					found[f.Path] = sig
					break
				}
			}
		}
	}
}

var indexExportExts = []string{".ts", ".js", ".tsx", ".jsx"}

func discoverNodeIndexExports(candidates map[string]types.CandidateSignals, allFiles []types.FileRecord, found map[string]types.CandidateSignals) {
	for candidatePath := range candidates {
		dir := filepath.Dir(candidatePath)
		for _, f := range allFiles {
			if _, ok := candidates[f.Path]; ok {
				continue
			}
			if _, ok := found[f.Path]; ok {
				continue
			}
			if filepath.Dir(f.Path) != dir {
				continue
			}
			base := filepath.Base(f.Path)
			for _, ext := range indexExportExts {
				if base == "index"+ext {
					sig := found[f.Path]
					sig.RelatedFile = true
					found[f.Path] = sig
				}
			}
		}
	}
}

// laravelRule implements the PHP web-framework rule, grounded on the
// illegalstudio/context original-source Laravel discovery rule:
// Controller<->View, Route->Controller, Model<->Migration/Factory pairing.
func laravelRule() Rule {
	return Rule{
		Name:        "laravel",
		Description: "Laravel framework: Controller<->View, Route->Controller, Model<->Migration",
		Weight:      1.0,
		IgnorePatterns: `
vendor/
bootstrap/cache/
storage/framework/
storage/logs/
public/build/
public/hot
.phpunit.cache/
`,
		Domains:   laravelDomains,
		AppliesTo: func(root string) bool { return fileExists(root, "composer.json") && fileExists(root, "artisan") },
		Discover:  laravelDiscover,
	}
}

var laravelDomains = []types.Domain{
	{Name: "eloquent", Description: "Laravel Eloquent ORM",
		Keywords: []string{"eloquent", "model", "migration", "hasmany", "belongsto", "fillable", "casts"}},
	{Name: "blade", Description: "Laravel Blade templating",
		Keywords: []string{"blade", "@extends", "@section", "@yield", "@foreach", "@if", "component"}},
	{Name: "artisan", Description: "Laravel Artisan console",
		Keywords: []string{"artisan", "command", "schedule", "signature", "handle"}},
}

func laravelDiscover(ctx context.Context, dc DiscoveryContext) (map[string]types.CandidateSignals, error) {
	found := make(map[string]types.CandidateSignals)
	if dc.Store == nil {
		return found, nil
	}
	allFiles, err := dc.Store.GetAllFiles(ctx)
	if err != nil {
		return nil, err
	}

	for candidatePath := range dc.Candidates {
		base := strings.TrimSuffix(filepath.Base(candidatePath), filepath.Ext(candidatePath))

		switch {
		case strings.HasSuffix(base, "Controller"):
			stem := strings.TrimSuffix(base, "Controller")
			linkViewsAndRoutes(stem, allFiles, dc.Candidates, found)
		case strings.HasSuffix(base, "Model") || isModelDir(candidatePath):
			stem := strings.TrimSuffix(base, "Model")
			linkMigrationsAndFactories(stem, base, allFiles, dc.Candidates, found)
		}
	}
	return found, nil
}

func isModelDir(p string) bool {
	return strings.Contains(p, "/Models/") || strings.Contains(p, "app/Models")
}

func linkViewsAndRoutes(stem string, allFiles []types.FileRecord, candidates, found map[string]types.CandidateSignals) {
	viewDir := strings.ToLower(stem)
	for _, f := range allFiles {
		if _, ok := candidates[f.Path]; ok {
			continue
		}
		if strings.Contains(f.Path, "resources/views/"+viewDir) && strings.HasSuffix(f.Path, ".blade.php") {
			sig := found[f.Path]
			sig.RelatedFile = true
			found[f.Path] = sig
		}
		if strings.Contains(f.Path, "routes/") && strings.HasSuffix(f.Path, ".php") {
			sig := found[f.Path]
			sig.RelatedFile = true
			found[f.Path] = sig
		}
	}
}

func linkMigrationsAndFactories(stem, modelBase string, allFiles []types.FileRecord, candidates, found map[string]types.CandidateSignals) {
	table := strings.ToLower(stem)
	for _, f := range allFiles {
		if _, ok := candidates[f.Path]; ok {
			continue
		}
		if strings.Contains(f.Path, "database/migrations/") && strings.Contains(strings.ToLower(f.Path), table) {
			sig := found[f.Path]
			sig.RelatedFile = true
			found[f.Path] = sig
		}
		if strings.Contains(f.Path, "database/factories/") && strings.Contains(f.Path, modelBase) {
			sig := found[f.Path]
			sig.RelatedFile = true
			found[f.Path] = sig
		}
	}
}

// statamicRule extends the Laravel rule for Statamic, a flat-file CMS built
// atop Laravel: content/blueprint/fieldset pairing in addition to whatever
// the Laravel rule already applies.
func statamicRule() Rule {
	return Rule{
		Name:        "statamic",
		Description: "Statamic CMS (atop Laravel): content entries, blueprints, and fieldsets",
		Weight:      1.0,
		IgnorePatterns: `
storage/statamic/
public/assets/
.stache/
`,
		Domains:   statamicDomains,
		AppliesTo: func(root string) bool { return fileExists(root, "composer.json") && fileExists(root, filepath.Join("content", "collections")) },
		Discover:  statamicDiscover,
	}
}

var statamicDomains = []types.Domain{
	{Name: "statamic", Description: "Statamic CMS content structures",
		Keywords: []string{"statamic", "blueprint", "fieldset", "collection", "entry", "antlers", "fieldtype"}},
}

func statamicDiscover(ctx context.Context, dc DiscoveryContext) (map[string]types.CandidateSignals, error) {
	found := make(map[string]types.CandidateSignals)
	if dc.Store == nil {
		return found, nil
	}
	allFiles, err := dc.Store.GetAllFiles(ctx)
	if err != nil {
		return nil, err
	}

	for candidatePath := range dc.Candidates {
		if !strings.Contains(candidatePath, "resources/blueprints/") {
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(candidatePath), ".yaml")
		for _, f := range allFiles {
			if _, ok := dc.Candidates[f.Path]; ok {
				continue
			}
			if strings.Contains(f.Path, "content/collections/"+stem) {
				sig := found[f.Path]
				sig.RelatedFile = true
				found[f.Path] = sig
			}
		}
	}
	return found, nil
}
