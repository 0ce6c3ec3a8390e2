// Package types holds the data model shared by every stage of the ctxpack
// pipeline: the persisted record shapes owned by the Store, and the
// in-flight value types passed between the Resolver, Discovery, Scorer and
// Excerpt Extractor.
package types

import "time"

// SymbolKind enumerates the kinds of symbol the extractor recognises.
type SymbolKind string

const (
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindConstant  SymbolKind = "constant"
	KindVariable  SymbolKind = "variable"
)

// ChangeType enumerates the task's detected change intent.
type ChangeType string

const (
	ChangeBugfix   ChangeType = "bugfix"
	ChangeFeature  ChangeType = "feature"
	ChangeRefactor ChangeType = "refactor"
	ChangePerf     ChangeType = "perf"
	ChangeSecurity ChangeType = "security"
	ChangeUnknown  ChangeType = "unknown"
)

// DiffStatus enumerates the status of a file in a VCS diff.
type DiffStatus string

const (
	DiffAdded    DiffStatus = "added"
	DiffDeleted  DiffStatus = "deleted"
	DiffRenamed  DiffStatus = "renamed"
	DiffModified DiffStatus = "modified"
)

// FileRecord is the Store's identity record for one workspace-relative,
// forward-slashed file path. See spec §3 FileRecord.
type FileRecord struct {
	Path     string
	Language string
	Size     int64
	ModTime  int64 // epoch milliseconds
	Hash     string
}

// Symbol belongs to exactly one FileRecord (by Path).
type Symbol struct {
	ID        int64
	FilePath  string
	Name      string
	Kind      SymbolKind
	StartLine int
	EndLine   int
	Signature string
}

// ImportEdge is a directed edge between two FileRecords.
type ImportEdge struct {
	ID     int64
	Source string
	Target string
	Symbol string
}

// VcsSignal carries per-file churn metadata.
type VcsSignal struct {
	FilePath     string
	LastModified string // ISO-8601, optional
	CommitCount  int
	ChurnScore   float64 // [0,1]
}

// FtsEntry is the raw (path, content) row fed to the content FTS table.
type FtsEntry struct {
	Path    string
	Content string
}

// StacktraceEntry is one parsed frame from a log/stacktrace.
type StacktraceEntry struct {
	File     string
	Line     int
	Column   int
	Function string
	Message  string
}

// DiffEntry describes one file's status in a VCS diff.
type DiffEntry struct {
	File      string
	Status    DiffStatus
	Additions int
	Deletions int
}

// LineRange is an inclusive 1-based line range.
type LineRange struct {
	Start int
	End   int
}

// Confidence is the Resolver's advisory confidence bundle (spec §3, §9).
type Confidence struct {
	HasStacktrace bool
	HasDiff       bool
	HasFileHints  bool
	HasSymbols    bool
	HasKeywords   bool
	Overall       float64 // [0,1]
}

// Label classifies the advisory confidence band (spec §9).
func (c Confidence) Label() string {
	switch {
	case c.Overall < 0.3:
		return "vague"
	case c.Overall < 0.5:
		return "needs clarification"
	default:
		return "confident"
	}
}

// Domain is a tagged topic area with an associated keyword list (GLOSSARY).
type Domain struct {
	Name        string
	Description string
	Keywords    []string
}

// ResolvedTask is the immutable value produced by the Task Resolver.
type ResolvedTask struct {
	RawText      string
	RawWords     []string
	Keywords     []string
	Keyphrases   []string
	Entities     Entities
	Domains      []string
	DomainWeight map[string]int
	ChangeType   ChangeType
	Confidence   Confidence

	// Optional inputs that fed the resolution, carried through for Discovery
	// and the Excerpt Extractor's highlight-line computation.
	Stacktrace []StacktraceEntry
	Diff       []DiffEntry
	FileHints  []string
	SymbolHint []string
}

// Entities holds the multi-shape entities extracted from the raw task text.
type Entities struct {
	ClassNames  []string // includes PascalCase and snake_case tokens, per spec §4.9/§9
	MethodNames []string
	FilePaths   []string
	Routes      []string
	APIPaths    []string
	ErrorCodes  []string
	// CaseVariants maps an extracted class/method token to all its generated
	// case-shape variants (snake/camel/Pascal/lower-concat).
	CaseVariants map[string][]string
}

// CandidateSignals is the independent-evidence record accumulated per
// candidate file during Discovery (spec §3, §4.13).
type CandidateSignals struct {
	StacktraceHit      bool
	DiffHit            bool
	FileHintExact      bool
	FileHintHit        bool
	SymbolMatch        bool
	ExactSymbolMention bool
	KeywordMatch       bool
	GraphRelated       bool
	GraphDepth         int
	GraphDecay         float64
	TestFile           bool
	GitHotspot         bool
	RelatedFile        bool
	ExampleUsage       bool

	RawPathMatchCount   int
	FilenameMatchCount  int
	BasenameMatchCount  int
}

// Merge OR-merges another signal set into this one. Booleans OR; GraphDepth
// takes the minimum of the two non-zero values (shortest path wins); counts
// take the max, since they represent "at least this many" evidence.
func (s *CandidateSignals) Merge(other CandidateSignals) {
	s.StacktraceHit = s.StacktraceHit || other.StacktraceHit
	s.DiffHit = s.DiffHit || other.DiffHit
	s.FileHintExact = s.FileHintExact || other.FileHintExact
	s.FileHintHit = s.FileHintHit || other.FileHintHit
	s.SymbolMatch = s.SymbolMatch || other.SymbolMatch
	s.ExactSymbolMention = s.ExactSymbolMention || other.ExactSymbolMention
	s.KeywordMatch = s.KeywordMatch || other.KeywordMatch
	s.TestFile = s.TestFile || other.TestFile
	s.GitHotspot = s.GitHotspot || other.GitHotspot
	s.RelatedFile = s.RelatedFile || other.RelatedFile
	s.ExampleUsage = s.ExampleUsage || other.ExampleUsage

	if other.GraphRelated {
		if !s.GraphRelated || other.GraphDepth < s.GraphDepth {
			s.GraphDepth = other.GraphDepth
			s.GraphDecay = other.GraphDecay
		}
		s.GraphRelated = true
	}

	if other.RawPathMatchCount > s.RawPathMatchCount {
		s.RawPathMatchCount = other.RawPathMatchCount
	}
	if other.FilenameMatchCount > s.FilenameMatchCount {
		s.FilenameMatchCount = other.FilenameMatchCount
	}
	if other.BasenameMatchCount > s.BasenameMatchCount {
		s.BasenameMatchCount = other.BasenameMatchCount
	}
}

// TrueSignalCount counts the independent boolean signals set to true. The
// Scorer's "≥3 true signals" bonus counts the same set with its own helper
// and does not call this method.
func (s CandidateSignals) TrueSignalCount() int {
	n := 0
	for _, b := range []bool{
		s.StacktraceHit, s.DiffHit, s.FileHintExact, s.FileHintHit,
		s.SymbolMatch, s.ExactSymbolMention, s.KeywordMatch, s.GraphRelated,
		s.TestFile, s.GitHotspot, s.RelatedFile, s.ExampleUsage,
	} {
		if b {
			n++
		}
	}
	return n
}

// Candidate is a scored, reasoned file produced by the Scorer.
type Candidate struct {
	Path    string
	Score   float64 // [0,1] after max-normalisation
	Reasons []string
	Signals CandidateSignals
}

// Excerpt is the bounded snippet composed by the Excerpt Extractor.
type Excerpt struct {
	Path       string
	Content    string
	StartLine  int
	EndLine    int
	TotalLines int
	Truncated  bool
}

// Now is overridable in tests; production code should call time.Now directly
// except where a stable clock is required for deterministic scheduling.
var Now = time.Now
