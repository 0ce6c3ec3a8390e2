// Package stacktrace implements the Stacktrace Parser (spec §4.10): a
// language-family regex cascade that turns raw log or stacktrace text into
// (file, line, column?, function?) entries, following the same ordered
// regex-table idiom as the Symbol Extractor.
package stacktrace

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/standardbeagle/ctxpack/internal/types"
)

// maxMessageLength bounds the error-message string attached to the first
// parsed entry.
const maxMessageLength = 240

// frameRule is one ordered (language family, pattern) pair. Named capture
// groups file/line/column/function are pulled out if present.
type frameRule struct {
	pattern *regexp.Regexp
}

func mustFrame(expr string) frameRule {
	return frameRule{pattern: regexp.MustCompile(expr)}
}

// Order matters: more specific shapes (with column info) are tried before
// generic "file:line" fallbacks so column capture isn't lost.
var frameRules = []frameRule{
	// Go: "\tpath/to/file.go:123 +0x1a2" or "path/to/file.go:123"
	mustFrame(`(?P<file>[\w./\\-]+\.go):(?P<line>\d+)(?:\s+\+0x[0-9a-f]+)?`),
	// Node/JS: "at funcName (path/to/file.js:12:34)" or "at path/to/file.js:12:34"
	mustFrame(`at\s+(?:(?P<function>[\w$.<>]+)\s+\()?(?P<file>[\w./\\@-]+\.[jt]sx?):(?P<line>\d+):(?P<column>\d+)\)?`),
	// Python: `File "path/to/file.py", line 12, in funcName`
	mustFrame(`File "(?P<file>[^"]+\.py)", line (?P<line>\d+)(?:, in (?P<function>[\w.<>]+))?`),
	// Java/Kotlin: "at com.example.Foo.bar(Foo.java:42)"
	mustFrame(`at\s+(?P<function>[\w.$]+)\((?P<file>[\w.$]+\.(?:java|kt)):(?P<line>\d+)\)`),
	// Ruby: "path/to/file.rb:12:in `method'"
	mustFrame(`(?P<file>[\w./\\-]+\.rb):(?P<line>\d+)(?::in ` + "`" + `(?P<function>[\w?!.]+)'` + `)?`),
	// Rust: "at src/main.rs:12:5"
	mustFrame(`at\s+(?P<file>[\w./\\-]+\.rs):(?P<line>\d+):(?P<column>\d+)`),
	// PHP: "#0 /var/www/app/Foo.php(42): Foo->bar()"
	mustFrame(`(?P<file>[\w./\\-]+\.php)\((?P<line>\d+)\)(?::\s*(?P<function>[\w:>-]+)\(\))?`),
	// Generic "path/to/file.ext:line:col?" fallback for unlisted languages.
	mustFrame(`(?P<file>[\w./\\-]+\.(?:c|cc|cpp|h|hpp|cs|swift|scala|ex|exs)):(?P<line>\d+)(?::(?P<column>\d+))?`),
}

// messageRules extract a bounded error-message string from a log line.
var messageRules = []*regexp.Regexp{
	regexp.MustCompile(`(?:Error|Exception|panic):\s*(.+)`),
	regexp.MustCompile(`^\s*(\w*Error|\w*Exception):\s*(.+)`),
	regexp.MustCompile(`panic:\s*(.+)`),
}

// timestampRules parse common leading log timestamp shapes.
var timestampRules = []struct {
	pattern *regexp.Regexp
	layout  string
}{
	{regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})`), "2006-01-02T15:04:05"},
	{regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`), "2006-01-02 15:04:05"},
	{regexp.MustCompile(`^\[(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})\]`), "2006/01/02 15:04:05"},
	{regexp.MustCompile(`^(\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2})`), "02/Jan/2006:15:04:05"},
}

// excludedPathSegments drops vendored/system/dependency noise from parsed
// frames (spec §4.10's "system paths" filter), mirroring the VCS churn
// exclusion idea but scoped to what shows up in stacktraces specifically.
var excludedPathSegments = []string{
	"vendor/", "node_modules/", "site-packages/", "/usr/lib/", "/usr/local/lib/",
	"go/pkg/mod/", ".gradle/", "ruby/gems/",
}

// namedGroup returns the submatch for name, or "" if absent/unmatched.
func namedGroup(re *regexp.Regexp, match []string, name string) string {
	for i, n := range re.SubexpNames() {
		if n == name && i < len(match) {
			return match[i]
		}
	}
	return ""
}

// normalizePath implements spec §4.10's path normalisation: strip a leading
// drive letter or slash, force forward slashes, and trim leading directory
// components up to the first lowercase-led directory name (the point where
// an absolute system/build path typically gives way to the project's own
// source tree).
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if len(p) >= 2 && p[1] == ':' { // C:/...
		p = p[2:]
	}
	p = strings.TrimPrefix(p, "/")
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if part[0] >= 'a' && part[0] <= 'z' {
			return strings.Join(parts[i:], "/")
		}
	}
	return strings.Join(parts, "/")
}

func isExcludedPath(p string) bool {
	lower := strings.ToLower(p)
	for _, seg := range excludedPathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}

// parseSince parses a "<N>[mhd]" duration shorthand (minutes/hours/days).
func parseSince(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("stacktrace: empty since filter")
	}
	unit := spec[len(spec)-1]
	numPart := spec[:len(spec)-1]
	var mult time.Duration
	switch unit {
	case 'm':
		mult = time.Minute
	case 'h':
		mult = time.Hour
	case 'd':
		mult = 24 * time.Hour
	default:
		return 0, fmt.Errorf("stacktrace: unrecognised since unit %q", string(unit))
	}
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, fmt.Errorf("stacktrace: invalid since value %q: %w", spec, err)
	}
	return time.Duration(n) * mult, nil
}

func parseLineTimestamp(line string) (time.Time, bool) {
	for _, r := range timestampRules {
		m := r.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		t, err := time.Parse(r.layout, m[1])
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// filterSince keeps every non-timestamped line, plus every line from the
// first line whose parsed timestamp is >= now-window onward (spec §4.10).
func filterSince(text string, since time.Duration, now time.Time) string {
	if since <= 0 {
		return text
	}
	cutoff := now.Add(-since)
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	gateOpen := false
	for _, line := range lines {
		ts, ok := parseLineTimestamp(line)
		if !ok {
			kept = append(kept, line)
			continue
		}
		if !gateOpen {
			if ts.Before(cutoff) {
				continue
			}
			gateOpen = true
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// Parse runs the regex cascade over rawText, honoring an optional
// "since=<N>[mhd]" filter, and returns de-duplicated (file,line) entries
// with the first extracted error message attached to the first entry.
func Parse(rawText string, since string, now time.Time) ([]types.StacktraceEntry, error) {
	text := rawText
	if since != "" {
		window, err := parseSince(since)
		if err != nil {
			return nil, err
		}
		text = filterSince(text, window, now)
	}

	var entries []types.StacktraceEntry
	seen := make(map[string]bool)
	var firstMessage string

	for _, line := range strings.Split(text, "\n") {
		if firstMessage == "" {
			for _, mr := range messageRules {
				if m := mr.FindStringSubmatch(line); m != nil {
					msg := m[len(m)-1]
					if len(msg) > maxMessageLength {
						msg = msg[:maxMessageLength]
					}
					firstMessage = strings.TrimSpace(msg)
					break
				}
			}
		}

		for _, fr := range frameRules {
			m := fr.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			file := normalizePath(namedGroup(fr.pattern, m, "file"))
			if file == "" || isExcludedPath(file) {
				continue
			}
			lineNoStr := namedGroup(fr.pattern, m, "line")
			lineNo, err := strconv.Atoi(lineNoStr)
			if err != nil {
				continue
			}
			key := fmt.Sprintf("%s:%d", file, lineNo)
			if seen[key] {
				continue
			}
			seen[key] = true
			col, _ := strconv.Atoi(namedGroup(fr.pattern, m, "column"))
			entries = append(entries, types.StacktraceEntry{
				File:     file,
				Line:     lineNo,
				Column:   col,
				Function: namedGroup(fr.pattern, m, "function"),
			})
			break // first matching rule family wins for this line
		}
	}

	if len(entries) > 0 && firstMessage != "" {
		entries[0].Message = firstMessage
	}
	return entries, nil
}
