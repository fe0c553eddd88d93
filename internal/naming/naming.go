// Package naming decides which filenames the renamer may touch and which
// names are already part of the numbered output.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Verdict classifies a filename against the matcher's rules.
type Verdict int

const (
	// Eligible means the file should be renamed
	Eligible Verdict = iota
	// SkipTooLong means the name exceeds the configured length limit
	SkipTooLong
	// SkipWrongSuffix means the name does not match the suffix pattern
	SkipWrongSuffix
	// SkipNumbered means the name already has the numbered form
	SkipNumbered
	// SkipHidden means the name starts with a dot
	SkipHidden
	// SkipScratch means the name is the scratch directory itself
	SkipScratch
)

// String returns the stats key for the verdict
func (v Verdict) String() string {
	switch v {
	case Eligible:
		return "eligible"
	case SkipTooLong:
		return "skipped_too_long"
	case SkipWrongSuffix:
		return "skipped_wrong_extension"
	case SkipNumbered:
		return "skipped_already_numbered"
	case SkipHidden:
		return "skipped_hidden"
	case SkipScratch:
		return "skipped_scratch"
	default:
		return "skipped_other"
	}
}

// Options configures a Matcher.
type Options struct {
	Pattern       string // Suffix regular expression, e.g. `\.jpg$`
	IgnoreCase    bool
	Digits        int    // Width of the numeric stem
	MaxNameLength int    // 0 disables the length check
	ScratchName   string // Base name of the scratch directory
}

// Matcher holds the compiled suffix and numbered-name patterns.
type Matcher struct {
	suffix      *regexp.Regexp
	numbered    *regexp.Regexp
	anyWidth    *regexp.Regexp
	digits      int
	maxLen      int
	scratchName string
}

// NewMatcher compiles the patterns described by opts.
//
// A name counts as numbered only when it is exactly Digits digits followed by
// a suffix match. Numeric names of any other width are treated as ordinary
// files; see ForeignWidth.
func NewMatcher(opts Options) (*Matcher, error) {
	if opts.Pattern == "" {
		return nil, fmt.Errorf("suffix pattern is required")
	}
	if opts.Digits <= 0 {
		return nil, fmt.Errorf("digits must be > 0, got %d", opts.Digits)
	}

	flags := ""
	if opts.IgnoreCase {
		flags = "(?i)"
	}

	suffix, err := regexp.Compile(flags + opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", opts.Pattern, err)
	}
	numbered, err := regexp.Compile(fmt.Sprintf(`%s^\d{%d}(?:%s)`, flags, opts.Digits, opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid numbered pattern: %w", err)
	}
	anyWidth, err := regexp.Compile(fmt.Sprintf(`%s^\d+(?:%s)`, flags, opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid numbered pattern: %w", err)
	}

	return &Matcher{
		suffix:      suffix,
		numbered:    numbered,
		anyWidth:    anyWidth,
		digits:      opts.Digits,
		maxLen:      opts.MaxNameLength,
		scratchName: opts.ScratchName,
	}, nil
}

// Classify returns the first rule that name fails, or Eligible.
func (m *Matcher) Classify(name string) Verdict {
	switch {
	case m.scratchName != "" && name == m.scratchName:
		return SkipScratch
	case m.maxLen > 0 && len(name) > m.maxLen:
		return SkipTooLong
	case !m.suffix.MatchString(name):
		return SkipWrongSuffix
	case m.IsNumbered(name):
		return SkipNumbered
	case strings.HasPrefix(name, "."):
		return SkipHidden
	}
	return Eligible
}

// Eligible reports whether name should be renamed.
func (m *Matcher) Eligible(name string) bool {
	return m.Classify(name) == Eligible
}

// IsNumbered reports whether name is already in <digits><suffix> form.
func (m *Matcher) IsNumbered(name string) bool {
	return m.numbered.MatchString(name)
}

// Stem returns the numeric stem of a numbered name.
func (m *Matcher) Stem(name string) (int, bool) {
	if !m.IsNumbered(name) {
		return 0, false
	}
	n, err := strconv.Atoi(name[:m.digits])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ForeignWidth reports whether name looks numbered but with a different
// stem width than configured. Such files are left alone at startup but will
// be renamed if an event for them arrives.
func (m *Matcher) ForeignWidth(name string) bool {
	return m.anyWidth.MatchString(name) && !m.IsNumbered(name)
}

// String returns the compiled suffix pattern.
func (m *Matcher) String() string {
	return m.suffix.String()
}

// Digits returns the configured stem width.
func (m *Matcher) Digits() int {
	return m.digits
}

// MaxNameLength returns the configured name length limit (0 = unlimited).
func (m *Matcher) MaxNameLength() int {
	return m.maxLen
}

// Suffix returns the tail of name that follows the numeric stem once name is
// renamed, chosen so the renamed file is itself recognised as numbered.
// Dotted tails are tried shortest first, so "backup.tar.gz" keeps ".tar.gz"
// under `\.tar\.gz$`; otherwise the tail from the start of the pattern match
// is used ("scan_final.tif" keeps "_final.tif" under `_final\.tiff?$`).
// It reports false when no tail of name gives a numbered result.
func (m *Matcher) Suffix(name string) (string, bool) {
	zero := strings.Repeat("0", m.digits)
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '.' && m.IsNumbered(zero+name[i:]) {
			return name[i:], true
		}
	}
	if loc := m.suffix.FindStringIndex(name); loc != nil && m.IsNumbered(zero+name[loc[0]:]) {
		return name[loc[0]:], true
	}
	return "", false
}

// PatternFromExtensions builds a suffix pattern from an extension list.
// "jpg" becomes `\.jpg$`; "jpg,png" or "jpg|png" becomes `(\.jpg$|\.png$)`.
// Extension text is quoted so "tar.gz" matches literally.
func PatternFromExtensions(extensions string) string {
	var parts []string
	for _, ext := range strings.FieldsFunc(extensions, func(r rune) bool { return r == ',' || r == '|' }) {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}
		parts = append(parts, `\.`+regexp.QuoteMeta(ext)+`$`)
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, "|") + ")"
	}
}
