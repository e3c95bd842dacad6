package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// HeadingMarker prefixes headings emitted by the upstream document extractor,
// e.g. "[标题1] Overview".
const HeadingMarker = "[标题"

const shortLabelRunes = 50

var (
	numberedHeading = regexp.MustCompile(`^(第\d+[章节篇]|[一二三四五六七八九十]+[、.]|\d+[、.])`)
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+`)
	latinLabel      = regexp.MustCompile(`^[A-Z][a-zA-Z\s]{1,50}[：:]`)
)

// HeadingRule names the rule that classified a line as a heading.
type HeadingRule string

const (
	RuleNone       HeadingRule = ""
	RuleMarker     HeadingRule = "marker"
	RuleNumbered   HeadingRule = "numbered"
	RuleMarkdown   HeadingRule = "markdown"
	RuleLatinLabel HeadingRule = "latin_label"
	RuleShortColon HeadingRule = "short_colon"
)

// ClassifyHeading reports which heading rule, if any, matches line. The marker
// rule looks at the raw line; all other rules look at the trimmed line.
func ClassifyHeading(line string) HeadingRule {
	if strings.HasPrefix(line, HeadingMarker) {
		return RuleMarker
	}
	s := strings.TrimSpace(line)
	switch {
	case numberedHeading.MatchString(s):
		return RuleNumbered
	case markdownHeading.MatchString(s):
		return RuleMarkdown
	case latinLabel.MatchString(s):
		return RuleLatinLabel
	case utf8.RuneCountInString(s) < shortLabelRunes && (strings.HasSuffix(s, "：") || strings.HasSuffix(s, ":")):
		return RuleShortColon
	}
	return RuleNone
}

// IsHeading reports whether line starts a new section.
func IsHeading(line string) bool {
	return ClassifyHeading(line) != RuleNone
}
