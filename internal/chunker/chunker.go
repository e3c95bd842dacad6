// Package chunker splits oversized document text into ordered chunks that
// prefer natural section boundaries.
package chunker

import (
	"sort"
	"strings"

	"github.com/joelkehle/prd2tc/internal/tokens"
)

const (
	// DefaultDecisionThreshold is the estimate at or below which a document
	// is processed whole.
	DefaultDecisionThreshold = 3000
	// DefaultChunkBudget is the per-chunk budget used for oversized documents.
	DefaultChunkBudget = 3500

	// A buffer holding more than this share of the budget may be flushed at
	// any line, not just at a heading.
	forceFlushRatio = 0.8
	// Sections above this multiple of the budget are re-split on paragraphs.
	oversizeRatio = 1.2
)

// Splitter holds the sizing policy. The zero value is not usable; use New.
type Splitter struct {
	DecisionThreshold int
	Estimate          tokens.Func
}

// New returns a Splitter with the default decision threshold and estimator.
func New() *Splitter {
	return &Splitter{DecisionThreshold: DefaultDecisionThreshold, Estimate: tokens.Estimate}
}

// Split splits text with the default policy.
func Split(text string, maxTokens int) []string {
	return New().Split(text, maxTokens)
}

// NeedsSplit reports whether text exceeds the decision threshold.
func (s *Splitter) NeedsSplit(text string) bool {
	return s.Estimate(text) > s.DecisionThreshold
}

// Split returns the chunks of text in source order. Text at or below the
// decision threshold comes back as a single trimmed chunk. Blank text yields
// no chunks.
func (s *Splitter) Split(text string, maxTokens int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if !s.NeedsSplit(text) {
		return []string{trimmed}
	}
	if maxTokens <= 0 {
		maxTokens = DefaultChunkBudget
	}

	limit := int(float64(maxTokens) * oversizeRatio)
	var out []string
	for _, section := range s.splitSections(text, maxTokens) {
		if s.Estimate(section) > limit {
			out = append(out, s.splitParagraphs(section, maxTokens, limit)...)
			continue
		}
		out = append(out, section)
	}
	return out
}

// splitSections is the heading-aware first pass.
func (s *Splitter) splitSections(text string, maxTokens int) []string {
	var (
		sections []string
		buf      strings.Builder
		cur      int
	)
	force := float64(maxTokens) * forceFlushRatio
	flush := func() {
		if v := strings.TrimSpace(buf.String()); v != "" {
			sections = append(sections, v)
		}
		buf.Reset()
		cur = 0
	}

	for _, line := range strings.Split(text, "\n") {
		n := s.Estimate(line)
		if cur+n > maxTokens && (IsHeading(line) || float64(cur) > force) {
			flush()
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		cur += n
	}
	flush()
	return sections
}

// splitParagraphs is the size-only second pass over one oversized section.
// A single paragraph that alone exceeds limit is cut on lines, then on runes.
func (s *Splitter) splitParagraphs(section string, maxTokens, limit int) []string {
	var units []string
	for _, para := range strings.Split(section, "\n\n") {
		if s.Estimate(para) > limit {
			units = append(units, s.splitOversizedParagraph(para, maxTokens)...)
			continue
		}
		units = append(units, para)
	}
	return s.pack(units, "\n\n", maxTokens)
}

func (s *Splitter) splitOversizedParagraph(para string, maxTokens int) []string {
	var units []string
	for _, line := range strings.Split(para, "\n") {
		if s.Estimate(line) > maxTokens {
			units = append(units, s.splitRunes(line, maxTokens)...)
			continue
		}
		units = append(units, line)
	}
	return s.pack(units, "\n", maxTokens)
}

func (s *Splitter) splitRunes(line string, maxTokens int) []string {
	offsets := make([]int, 0, len(line)+1)
	for i := range line {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(line))

	var out []string
	for lo := 0; lo < len(offsets)-1; {
		remaining := len(offsets) - 1 - lo
		// fit is the largest rune count whose estimate stays within budget.
		fit := sort.Search(remaining, func(k int) bool {
			return s.Estimate(line[offsets[lo]:offsets[lo+k+1]]) > maxTokens
		})
		if fit == 0 {
			fit = 1
		}
		out = append(out, line[offsets[lo]:offsets[lo+fit]])
		lo += fit
	}
	return out
}

// pack greedily joins units with sep while the running estimate stays within
// maxTokens. The running figure is re-estimated over the joined buffer so
// per-unit truncation cannot accumulate.
func (s *Splitter) pack(units []string, sep string, maxTokens int) []string {
	var (
		out []string
		buf strings.Builder
		cur int
	)
	flush := func() {
		if v := strings.TrimSpace(buf.String()); v != "" {
			out = append(out, v)
		}
		buf.Reset()
		cur = 0
	}
	for _, u := range units {
		if buf.Len() > 0 && cur+s.Estimate(u) > maxTokens {
			flush()
		}
		buf.WriteString(u)
		buf.WriteString(sep)
		cur = s.Estimate(buf.String())
	}
	flush()
	return out
}
