// Package finalize implements the finalize stage's document assembly
// (spec.md §4.7.10): diagram substitution, heading numbering, and table of
// contents insertion.
package finalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/azure-way/aidocwriter/internal/model"
)

var headingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)
var fencedBlockRe = regexp.MustCompile("(?s)```.*?```")
var diagramIDCommentRe = regexp.MustCompile(`(?m)^\s*(?:'|//|#)\s*diagram_id:\s*(\S+)\s*$`)
var plantUMLFenceRe = regexp.MustCompile("(?s)```plantuml\\s*\\n(.*?)```")

// ApplyDiagramResults replaces each PlantUML fenced block whose body
// contains a `diagram_id: X` comment with an image link to that result's
// relative path, matching by diagram id (spec.md §8 P8). Results carrying
// an Error (no BlobPath) are left as the original fenced block.
func ApplyDiagramResults(doc string, results []model.DiagramResult) string {
	byID := map[string]model.DiagramResult{}
	for _, r := range results {
		byID[r.DiagramID] = r
	}
	return plantUMLFenceRe.ReplaceAllStringFunc(doc, func(block string) string {
		m := diagramIDCommentRe.FindStringSubmatch(block)
		if m == nil {
			return block
		}
		result, ok := byID[m[1]]
		if !ok || result.Error != "" || result.RelativePath == "" {
			return block
		}
		alt := result.AltText
		if alt == "" {
			alt = result.DiagramID
		}
		return fmt.Sprintf("![%s](%s)", alt, result.RelativePath)
	})
}

// NumberHeadings numbers every H1-H6 "1", "1.1", "1.1.1"... resetting
// lower levels when a higher one advances, skipping the title page block
// and anything inside a fenced code block (spec.md §4.7.10).
func NumberHeadings(doc string) string {
	titlePage, hasTitle := extractTitlePageSpan(doc)
	fenced := fencedSpans(doc)

	counters := [6]int{}

	var b strings.Builder
	last := 0
	for _, m := range headingRe.FindAllStringSubmatchIndex(doc, -1) {
		idx := m[0]
		if hasTitle && idx >= titlePage[0] && idx < titlePage[1] {
			continue
		}
		inFence := false
		for _, span := range fenced {
			if idx >= span[0] && idx < span[1] {
				inFence = true
				break
			}
		}
		if inFence {
			continue
		}
		hashes := doc[m[2]:m[3]]
		level := len(hashes)
		text := doc[m[4]:m[5]]
		counters[level-1]++
		for i := level; i < 6; i++ {
			counters[i] = 0
		}
		numberParts := make([]string, 0, level)
		for i := 0; i < level; i++ {
			numberParts = append(numberParts, itoa(counters[i]))
		}
		number := strings.Join(numberParts, ".")
		b.WriteString(doc[last:m[0]])
		b.WriteString(hashes + " " + number + ". " + text)
		last = m[1]
	}
	b.WriteString(doc[last:])
	return b.String()
}

// TOCEntry is one line of the generated table of contents.
type TOCEntry struct {
	Level int
	Text  string
	Slug  string
}

// BuildTOC scans a (post-numbering) document for headings outside the
// title page and fenced blocks, and returns TOC entries in order.
func BuildTOC(doc string) []TOCEntry {
	titlePage, hasTitle := extractTitlePageSpan(doc)
	fenced := fencedSpans(doc)

	var entries []TOCEntry
	matches := headingRe.FindAllStringSubmatchIndex(doc, -1)
	for _, m := range matches {
		idx := m[0]
		if hasTitle && idx >= titlePage[0] && idx < titlePage[1] {
			continue
		}
		skip := false
		for _, span := range fenced {
			if idx >= span[0] && idx < span[1] {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		level := m[3] - m[2]
		text := doc[m[4]:m[5]]
		entries = append(entries, TOCEntry{Level: level, Text: text, Slug: Slugify(text)})
	}
	return entries
}

// RenderTOC formats entries as a nested markdown list linking to heading
// slugs.
func RenderTOC(entries []TOCEntry) string {
	var b strings.Builder
	b.WriteString("## Table of Contents\n\n")
	for _, e := range entries {
		indent := strings.Repeat("  ", e.Level-1)
		b.WriteString(fmt.Sprintf("%s- [%s](#%s)\n", indent, e.Text, e.Slug))
	}
	return b.String()
}

// InsertTOCAfterTitlePage inserts toc right after the title page block, or
// at the top of the document if there's no title page.
func InsertTOCAfterTitlePage(doc, toc string) string {
	span, ok := extractTitlePageSpan(doc)
	if !ok {
		return toc + "\n\n" + doc
	}
	insertAt := span[1]
	return doc[:insertAt] + "\n\n" + toc + "\n" + doc[insertAt:]
}

func extractTitlePageSpan(doc string) ([2]int, bool) {
	start := strings.Index(doc, "<!-- TITLE_PAGE_START -->")
	if start == -1 {
		return [2]int{}, false
	}
	endMarker := "<!-- TITLE_PAGE_END -->"
	end := strings.Index(doc, endMarker)
	if end == -1 {
		return [2]int{}, false
	}
	end += len(endMarker)
	return [2]int{start, end}, true
}

func fencedSpans(doc string) [][2]int {
	matches := fencedBlockRe.FindAllStringIndex(doc, -1)
	spans := make([][2]int, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, [2]int{m[0], m[1]})
	}
	return spans
}

// Slugify lowercases text and replaces runs of non-alphanumeric characters
// with a single hyphen, the common GitHub-flavored-markdown heading anchor
// convention.
func Slugify(text string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// Assemble runs the full finalize pipeline over a merged draft: diagram
// substitution, heading numbering, then TOC insertion.
func Assemble(doc string, diagramResults []model.DiagramResult) string {
	withImages := ApplyDiagramResults(doc, diagramResults)
	numbered := NumberHeadings(withImages)
	toc := RenderTOC(BuildTOC(numbered))
	return InsertTOCAfterTitlePage(numbered, toc)
}
