package draft

import (
	"strings"
	"testing"
)

const sampleDoc = `<!-- TITLE_PAGE_START -->
# Report
<!-- TITLE_PAGE_END -->

<!-- SECTION:intro:START -->
Intro content.
<!-- SECTION:intro:END -->

<!-- SECTION:body:START -->
Body content.
<!-- SECTION:body:END -->
`

func TestExtractSectionsInDocumentOrder(t *testing.T) {
	sections := ExtractSections(sampleDoc)
	if len(sections) != 2 {
		t.Fatalf("len = %d, want 2", len(sections))
	}
	if sections[0].ID != "intro" || sections[1].ID != "body" {
		t.Fatalf("order = [%s %s], want [intro body]", sections[0].ID, sections[1].ID)
	}
}

func TestExtractSectionsSkipsUnmatchedStart(t *testing.T) {
	doc := "<!-- SECTION:orphan:START -->\nno end marker\n"
	sections := ExtractSections(doc)
	if len(sections) != 0 {
		t.Fatalf("expected 0 sections for unmatched start, got %d", len(sections))
	}
}

func TestSectionInnerTextStripsMarkers(t *testing.T) {
	sections := ExtractSections(sampleDoc)
	if got := sections[0].InnerText(); got != "Intro content." {
		t.Errorf("InnerText = %q, want %q", got, "Intro content.")
	}
}

func TestTitlePage(t *testing.T) {
	body, ok := TitlePage(sampleDoc)
	if !ok {
		t.Fatal("expected title page to be found")
	}
	if !strings.Contains(body, "# Report") {
		t.Errorf("title page body = %q, missing heading", body)
	}
}

func TestTitlePageAbsent(t *testing.T) {
	_, ok := TitlePage("no markers here")
	if ok {
		t.Error("expected ok=false when no title page markers present")
	}
}

func TestBuildDocumentPrependsTitlePage(t *testing.T) {
	doc := BuildDocument("# Title", "body text")
	if !strings.HasPrefix(doc, "<!-- TITLE_PAGE_START -->") {
		t.Errorf("doc does not start with title page marker: %q", doc)
	}
	if !strings.Contains(doc, "body text") {
		t.Error("doc missing body")
	}
}

func TestBuildDocumentSkipsEmptyTitlePage(t *testing.T) {
	doc := BuildDocument("   ", "body only")
	if doc != "body only" {
		t.Errorf("doc = %q, want body only with no title page wrapper", doc)
	}
}

func TestWrapSectionRoundTripsThroughExtract(t *testing.T) {
	wrapped := WrapSection("s1", "hello world")
	sections := ExtractSections(wrapped)
	if len(sections) != 1 || sections[0].ID != "s1" {
		t.Fatalf("wrap/extract round trip failed: %+v", sections)
	}
	if got := sections[0].InnerText(); got != "hello world" {
		t.Errorf("InnerText = %q, want %q", got, "hello world")
	}
}

func TestReplaceSectionSwapsExistingSection(t *testing.T) {
	replacement := WrapSection("intro", "new intro text")
	out := ReplaceSection(sampleDoc, "intro", replacement)
	if !strings.Contains(out, "new intro text") {
		t.Error("replacement text missing")
	}
	if strings.Contains(out, "Intro content.") {
		t.Error("old section text should have been replaced")
	}
	if !strings.Contains(out, "Body content.") {
		t.Error("unrelated section should be untouched")
	}
}

func TestReplaceSectionAppendsWhenMissing(t *testing.T) {
	replacement := WrapSection("conclusion", "the end")
	out := ReplaceSection(sampleDoc, "conclusion", replacement)
	if !strings.Contains(out, "the end") {
		t.Error("expected appended section")
	}
}

func TestIsPlaceholder(t *testing.T) {
	cases := map[string]bool{
		"Content unchanged.":        true,
		"[placeholder]":             true,
		"A real paragraph of text.": false,
	}
	for in, want := range cases {
		if got := IsPlaceholder(in); got != want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMergeRevisedMarkdownFullReplaceWhenNoMarkers(t *testing.T) {
	got := MergeRevisedMarkdown(sampleDoc, "brand new document, no markers")
	if got != "brand new document, no markers" {
		t.Errorf("expected full replace, got %q", got)
	}
}

func TestMergeRevisedMarkdownSkipsPlaceholderSections(t *testing.T) {
	revised := WrapSection("intro", "content unchanged")
	out := MergeRevisedMarkdown(sampleDoc, revised)
	if !strings.Contains(out, "Intro content.") {
		t.Error("placeholder revision should not have replaced the original section")
	}
}

func TestMergeRevisedMarkdownSplicesRealRevisions(t *testing.T) {
	revised := WrapSection("intro", "revised intro")
	out := MergeRevisedMarkdown(sampleDoc, revised)
	if !strings.Contains(out, "revised intro") {
		t.Error("expected revised section text to be spliced in")
	}
	if !strings.Contains(out, "Body content.") {
		t.Error("sections absent from revised should be preserved")
	}
}

func TestMergeRevisedMarkdownIsIdempotent(t *testing.T) {
	revised := WrapSection("intro", "Intro content.")
	once := MergeRevisedMarkdown(sampleDoc, revised)
	twice := MergeRevisedMarkdown(once, revised)
	if once != twice {
		t.Errorf("merge not idempotent:\nonce=%q\ntwice=%q", once, twice)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, want 0", got)
	}
	if got := EstimateTokens("ab"); got != 1 {
		t.Errorf("EstimateTokens(short) = %d, want 1 (floor)", got)
	}
	if got := EstimateTokens(strings.Repeat("x", 30)); got != 10 {
		t.Errorf("EstimateTokens(30 chars) = %d, want 10", got)
	}
}
