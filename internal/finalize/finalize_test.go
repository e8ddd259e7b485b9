package finalize

import (
	"strings"
	"testing"

	"github.com/azure-way/aidocwriter/internal/model"
)

func TestApplyDiagramResultsReplacesMatchingFence(t *testing.T) {
	doc := "before\n```plantuml\n' diagram_id: arch\n@startuml\nA -> B\n@enduml\n```\nafter"
	results := []model.DiagramResult{{DiagramID: "arch", RelativePath: "diagrams/arch.png", AltText: "Architecture"}}
	got := ApplyDiagramResults(doc, results)
	if strings.Contains(got, "@startuml") {
		t.Error("fenced block should have been replaced")
	}
	if !strings.Contains(got, "![Architecture](diagrams/arch.png)") {
		t.Errorf("missing image link, got %q", got)
	}
}

func TestApplyDiagramResultsLeavesFailedDiagramAsFence(t *testing.T) {
	doc := "```plantuml\n' diagram_id: arch\n@startuml\nA -> B\n@enduml\n```"
	results := []model.DiagramResult{{DiagramID: "arch", Error: "render failed"}}
	got := ApplyDiagramResults(doc, results)
	if !strings.Contains(got, "@startuml") {
		t.Error("failed diagram's fenced block should be left as-is")
	}
}

func TestNumberHeadingsAssignsHierarchicalNumbers(t *testing.T) {
	doc := "# Intro\n## Background\n## Scope\n# Conclusion\n"
	got := NumberHeadings(doc)
	want := []string{"# 1. Intro", "## 1.1. Background", "## 1.2. Scope", "# 2. Conclusion"}
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("missing %q in:\n%s", w, got)
		}
	}
}

func TestNumberHeadingsSkipsTitlePageAndFencedBlocks(t *testing.T) {
	doc := "<!-- TITLE_PAGE_START -->\n# Report Title\n<!-- TITLE_PAGE_END -->\n\n# Real Heading\n\n```\n# not a heading\n```\n"
	got := NumberHeadings(doc)
	if strings.Contains(got, "1. Report Title") {
		t.Error("title page heading should not be numbered")
	}
	if !strings.Contains(got, "# 1. Real Heading") {
		t.Errorf("real heading not numbered: %q", got)
	}
	if strings.Contains(got, "1. not a heading") {
		t.Error("heading-like text inside a fenced block should not be numbered")
	}
}

func TestBuildTOCSkipsTitlePageAndFences(t *testing.T) {
	doc := "<!-- TITLE_PAGE_START -->\n# Cover\n<!-- TITLE_PAGE_END -->\n\n# Chapter One\n\n```\n# fake\n```\n"
	entries := BuildTOC(doc)
	if len(entries) != 1 || entries[0].Text != "Chapter One" {
		t.Fatalf("entries = %+v, want exactly [Chapter One]", entries)
	}
}

func TestRenderTOCNestsByLevel(t *testing.T) {
	entries := []TOCEntry{{Level: 1, Text: "Intro", Slug: "intro"}, {Level: 2, Text: "Sub", Slug: "sub"}}
	out := RenderTOC(entries)
	if !strings.Contains(out, "- [Intro](#intro)") {
		t.Errorf("missing top-level entry: %q", out)
	}
	if !strings.Contains(out, "  - [Sub](#sub)") {
		t.Errorf("missing indented sub-entry: %q", out)
	}
}

func TestInsertTOCAfterTitlePage(t *testing.T) {
	doc := "<!-- TITLE_PAGE_START -->\ncover\n<!-- TITLE_PAGE_END -->\n\nbody"
	got := InsertTOCAfterTitlePage(doc, "## Table of Contents")
	titleIdx := strings.Index(got, "TITLE_PAGE_END")
	tocIdx := strings.Index(got, "Table of Contents")
	bodyIdx := strings.Index(got, "body")
	if !(titleIdx < tocIdx && tocIdx < bodyIdx) {
		t.Errorf("expected TOC between title page and body, got order in: %q", got)
	}
}

func TestInsertTOCAtTopWithNoTitlePage(t *testing.T) {
	got := InsertTOCAfterTitlePage("body only", "TOC")
	if !strings.HasPrefix(got, "TOC") {
		t.Errorf("expected TOC prepended, got %q", got)
	}
}

func TestSlugify(t *testing.T) {
	if got := Slugify("Hello, World!"); got != "hello-world" {
		t.Errorf("Slugify = %q, want hello-world", got)
	}
}

func TestAssembleRunsFullPipeline(t *testing.T) {
	doc := "<!-- TITLE_PAGE_START -->\n# Report\n<!-- TITLE_PAGE_END -->\n\n# Intro\n\n```plantuml\n' diagram_id: arch\n@startuml\nA -> B\n@enduml\n```\n"
	results := []model.DiagramResult{{DiagramID: "arch", RelativePath: "diagrams/arch.png", AltText: "Arch"}}
	out := Assemble(doc, results)
	if !strings.Contains(out, "![Arch](diagrams/arch.png)") {
		t.Error("diagram substitution missing from assembled doc")
	}
	if !strings.Contains(out, "Table of Contents") {
		t.Error("TOC missing from assembled doc")
	}
	if !strings.Contains(out, "# 1. Intro") {
		t.Error("heading numbering missing from assembled doc")
	}
}
