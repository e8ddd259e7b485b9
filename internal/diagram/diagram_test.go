package diagram

import (
	"strings"
	"testing"

	"github.com/azure-way/aidocwriter/internal/plan"
)

func TestExtractBlocksFindsFencedPlantUML(t *testing.T) {
	doc := "intro\n```plantuml\n@startuml\nA -> B\n@enduml\n```\nmore text"
	blocks := ExtractBlocks(doc)
	if len(blocks) != 1 {
		t.Fatalf("len = %d, want 1", len(blocks))
	}
	if !strings.Contains(blocks[0].Body, "@startuml") {
		t.Errorf("block body missing content: %q", blocks[0].Body)
	}
}

func TestExtractBlocksFindsStrayUMLNotAlreadyFenced(t *testing.T) {
	doc := "text before\n@startuml\nA -> B\n@enduml\nmore text"
	blocks := ExtractBlocks(doc)
	if len(blocks) != 1 {
		t.Fatalf("len = %d, want 1", len(blocks))
	}
}

func TestExtractBlocksDoesNotDoubleCountFencedStray(t *testing.T) {
	doc := "```plantuml\n@startuml\nA -> B\n@enduml\n```"
	blocks := ExtractBlocks(doc)
	if len(blocks) != 1 {
		t.Fatalf("len = %d, want exactly 1 (no stray double-count)", len(blocks))
	}
}

func TestExtractBlocksReadsIDComment(t *testing.T) {
	doc := "```plantuml\n' diagram_id: arch_overview\n@startuml\nA -> B\n@enduml\n```"
	blocks := ExtractBlocks(doc)
	if len(blocks) != 1 || blocks[0].RawID != "arch_overview" {
		t.Fatalf("blocks = %+v, want RawID=arch_overview", blocks)
	}
}

func TestAssignIDPrefersRawID(t *testing.T) {
	id := AssignID("explicit_id", &plan.Plan{}, map[string]bool{}, 1)
	if id != "explicit_id" {
		t.Errorf("AssignID = %q, want explicit_id", id)
	}
}

func TestAssignIDFallsBackToPlanSpec(t *testing.T) {
	p := &plan.Plan{DiagramSpecs: []plan.DiagramSpec{{ID: "spec_a"}}}
	id := AssignID("", p, map[string]bool{}, 1)
	if id != "spec_a" {
		t.Errorf("AssignID = %q, want spec_a", id)
	}
}

func TestAssignIDFallsBackToSynthetic(t *testing.T) {
	id := AssignID("", &plan.Plan{}, map[string]bool{}, 3)
	if id != "diagram_3" {
		t.Errorf("AssignID = %q, want diagram_3", id)
	}
}

func TestSanitizeStripsFencesAndIDComment(t *testing.T) {
	body := "```plantuml\n' diagram_id: x\n@startuml\nA -> B\n@enduml\n```"
	got := Sanitize(body)
	if strings.Contains(got, "```") {
		t.Error("fences not stripped")
	}
	if strings.Contains(got, "diagram_id") {
		t.Error("id comment not stripped")
	}
	if !strings.HasPrefix(got, "@startuml") || !strings.HasSuffix(got, "@enduml") {
		t.Errorf("Sanitize result = %q, want @startuml..@enduml bounds", got)
	}
}

func TestValidateRejectsMissingMarkers(t *testing.T) {
	err := Validate("A -> B")
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRejectsMermaidMarkers(t *testing.T) {
	err := Validate("@startuml\ngraph TD\n@enduml")
	if err == nil {
		t.Fatal("expected validation error for mermaid marker")
	}
}

func TestValidateAcceptsWellFormedBody(t *testing.T) {
	if err := Validate("@startuml\nA -> B\n@enduml"); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("arch overview!"); got != "arch_overview_" {
		t.Errorf("Slug = %q, want arch_overview_", got)
	}
	if got := Slug(""); got != "diagram" {
		t.Errorf("Slug(\"\") = %q, want diagram", got)
	}
}
