// Package docgraph implements the outline dependency-graph operations
// (spec.md §4.10): validation and deterministic topological ordering of a
// plan's sections, grounded on the teacher's validateDAG Kahn-sort
// (internal/jobs/orchestrator/dag.go), generalized from a fixed stage list
// to the plan's Section.Dependencies edges and with an explicit tie-break
// key instead of relying on input order alone.
package docgraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/azure-way/aidocwriter/internal/plan"
)

// ErrCycle is returned by TopoSort when the dependency graph is not a DAG.
type ErrCycle struct {
	Remaining []string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("docgraph: cycle detected among sections %v", e.Remaining)
}

// Validate checks every Dependencies entry names a real section and that no
// section depends on itself.
func Validate(p *plan.Plan) error {
	byID := p.SectionByID()
	for _, s := range p.Outline {
		for _, dep := range s.Dependencies {
			if dep == s.ID {
				return fmt.Errorf("docgraph: section %q depends on itself", s.ID)
			}
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("docgraph: section %q depends on unknown section %q", s.ID, dep)
			}
		}
	}
	return nil
}

// TopoSort returns the outline's sections in a deterministic dependency
// order: Kahn's algorithm, breaking ties with OrderKey so the same plan
// always yields the same write order regardless of map iteration or queue
// redelivery order (spec.md §8 P3 "topological correctness is deterministic").
func TopoSort(p *plan.Plan) ([]string, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	indegree := map[string]int{}
	children := map[string][]string{}
	for _, s := range p.Outline {
		if _, ok := indegree[s.ID]; !ok {
			indegree[s.ID] = 0
		}
		for _, dep := range s.Dependencies {
			indegree[s.ID]++
			children[dep] = append(children[dep], s.ID)
		}
	}

	var ready []string
	queued := map[string]bool{}
	for _, s := range p.Outline {
		if indegree[s.ID] == 0 && !queued[s.ID] {
			ready = append(ready, s.ID)
			queued[s.ID] = true
		}
	}
	sortByKey(ready)

	order := make([]string, 0, len(p.Outline))
	for len(ready) > 0 {
		sortByKey(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, child := range children[next] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(indegree) {
		remaining := make([]string, 0)
		for id, deg := range indegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sortByKey(remaining)
		return nil, &ErrCycle{Remaining: remaining}
	}
	return order, nil
}

func sortByKey(ids []string) {
	// Simple insertion sort: these lists are small (section counts per doc)
	// and OrderKey comparisons aren't cheap enough to warrant importing
	// sort.Slice's indirection for what is, in practice, a handful of ids.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && lessKey(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func lessKey(a, b string) bool {
	ka, kb := OrderKey(a), OrderKey(b)
	n := len(ka)
	if len(kb) < n {
		n = len(kb)
	}
	for i := 0; i < n; i++ {
		if ka[i].isNum != kb[i].isNum {
			// Numeric runs sort before non-numeric runs at the same position.
			return ka[i].isNum
		}
		if ka[i].isNum {
			if ka[i].num != kb[i].num {
				return ka[i].num < kb[i].num
			}
		} else if ka[i].text != kb[i].text {
			return ka[i].text < kb[i].text
		}
	}
	return len(ka) < len(kb)
}

type keyPart struct {
	isNum bool
	num   int64
	text  string
}

// OrderKey splits an id into alternating numeric/non-numeric runs so
// "section_2" sorts before "section_10" instead of after it, matching the
// deterministic ordering spec.md §4.10 requires of tie-broken topo sort.
func OrderKey(id string) []keyPart {
	var parts []keyPart
	var cur strings.Builder
	curIsNum := false
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		s := cur.String()
		if curIsNum {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				parts = append(parts, keyPart{isNum: false, text: s})
			} else {
				parts = append(parts, keyPart{isNum: true, num: n})
			}
		} else {
			parts = append(parts, keyPart{isNum: false, text: s})
		}
		cur.Reset()
	}
	for _, r := range id {
		isNum := r >= '0' && r <= '9'
		if cur.Len() > 0 && isNum != curIsNum {
			flush()
		}
		curIsNum = isNum
		cur.WriteRune(r)
	}
	flush()
	return parts
}
