// Package plan parses, validates, and scores model-generated work plans.
package plan

import (
	"regexp"
	"strings"
)

// Sections is a model response split along its numbered headings. Raw always
// holds the full response; a heading the model omitted leaves its section
// empty.
type Sections struct {
	Raw string `json:"raw"`

	Understanding     string `json:"understanding"`
	Concerns          string `json:"concerns"`
	Analysis          string `json:"analysis"`
	WorkPlan          string `json:"work_plan"`
	DefinitionOfReady string `json:"definition_of_ready"`
}

// Matches "### N. Title" or "## N. Title" heading lines for N in 1..5.
var sectionHeading = regexp.MustCompile(`(?mi)^#{2,3}\s*([1-5])\.\s*[^\n]*$`)

// ParseSections splits a response into its five sections. Each section runs
// from the line after its heading to the next numbered heading (or the end).
// Duplicate heading numbers keep the first occurrence.
func ParseSections(raw string) Sections {
	s := Sections{Raw: raw}

	matches := sectionHeading.FindAllStringSubmatchIndex(raw, -1)
	starts := make(map[int]int)  // section number -> body start offset
	bodyEnd := make(map[int]int) // section number -> body end offset

	order := make([]int, 0, len(matches))
	for _, m := range matches {
		num := int(raw[m[2]]) - '0'
		if _, seen := starts[num]; seen {
			continue
		}
		// Body starts after the heading line's newline.
		start := m[1]
		if start < len(raw) && raw[start] == '\n' {
			start++
		}
		starts[num] = start
		if len(order) > 0 {
			bodyEnd[order[len(order)-1]] = m[0]
		}
		order = append(order, num)
	}
	if len(order) > 0 {
		bodyEnd[order[len(order)-1]] = len(raw)
	}

	section := func(num int) string {
		start, ok := starts[num]
		if !ok {
			return ""
		}
		return strings.TrimSpace(raw[start:bodyEnd[num]])
	}

	s.Understanding = section(1)
	s.Concerns = section(2)
	s.Analysis = section(3)
	s.WorkPlan = section(4)
	s.DefinitionOfReady = section(5)

	return s
}

// ExtractWorkPlan pulls the work plan out of a repair reply. Repair replies
// should contain only the plan section, with or without its heading; a reply
// without any numbered heading is taken whole.
func ExtractWorkPlan(raw string) string {
	parsed := ParseSections(raw)
	if parsed.WorkPlan != "" {
		return parsed.WorkPlan
	}
	return strings.TrimSpace(raw)
}
