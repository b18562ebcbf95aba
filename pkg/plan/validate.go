package plan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Layer codes a work plan step may carry.
var ValidLayers = map[string]bool{
	"BE": true, "FE": true, "INFRA": true, "DB": true,
	"QA": true, "DOCS": true, "GEN": true,
}

// Validation thresholds.
const (
	MinWorkPlanLength  = 50
	MaxReasonableSteps = 15

	// duplicateOverlapRatio is the significant-word overlap above which two
	// step titles are flagged as duplicates.
	duplicateOverlapRatio = 0.6
)

// vaguePhrases are acceptance criteria that assert nothing verifiable.
var vaguePhrases = []string{
	"works correctly",
	"as expected",
	"should work properly",
	"functions properly",
	"operates normally",
}

// placeholderValues are field values that defer the answer.
var placeholderValues = map[string]bool{
	"tbd": true, "n/a": true, "todo": true, "none yet": true,
}

var (
	stepHeaderPattern = regexp.MustCompile(`(?i)-\s*\[\s*\]\s*\*\*Step\s+(\d+):\*\*`)
	layerTagPattern   = regexp.MustCompile(`(?i)\*\*Layer:\*\*\s*\[?(\w+)\]?`)
	filesTagPattern   = regexp.MustCompile(`(?i)\*\*Files:\*\*`)
	acceptTagPattern  = regexp.MustCompile(`(?i)\*\*Acceptance:\*\*`)

	wordPattern = regexp.MustCompile(`\w+`)
)

// stopwords excluded from significant-word comparisons.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"for": true, "to": true, "in": true, "of": true, "with": true,
	"on": true, "is": true, "are": true,
}

// Result is the outcome of validating the work plan section.
type Result struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	SectionName string   `json:"section_name"`

	StepsFound  int `json:"steps_found"`
	LayersFound int `json:"layers_found"`
}

func (r *Result) addError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateWorkPlan checks the work plan section against all rule groups:
// structure, field completeness, acceptance quality, duplicate titles, and
// dependency validity. The plan is valid iff no rule produced an error.
func ValidateWorkPlan(workPlan string) *Result {
	result := &Result{Valid: true, SectionName: "Work Plan"}

	trimmed := strings.TrimSpace(workPlan)
	if trimmed == "" {
		result.addError("Work Plan section is empty")
		return result
	}
	if len(trimmed) < MinWorkPlanLength {
		result.addError("Work Plan is too short (%d chars, minimum %d)", len(trimmed), MinWorkPlanLength)
		return result
	}

	steps := stepBlocks(workPlan)
	result.StepsFound = len(steps)
	if len(steps) == 0 {
		result.addError("No steps found (expected format: '- [ ] **Step N:** description')")
		return result
	}

	validateStructure(workPlan, steps, result)
	validateFields(steps, result)
	validateAcceptance(steps, result)
	validateDuplicates(steps, result)
	validateDependencies(steps, result)

	return result
}

// validateStructure covers layer tags, step counts, and numbering.
func validateStructure(workPlan string, steps []stepBlock, result *Result) {
	layers := layerTagPattern.FindAllStringSubmatch(workPlan, -1)
	result.LayersFound = len(layers)

	if len(layers) < len(steps) {
		missing := len(steps) - len(layers)
		result.addError("Missing Layer tags: found %d layers for %d steps (%d missing)",
			len(layers), len(steps), missing)
	}

	var invalid []string
	for _, m := range layers {
		if !ValidLayers[strings.ToUpper(m[1])] {
			invalid = append(invalid, m[1])
		}
	}
	if len(invalid) > 0 {
		valid := make([]string, 0, len(ValidLayers))
		for l := range ValidLayers {
			valid = append(valid, l)
		}
		sort.Strings(valid)
		result.addWarning("Invalid layer values: %v. Valid layers: %s", invalid, strings.Join(valid, ", "))
	}

	if len(steps) > MaxReasonableSteps {
		result.addWarning("Large number of steps (%d, threshold %d). Consider if the task should be broken into smaller features.",
			len(steps), MaxReasonableSteps)
	}

	sequential := true
	for i, step := range steps {
		if step.num != i+1 {
			sequential = false
			break
		}
	}
	if !sequential {
		nums := make([]int, len(steps))
		for i, step := range steps {
			nums[i] = step.num
		}
		result.addWarning("Step numbers not sequential: got %v, expected 1..%d", nums, len(steps))
	}
}

// validateFields requires Files and Acceptance tags on every step.
func validateFields(steps []stepBlock, result *Result) {
	for _, step := range steps {
		if !filesTagPattern.MatchString(step.content) {
			result.addError("Step %d: missing **Files:** field", step.num)
		} else if placeholderValues[strings.ToLower(extractFieldValue(step.content, "Files"))] {
			result.addWarning("Step %d: Files field is a placeholder", step.num)
		}

		if !acceptTagPattern.MatchString(step.content) {
			result.addError("Step %d: missing **Acceptance:** field", step.num)
		} else if placeholderValues[strings.ToLower(extractFieldValue(step.content, "Acceptance"))] {
			result.addWarning("Step %d: Acceptance field is a placeholder", step.num)
		}
	}
}

// validateAcceptance rejects vague acceptance criteria.
func validateAcceptance(steps []stepBlock, result *Result) {
	for _, step := range steps {
		acceptance := extractFieldValue(step.content, "Acceptance")
		if acceptance == "" {
			continue
		}
		if phrase := vaguePhrase(acceptance); phrase != "" {
			result.addError("Step %d: vague acceptance criteria (%q). Provide verifiable criteria instead.",
				step.num, phrase)
		}
	}
}

// validateDuplicates flags step title pairs whose significant words mostly
// overlap.
func validateDuplicates(steps []stepBlock, result *Result) {
	titles := make([]map[string]bool, len(steps))
	for i, step := range steps {
		titles[i] = significantWords(stepTitle(step.content))
	}

	for i := 0; i < len(steps); i++ {
		for j := i + 1; j < len(steps); j++ {
			a, b := titles[i], titles[j]
			smaller := len(a)
			if len(b) < smaller {
				smaller = len(b)
			}
			if smaller == 0 {
				continue
			}
			overlap := 0
			for w := range a {
				if b[w] {
					overlap++
				}
			}
			if float64(overlap)/float64(smaller) > duplicateOverlapRatio {
				result.addWarning("Steps %d and %d have near-duplicate titles", steps[i].num, steps[j].num)
			}
		}
	}
}

// validateDependencies requires referenced steps to exist and not self-refer,
// and warns on dependency cycles.
func validateDependencies(steps []stepBlock, result *Result) {
	known := make(map[int]bool, len(steps))
	for _, step := range steps {
		known[step.num] = true
	}

	deps := make(map[int][]int, len(steps))
	for _, step := range steps {
		refs := dependsOn(step.content)
		deps[step.num] = refs
		for _, ref := range refs {
			if ref == step.num {
				result.addError("Step %d depends on itself", step.num)
			} else if !known[ref] {
				result.addError("Step %d depends on Step %d, which does not exist", step.num, ref)
			}
		}
	}

	if cycle := findCycle(deps); len(cycle) > 0 {
		parts := make([]string, len(cycle))
		for i, n := range cycle {
			parts[i] = fmt.Sprintf("Step %d", n)
		}
		result.addWarning("Dependency cycle detected: %s", strings.Join(parts, " -> "))
	}
}

// findCycle runs a DFS over the dependency graph and returns the first cycle
// found, or nil.
func findCycle(deps map[int][]int) []int {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[int]int, len(deps))

	nodes := make([]int, 0, len(deps))
	for n := range deps {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)

	var stack []int
	var visit func(n int) []int
	visit = func(n int) []int {
		state[n] = inStack
		stack = append(stack, n)
		for _, next := range deps[n] {
			switch state[next] {
			case inStack:
				// Slice the stack from the cycle entry point.
				for i, s := range stack {
					if s == next {
						return append(append([]int{}, stack[i:]...), next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	for _, n := range nodes {
		if state[n] == unvisited {
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// vaguePhrase returns the first vague phrase found in the text, or "".
func vaguePhrase(text string) string {
	lower := strings.ToLower(text)
	for _, phrase := range vaguePhrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}

// significantWords returns the lowercased word set of the text, stopwords
// removed.
func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if !stopwords[w] {
			words[w] = true
		}
	}
	return words
}
