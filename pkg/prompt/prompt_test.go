package prompt

import (
	"strings"
	"testing"
)

func TestSystemPromptStructure(t *testing.T) {
	for _, want := range []string{
		"### 1. Understanding",
		"### 2. Concerns & Uncertainties",
		"### 3. Analysis",
		"### 4. Work Plan",
		"### 5. Definition of Ready Checklist",
		"[BE/FE/INFRA/DB/QA/DOCS/GEN]",
		"[DATA MISSING: description]",
		"**No Hallucination:**",
		"**Template Compliance:**",
	} {
		if !strings.Contains(SystemPrompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestBuildUserPrompt(t *testing.T) {
	out := BuildUserPrompt("# Task Context: PROJ-1\n\nstuff")

	if !strings.Contains(out, "# Task Context: PROJ-1") {
		t.Error("user prompt must embed the rendered context")
	}
	if !strings.Contains(out, "## Your Task") {
		t.Error("user prompt missing the task instruction")
	}
}

func TestBuildRepairPrompt(t *testing.T) {
	out := BuildRepairPrompt(
		[]string{"Step 2: missing **Layer:** field", "Step 3: vague acceptance criteria"},
		"- [ ] **Step 1:** Do things",
	)

	if !strings.Contains(out, "- Step 2: missing **Layer:** field") {
		t.Error("repair prompt must list the validation errors")
	}
	if !strings.Contains(out, "- [ ] **Step 1:** Do things") {
		t.Error("repair prompt must carry the invalid section")
	}
	if !strings.Contains(out, `return ONLY the corrected "### 4. Work Plan" section`) {
		t.Error("repair prompt must restrict the reply to the plan section")
	}
}

func TestBuildRepairPromptTruncates(t *testing.T) {
	long := strings.Repeat("x", maxRepairPlanLen+100)
	out := BuildRepairPrompt([]string{"too long"}, long)

	if !strings.Contains(out, "[... truncated ...]") {
		t.Error("oversized plans must be truncated")
	}
	if strings.Contains(out, strings.Repeat("x", maxRepairPlanLen+1)) {
		t.Error("truncation did not shorten the plan")
	}
}
