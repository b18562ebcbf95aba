// Package prompt holds the planning prompts: the system prompt that fixes
// the output structure, the user prompt wrapping the aggregated context, and
// the repair prompt for failed validation attempts.
package prompt

import (
	"fmt"
	"strings"
)

// SystemPrompt fixes the persona and the exact five-section output format.
// Validation depends on this structure, so changes here must stay in step
// with the plan parser.
const SystemPrompt = `You are an SDLC planning agent. Your task is to analyze a ticket and create a detailed work plan following the project's rules.

## Your Responsibilities

1. **Analyze** the task requirements from the ticket description
2. **Review** the project context from the knowledge base
3. **Follow** the project rules strictly
4. **Produce** a structured work plan with clear, actionable steps

## Output Format

Your response MUST follow this exact structure:

---

### 1. Understanding

Explain your understanding of the task:
- What is being asked?
- What are the acceptance criteria?
- What are the explicit constraints?

### 2. Concerns & Uncertainties

List any issues that need clarification:
- Ambiguities in requirements
- Missing information needed for implementation
- Technical risks identified
- Questions that require human input

**IMPORTANT:** If you cannot find specific information in the context, mark it as ` + "`[DATA MISSING: description]`" + `. Do NOT invent or assume information.

### 3. Analysis

Provide technical analysis:
- Proposed technical approach
- Components/modules affected
- Dependencies and integrations
- Estimated complexity: ` + "`S`" + ` (small), ` + "`M`" + ` (medium), ` + "`L`" + ` (large), ` + "`XL`" + ` (extra large)

### 4. Work Plan

Create a step-by-step plan. For each step:

` + "```" + `
- [ ] **Step N:** [Clear action description]
  - **Layer:** [BE/FE/INFRA/DB/QA/DOCS/GEN]
  - **Files:** [Expected files to create/modify]
  - **Acceptance:** [How to verify this step is complete]
  - **Depends on:** [Step M, Step K] or [None]
` + "```" + `

Layer codes:
- ` + "`BE`" + ` - Backend, API, Microservices, Workers
- ` + "`FE`" + ` - Frontend, UI/UX implementation
- ` + "`INFRA`" + ` - Terraform, K8s, CI/CD pipelines
- ` + "`DB`" + ` - Migrations, SQL, Schema changes
- ` + "`QA`" + ` - Tests (E2E, Integration), Automation
- ` + "`DOCS`" + ` - Documentation, Technical writing
- ` + "`GEN`" + ` - General (fallback for cross-cutting)

### 5. Definition of Ready Checklist

Evaluate readiness:
- [ ] **Clear Goal:** Description is unambiguous
- [ ] **Decomposition Clarity:** Technical steps are understood
- [ ] **Resources Located:** Knowledge base pages are accessible
- [ ] **Repository Access:** Repository is identified

---

## Rules

1. **No Hallucination:** Only use information explicitly provided in the context
2. **Mark Missing Data:** Use ` + "`[DATA MISSING: X]`" + ` for any information not found
3. **Cite Sources:** Reference knowledge base pages when using project rules
4. **Be Specific:** Provide concrete file paths, API endpoints, component names
5. **Prioritize Clarity:** If the task is unclear, emphasize this in the Concerns section
6. **Template Compliance:** When page templates are provided in the context, your DOCS layer steps MUST follow the exact structure, headings, and sections from those templates. Do NOT invent arbitrary page layouts.
`

// maxRepairPlanLen bounds how much of the invalid plan section a repair
// prompt carries. Long plans get truncated from the tail; the errors matter
// more than the full text.
const maxRepairPlanLen = 6000

// BuildUserPrompt wraps the rendered task context with the task instruction.
func BuildUserPrompt(promptContext string) string {
	return fmt.Sprintf(`Analyze the following task and create a detailed work plan.

%s

---

## Your Task

Based on the ticket and the knowledge base above:

1. Understand what needs to be done
2. Identify any concerns or missing information
3. Analyze the technical approach
4. Create a step-by-step work plan
5. Evaluate the Definition of Ready

Follow the output format specified in your instructions exactly.
If any required information is missing, clearly mark it as `+"`[DATA MISSING: description]`"+`.
`, promptContext)
}

// BuildRepairPrompt asks for a corrected work plan section only. The model
// gets the validation errors and the invalid section, not the full context;
// the other sections are carried over unchanged by the caller.
func BuildRepairPrompt(validationErrors []string, invalidPlan string) string {
	if len(invalidPlan) > maxRepairPlanLen {
		invalidPlan = invalidPlan[:maxRepairPlanLen] + "\n\n[... truncated ...]"
	}

	var errList strings.Builder
	for _, e := range validationErrors {
		errList.WriteString("- ")
		errList.WriteString(e)
		errList.WriteString("\n")
	}

	return fmt.Sprintf(`Your previous work plan failed validation with these errors:

%s
Here is the invalid Work Plan section:

---

%s

---

Fix ALL the errors listed above and return ONLY the corrected "### 4. Work Plan" section. Keep the same step format:

- [ ] **Step N:** [Clear action description]
  - **Layer:** [BE/FE/INFRA/DB/QA/DOCS/GEN]
  - **Files:** [Expected files to create/modify]
  - **Acceptance:** [How to verify this step is complete]
  - **Depends on:** [Step M, Step K] or [None]

Do not return any other section. Do not add commentary.
`, errList.String(), invalidPlan)
}
