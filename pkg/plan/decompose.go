package plan

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Story is one extracted work plan step.
type Story struct {
	Order       int      `json:"order"`
	Layer       string   `json:"layer"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Acceptance  string   `json:"acceptance"`
	Files       []string `json:"files"`
	DependsOn   []int    `json:"depends_on"`

	Confidence      float64  `json:"confidence"`
	ConfidenceFlags []string `json:"confidence_flags"`
}

// Question is one clarification item extracted from the concerns section.
type Question struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

// Decomposition is the structured form of a validated response: ordered
// stories with confidence scores, open questions, and analysis extracts.
type Decomposition struct {
	Stories   []Story    `json:"stories"`
	Questions []Question `json:"questions"`

	Complexity   string `json:"complexity"`
	Alternatives string `json:"alternatives"`

	OverallConfidence float64 `json:"overall_confidence"`
	LowConfidence     []int   `json:"low_confidence"`
}

// stepBlock is one raw step: its number and everything up to the next step
// header.
type stepBlock struct {
	num     int
	content string
}

var (
	fieldPatterns = map[string]*regexp.Regexp{
		"Layer":      regexp.MustCompile(`(?i)\*\*Layer:\*\*\s*\[?(\w+)\]?`),
		"Files":      regexp.MustCompile(`(?is)\*\*Files:\*\*\s*(.*?)(?:\n\s*-\s*\*\*|\n\n|\z)`),
		"Acceptance": regexp.MustCompile(`(?is)\*\*Acceptance:\*\*\s*(.*?)(?:\n\s*-\s*\*\*|\n\n|\z)`),
		"Depends on": regexp.MustCompile(`(?is)\*\*Depends on:\*\*\s*(.*?)(?:\n\s*-\s*\*\*|\n\n|\z)`),
	}

	stepRefPattern    = regexp.MustCompile(`(?i)Step\s+(\d+)`)
	fileSplitPattern  = regexp.MustCompile(`[,\n]`)
	inlineMetaPattern = regexp.MustCompile(`(?i)\s*-\s*\*\*Layer.*$`)
	complexityPattern = regexp.MustCompile("(?i)complexity[:\\s]*`?([SMLX]{1,2})`?")
	complexityParen   = regexp.MustCompile(`(?i)\(([SMLX]{1,2})\)`)

	alternativePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)alternatives?[:\s]+(.+?)(?:\n\n|\z)`),
		regexp.MustCompile(`(?is)options?\s+considered[:\s]+(.+?)(?:\n\n|\z)`),
		regexp.MustCompile(`(?is)(?:other|discarded)\s+approach(?:es)?[:\s]+(.+?)(?:\n\n|\z)`),
	}

	dataMissingPattern = regexp.MustCompile(`(?i)\[DATA MISSING:\s*([^\]]+)\]`)
	bulletQuestion     = regexp.MustCompile(`(?m)^[ \t]*[-*]\s*(.+\?)\s*$`)
)

// stepBlocks splits a work plan into step blocks by step header positions.
func stepBlocks(workPlan string) []stepBlock {
	matches := stepHeaderPattern.FindAllStringSubmatchIndex(workPlan, -1)
	blocks := make([]stepBlock, 0, len(matches))

	for i, m := range matches {
		num, _ := strconv.Atoi(workPlan[m[2]:m[3]])
		end := len(workPlan)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		blocks = append(blocks, stepBlock{
			num:     num,
			content: strings.TrimSpace(workPlan[m[1]:end]),
		})
	}

	return blocks
}

// extractFieldValue returns a field's trimmed value within a step block, or
// "" when the tag is absent.
func extractFieldValue(content, field string) string {
	re, ok := fieldPatterns[field]
	if !ok {
		return ""
	}
	m := re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// stepTitle is the first line of a step block, inline metadata stripped.
func stepTitle(content string) string {
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(inlineMetaPattern.ReplaceAllString(line, ""))
}

// fieldBulletLine matches the metadata bullets of a step block.
var fieldBulletLine = regexp.MustCompile(`(?i)^\s*-\s*\*\*(?:Layer|Files|Acceptance|Depends on):\*\*`)

// stepDescription is the step content with its metadata bullets removed.
func stepDescription(content string) string {
	var kept []string
	skipping := false
	for _, line := range strings.Split(content, "\n") {
		if fieldBulletLine.MatchString(line) {
			skipping = true
			continue
		}
		// Continuation lines of a metadata bullet stay dropped until the
		// next top-level line.
		if skipping && (strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")) {
			continue
		}
		skipping = false
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// dependsOn parses the Depends on field into step numbers. "None", "N/A",
// and "-" mean no dependencies.
func dependsOn(content string) []int {
	value := extractFieldValue(content, "Depends on")
	switch strings.ToLower(value) {
	case "", "none", "n/a", "-", "[none]":
		return nil
	}

	var refs []int
	for _, m := range stepRefPattern.FindAllStringSubmatch(value, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			refs = append(refs, n)
		}
	}
	return refs
}

// ExtractStories parses the work plan into ordered stories. A step without
// a recognized layer defaults to GEN.
func ExtractStories(workPlan string) []Story {
	if workPlan == "" {
		return nil
	}

	var stories []Story
	for _, block := range stepBlocks(workPlan) {
		layer := strings.ToUpper(extractFieldValue(block.content, "Layer"))
		if !ValidLayers[layer] {
			layer = "GEN"
		}

		var files []string
		for _, f := range fileSplitPattern.Split(extractFieldValue(block.content, "Files"), -1) {
			f = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(f), "-"))
			if f == "" || strings.HasPrefix(f, "**") {
				continue
			}
			files = append(files, f)
		}

		stories = append(stories, Story{
			Order:       block.num,
			Layer:       layer,
			Title:       stepTitle(block.content),
			Description: stepDescription(block.content),
			Acceptance:  extractFieldValue(block.content, "Acceptance"),
			Files:       files,
			DependsOn:   dependsOn(block.content),
		})
	}

	sort.Slice(stories, func(i, j int) bool { return stories[i].Order < stories[j].Order })
	return stories
}

// ExtractQuestions pulls clarification questions from the concerns section:
// [DATA MISSING: ...] markers and bullet lines ending in a question mark.
func ExtractQuestions(concerns string) []Question {
	if concerns == "" {
		return nil
	}

	var questions []Question
	for _, m := range dataMissingPattern.FindAllStringSubmatch(concerns, -1) {
		item := strings.TrimSpace(m[1])
		questions = append(questions, Question{
			Question: "What is " + item + "?",
			Context:  "Data marked as missing: " + item,
		})
	}

	for _, m := range bulletQuestion.FindAllStringSubmatch(concerns, -1) {
		text := strings.TrimSpace(m[1])
		dup := false
		for _, q := range questions {
			if q.Question == text {
				dup = true
				break
			}
		}
		if !dup {
			questions = append(questions, Question{Question: text, Context: "From concerns section"})
		}
	}

	return questions
}

// ExtractComplexity finds the S/M/L/XL estimate in the analysis section,
// defaulting to M.
func ExtractComplexity(analysis string) string {
	if m := complexityPattern.FindStringSubmatch(analysis); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := complexityParen.FindStringSubmatch(analysis); m != nil {
		return strings.ToUpper(m[1])
	}
	return "M"
}

// ExtractAlternatives finds discussed-and-discarded approaches in the
// analysis section, or "".
func ExtractAlternatives(analysis string) string {
	for _, re := range alternativePatterns {
		if m := re.FindStringSubmatch(analysis); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// Decompose turns validated sections into a scored decomposition.
func Decompose(sections Sections, signals Signals) *Decomposition {
	stories := ExtractStories(sections.WorkPlan)
	for i := range stories {
		stories[i].Confidence, stories[i].ConfidenceFlags = ScoreStory(&stories[i], signals)
	}

	return &Decomposition{
		Stories:           stories,
		Questions:         ExtractQuestions(sections.Concerns),
		Complexity:        ExtractComplexity(sections.Analysis),
		Alternatives:      ExtractAlternatives(sections.Analysis),
		OverallConfidence: ScoreOverall(stories),
		LowConfidence:     FlagLowConfidence(stories, DefaultConfidenceThreshold),
	}
}
