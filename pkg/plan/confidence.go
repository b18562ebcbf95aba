package plan

import (
	"math"
	"strings"
)

// DefaultConfidenceThreshold is the score under which a story is flagged for
// extra review.
const DefaultConfidenceThreshold = 0.7

// Signals carries the context cross-references confidence scoring uses.
// Everything is optional; absent signals cost points or grant partial
// credit, they never fail the scorer.
type Signals struct {
	// RepoAvailable: repository context was retrieved.
	RepoAvailable bool
	// RepoTree is the repository file listing, used to cross-check declared
	// files.
	RepoTree string
	// DocsPresent: at least one mandatory or discovered document was in the
	// generation context.
	DocsPresent bool
}

// ScoreStory scores one story 0.0 to 1.0 from heuristic signals, returning
// the score and the deduction reasons. No model call involved.
//
// Breakdown (max 1.0): non-empty files +0.2; specific acceptance +0.2;
// layer other than GEN +0.1; files match the repository tree +0.2 (+0.1
// partial credit when no repository signal exists); documentation present
// +0.15; specific title +0.15.
func ScoreStory(story *Story, signals Signals) (float64, []string) {
	score := 0.0
	var flags []string

	hasFiles := false
	for _, f := range story.Files {
		if strings.TrimSpace(f) != "" {
			hasFiles = true
			break
		}
	}
	if hasFiles {
		score += 0.2
	} else {
		flags = append(flags, "No files specified")
	}

	if strings.TrimSpace(story.Acceptance) != "" {
		if vaguePhrase(story.Acceptance) != "" {
			flags = append(flags, "Vague acceptance criteria")
		} else {
			score += 0.2
		}
	} else {
		flags = append(flags, "No acceptance criteria")
	}

	if story.Layer != "GEN" {
		score += 0.1
	} else {
		flags = append(flags, "Generic layer (GEN)")
	}

	if signals.RepoAvailable {
		if hasFiles && signals.RepoTree != "" {
			matched := false
			for _, path := range story.Files {
				base := strings.TrimSpace(path)
				if idx := strings.LastIndex(base, "/"); idx >= 0 {
					base = base[idx+1:]
				}
				if base != "" && strings.Contains(signals.RepoTree, base) {
					matched = true
					break
				}
			}
			if matched {
				score += 0.2
			} else {
				flags = append(flags, "Files not found in repository tree")
			}
		} else {
			flags = append(flags, "Cannot verify files against repository")
		}
	} else {
		score += 0.1
		flags = append(flags, "No repository context available (partial credit)")
	}

	if signals.DocsPresent {
		score += 0.15
	} else {
		flags = append(flags, "No documentation available")
	}

	titleWords := significantWords(story.Title)
	switch {
	case len(titleWords) > 5:
		score += 0.15
	case len(titleWords) > 3:
		score += 0.08
		flags = append(flags, "Title could be more specific")
	default:
		flags = append(flags, "Title is too generic")
	}

	score = math.Round(score*100) / 100
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}

	return score, flags
}

// ScoreOverall is the unweighted mean of story confidences, rounded to two
// decimals. No stories scores zero.
func ScoreOverall(stories []Story) float64 {
	if len(stories) == 0 {
		return 0.0
	}
	total := 0.0
	for _, s := range stories {
		total += s.Confidence
	}
	return math.Round(total/float64(len(stories))*100) / 100
}

// FlagLowConfidence returns the order numbers of stories scoring under the
// threshold.
func FlagLowConfidence(stories []Story, threshold float64) []int {
	var low []int
	for _, s := range stories {
		if s.Confidence < threshold {
			low = append(low, s.Order)
		}
	}
	return low
}
