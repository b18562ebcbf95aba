package tracker

import (
	"regexp"
	"strings"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

var (
	ticketKeyExact  = regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)
	ticketKeyInText = regexp.MustCompile(`[A-Z][A-Z0-9]*-\d+`)

	typeField     = regexp.MustCompile(`(?i)\*\*Type:\*\*\s*([^\n]+)`)
	statusField   = regexp.MustCompile(`(?i)\*\*Status:\*\*\s*([^\n]+)`)
	assigneeField = regexp.MustCompile(`(?i)\*\*Assignee:\*\*\s*([^\n]+)`)
	labelsField   = regexp.MustCompile(`(?i)\*\*Labels:\*\*\s*([^\n]+)`)
	folderField   = regexp.MustCompile(`(?i)\*\*Project Folder:\*\*\s*([^\n]+)`)
	locatorField  = regexp.MustCompile(`(?i)\*\*Project Link:\*\*\s*<?(\S+?)>?\s*(?:\n|$)`)
	projectField  = regexp.MustCompile(`\*\*Project:\*\*\s*(.+?)\s*\(([A-Z0-9]+)\)`)

	descriptionBlock = regexp.MustCompile(`(?s)## Description\s*\n(.*)`)

	createdMeta  = regexp.MustCompile(`(?i)-\s*Created:\s*([^\n]+)`)
	updatedMeta  = regexp.MustCompile(`(?i)-\s*Updated:\s*([^\n]+)`)
	parentMeta   = regexp.MustCompile(`(?i)-\s*Parent:\s*([^\n]+)`)
	subtasksMeta = regexp.MustCompile(`(?i)-\s*Subtasks:\s*([^\n]+)`)

	commentHeader = regexp.MustCompile(`^(.+?)\s*-\s*(\d{4}-\d{2}-\d{2}.*)$`)

	spaceLabel = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
)

// ParseTicketKey extracts a ticket key from user input, which may be a bare
// key or a browse URL.
func ParseTicketKey(input string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(input))

	if ticketKeyExact.MatchString(upper) {
		return upper, nil
	}
	if key := ticketKeyInText.FindString(upper); key != "" {
		return key, nil
	}

	return "", pferrors.Newf("could not parse ticket key from %q", input)
}

// parseTicket extracts ticket fields from the tool server's markdown reply.
// The reply headline is "# KEY: Summary" followed by bold field lines, a
// Description section, and a Metadata section.
func parseTicket(key, reply string) *Ticket {
	t := &Ticket{Key: key}

	headline := regexp.MustCompile(`(?m)^#\s*` + regexp.QuoteMeta(key) + `:\s*(.+)$`)
	if m := headline.FindStringSubmatch(reply); m != nil {
		t.Summary = strings.TrimSpace(m[1])
	}

	t.Type = matchField(typeField, reply)
	t.Status = matchField(statusField, reply)

	t.Assignee = matchField(assigneeField, reply)
	if strings.EqualFold(t.Assignee, "unassigned") {
		t.Assignee = ""
	}

	if m := projectField.FindStringSubmatch(reply); m != nil {
		t.ProjectName = strings.TrimSpace(m[1])
		t.ProjectKey = strings.TrimSpace(m[2])
	} else {
		t.ProjectKey, _, _ = strings.Cut(key, "-")
	}

	t.ProjectFolder = matchField(folderField, reply)
	if strings.EqualFold(t.ProjectFolder, "none") {
		t.ProjectFolder = ""
	}

	t.ProjectLocator = matchField(locatorField, reply)
	if strings.EqualFold(t.ProjectLocator, "none") {
		t.ProjectLocator = ""
	}

	t.Labels = splitListField(matchField(labelsField, reply))
	t.Description = extractDescription(reply)

	t.Created = matchField(createdMeta, reply)
	t.Updated = matchField(updatedMeta, reply)

	t.ParentKey = matchField(parentMeta, reply)
	if strings.EqualFold(t.ParentKey, "none") {
		t.ParentKey = ""
	}

	t.Subtasks = splitListField(matchField(subtasksMeta, reply))

	return t
}

// extractDescription returns the text between the Description and Metadata
// sections.
func extractDescription(reply string) string {
	m := descriptionBlock.FindStringSubmatch(reply)
	if m == nil {
		return ""
	}
	desc := m[1]
	if idx := strings.Index(desc, "\n## Metadata"); idx >= 0 {
		desc = desc[:idx]
	}
	return strings.TrimSpace(desc)
}

// parseComments extracts comments from the tool server's reply. Each comment
// starts with a "### Author - Timestamp" header.
func parseComments(reply string) []Comment {
	if !strings.Contains(reply, "Comments for") {
		return nil
	}

	var comments []Comment
	blocks := strings.Split(reply, "\n### ")
	for _, block := range blocks[1:] {
		header, body, _ := strings.Cut(strings.TrimSpace(block), "\n")
		m := commentHeader.FindStringSubmatch(header)
		if m == nil {
			continue
		}
		comments = append(comments, Comment{
			Author:  strings.TrimSpace(m[1]),
			Created: strings.TrimSpace(m[2]),
			Body:    strings.TrimSpace(body),
		})
	}

	return comments
}

// DeriveSpaceKey picks the documentation space for a ticket. A lowercase
// label naming a space wins over the project key; "AI" is the fallback.
func DeriveSpaceKey(t *Ticket) string {
	for _, label := range t.Labels {
		if spaceLabel.MatchString(strings.ToLower(label)) {
			return strings.ToUpper(label)
		}
	}
	if t.ProjectKey != "" {
		return t.ProjectKey
	}
	return "AI"
}

func matchField(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// splitListField splits a comma-separated field value, treating "None" as
// empty.
func splitListField(value string) []string {
	if value == "" || strings.EqualFold(value, "none") {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
