package render

import (
	"regexp"
	"strings"

	"github.com/construo/construo-server/internal/models"
	"github.com/construo/construo-server/internal/template"
)

// DefaultEventLabel is substituted for {Event Name} when a participant has
// no registered events.
const DefaultEventLabel = "CONSTRUO 2026"

// fallbackName is substituted for {Participant Name} when the participant's
// name is empty. It also seeds the output filename in that case.
const fallbackName = "Participant"

// Placeholder tokens are matched case-insensitively, every occurrence.
var (
	tokenParticipant = regexp.MustCompile(`(?i)\{participant name\}`)
	tokenEvent       = regexp.MustCompile(`(?i)\{event name\}`)
	tokenCollege     = regexp.MustCompile(`(?i)\{college name\}`)
)

// substitutions resolves the three placeholder values for one participant.
func substitutions(p *models.ParticipantRecord, eventLabel string) (name, events, college string) {
	name = strings.TrimSpace(p.FullName)
	if name == "" {
		name = fallbackName
	}
	if len(p.Events) > 0 {
		events = strings.Join(p.Events, ", ")
	} else {
		events = eventLabel
	}
	return name, events, p.College
}

// Substitute resolves every placeholder token in s for participant p. An
// element may contain multiple distinct placeholders; all are resolved in
// one pass over the text. Values are inserted literally: a $ in a name must
// not be interpreted as a capture-group reference.
func Substitute(s string, p *models.ParticipantRecord, eventLabel string) string {
	name, events, college := substitutions(p, eventLabel)
	s = replaceLiteral(tokenParticipant, s, name)
	s = replaceLiteral(tokenEvent, s, events)
	s = replaceLiteral(tokenCollege, s, college)
	return s
}

func replaceLiteral(re *regexp.Regexp, s, value string) string {
	return re.ReplaceAllStringFunc(s, func(string) string { return value })
}

// substituteDocument rewrites the text of every text element in doc for
// participant p. doc must be a per-participant copy; it is mutated in place.
func substituteDocument(doc *template.Document, p *models.ParticipantRecord, eventLabel string) {
	for i := range doc.Objects {
		e := &doc.Objects[i]
		if e.Kind != template.KindText || e.Text == "" {
			continue
		}
		e.Text = Substitute(e.Text, p, eventLabel)
	}
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Filename derives the output filename for a participant: the display name
// with every non-alphanumeric run collapsed to an underscore.
func Filename(p *models.ParticipantRecord) string {
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		name = fallbackName
	}
	name = strings.Trim(nonAlnum.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = fallbackName
	}
	return name + ".pdf"
}
