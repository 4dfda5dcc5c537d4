// Package forms recovers participant identity fields from the dynamic
// registration form, whose field labels are admin-defined free text.
package forms

import (
	"strings"

	"github.com/construo/construo-server/internal/models"
)

// probe is one identity slot and the label substring that selects it.
// Probes run in a fixed order against unclaimed fields: the first field
// whose lowercase label contains the substring wins the slot. More specific
// probes run before "name" so labels like "College Name" or "Email Address"
// do not capture the name slot.
type probe struct {
	substr string
	assign func(*models.ParticipantRecord, string)
}

var probes = []probe{
	{"email", func(p *models.ParticipantRecord, v string) { p.Email = v }},
	{"phone", func(p *models.ParticipantRecord, v string) { p.Phone = v }},
	{"college", func(p *models.ParticipantRecord, v string) { p.College = v }},
	{"year", func(p *models.ParticipantRecord, v string) { p.Year = v }},
	{"department", func(p *models.ParticipantRecord, v string) { p.Department = v }},
	{"branch", func(p *models.ParticipantRecord, v string) {
		if p.Department == "" {
			p.Department = v
		}
	}},
	{"name", func(p *models.ParticipantRecord, v string) { p.FullName = v }},
}

// Participant maps a registration's form fields onto a ParticipantRecord.
// Missing fields leave their slots empty; consumers apply their own
// defaults. This is heuristic label matching, kept behavior-compatible with
// the admin forms that produce the data.
func Participant(reg *models.Registration) models.ParticipantRecord {
	p := models.ParticipantRecord{}
	if reg == nil {
		return p
	}
	p.ID = reg.ID
	if reg.Events != nil {
		p.Events = append([]string(nil), reg.Events...)
	}

	claimed := make([]bool, len(reg.Fields))
	for _, pr := range probes {
		for i, f := range reg.Fields {
			if claimed[i] {
				continue
			}
			if strings.Contains(strings.ToLower(f.Label), pr.substr) {
				pr.assign(&p, strings.TrimSpace(f.Value))
				claimed[i] = true
				break
			}
		}
	}
	return p
}

// Participants maps a slice of registrations in order.
func Participants(regs []models.Registration) []models.ParticipantRecord {
	out := make([]models.ParticipantRecord, 0, len(regs))
	for i := range regs {
		out = append(out, Participant(&regs[i]))
	}
	return out
}
