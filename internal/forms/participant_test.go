package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/construo/construo-server/internal/models"
)

func reg(fields ...models.FormField) *models.Registration {
	return &models.Registration{ID: "reg-1", Fields: fields}
}

func TestParticipant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		reg  *models.Registration
		want models.ParticipantRecord
	}{
		{
			name: "typical form",
			reg: reg(
				models.FormField{Label: "Full Name", Value: "Asha Rao"},
				models.FormField{Label: "Email Address", Value: "asha@example.com"},
				models.FormField{Label: "College Name", Value: "NIT Surathkal"},
				models.FormField{Label: "Phone Number", Value: "9876543210"},
			),
			want: models.ParticipantRecord{
				ID:       "reg-1",
				FullName: "Asha Rao",
				Email:    "asha@example.com",
				College:  "NIT Surathkal",
				Phone:    "9876543210",
			},
		},
		{
			name: "college name label does not claim the name slot",
			reg: reg(
				models.FormField{Label: "College Name", Value: "NIT Surathkal"},
				models.FormField{Label: "Name", Value: "Asha Rao"},
			),
			want: models.ParticipantRecord{
				ID:       "reg-1",
				FullName: "Asha Rao",
				College:  "NIT Surathkal",
			},
		},
		{
			name: "branch fills department when department absent",
			reg: reg(
				models.FormField{Label: "Branch", Value: "Civil"},
			),
			want: models.ParticipantRecord{ID: "reg-1", Department: "Civil"},
		},
		{
			name: "department wins over branch",
			reg: reg(
				models.FormField{Label: "Branch", Value: "Civil"},
				models.FormField{Label: "Department", Value: "Mechanical"},
			),
			want: models.ParticipantRecord{ID: "reg-1", Department: "Mechanical"},
		},
		{
			name: "labels matched case insensitively with trimmed values",
			reg: reg(
				models.FormField{Label: "YOUR NAME", Value: "  Asha Rao  "},
				models.FormField{Label: "year of study", Value: "3"},
			),
			want: models.ParticipantRecord{ID: "reg-1", FullName: "Asha Rao", Year: "3"},
		},
		{
			name: "unmatched labels leave slots empty",
			reg: reg(
				models.FormField{Label: "T-Shirt Size", Value: "M"},
			),
			want: models.ParticipantRecord{ID: "reg-1"},
		},
		{
			name: "first matching field claims the slot",
			reg: reg(
				models.FormField{Label: "Primary Email", Value: "first@example.com"},
				models.FormField{Label: "Backup Email", Value: "second@example.com"},
			),
			want: models.ParticipantRecord{ID: "reg-1", Email: "first@example.com"},
		},
		{
			name: "nil registration",
			reg:  nil,
			want: models.ParticipantRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Participant(tt.reg))
		})
	}
}

func TestParticipantCarriesEvents(t *testing.T) {
	t.Parallel()

	r := reg(models.FormField{Label: "Name", Value: "Asha Rao"})
	r.Events = []string{"Robotics", "Bridge Design"}

	p := Participant(r)
	assert.Equal(t, []string{"Robotics", "Bridge Design"}, p.Events)

	// The record holds its own copy.
	r.Events[0] = "changed"
	assert.Equal(t, "Robotics", p.Events[0])
}

func TestParticipantsPreservesOrder(t *testing.T) {
	t.Parallel()

	regs := []models.Registration{
		{ID: "a", Fields: []models.FormField{{Label: "Name", Value: "First"}}},
		{ID: "b", Fields: []models.FormField{{Label: "Name", Value: "Second"}}},
	}

	got := Participants(regs)
	assert.Len(t, got, 2)
	assert.Equal(t, "First", got[0].FullName)
	assert.Equal(t, "Second", got[1].FullName)
}
