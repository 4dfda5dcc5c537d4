// Package site projects the synchronized aggregate payload into the
// public-site API: one JSON view per content section plus registration
// submission.
package site

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/construo/construo-server/internal/models"
)

// DataLoader is the slice of the synchronization controller the projection
// layer consumes.
type DataLoader interface {
	// LoadAll returns the aggregate payload, served from cache when
	// populated.
	LoadAll(ctx context.Context) (*models.Aggregate, error)

	// RefreshAll bypasses the cache and fetches everything fresh.
	RefreshAll(ctx context.Context) (*models.Aggregate, error)

	// Subscribe registers a change-notification callback and returns an
	// unsubscribe function.
	Subscribe(fn func(*models.Aggregate)) func()
}

// RegistrationWriter accepts new registrations for direct passthrough to
// the store.
type RegistrationWriter interface {
	CreateRegistration(ctx context.Context, reg *models.Registration) (*models.Registration, error)
}

// View is the aggregate payload shaped for public consumption. Sections the
// site configuration does not define come through as null blobs; collection
// sequences are always present.
type View struct {
	Hero       json.RawMessage        `json:"hero,omitempty"`
	About      json.RawMessage        `json:"about,omitempty"`
	Venue      json.RawMessage        `json:"venue,omitempty"`
	Footer     json.RawMessage        `json:"footer,omitempty"`
	Events     []models.Event         `json:"events"`
	Timeline   []models.TimelineEntry `json:"timeline"`
	Speakers   []models.Speaker       `json:"speakers"`
	Sponsors   []models.Sponsor       `json:"sponsors"`
	Organizers []models.Organizer     `json:"organizers"`
}

// Project shapes an aggregate payload into the public view.
func Project(a *models.Aggregate) *View {
	v := &View{
		Events:     a.Events,
		Timeline:   a.Timeline,
		Speakers:   a.Speakers,
		Sponsors:   a.Sponsors,
		Organizers: a.Organizers,
	}
	if cfg := a.SiteConfig; cfg != nil {
		v.Hero = cfg.Hero
		v.About = cfg.About
		v.Venue = cfg.Venue
		v.Footer = cfg.Footer
	}
	if v.Events == nil {
		v.Events = []models.Event{}
	}
	if v.Timeline == nil {
		v.Timeline = []models.TimelineEntry{}
	}
	if v.Speakers == nil {
		v.Speakers = []models.Speaker{}
	}
	if v.Sponsors == nil {
		v.Sponsors = []models.Sponsor{}
	}
	if v.Organizers == nil {
		v.Organizers = []models.Organizer{}
	}
	return v
}

// snapshot holds the last good payload observed via change notification so
// the site keeps serving content when a load degrades.
type snapshot struct {
	value atomic.Pointer[models.Aggregate]
}

func (s *snapshot) store(a *models.Aggregate) { s.value.Store(a) }
func (s *snapshot) load() *models.Aggregate   { return s.value.Load() }
