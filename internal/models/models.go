// Package models defines the entity types exchanged between the remote
// store, the local cache and the projection layer.
package models

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Collection identifies one of the remotely stored entity collections.
type Collection string

// Collections synchronized by the controller. Registrations are written
// through directly and never cached.
const (
	CollectionSiteConfig    Collection = "site_config"
	CollectionEvents        Collection = "events"
	CollectionTimeline      Collection = "timeline"
	CollectionSpeakers      Collection = "speakers"
	CollectionSponsors      Collection = "sponsors"
	CollectionOrganizers    Collection = "organizers"
	CollectionRegistrations Collection = "registrations"
)

// SiteConfigKey is the fixed logical key of the single site configuration row.
const SiteConfigKey = "main"

// SiteConfig is the single configuration row for the public site. Each named
// section is an opaque structured blob owned by the admin panel; this service
// only replaces sections wholesale, never merges them field by field.
type SiteConfig struct {
	ID       string          `json:"id,omitempty"`
	Key      string          `json:"key"`
	Hero     json.RawMessage `json:"hero,omitempty"`
	About    json.RawMessage `json:"about,omitempty"`
	Events   json.RawMessage `json:"events,omitempty"`
	Venue    json.RawMessage `json:"venue,omitempty"`
	Footer   json.RawMessage `json:"footer,omitempty"`
	Sponsors json.RawMessage `json:"sponsors,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`

	// CertificateTemplate is the legacy top-level template location. It is
	// accepted on read as a fallback but never written; the current location
	// is settings.certificate_template.
	CertificateTemplate json.RawMessage `json:"certificate_template,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CachingDisabled reports whether the admin has turned off local caching for
// the public site. Absence of the flag means caching stays enabled.
func (c *SiteConfig) CachingDisabled() bool {
	if c == nil || len(c.Settings) == 0 {
		return false
	}
	v := gjson.GetBytes(c.Settings, "cache_enabled")
	return v.Exists() && !v.Bool()
}

// Event is a conference event row.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Venue       string `json:"venue,omitempty"`
	StartsAt    string `json:"starts_at,omitempty"`
	Status      string `json:"status,omitempty"`
	Position    int    `json:"position,omitempty"`
}

// TimelineEntry is one row of the conference schedule.
type TimelineEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Day      string `json:"day,omitempty"`
	TimeSlot string `json:"time_slot,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Speaker is a conference speaker row.
type Speaker struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	Company  string `json:"company,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
	Status   string `json:"status,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Sponsor is a sponsor row.
type Sponsor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Tier     string `json:"tier,omitempty"`
	LogoURL  string `json:"logo_url,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Organizer is an organizing-team row.
type Organizer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
	Position int    `json:"position,omitempty"`
}

// FormField is one label/value pair captured by the dynamic registration
// form. Field labels are admin-defined free text; identity fields are
// recovered from them heuristically (see the forms package).
type FormField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Registration is a stored registration row.
type Registration struct {
	ID        string      `json:"id,omitempty"`
	Fields    []FormField `json:"fields"`
	Events    []string    `json:"events,omitempty"`
	Status    string      `json:"status,omitempty"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
}

// ParticipantRecord is the render input for one certificate. It is derived
// from a Registration and lives only for the duration of a generation run.
type ParticipantRecord struct {
	ID         string
	FullName   string
	Email      string
	Phone      string
	College    string
	Year       string
	Department string
	Events     []string
}

// Aggregate is the combined result of all six collection fetches, treated as
// one atomic cache unit. Collection slices are never nil; absent data
// degrades to empty slices.
type Aggregate struct {
	SiteConfig *SiteConfig     `json:"site_config,omitempty"`
	Events     []Event         `json:"events"`
	Timeline   []TimelineEntry `json:"timeline"`
	Speakers   []Speaker       `json:"speakers"`
	Sponsors   []Sponsor       `json:"sponsors"`
	Organizers []Organizer     `json:"organizers"`
}

// Normalize replaces nil collection slices with empty ones so consumers
// never observe null sequences.
func (a *Aggregate) Normalize() {
	if a.Events == nil {
		a.Events = []Event{}
	}
	if a.Timeline == nil {
		a.Timeline = []TimelineEntry{}
	}
	if a.Speakers == nil {
		a.Speakers = []Speaker{}
	}
	if a.Sponsors == nil {
		a.Sponsors = []Sponsor{}
	}
	if a.Organizers == nil {
		a.Organizers = []Organizer{}
	}
}
