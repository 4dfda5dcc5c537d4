// Package template models the certificate layout: a flat scene graph of
// positioned visual elements serializable to and from the document blob
// stored inside the site configuration.
package template

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/construo/construo-server/internal/models"
)

// Kind discriminates the visual element union.
type Kind string

// Element kinds.
const (
	KindText     Kind = "text"
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindTriangle Kind = "triangle"
	KindLine     Kind = "line"
	KindImage    Kind = "image"
)

// Placeholder tags a text element whose content is substituted per
// participant at render time.
type Placeholder string

// Placeholder kinds.
const (
	PlaceholderParticipantName Placeholder = "participant-name"
	PlaceholderEventName       Placeholder = "event-name"
	PlaceholderCollegeName     Placeholder = "college-name"
)

// Scaffolding element ids. The interactive editor renders the page boundary
// with these two elements; they are UI-only and excluded from every
// serialized document.
const (
	ScaffoldPageBackground = "page-background"
	ScaffoldPageShadow     = "page-shadow"
)

// Page dimensions in logical units: A4 landscape at the reference DPI.
const (
	PageWidth  = 1123.0
	PageHeight = 794.0
)

// ErrNotConfigured is returned when the site configuration carries no
// certificate template.
var ErrNotConfigured = errors.New("template: no template configured")

// Element is one positioned visual element. Fields beyond Kind, X and Y are
// meaningful per kind; unused ones stay at their zero value and are omitted
// from the serialized form.
type Element struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id,omitempty"`

	X float64 `json:"x"`
	Y float64 `json:"y"`

	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Radius float64 `json:"radius,omitempty"`
	Angle  float64 `json:"angle,omitempty"`

	// Line endpoints, relative to X/Y.
	X2 float64 `json:"x2,omitempty"`
	Y2 float64 `json:"y2,omitempty"`

	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`

	Text        string      `json:"text,omitempty"`
	FontFamily  string      `json:"font_family,omitempty"`
	FontSize    float64     `json:"font_size,omitempty"`
	Bold        bool        `json:"bold,omitempty"`
	Align       string      `json:"align,omitempty"`
	Placeholder Placeholder `json:"placeholder,omitempty"`

	ImagePath string `json:"image_path,omitempty"`
}

// Document is a certificate layout. Background is a color string;
// empty means the renderer defaults to opaque white.
type Document struct {
	Objects    []Element `json:"objects"`
	Background string    `json:"background,omitempty"`
}

func isScaffolding(e *Element) bool {
	return e.ID == ScaffoldPageBackground || e.ID == ScaffoldPageShadow
}

// StripScaffolding removes the page-background and page-shadow elements.
func (d *Document) StripScaffolding() {
	kept := d.Objects[:0]
	for _, e := range d.Objects {
		if !isScaffolding(&e) {
			kept = append(kept, e)
		}
	}
	d.Objects = kept
}

// Clone returns a deep copy. Batch rendering mutates a fresh copy per
// participant so substitutions never leak across iterations.
func (d *Document) Clone() *Document {
	out := &Document{
		Objects:    make([]Element, len(d.Objects)),
		Background: d.Background,
	}
	copy(out.Objects, d.Objects)
	return out
}

// Marshal serializes the document, always excluding scaffolding elements.
func (d *Document) Marshal() ([]byte, error) {
	clean := d.Clone()
	clean.StripScaffolding()
	if clean.Objects == nil {
		clean.Objects = []Element{}
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("template: marshal: %w", err)
	}
	return data, nil
}

// Parse deserializes a document blob. Scaffolding elements that leaked into
// older stored blobs are dropped on load.
func Parse(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("template: parse: %w", err)
	}
	d.StripScaffolding()
	if d.Objects == nil {
		d.Objects = []Element{}
	}
	return &d, nil
}

// FromSiteConfig loads the certificate template from a site configuration
// row. The current location is settings.certificate_template; the legacy
// top-level certificate_template field is accepted as a read fallback but
// never written. Returns ErrNotConfigured when neither is present.
func FromSiteConfig(cfg *models.SiteConfig) (*Document, error) {
	if cfg == nil {
		return nil, ErrNotConfigured
	}
	if len(cfg.Settings) > 0 {
		if v := gjson.GetBytes(cfg.Settings, "certificate_template"); v.Exists() {
			raw := v.Raw
			// Some admin builds stored the blob JSON-encoded as a string.
			if v.Type == gjson.String {
				raw = v.String()
			}
			return Parse([]byte(raw))
		}
	}
	if len(cfg.CertificateTemplate) > 0 {
		return Parse(cfg.CertificateTemplate)
	}
	return nil, ErrNotConfigured
}
