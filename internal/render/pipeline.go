// Package render turns a certificate template and a list of participants
// into finished PDF documents, one per participant.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/construo/construo-server/internal/models"
	"github.com/construo/construo-server/internal/template"
)

// pagePadding oversizes the PDF page relative to the exact bitmap size.
// A bitmap matching the page exactly can overflow onto a spurious second
// page through floating-point rounding in the document engine.
const pagePadding = 2.0

// Sink receives finished documents.
type Sink interface {
	// Save persists one finished document under name.
	Save(ctx context.Context, name string, data []byte) error
}

// DirSink writes documents into a directory, creating it on first use.
type DirSink struct {
	Dir string
}

// Save writes data to Dir/name.
func (s *DirSink) Save(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0750); err != nil {
		return fmt.Errorf("render: create output directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0600); err != nil {
		return fmt.Errorf("render: write %s: %w", name, err)
	}
	return nil
}

// Pipeline generates certificates for a batch of participants. Participants
// are processed strictly sequentially in input order: the off-screen surface
// is a shared mutable resource and the output order must match the caller's
// displayed order.
type Pipeline struct {
	surface    *Surface
	sink       Sink
	log        *slog.Logger
	eventLabel string
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithEventLabel overrides the default label substituted for {Event Name}
// when a participant has no registered events.
func WithEventLabel(label string) Option {
	return func(p *Pipeline) { p.eventLabel = label }
}

// NewPipeline creates a pipeline emitting documents into sink.
func NewPipeline(sink Sink, opts ...Option) (*Pipeline, error) {
	surface, err := NewSurface()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		surface:    surface,
		sink:       sink,
		log:        slog.Default(),
		eventLabel: DefaultEventLabel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GenerateAll renders one document per participant, in input order, and
// returns the emitted filenames. A missing template aborts before any
// participant is processed; a per-participant failure aborts the remaining
// batch, so callers should treat generation as all-or-nothing.
func (p *Pipeline) GenerateAll(ctx context.Context, doc *template.Document, participants []models.ParticipantRecord) ([]string, error) {
	if doc == nil {
		return nil, template.ErrNotConfigured
	}

	names := make([]string, 0, len(participants))
	for i := range participants {
		if err := ctx.Err(); err != nil {
			return names, err
		}
		name, err := p.generateOne(ctx, doc, &participants[i])
		if err != nil {
			return names, fmt.Errorf("render: participant %d (%s): %w", i, participants[i].FullName, err)
		}
		names = append(names, name)
		p.log.Info("certificate generated", "participant", participants[i].FullName, "file", name)
	}
	return names, nil
}

func (p *Pipeline) generateOne(ctx context.Context, doc *template.Document, participant *models.ParticipantRecord) (string, error) {
	// Fresh copy per participant; substitutions must not leak into the
	// next iteration.
	work := doc.Clone()
	work.StripScaffolding()
	substituteDocument(work, participant, p.eventLabel)

	img, err := p.surface.Render(work)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode bitmap: %w", err)
	}

	pdfData, err := wrapPDF(buf.Bytes())
	if err != nil {
		return "", err
	}

	name := Filename(participant)
	if err := p.sink.Save(ctx, name, pdfData); err != nil {
		return "", err
	}
	return name, nil
}

// wrapPDF places the rendered bitmap onto a single page sized pagePadding
// units larger than the reference dimensions in each direction.
func wrapPDF(pngData []byte) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size: fpdf.SizeType{
			Wd: template.PageWidth + pagePadding,
			Ht: template.PageHeight + pagePadding,
		},
	})
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("certificate", opts, bytes.NewReader(pngData))
	pdf.ImageOptions("certificate", pagePadding/2, pagePadding/2,
		template.PageWidth, template.PageHeight, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}
	return out.Bytes(), nil
}
