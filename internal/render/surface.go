package render

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/construo/construo-server/internal/template"
)

// Supersample is the fixed rasterization multiplier over the reference page
// dimensions. It sharpens output without re-laying-out the scene.
const Supersample = 1.5

// Surface is the off-screen rendering surface. A single instance is reused
// across batch iterations and must never be used concurrently; the pipeline
// serializes access by processing participants sequentially.
type Surface struct {
	regular *opentype.Font
	bold    *opentype.Font

	faces map[faceKey]font.Face
}

type faceKey struct {
	size float64
	bold bool
}

// NewSurface creates a surface with the bundled fonts parsed.
func NewSurface() (*Surface, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse bold font: %w", err)
	}
	return &Surface{regular: regular, bold: bold, faces: map[faceKey]font.Face{}}, nil
}

func (s *Surface) face(size float64, bold bool) (font.Face, error) {
	if size <= 0 {
		size = 24
	}
	key := faceKey{size: size, bold: bold}
	if f, ok := s.faces[key]; ok {
		return f, nil
	}
	src := s.regular
	if bold {
		src = s.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("render: font face: %w", err)
	}
	s.faces[key] = f
	return f, nil
}

// Render rasterizes doc at the supersampled page size. The scene is drawn in
// reference units; the context scale handles the multiplier.
func (s *Surface) Render(doc *template.Document) (image.Image, error) {
	w := int(math.Round(template.PageWidth * Supersample))
	h := int(math.Round(template.PageHeight * Supersample))
	dc := gg.NewContext(w, h)
	dc.Scale(Supersample, Supersample)

	bg := doc.Background
	if bg == "" {
		bg = "#ffffff"
	}
	dc.SetHexColor(bg)
	dc.Clear()

	for i := range doc.Objects {
		if err := s.drawElement(dc, &doc.Objects[i]); err != nil {
			return nil, fmt.Errorf("render: element %d (%s): %w", i, doc.Objects[i].Kind, err)
		}
	}
	return dc.Image(), nil
}

func (s *Surface) drawElement(dc *gg.Context, e *template.Element) error {
	dc.Push()
	defer dc.Pop()
	if e.Angle != 0 {
		dc.RotateAbout(gg.Radians(e.Angle), e.X, e.Y)
	}

	switch e.Kind {
	case template.KindText:
		return s.drawText(dc, e)
	case template.KindRect:
		dc.DrawRectangle(e.X, e.Y, e.Width, e.Height)
		fillStroke(dc, e)
	case template.KindCircle:
		dc.DrawCircle(e.X, e.Y, e.Radius)
		fillStroke(dc, e)
	case template.KindTriangle:
		// Isosceles triangle inscribed in the element's bounding box.
		dc.MoveTo(e.X+e.Width/2, e.Y)
		dc.LineTo(e.X, e.Y+e.Height)
		dc.LineTo(e.X+e.Width, e.Y+e.Height)
		dc.ClosePath()
		fillStroke(dc, e)
	case template.KindLine:
		if e.Stroke != "" {
			dc.SetHexColor(e.Stroke)
		} else {
			dc.SetHexColor("#000000")
		}
		dc.SetLineWidth(strokeWidth(e))
		dc.DrawLine(e.X, e.Y, e.X+e.X2, e.Y+e.Y2)
		dc.Stroke()
	case template.KindImage:
		return drawImage(dc, e)
	default:
		return fmt.Errorf("unknown element kind %q", e.Kind)
	}
	return nil
}

func (s *Surface) drawText(dc *gg.Context, e *template.Element) error {
	face, err := s.face(e.FontSize, e.Bold)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	if e.Fill != "" {
		dc.SetHexColor(e.Fill)
	} else {
		dc.SetHexColor("#000000")
	}
	ax := 0.0
	switch e.Align {
	case "center":
		ax = 0.5
	case "right":
		ax = 1.0
	}
	dc.DrawStringAnchored(e.Text, e.X, e.Y, ax, 0.5)
	return nil
}

func fillStroke(dc *gg.Context, e *template.Element) {
	if e.Fill != "" {
		dc.SetHexColor(e.Fill)
		if e.Stroke != "" {
			dc.FillPreserve()
		} else {
			dc.Fill()
		}
	}
	if e.Stroke != "" {
		dc.SetHexColor(e.Stroke)
		dc.SetLineWidth(strokeWidth(e))
		dc.Stroke()
	}
	if e.Fill == "" && e.Stroke == "" {
		dc.SetHexColor("#000000")
		dc.Fill()
	}
}

func strokeWidth(e *template.Element) float64 {
	if e.StrokeWidth > 0 {
		return e.StrokeWidth
	}
	return 1
}

func drawImage(dc *gg.Context, e *template.Element) error {
	if e.ImagePath == "" {
		return nil
	}
	im, err := gg.LoadImage(e.ImagePath)
	if err != nil {
		return fmt.Errorf("load image %s: %w", e.ImagePath, err)
	}
	if e.Width > 0 && e.Height > 0 {
		b := im.Bounds()
		dc.Push()
		dc.Translate(e.X, e.Y)
		dc.Scale(e.Width/float64(b.Dx()), e.Height/float64(b.Dy()))
		dc.DrawImage(im, 0, 0)
		dc.Pop()
		return nil
	}
	dc.DrawImage(im, int(e.X), int(e.Y))
	return nil
}
