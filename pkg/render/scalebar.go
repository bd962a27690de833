package render

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Scale bar layout as fractions of the image size.
const (
	barLengthFraction    = 0.25
	fontSizeFraction     = 0.03
	barThicknessFraction = 0.025
	rightBufferFraction  = 0.05
	bottomBufferFraction = 0.05
	textOffsetFactor     = -1.05
)

// ScaleBar describes the scale bar burnt into an image.
type ScaleBar struct {
	// LengthUM is the physical bar length, a whole number of micrometres.
	LengthUM float64

	// LengthPX is the bar length in pixels, LengthUM / step size.
	LengthPX float64

	// Label is the text drawn above the bar, e.g. "0.250 mm".
	Label string

	FontSize int

	// Bar and Box are the drawn bar and its white background.
	Bar image.Rectangle
	Box image.Rectangle
}

var (
	fontOnce    sync.Once
	labelFont   *truetype.Font
	errFontLoad error
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		labelFont, errFontLoad = truetype.Parse(goregular.TTF)
	})
	return labelFont, errFontLoad
}

// ScaleBarLength returns the bar length for an image width and step size:
// a quarter of the width rounded up to whole micrometres.
func ScaleBarLength(width int, stepSizeUM float64) (um, px float64) {
	um = math.Ceil(barLengthFraction * float64(width) * stepSizeUM)
	return um, um / stepSizeUM
}

// ScaleBarLabel formats a bar length in micrometres as millimetres.
func ScaleBarLabel(lengthUM float64) string {
	return fmt.Sprintf("%.3f mm", lengthUM/1000)
}

// AddScaleBar returns a copy of img with a scale bar in the bottom-right
// corner: a black bar on a white box with its length in millimetres centred
// above it. The font is 3% of the image height.
//
// Parameters:
//   - img: source image, not modified
//   - stepSizeUM: physical pixel pitch in micrometres
//
// Returns:
//   - the annotated image and the bar geometry
//   - an error for an empty image or a step size that is not positive
func AddScaleBar(img image.Image, stepSizeUM float64) (*image.RGBA, ScaleBar, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ScaleBar{}, errors.New("empty image")
	}
	if !(stepSizeUM > 0) || math.IsInf(stepSizeUM, 0) {
		return nil, ScaleBar{}, fmt.Errorf("invalid step size %v", stepSizeUM)
	}

	ttf, err := loadFont()
	if err != nil {
		return nil, ScaleBar{}, fmt.Errorf("loading font: %w", err)
	}

	sb := ScaleBar{FontSize: max(1, int(math.Floor(fontSizeFraction*float64(h))))}
	sb.LengthUM, sb.LengthPX = ScaleBarLength(w, stepSizeUM)
	sb.Label = ScaleBarLabel(sb.LengthUM)

	thickness := max(1, int(barThicknessFraction*float64(h)))
	rightBuffer := int(rightBufferFraction * float64(w))
	bottomBuffer := int(bottomBufferFraction * float64(h))
	rectWidth := int(barThicknessFraction * float64(h))

	xs := float64(w-rightBuffer) - sb.LengthPX
	xf := xs + sb.LengthPX
	ys := h - bottomBuffer - rectWidth

	top := min(ys-thickness/2, h-thickness)
	sb.Bar = image.Rect(int(math.Round(xs)), top, int(math.Round(xf)), top+thickness)

	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    float64(sb.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	textW := font.MeasureString(face, sb.Label).Ceil()
	metrics := face.Metrics()
	ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()

	textTop := max(0, ys+int(textOffsetFactor*float64(bottomBuffer)))
	if textTop+ascent+descent > sb.Bar.Min.Y {
		textTop = max(0, sb.Bar.Min.Y-ascent-descent)
	}
	textLeft := int(math.Round((xs+xf)/2)) - textW/2
	textRect := image.Rect(textLeft, textTop, textLeft+textW, textTop+ascent+descent)

	pad := max(1, sb.FontSize/4)
	sb.Box = sb.Bar.Union(textRect).Inset(-pad).Intersect(image.Rect(0, 0, w, h))

	out := cloneRGBA(img)
	draw.Draw(out, sb.Box, image.NewUniform(White), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(Black),
		Face: face,
		Dot:  fixed.P(textLeft, textTop+ascent),
	}
	d.DrawString(sb.Label)

	draw.Draw(out, sb.Bar.Intersect(out.Bounds()), image.NewUniform(Black), image.Point{}, draw.Src)

	return out, sb, nil
}
