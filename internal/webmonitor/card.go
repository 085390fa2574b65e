package webmonitor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dj-oyu/smart-posture/posture-server/internal/posture"
	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// Cards are drawn at base size with the 7x13 bitmap face, then scaled up.
const (
	cardBaseWidth  = 160
	cardBaseHeight = 90
	cardScale      = 4
	cardQuality    = 80
)

var (
	colorGood    = color.RGBA{R: 0, G: 170, B: 0, A: 255}
	colorBad     = color.RGBA{R: 210, G: 30, B: 30, A: 255}
	colorWarning = color.RGBA{R: 255, G: 140, B: 0, A: 255}
	colorIdle    = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// cardColor maps the displayed text to the status color of the dashboard.
func cardColor(text string) color.RGBA {
	switch {
	case strings.HasPrefix(text, "Good"):
		return colorGood
	case strings.HasPrefix(text, "Hunchback"), text == posture.TextStandUp:
		return colorBad
	case text == "Neck Forward":
		return colorWarning
	default:
		return colorIdle
	}
}

// renderCard draws p as a JPEG status card.
func renderCard(p types.PosturePayload) ([]byte, error) {
	text := p.PostureText
	if text == "" {
		text = posture.TextNoPerson
	}

	base := image.NewRGBA(image.Rect(0, 0, cardBaseWidth, cardBaseHeight))
	draw.Draw(base, base.Bounds(), &image.Uniform{C: cardColor(text)}, image.Point{}, draw.Src)

	drawCentered(base, text, 38)
	drawCentered(base, fmt.Sprintf("Sitting %s", formatSitTime(p.SitTime)), 62)

	out := image.NewRGBA(image.Rect(0, 0, cardBaseWidth*cardScale, cardBaseHeight*cardScale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), base, base.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: cardQuality}); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCentered(img *image.RGBA, s string, baseline int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(s).Ceil()
	x := (img.Bounds().Dx() - width) / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.P(x, baseline)
	d.DrawString(s)
}

func formatSitTime(sec int) string {
	if sec < 60 {
		return fmt.Sprintf("%ds", sec)
	}
	return fmt.Sprintf("%dm%02ds", sec/60, sec%60)
}
