package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"
	"unicode/utf8"

	"git.sr.ht/~mekyt/latex2mathml"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/net/html"
)

// MathMLNamespace is the namespace written on generated <math> roots.
const MathMLNamespace = "http://www.w3.org/1998/Math/MathML"

// MathMLEngine is the alternate engine backed by latex2mathml. SVG images
// embed the MathML tree in a foreignObject; PNG images are a raster of the
// expression text.
type MathMLEngine struct {
	Namespace string
	Indent    int
}

// NewMathMLEngine returns an engine writing the standard MathML namespace.
func NewMathMLEngine() *MathMLEngine {
	return &MathMLEngine{Namespace: MathMLNamespace}
}

// LoadMathML is an AlternateLoader for MathMLEngine. It converts a probe
// expression so a broken converter fails at load time, not on first use.
func LoadMathML(ctx context.Context) (Alternate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := NewMathMLEngine()
	if _, err := e.ToMathML(`x^2`, false); err != nil {
		return nil, err
	}
	return e, nil
}

// ToMathML converts latex to a <math> element. display selects block mode.
func (e *MathMLEngine) ToMathML(latex string, display bool) (out string, err error) {
	latex = strings.TrimSpace(latex)
	if latex == "" {
		return "", fmt.Errorf("%w: empty expression", ErrConversion)
	}
	if err := checkGroups(latex); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversion, err)
	}

	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("%w: %v", ErrConversion, r)
		}
	}()

	mode := "inline"
	if display {
		mode = "block"
	}
	out = strings.TrimSpace(latex2mathml.Convert(latex, e.Namespace, mode, e.Indent))
	if !strings.HasPrefix(out, "<math") {
		return "", fmt.Errorf("%w: converter returned no math element", ErrConversion)
	}
	return out, nil
}

// ToImage renders latex as an <img> with a data URI source.
func (e *MathMLEngine) ToImage(latex string, display bool, scale float64, format ImageFormat) (string, error) {
	if scale <= 0 {
		scale = 1
	}
	if display {
		scale *= 1.2
	}

	var (
		mime string
		data []byte
		w, h int
		err  error
	)
	switch format {
	case ImageSVG, "":
		mime = "image/svg+xml"
		data, w, h, err = e.svg(latex, display, scale)
	case ImagePNG:
		mime = "image/png"
		data, w, h, err = rasterize(latex, scale)
	default:
		return "", fmt.Errorf("%w: unknown image format %q", ErrConversion, format)
	}
	if err != nil {
		return "", err
	}

	src := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf(`<img class="math-image" src="%s" alt="%s" width="%d" height="%d">`,
		src, html.EscapeString(latex), w, h), nil
}

// svg wraps the MathML tree in an SVG document. The box is an estimate from
// the expression length; browsers lay the MathML out inside it.
func (e *MathMLEngine) svg(latex string, display bool, scale float64) ([]byte, int, int, error) {
	mathml, err := e.ToMathML(latex, display)
	if err != nil {
		return nil, 0, 0, err
	}
	w := int(float64(utf8.RuneCountInString(latex)*9+16) * scale)
	h := int(32 * scale)

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, w, h)
	fmt.Fprintf(&b, `<foreignObject width="100%%" height="100%%"><div xmlns="http://www.w3.org/1999/xhtml">%s</div></foreignObject></svg>`, mathml)
	return b.Bytes(), w, h, nil
}

// rasterize draws the expression text with the basic 7x13 face and scales
// the result with nearest-neighbour sampling.
func rasterize(latex string, scale float64) ([]byte, int, int, error) {
	text := asciiOnly(strings.TrimSpace(latex))
	if text == "" {
		return nil, 0, 0, fmt.Errorf("%w: empty expression", ErrConversion)
	}

	const pad = 2
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	metrics := face.Metrics()

	w := d.MeasureString(text).Ceil() + 2*pad
	h := metrics.Height.Ceil() + 2*pad
	src := image.NewRGBA(image.Rect(0, 0, w, h))

	d.Dst = src
	d.Src = image.Black
	d.Dot = fixed.P(pad, pad+metrics.Ascent.Ceil())
	d.DrawString(text)

	sw, sh := int(float64(w)*scale), int(float64(h)*scale)
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, sw, sh))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: encoding png: %v", ErrConversion, err)
	}
	return buf.Bytes(), sw, sh, nil
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			r = '?'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// checkGroups rejects expressions whose braces or \left/\right pairs do not
// balance; latex2mathml accepts them and produces a truncated tree.
func checkGroups(latex string) error {
	depth, left, right := 0, 0, 0
	for i := 0; i < len(latex); i++ {
		switch latex[i] {
		case '\\':
			j := i + 1
			for j < len(latex) && isASCIILetter(latex[j]) {
				j++
			}
			if j == i+1 {
				i++ // control symbol, e.g. \{
				continue
			}
			switch latex[i+1 : j] {
			case "left":
				left++
			case "right":
				right++
			}
			i = j - 1
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unexpected '}' at offset %d", i)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%d unclosed '{'", depth)
	}
	if left != right {
		return fmt.Errorf("\\left/\\right mismatch (%d/%d)", left, right)
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}
