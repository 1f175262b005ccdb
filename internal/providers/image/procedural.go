package image

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
)

// shapeHint maps a prompt keyword to a silhouette and canvas aspect.
type shapeHint struct {
	shape  string
	aspect string
}

var shapeKeywords = map[string]shapeHint{
	"triangle": {"triangle", "square"}, "pyramid": {"triangle", "square"},
	"arrowhead": {"triangle", "square"},
	"star":      {"star", "square"}, "sparkle": {"star", "square"},
	"diamond": {"diamond", "square"}, "rhombus": {"diamond", "square"},
	"crystal": {"diamond", "tall"},
	"heart":   {"heart", "square"}, "love": {"heart", "square"},
	"wheel": {"ring", "square"}, "tire": {"ring", "square"},
	"gear": {"ring", "square"}, "cog": {"ring", "square"},
	"hexagon": {"hexagon", "square"}, "hex": {"hexagon", "square"},
	"honeycomb": {"hexagon", "square"},
	"pentagon":  {"pentagon", "square"},
	"cross":     {"cross", "square"}, "plus": {"cross", "square"},
	"health": {"cross", "square"},
	"sword":  {"sword", "tall"}, "knife": {"sword", "tall"}, "blade": {"sword", "tall"},
	"spear": {"tall", "tall"}, "wand": {"tall", "tall"}, "staff": {"tall", "tall"},
	"rod": {"tall", "tall"}, "pole": {"tall", "tall"}, "tower": {"tall", "tall"},
	"crate": {"box", "square"}, "box": {"box", "square"}, "cube": {"box", "square"},
	"square": {"box", "square"}, "chest": {"box", "square"}, "container": {"box", "square"},
	"block": {"box", "square"}, "door": {"box", "tall"}, "window": {"box", "square"},
	"rectangle": {"box", "wide"},
	"shield":    {"shield", "tall"},
	"coin":      {"round", "square"}, "orb": {"round", "square"}, "ball": {"round", "square"},
	"sphere": {"round", "square"}, "pearl": {"round", "square"}, "circle": {"round", "square"},
	"button": {"round", "square"}, "disk": {"round", "square"},
	"ring": {"ring", "square"},
	"gem":  {"gem", "square"}, "jewel": {"gem", "square"}, "ruby": {"gem", "square"},
	"emerald": {"gem", "square"}, "sapphire": {"gem", "square"},
	"potion": {"bottle", "tall"}, "bottle": {"bottle", "tall"},
	"flask": {"bottle", "tall"}, "vial": {"bottle", "tall"},
	"plate": {"wide", "wide"}, "table": {"wide", "wide"}, "platform": {"wide", "wide"},
	"car": {"wide", "wide"}, "vehicle": {"wide", "wide"},
}

var colorKeywords = map[string]color.NRGBA{
	"red":    {220, 50, 50, 255},
	"blue":   {50, 100, 220, 255},
	"green":  {50, 180, 50, 255},
	"yellow": {220, 180, 50, 255},
	"purple": {150, 50, 220, 255},
	"orange": {255, 140, 50, 255},
	"pink":   {255, 150, 200, 255},
	"brown":  {150, 100, 50, 255},
	"black":  {40, 40, 40, 255},
	"white":  {240, 240, 240, 255},
	"gray":   {150, 150, 150, 255},
	"grey":   {150, 150, 150, 255},
	"silver": {190, 190, 200, 255},
	"gold":   {255, 200, 50, 255},
	"golden": {255, 200, 50, 255},
	"cyan":   {50, 200, 200, 255},
}

var sizeKeywords = map[string]float64{
	"tiny": 0.4, "small": 0.5, "compact": 0.5,
	"medium": 0.6, "large": 0.7, "big": 0.7,
	"huge": 0.8, "massive": 0.85, "giant": 0.85,
}

type rarityStyle struct {
	primary, secondary color.NRGBA
	glow               bool
}

var rarityKeywords = map[string]rarityStyle{
	"common":    {color.NRGBA{150, 150, 150, 255}, color.NRGBA{100, 100, 120, 255}, false},
	"basic":     {color.NRGBA{150, 150, 150, 255}, color.NRGBA{100, 100, 120, 255}, false},
	"uncommon":  {color.NRGBA{50, 150, 50, 255}, color.NRGBA{30, 100, 30, 255}, false},
	"rare":      {color.NRGBA{50, 100, 220, 255}, color.NRGBA{30, 70, 150, 255}, true},
	"epic":      {color.NRGBA{150, 50, 220, 255}, color.NRGBA{100, 30, 150, 255}, true},
	"legendary": {color.NRGBA{255, 200, 50, 255}, color.NRGBA{200, 150, 30, 255}, true},
	"mythic":    {color.NRGBA{255, 100, 50, 255}, color.NRGBA{200, 70, 30, 255}, true},
}

// renderParams is everything the rasterizer needs, fully derived from the
// prompt so identical prompts render identical images.
type renderParams struct {
	Shape      string
	Aspect     string
	Primary    color.NRGBA
	Secondary  color.NRGBA
	SizeFactor float64
	Glow       bool
}

// parsePrompt derives render parameters from prompt keywords. Unmatched
// prompts fall back to a neutral blob, so parsing never fails.
func parsePrompt(prompt string) renderParams {
	lower := strings.ToLower(prompt)
	params := renderParams{
		Shape:      "blob",
		Aspect:     "square",
		Primary:    color.NRGBA{120, 120, 140, 255},
		Secondary:  color.NRGBA{80, 80, 100, 255},
		SizeFactor: 0.6,
	}

	for keyword, hint := range shapeKeywords {
		if containsWord(lower, keyword) {
			params.Shape = hint.shape
			params.Aspect = hint.aspect
			break
		}
	}

	var found []color.NRGBA
	for name, c := range colorKeywords {
		if containsWord(lower, name) {
			found = append(found, c)
		}
	}
	if len(found) > 0 {
		params.Primary = found[0]
		if len(found) > 1 {
			params.Secondary = found[1]
		} else {
			params.Secondary = darken(found[0], 0.7)
		}
	}

	for word, factor := range sizeKeywords {
		if containsWord(lower, word) {
			params.SizeFactor = factor
			break
		}
	}

	for word, style := range rarityKeywords {
		if containsWord(lower, word) {
			params.Primary = style.primary
			params.Secondary = style.secondary
			params.Glow = style.glow
			break
		}
	}

	for _, word := range []string{"glowing", "glow", "shine", "shimmer"} {
		if containsWord(lower, word) {
			params.Glow = true
			break
		}
	}
	return params
}

// containsWord does whole-word matching so "award" does not hit "sword".
func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isLetter(haystack[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(haystack) || !isLetter(haystack[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func darken(c color.NRGBA, factor float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: 255,
	}
}

// ProceduralGenerator renders concept images offline by deriving a
// silhouette, palette, and size from prompt keywords. It never fails for
// a non-empty prompt, which makes it the terminal fallback of the 2D
// generator chain.
type ProceduralGenerator struct {
	canvas int
}

// NewProceduralGenerator constructs the offline renderer.
func NewProceduralGenerator() *ProceduralGenerator {
	return &ProceduralGenerator{canvas: 512}
}

// Generate renders the prompt to a PNG. No external reference URL is
// produced; the artifact exists only in local storage.
func (g *ProceduralGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("procedural: prompt is required")
	}
	if notes := strings.TrimSpace(req.RefinementNotes); notes != "" {
		prompt = prompt + ". " + notes
	}
	params := parsePrompt(prompt)

	img := g.render(params)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &Result{Data: buf.Bytes(), Filename: ArtifactFilename("proc", "png")}, nil
}

func (g *ProceduralGenerator) render(p renderParams) *image.NRGBA {
	size := g.canvas
	img := image.NewNRGBA(image.Rect(0, 0, size, size))

	// Object extents on the canvas.
	half := float64(size) / 2
	rx := half * p.SizeFactor
	ry := half * p.SizeFactor
	switch p.Aspect {
	case "tall":
		rx *= 0.55
	case "wide":
		ry *= 0.55
	}

	mask := silhouette(p.Shape)
	background := color.NRGBA{245, 245, 247, 255}
	outline := darken(p.Secondary, 0.6)

	for y := 0; y < size; y++ {
		v := (float64(y) - half) / ry
		for x := 0; x < size; x++ {
			u := (float64(x) - half) / rx
			switch {
			case mask(u, v):
				// Vertical gradient from primary to secondary, with a
				// thin outline where the silhouette ends.
				if !mask(u*1.03, v*1.03) {
					img.SetNRGBA(x, y, outline)
					continue
				}
				t := (v + 1) / 2
				if t < 0 {
					t = 0
				} else if t > 1 {
					t = 1
				}
				img.SetNRGBA(x, y, lerpColor(p.Primary, p.Secondary, t))
			case p.Glow && mask(u/1.15, v/1.15):
				img.SetNRGBA(x, y, lerpColor(p.Primary, background, 0.65))
			default:
				img.SetNRGBA(x, y, background)
			}
		}
	}
	return img
}

func lerpColor(a, b color.NRGBA, t float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: 255,
	}
}

// silhouette returns a point-inclusion test over normalized coordinates
// u,v in [-1,1], v growing downward.
func silhouette(shape string) func(u, v float64) bool {
	switch shape {
	case "round":
		return func(u, v float64) bool { return u*u+v*v <= 1 }
	case "ring":
		return func(u, v float64) bool {
			d := math.Sqrt(u*u + v*v)
			return d <= 1 && d >= 0.55
		}
	case "box":
		return func(u, v float64) bool { return math.Abs(u) <= 1 && math.Abs(v) <= 1 }
	case "tall":
		return func(u, v float64) bool { return math.Abs(u) <= 0.45 && math.Abs(v) <= 1 }
	case "wide":
		return func(u, v float64) bool { return math.Abs(u) <= 1 && math.Abs(v) <= 0.45 }
	case "diamond":
		return func(u, v float64) bool { return math.Abs(u)+math.Abs(v) <= 1 }
	case "triangle":
		return func(u, v float64) bool { return v >= -1 && v <= 1 && math.Abs(u) <= (v+1)/2 }
	case "cross":
		return func(u, v float64) bool {
			return (math.Abs(u) <= 0.35 && math.Abs(v) <= 1) || (math.Abs(v) <= 0.35 && math.Abs(u) <= 1)
		}
	case "star":
		return polygonMask(radialPoints(10, 90, 36, func(i int) float64 {
			if i%2 == 0 {
				return 1
			}
			return 0.4
		}))
	case "pentagon":
		return polygonMask(radialPoints(5, 90, 72, func(int) float64 { return 1 }))
	case "hexagon":
		return polygonMask(radialPoints(6, 30, 60, func(int) float64 { return 1 }))
	case "heart":
		return func(u, v float64) bool {
			x := u * 1.2
			y := -v*1.2 + 0.2
			f := x*x + y*y - 1
			return f*f*f-x*x*y*y*y <= 0
		}
	case "gem":
		return func(u, v float64) bool {
			if v < -0.3 {
				// trapezoid crown
				span := 0.4 + 0.6*(v+1)/0.7
				return v >= -1 && math.Abs(u) <= span
			}
			// pavilion tapering to a point
			return v <= 1 && math.Abs(u) <= (1-v)/1.3
		}
	case "shield":
		return func(u, v float64) bool {
			if v <= 0.1 {
				return v >= -1 && math.Abs(u) <= 0.9
			}
			return v <= 1 && math.Abs(u) <= 0.9*(1-(v-0.1)/0.9)
		}
	case "bottle":
		return func(u, v float64) bool {
			if v < -0.45 {
				return v >= -1 && math.Abs(u) <= 0.25
			}
			return v <= 1 && math.Abs(u) <= 0.7
		}
	case "sword":
		return func(u, v float64) bool {
			switch {
			case v < -0.85: // tip
				return math.Abs(u) <= 0.12*(1-(-v-0.85)/0.15)
			case v <= 0.35: // blade
				return math.Abs(u) <= 0.12
			case v <= 0.47: // crossguard
				return math.Abs(u) <= 0.45
			case v <= 0.9: // grip
				return math.Abs(u) <= 0.07
			default: // pommel
				return u*u+(v-0.95)*(v-0.95) <= 0.01
			}
		}
	default: // blob
		return func(u, v float64) bool {
			theta := math.Atan2(v, u)
			r := 1 + 0.08*math.Sin(5*theta)
			return math.Sqrt(u*u+v*v) <= r*0.95
		}
	}
}

type point struct{ x, y float64 }

func radialPoints(n int, startDeg, stepDeg float64, radius func(i int) float64) []point {
	pts := make([]point, n)
	for i := 0; i < n; i++ {
		angle := (startDeg + float64(i)*stepDeg) * math.Pi / 180
		r := radius(i)
		pts[i] = point{x: r * math.Cos(angle), y: -r * math.Sin(angle)}
	}
	return pts
}

// polygonMask builds a ray-casting point-in-polygon test.
func polygonMask(pts []point) func(u, v float64) bool {
	return func(u, v float64) bool {
		inside := false
		j := len(pts) - 1
		for i := 0; i < len(pts); i++ {
			pi, pj := pts[i], pts[j]
			if (pi.y > v) != (pj.y > v) &&
				u < (pj.x-pi.x)*(v-pi.y)/(pj.y-pi.y)+pi.x {
				inside = !inside
			}
			j = i
		}
		return inside
	}
}

var _ Generator = (*ProceduralGenerator)(nil)
