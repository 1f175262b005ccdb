// Package mesh generates low-fidelity 3D prototypes from 2D concept
// images without any external service. The silhouette of the source
// image is sampled onto a coarse grid and extruded into a prism mesh;
// a rotating orthographic projection of the same grid becomes the
// turntable preview GIF.
package mesh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	imgprov "assetforge/internal/providers/image"
)

// Request carries the inputs for prototype generation. ImageData is the
// stored concept image; Prompt is kept for logging and naming only.
type Request struct {
	Prompt    string
	ImageData []byte
}

// Result is the produced mesh plus its preview.
type Result struct {
	OBJData     []byte
	OBJFilename string
	GIFData     []byte
	GIFFilename string
}

// Generator is the contract for 3D prototype providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ProceduralMesher is the offline Generator implementation.
type ProceduralMesher struct {
	grid   int // silhouette sampling resolution per axis
	depth  int // extrusion depth in grid cells
	frames int // turntable frame count
}

// NewProceduralMesher constructs the offline mesher with default
// resolution.
func NewProceduralMesher() *ProceduralMesher {
	return &ProceduralMesher{grid: 32, depth: 8, frames: 24}
}

// Generate extrudes the source image silhouette into an OBJ mesh and
// renders a turntable GIF.
func (m *ProceduralMesher) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.ImageData) == 0 {
		return nil, errors.New("mesh: source image bytes are required")
	}
	src, _, err := image.Decode(bytes.NewReader(req.ImageData))
	if err != nil {
		return nil, fmt.Errorf("mesh: decode source image: %w", err)
	}

	cells := m.sampleSilhouette(src)
	if len(cells) == 0 {
		return nil, errors.New("mesh: source image has no object silhouette")
	}

	objData := m.buildOBJ(cells)
	gifData, err := m.buildTurntable(ctx, cells)
	if err != nil {
		return nil, err
	}

	return &Result{
		OBJData:     objData,
		OBJFilename: imgprov.ArtifactFilename("proto", "obj"),
		GIFData:     gifData,
		GIFFilename: imgprov.ArtifactFilename("proto", "gif"),
	}, nil
}

type cell struct{ x, y int }

// sampleSilhouette downsamples the image onto the grid and marks cells
// whose average color deviates from the corner background color.
func (m *ProceduralMesher) sampleSilhouette(src image.Image) []cell {
	bounds := src.Bounds()
	bg := color.NRGBAModel.Convert(src.At(bounds.Min.X, bounds.Min.Y)).(color.NRGBA)

	cellW := bounds.Dx() / m.grid
	cellH := bounds.Dy() / m.grid
	if cellW == 0 || cellH == 0 {
		return nil
	}

	var cells []cell
	for gy := 0; gy < m.grid; gy++ {
		for gx := 0; gx < m.grid; gx++ {
			var sumR, sumG, sumB, n int
			for py := 0; py < cellH; py += 2 {
				for px := 0; px < cellW; px += 2 {
					c := color.NRGBAModel.Convert(src.At(
						bounds.Min.X+gx*cellW+px,
						bounds.Min.Y+gy*cellH+py,
					)).(color.NRGBA)
					sumR += int(c.R)
					sumG += int(c.G)
					sumB += int(c.B)
					n++
				}
			}
			if n == 0 {
				continue
			}
			dr := sumR/n - int(bg.R)
			dg := sumG/n - int(bg.G)
			db := sumB/n - int(bg.B)
			if dr*dr+dg*dg+db*db > 900 {
				cells = append(cells, cell{x: gx, y: gy})
			}
		}
	}
	return cells
}

// buildOBJ emits one extruded cube per filled cell. Coordinates are
// normalized so the model is centered at the origin with unit scale.
func (m *ProceduralMesher) buildOBJ(cells []cell) []byte {
	var b strings.Builder
	b.WriteString("# prototype mesh, silhouette extrusion\n")

	scale := 2.0 / float64(m.grid)
	half := float64(m.grid) / 2
	depth := float64(m.depth) * scale

	vertIndex := 1
	for _, c := range cells {
		x0 := (float64(c.x) - half) * scale
		x1 := x0 + scale
		// grid y grows downward; obj y grows upward
		y1 := (half - float64(c.y)) * scale
		y0 := y1 - scale
		z0 := -depth / 2
		z1 := depth / 2

		for _, v := range [8][3]float64{
			{x0, y0, z0}, {x1, y0, z0}, {x1, y1, z0}, {x0, y1, z0},
			{x0, y0, z1}, {x1, y0, z1}, {x1, y1, z1}, {x0, y1, z1},
		} {
			fmt.Fprintf(&b, "v %.4f %.4f %.4f\n", v[0], v[1], v[2])
		}
		for _, f := range [6][4]int{
			{0, 1, 2, 3}, {5, 4, 7, 6}, {4, 0, 3, 7},
			{1, 5, 6, 2}, {3, 2, 6, 7}, {4, 5, 1, 0},
		} {
			fmt.Fprintf(&b, "f %d %d %d %d\n",
				vertIndex+f[0], vertIndex+f[1], vertIndex+f[2], vertIndex+f[3])
		}
		vertIndex += 8
	}
	return []byte(b.String())
}

// buildTurntable renders the extruded silhouette rotating about the
// vertical axis, one orthographic projection per frame.
func (m *ProceduralMesher) buildTurntable(ctx context.Context, cells []cell) ([]byte, error) {
	const size = 256
	palette := make(color.Palette, 0, 18)
	palette = append(palette, color.NRGBA{245, 245, 247, 255})
	for i := 0; i < 16; i++ {
		shade := uint8(70 + i*10)
		palette = append(palette, color.NRGBA{shade, shade, uint8(math.Min(float64(shade)+20, 255)), 255})
	}

	anim := &gif.GIF{}
	half := float64(m.grid) / 2
	pxPerCell := float64(size) / (float64(m.grid) * 1.6)

	for frame := 0; frame < m.frames; frame++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		angle := 2 * math.Pi * float64(frame) / float64(m.frames)
		sin, cos := math.Sin(angle), math.Cos(angle)

		img := image.NewPaletted(image.Rect(0, 0, size, size), palette)
		depthBuf := make([]float64, size*size)
		for i := range depthBuf {
			depthBuf[i] = math.Inf(-1)
		}

		for _, c := range cells {
			cx := float64(c.x) - half + 0.5
			cy := float64(c.y) - half + 0.5
			for dz := 0; dz < m.depth; dz++ {
				z := float64(dz) - float64(m.depth)/2 + 0.5
				// rotate about the vertical (y) axis
				sx := cx*cos + z*sin
				sz := -cx*sin + z*cos

				px := int(float64(size)/2 + sx*pxPerCell)
				py := int(float64(size)/2 + cy*pxPerCell)
				if px < 0 || py < 0 || px >= size || py >= size {
					continue
				}
				for oy := 0; oy < 2; oy++ {
					for ox := 0; ox < 2; ox++ {
						x, y := px+ox, py+oy
						if x >= size || y >= size {
							continue
						}
						idx := y*size + x
						if sz <= depthBuf[idx] {
							continue
						}
						depthBuf[idx] = sz
						shade := int((sz/half + 1) * 7.5)
						if shade < 0 {
							shade = 0
						} else if shade > 15 {
							shade = 15
						}
						img.SetColorIndex(x, y, uint8(1+shade))
					}
				}
			}
		}

		anim.Image = append(anim.Image, img)
		anim.Delay = append(anim.Delay, 8)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("mesh: encode turntable: %w", err)
	}
	return buf.Bytes(), nil
}

var _ Generator = (*ProceduralMesher)(nil)
