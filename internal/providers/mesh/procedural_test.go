package mesh

import (
	"bytes"
	"context"
	"image/gif"
	"strings"
	"testing"

	imgprov "assetforge/internal/providers/image"
)

func sourceImage(t *testing.T, prompt string) []byte {
	t.Helper()
	gen := imgprov.NewProceduralGenerator()
	res, err := gen.Generate(context.Background(), imgprov.Request{Prompt: prompt})
	if err != nil {
		t.Fatalf("render source image: %v", err)
	}
	return res.Data
}

func TestGenerateProducesOBJAndGIF(t *testing.T) {
	m := NewProceduralMesher()
	res, err := m.Generate(context.Background(), Request{
		Prompt:    "a red sword",
		ImageData: sourceImage(t, "a red sword"),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	obj := string(res.OBJData)
	if !strings.Contains(obj, "v ") || !strings.Contains(obj, "f ") {
		t.Fatalf("obj output has no geometry")
	}
	if !strings.HasSuffix(res.OBJFilename, ".obj") {
		t.Fatalf("obj filename = %q", res.OBJFilename)
	}

	img, err := gif.DecodeAll(bytes.NewReader(res.GIFData))
	if err != nil {
		t.Fatalf("turntable is not a GIF: %v", err)
	}
	if len(img.Image) != 24 {
		t.Fatalf("turntable frames = %d, want 24", len(img.Image))
	}
}

func TestGenerateRequiresImage(t *testing.T) {
	m := NewProceduralMesher()
	if _, err := m.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatalf("missing image accepted")
	}
}

func TestGenerateRejectsUndecodableImage(t *testing.T) {
	m := NewProceduralMesher()
	if _, err := m.Generate(context.Background(), Request{Prompt: "x", ImageData: []byte("not an image")}); err == nil {
		t.Fatalf("junk bytes accepted")
	}
}
