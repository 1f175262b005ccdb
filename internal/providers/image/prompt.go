package image

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const productPromptScaffold = `Create a professional product render of: %s

STRICT REQUIREMENTS:
- Clean, plain white or light gray background
- Object must be perfectly centered in frame
- No environment, scene, or background elements
- Studio lighting with soft shadows
- High detail product photography style
- Single isolated object only
- No text, watermarks, or labels
- Professional 3D render quality
- Object should fill 70-80%% of the frame`

// BuildProductPrompt wraps a user prompt with the scaffolding that keeps
// hosted providers producing clean, centered product renders.
func BuildProductPrompt(prompt, refinementNotes string) string {
	full := fmt.Sprintf(productPromptScaffold, prompt)
	if notes := strings.TrimSpace(refinementNotes); notes != "" {
		full += "\n\nADDITIONAL REFINEMENTS:\n" + notes
	}
	return full
}

var titleCaser = cases.Title(language.English)

// DisplayName derives a gallery display name from a prompt, title-cased
// and truncated.
func DisplayName(prefix, prompt string) string {
	snippet := strings.TrimSpace(prompt)
	if len(snippet) > 50 {
		snippet = strings.TrimSpace(snippet[:50]) + "..."
	}
	return prefix + " - " + titleCaser.String(snippet)
}

// ArtifactFilename builds a unique storage filename: an optional prefix,
// a random hex id, and a UTC timestamp.
func ArtifactFilename(prefix, ext string) string {
	hexID := strings.ReplaceAll(uuid.New().String(), "-", "")
	name := fmt.Sprintf("%s_%s.%s", hexID, time.Now().UTC().Format("20060102_150405"), ext)
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name
}
