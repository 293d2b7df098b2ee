package render

import (
	"log"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Fonts holds the faces used by the renderer. Faces are created once;
// gg re-creating faces per frame is measurably slow.
type Fonts struct {
	Small  font.Face
	Medium font.Face
	Large  font.Face
	Loaded bool // false means every face is the basicfont fallback
}

var fontSearchPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
	"C:\\Windows\\Fonts\\arialbd.ttf",
	"C:\\Windows\\Fonts\\arial.ttf",
}

// findFontPath returns the first usable font file, preferring an explicit path
func findFontPath(preferred string) string {
	if preferred != "" {
		if _, err := os.Stat(preferred); err == nil {
			return preferred
		}
		log.Printf("⚠️ Font %s not found, searching system fonts", preferred)
	}
	for _, p := range fontSearchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if matches, _ := filepath.Glob("*.ttf"); len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// LoadFonts parses a TrueType font at three sizes scaled to the canvas
// height. Any failure falls back to basicfont.
func LoadFonts(path string, canvasHeight int) Fonts {
	fallback := Fonts{
		Small:  basicfont.Face7x13,
		Medium: basicfont.Face7x13,
		Large:  basicfont.Face7x13,
	}

	path = findFontPath(path)
	if path == "" {
		log.Println("⚠️ No font found, using built-in bitmap font")
		return fallback
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("⚠️ Failed to read font file: %v", err)
		return fallback
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		log.Printf("⚠️ Failed to parse font: %v", err)
		return fallback
	}

	scale := float64(canvasHeight) / 1920
	sizes := [3]float64{28 * scale, 40 * scale, 72 * scale}
	var faces [3]font.Face
	for i, size := range sizes {
		faces[i], err = opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			log.Printf("⚠️ Failed to create font face: %v", err)
			return fallback
		}
	}

	log.Printf("✅ Fonts loaded from: %s", path)
	return Fonts{Small: faces[0], Medium: faces[1], Large: faces[2], Loaded: true}
}
