// MODUL: image_test
// ZWECK: Tests fuer Bild-Lade- und Verarbeitungsfunktionen
// INPUT: Synthetische Bilder, PNG- und GIF-Bytes
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, image, image/png, image/gif, bytes
// HINWEISE: Testet Dekodierung, Resize, Crop und Composite Operationen

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createPNGBytes erzeugt PNG-Bytes aus einem einfarbigen Testbild
func createPNGBytes(w, h int, c color.Color) []byte {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, rgba)
	return buf.Bytes()
}

// createGIFBytes erzeugt GIF-Bytes aus einem einfarbigen Testbild
func createGIFBytes(w, h int, c color.Color) []byte {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	_ = gif.Encode(&buf, rgba, nil)
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	pngData := createPNGBytes(100, 50, color.RGBA{255, 0, 0, 255})

	img, err := DecodeImage(pngData)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}

	if img.Width != 100 || img.Height != 50 {
		t.Errorf("Groesse = %dx%d, erwartet 100x50", img.Width, img.Height)
	}

	if img.Format != FormatPNG {
		t.Errorf("Format = %v, erwartet %v", img.Format, FormatPNG)
	}
}

func TestDecodeImageGIF(t *testing.T) {
	gifData := createGIFBytes(40, 30, color.RGBA{0, 255, 0, 255})

	img, err := DecodeImage(gifData)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}

	if img.Width != 40 || img.Height != 30 {
		t.Errorf("Groesse = %dx%d, erwartet 40x30", img.Width, img.Height)
	}

	if img.Format != FormatGIF {
		t.Errorf("Format = %v, erwartet %v", img.Format, FormatGIF)
	}
}

func TestDecodeImageInvalid(t *testing.T) {
	invalidData := []byte{0x00, 0x00, 0x00, 0x00}

	_, err := DecodeImage(invalidData)
	if err == nil {
		t.Error("Erwartet Fehler bei ungueltigem Format")
	}
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.png")
	if err := os.WriteFile(path, createPNGBytes(80, 60, color.White), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}

	if img.Width != 80 || img.Height != 60 {
		t.Errorf("Groesse = %dx%d, erwartet 80x60", img.Width, img.Height)
	}
}

func TestLoadImageMissing(t *testing.T) {
	_, err := LoadImage(filepath.Join(t.TempDir(), "fehlt.png"))
	if err == nil {
		t.Error("Erwartet Fehler bei fehlender Datei")
	}
}

func TestResizeImage(t *testing.T) {
	img, _ := DecodeImage(createPNGBytes(100, 100, color.White))

	resized, err := ResizeImage(img, 50, 50)
	if err != nil {
		t.Fatalf("ResizeImage() error = %v", err)
	}

	if resized.Width != 50 || resized.Height != 50 {
		t.Errorf("Groesse = %dx%d, erwartet 50x50", resized.Width, resized.Height)
	}
}

func TestResizeImageInvalidSize(t *testing.T) {
	img, _ := DecodeImage(createPNGBytes(100, 100, color.White))

	_, err := ResizeImage(img, 0, 50)
	if err == nil {
		t.Error("Erwartet Fehler bei Breite 0")
	}

	_, err = ResizeImage(img, 50, -1)
	if err == nil {
		t.Error("Erwartet Fehler bei negativer Hoehe")
	}
}

func TestResizeShortestEdge(t *testing.T) {
	tests := []struct {
		srcW, srcH, edge int
		expectW, expectH int
	}{
		{200, 100, 50, 100, 50},   // Breites Bild, Hoehe ist die kurze Kante
		{100, 200, 50, 50, 100},   // Hohes Bild, Breite ist die kurze Kante
		{100, 100, 224, 224, 224}, // Quadrat hochskalieren
		{248, 496, 248, 248, 496}, // Kurze Kante trifft bereits
	}

	for _, tt := range tests {
		img, _ := DecodeImage(createPNGBytes(tt.srcW, tt.srcH, color.White))

		resized, err := ResizeShortestEdge(img, tt.edge)
		if err != nil {
			t.Fatalf("ResizeShortestEdge(%d) error = %v", tt.edge, err)
		}

		if resized.Width != tt.expectW || resized.Height != tt.expectH {
			t.Errorf("ResizeShortestEdge(%dx%d, %d) = %dx%d, erwartet %dx%d",
				tt.srcW, tt.srcH, tt.edge, resized.Width, resized.Height, tt.expectW, tt.expectH)
		}
	}
}

func TestResizeShortestEdgeInvalid(t *testing.T) {
	img, _ := DecodeImage(createPNGBytes(100, 100, color.White))

	if _, err := ResizeShortestEdge(img, 0); err == nil {
		t.Error("Erwartet Fehler bei Kante 0")
	}
}

func TestCompositeAlpha(t *testing.T) {
	// Halbtransparentes Rot
	rgba := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			rgba.Set(x, y, color.RGBA{255, 0, 0, 128})
		}
	}

	img := &ImageInput{Image: rgba, Width: 10, Height: 10, Format: FormatPNG}
	composited := CompositeAlpha(img)

	// Nach Composite sollte Alpha 255 sein
	r, g, b, a := composited.Image.At(5, 5).RGBA()
	if a>>8 != 255 {
		t.Errorf("Alpha = %d, erwartet 255", a>>8)
	}

	// Farbe sollte gemischt sein (rot + weiss)
	if r>>8 < 127 || r>>8 > 255 {
		t.Errorf("Rot = %d, erwartet zwischen 127 und 255", r>>8)
	}
	_ = g
	_ = b
}

func TestCenterCrop(t *testing.T) {
	img, _ := DecodeImage(createPNGBytes(100, 100, color.White))

	cropped, err := CenterCrop(img, 50, 50)
	if err != nil {
		t.Fatalf("CenterCrop() error = %v", err)
	}

	if cropped.Width != 50 || cropped.Height != 50 {
		t.Errorf("Groesse = %dx%d, erwartet 50x50", cropped.Width, cropped.Height)
	}
}

func TestCenterCropTooLarge(t *testing.T) {
	img, _ := DecodeImage(createPNGBytes(50, 50, color.White))

	_, err := CenterCrop(img, 100, 100)
	if err == nil {
		t.Error("Erwartet Fehler wenn Crop groesser als Bild")
	}
}
