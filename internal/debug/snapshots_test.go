package debug

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 30), uint8(y * 30), 0, 255})
		}
	}
	return img
}

func TestNew_DisabledWithoutDir(t *testing.T) {
	if s := New(""); s != nil {
		t.Error("empty dir must disable snapshots")
	}
}

func TestSave_NilSafe(t *testing.T) {
	var disabled *Snapshots
	disabled.Save("session", 1, testImage())

	s := New(t.TempDir())
	if s == nil {
		t.Fatal("expected an enabled snapshot writer")
	}
	s.Save("session", 1, nil)
}

func TestSave_ConsecutiveFailuresKeepDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if s == nil {
		t.Fatal("expected an enabled snapshot writer")
	}

	// Same attempt twice: back-to-back extraction failures before the
	// next movement. Both frames must survive.
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	s.Save(id, 2, testImage())
	s.Save(id, 2, testImage())

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("files: got %d, want 2", len(entries))
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".png" {
			t.Errorf("unexpected file %q", e.Name())
		}
		if got := e.Name()[:8]; got != id[:8] {
			t.Errorf("file %q not prefixed with the session id", e.Name())
		}
	}
}
