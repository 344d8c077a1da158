package window

import (
	"image"
	"testing"
)

func TestEffectiveArea(t *testing.T) {
	tests := []struct {
		name    string
		win     image.Rectangle
		margins Margins
		want    image.Rectangle
	}{
		{
			name:    "no margins",
			win:     image.Rect(0, 0, 1000, 600),
			margins: Margins{},
			want:    image.Rect(0, 0, 1000, 600),
		},
		{
			name:    "default margins",
			win:     image.Rect(0, 0, 1000, 600),
			margins: Margins{Left: 0.06, Right: 0.12, Top: 0.08, Bottom: 0.12},
			want:    image.Rect(60, 48, 880, 528),
		},
		{
			name:    "offset window",
			win:     image.Rect(200, 100, 1200, 700),
			margins: Margins{Left: 0.06, Right: 0.12, Top: 0.08, Bottom: 0.12},
			want:    image.Rect(260, 148, 1080, 628),
		},
		{
			name:    "uniform quarter margins",
			win:     image.Rect(0, 0, 400, 400),
			margins: Margins{Left: 0.25, Right: 0.25, Top: 0.25, Bottom: 0.25},
			want:    image.Rect(100, 100, 300, 300),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveArea(tt.win, tt.margins)
			if got != tt.want {
				t.Errorf("EffectiveArea(%v): got %v, want %v", tt.win, got, tt.want)
			}
		})
	}
}

func TestSubRegion(t *testing.T) {
	area := image.Rect(100, 50, 600, 250) // 500x200

	tests := []struct {
		name               string
		fx1, fy1, fx2, fy2 float64
		want               image.Rectangle
	}{
		{"full area", 0, 0, 1, 1, image.Rect(100, 50, 600, 250)},
		{"coordinate readout band", 0.35, 0, 0.65, 0.08, image.Rect(275, 50, 425, 66)},
		{"bottom right quadrant", 0.5, 0.5, 1, 1, image.Rect(350, 150, 600, 250)},
		{"thin strip", 0, 0.9, 1, 1, image.Rect(100, 230, 600, 250)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubRegion(area, tt.fx1, tt.fy1, tt.fx2, tt.fy2)
			if got != tt.want {
				t.Errorf("SubRegion(%v, %v, %v, %v): got %v, want %v",
					tt.fx1, tt.fy1, tt.fx2, tt.fy2, got, tt.want)
			}
		})
	}
}

func TestSubRegionComposesWithEffectiveArea(t *testing.T) {
	// The readout band derived from a margined window must stay inside
	// the window on any geometry.
	windows := []image.Rectangle{
		image.Rect(0, 0, 500, 300),
		image.Rect(-100, -50, 1820, 1030),
		image.Rect(37, 91, 1337, 791),
	}
	margins := Margins{Left: 0.06, Right: 0.12, Top: 0.08, Bottom: 0.12}

	for _, win := range windows {
		area := EffectiveArea(win, margins)
		if !area.In(win) {
			t.Errorf("effective area %v escapes window %v", area, win)
		}
		readout := SubRegion(area, 0.35, 0, 0.65, 0.08)
		if readout.Empty() {
			t.Errorf("window %v: readout region is empty", win)
		}
		if !readout.In(area) {
			t.Errorf("readout %v escapes effective area %v", readout, area)
		}
	}
}
