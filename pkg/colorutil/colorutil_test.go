package colorutil

import (
	"image/color"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#000000", color.RGBA{0, 0, 0, 255}, false},
		{"#ffffff", color.RGBA{255, 255, 255, 255}, false},
		{"#3b82f6", color.RGBA{0x3b, 0x82, 0xf6, 255}, false},
		{"fff", color.RGBA{255, 255, 255, 255}, false},
		{"#f00", color.RGBA{255, 0, 0, 255}, false},
		{"#11223380", color.RGBA{0x11, 0x22, 0x33, 0x80}, false},
		{"#12345", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseHex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, s := range []string{"#000000", "#ffffff", "#1e293b", "#f59e0b"} {
		if got := Hex(ParseHexOr(s, Black)); got != s {
			t.Errorf("Hex(ParseHex(%q)) = %q", s, got)
		}
	}
}

func TestPremultiplied(t *testing.T) {
	got := WithAlpha(color.RGBA{R: 200, G: 100, B: 50}, 128)
	want := color.RGBA{R: 100, G: 50, B: 25, A: 128}
	if got != want {
		t.Fatalf("WithAlpha = %v, want %v", got, want)
	}
}
