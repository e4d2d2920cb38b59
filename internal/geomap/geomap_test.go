package geomap

import (
	"testing"

	"github.com/bpeel/flootay-sub000/internal/tilecache"
)

func TestLonToTile(t *testing.T) {
	tests := []struct {
		lon   float64
		zoom  int
		tile  int
		pixel int
	}{
		{-180.0, 1, 0, 0},
		{0.0, 1, 1, 0},
		{45.0, 1, 1, 64},
		{90.0, 2, 3, 0},
	}

	for _, test := range tests {
		tile, pixel := LonToTile(test.lon, test.zoom)
		if tile != test.tile || pixel != test.pixel {
			t.Errorf("LonToTile(%v, %d) = %d, %d; expected %d, %d",
				test.lon, test.zoom,
				tile, pixel,
				test.tile, test.pixel)
		}
	}
}

func TestLatToTile(t *testing.T) {
	// The equator sits exactly halfway down the tile grid.
	for zoom := 1; zoom <= 4; zoom++ {
		tile, pixel := LatToTile(0.0, zoom)
		if tile != 1<<(zoom-1) || pixel != 0 {
			t.Errorf("LatToTile(0, %d) = %d, %d; expected %d, 0",
				zoom, tile, pixel, 1<<(zoom-1))
		}
	}

	// Moving north moves up the grid.
	northTile, _ := LatToTile(60.0, 10)
	southTile, _ := LatToTile(-60.0, 10)
	equatorTile, _ := LatToTile(0.0, 10)

	if northTile >= equatorTile {
		t.Errorf("tile row %d for 60°N is not above the equator "+
			"row %d", northTile, equatorTile)
	}
	if southTile <= equatorTile {
		t.Errorf("tile row %d for 60°S is not below the equator "+
			"row %d", southTile, equatorTile)
	}
}

func TestLayout(t *testing.T) {
	// At zoom 1, lon 45° is 64 pixels into tile column 1 and the equator
	// is at the top edge of tile row 1.
	placements := Layout(1, 0.0, 45.0, 256.0, 256.0, 512, 512)

	if len(placements) != 12 {
		t.Fatalf("expected 12 placements, got %d", len(placements))
	}

	first := placements[0]
	expectedKey := tilecache.Key{Zoom: 1, X: 0, Y: 0}
	if first.Key != expectedKey {
		t.Errorf("first placement key %+v, expected %+v",
			first.Key, expectedKey)
	}
	if first.X != -64.0 || first.Y != 0.0 {
		t.Errorf("first placement at %v, %v; expected -64, 0",
			first.X, first.Y)
	}

	// The tile whose top-left corner contains the viewport centre.
	found := false
	for _, p := range placements {
		if p.Key == (tilecache.Key{Zoom: 1, X: 1, Y: 1}) {
			found = true
			if p.X != 192.0 || p.Y != 256.0 {
				t.Errorf("centre tile at %v, %v; "+
					"expected 192, 256", p.X, p.Y)
			}
		}
	}
	if !found {
		t.Errorf("the tile under the viewport centre wasn't laid out")
	}
}

func TestLayoutCoversViewport(t *testing.T) {
	const width, height = 512, 512

	placements := Layout(17, 45.1234, 7.5678, 256.0, 256.0, width, height)

	minX, minY := placements[0].X, placements[0].Y
	maxX, maxY := minX, minY

	for _, p := range placements {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	if minX > 0 || minY > 0 {
		t.Errorf("layout starts at %v, %v, leaving the top-left "+
			"corner uncovered", minX, minY)
	}
	if maxX+tilecache.TileSize < width || maxY+tilecache.TileSize < height {
		t.Errorf("layout ends at %v, %v, leaving the bottom-right "+
			"corner uncovered", maxX, maxY)
	}
}
