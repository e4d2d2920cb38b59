// Package geomap converts geographic coordinates to slippy-map tile
// coordinates and lays out the tiles needed to fill a map viewport.
package geomap

import (
	"math"

	"github.com/bpeel/flootay-sub000/internal/tilecache"
)

// LonToTile converts a longitude to the Web-Mercator tile column at the
// given zoom plus the pixel offset within that tile.
func LonToTile(lon float64, zoom int) (tile, pixel int) {
	x := (lon + 180.0) / 360.0 * float64(int(1)<<zoom)

	tileX, fracX := math.Modf(x)

	return int(tileX), int(math.Round(fracX * tilecache.TileSize))
}

// LatToTile converts a latitude to the Web-Mercator tile row at the given
// zoom plus the pixel offset within that tile.
func LatToTile(lat float64, zoom int) (tile, pixel int) {
	latRad := lat * math.Pi / 180.0
	y := (1.0 - math.Asinh(math.Tan(latRad))/math.Pi) / 2.0 *
		float64(int(1)<<zoom)

	tileY, fracY := math.Modf(y)

	return int(tileY), int(math.Round(fracY * tilecache.TileSize))
}

// Placement is one tile and the position its top-left corner should be
// drawn at.
type Placement struct {
	Key  tilecache.Key
	X, Y float64
}

// Layout returns the tiles covering a width×height viewport centred on the
// given position, with the viewport's centre drawn at (centerX, centerY).
func Layout(zoom int,
	lat, lon float64,
	centerX, centerY float64,
	width, height int) []Placement {
	const tileSize = tilecache.TileSize

	tileX, pixelX := LonToTile(lon, zoom)
	tileY, pixelY := LatToTile(lat, zoom)

	xTileStart := -((width/2 - pixelX + tileSize - 1) / tileSize)
	yTileStart := -((height/2 - pixelY + tileSize - 1) / tileSize)

	var placements []Placement

	for y := yTileStart; y*tileSize-pixelY < height; y++ {
		for x := xTileStart; x*tileSize-pixelX < width; x++ {
			placements = append(placements, Placement{
				Key: tilecache.Key{
					Zoom: zoom,
					X:    x + tileX,
					Y:    y + tileY,
				},
				X: centerX - float64(pixelX) +
					float64(x*tileSize),
				Y: centerY - float64(pixelY) +
					float64(y*tileSize),
			})
		}
	}

	return placements
}
