package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bpeel/flootay-sub000/internal/fileerror"
)

// earthRadius is the WGS84 equatorial radius in metres, used for the
// haversine distance between consecutive samples.
const earthRadius = 6378137.0

type rawPoint struct {
	lat, lon  float64
	time      float64
	elevation float64
	speed     float64
	hasTime   bool
	hasEle    bool
	hasSpeed  bool
}

type parser struct {
	inPoint    bool
	pointDepth int
	depth      int
	point      rawPoint
	field      string
	chardata   strings.Builder

	points   []Point
	distance float64
}

func (p *parser) startElement(e xml.StartElement) error {
	p.depth++

	if !p.inPoint {
		if e.Name.Local == "trkpt" {
			p.inPoint = true
			p.pointDepth = p.depth
			p.point = rawPoint{lat: math.NaN(), lon: math.NaN()}

			for _, attr := range e.Attr {
				var min, max float64

				switch attr.Name.Local {
				case "lat":
					min, max = -90.0, 90.0
				case "lon":
					min, max = -180.0, 180.0
				default:
					continue
				}

				v, err := strconv.ParseFloat(attr.Value, 64)
				if err != nil || v < min || v > max {
					return fmt.Errorf("invalid %s %q",
						attr.Name.Local, attr.Value)
				}

				if attr.Name.Local == "lat" {
					p.point.lat = v
				} else {
					p.point.lon = v
				}
			}
		}
		return nil
	}

	switch e.Name.Local {
	case "time", "ele", "speed":
		p.field = e.Name.Local
		p.chardata.Reset()
	}

	return nil
}

func (p *parser) endElement() error {
	if p.inPoint {
		value := strings.TrimSpace(p.chardata.String())

		switch p.field {
		case "time":
			t, err := ParseTime(value)
			if err != nil {
				return err
			}
			p.point.time = t
			p.point.hasTime = true
		case "ele":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid ele %q", value)
			}
			p.point.elevation = v
			p.point.hasEle = true
		case "speed":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid speed %q", value)
			}
			p.point.speed = v
			p.point.hasSpeed = true
		}
		p.field = ""

		if p.depth == p.pointDepth {
			p.inPoint = false
			pt := p.point
			// Samples missing a timestamp, an elevation or a
			// position can't be interpolated so skip them.
			if pt.hasTime && pt.hasEle &&
				!math.IsNaN(pt.lat) && !math.IsNaN(pt.lon) {
				p.addPoint(pt)
			}
		}
	}

	p.depth--

	return nil
}

// addPoint accumulates the distance covered since the previously added
// sample and, when no speed was recorded, derives one from it. Derivation
// happens in document order, before sorting, so a duplicated timestamp
// still contributes its leg to the cumulative distance.
func (p *parser) addPoint(pt rawPoint) {
	speed := pt.speed

	if n := len(p.points); n > 0 {
		prev := p.points[n-1]

		step := haversineDistance(prev.Lat, prev.Lon, pt.lat, pt.lon)
		p.distance += step

		if !pt.hasSpeed {
			// A repeated or out-of-order timestamp would divide
			// by zero so reuse the previous speed instead.
			if dt := pt.time - prev.Time; dt > 0 {
				speed = step / dt
			} else {
				speed = prev.Speed
			}
		}
	}

	p.points = append(p.points, Point{
		Time:      pt.time,
		Lat:       pt.lat,
		Lon:       pt.lon,
		Speed:     speed,
		Elevation: pt.elevation,
		Distance:  p.distance,
	})
}

// haversineDistance is the great-circle distance in metres between two
// positions given in degrees.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180.0

	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2.0 * earthRadius * math.Asin(math.Sqrt(a))
}

// Parse reads a GPX document and builds the sample store. The name is only
// used in error messages. A track point with a malformed or out-of-range
// value is an error; only points with absent sub-elements are skipped.
func Parse(name string, r io.Reader) (*Store, error) {
	p := parser{}

	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			err = p.startElement(t)
		case xml.EndElement:
			err = p.endElement()
		case xml.CharData:
			if p.field != "" {
				p.chardata.Write(t)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	if len(p.points) == 0 {
		return nil, fmt.Errorf("%s: no track points", name)
	}

	sort.SliceStable(p.points, func(i, j int) bool {
		return p.points[i].Time < p.points[j].Time
	})

	// Collapse samples that share a timestamp, keeping the first.
	deduped := p.points[:1]
	for _, pt := range p.points[1:] {
		if pt.Time != deduped[len(deduped)-1].Time {
			deduped = append(deduped, pt)
		}
	}

	return &Store{points: deduped}, nil
}

// LoadFile parses the GPX file at path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileerror.Classify(path, err)
	}
	defer f.Close()

	return Parse(path, f)
}
