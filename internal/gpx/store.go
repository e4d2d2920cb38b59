// Package gpx loads GPS track logs into a time-indexed store and answers
// "where/how fast/how high" queries by timestamp with bounded-gap
// interpolation.
package gpx

// MaxTimeGap is the farthest, in seconds, a sample may be from the queried
// timestamp and still be used for it.
const MaxTimeGap = 5.0

// Point is one track sample. Time is in seconds since the Unix epoch,
// Speed in m/s, Elevation in metres and Distance the cumulative distance
// along the track in metres.
type Point struct {
	Time      float64
	Lat, Lon  float64
	Speed     float64
	Elevation float64
	Distance  float64
}

// Store owns a time-sorted, duplicate-collapsed array of track samples. It
// is immutable after parsing.
type Store struct {
	points []Point
}

// Points exposes the sorted samples, mainly for tooling.
func (s *Store) Points() []Point {
	return s.points
}

func lerp(t, a, b float64) float64 {
	return t*(b-a) + a
}

// Lookup finds the track data for a timestamp. Queries beyond the ends of
// the track, or inside it but farther than MaxTimeGap from every sample,
// report no fix. When both bracketing samples are within the gap the result
// is interpolated between them; when only one is, that sample is returned
// unmodified.
func (s *Store) Lookup(timestamp float64) (Point, bool) {
	points := s.points

	// Binary search for the first sample at or after the query.
	min, max := 0, len(points)
	for max > min {
		mid := (min + max) / 2
		if points[mid].Time < timestamp {
			min = mid + 1
		} else {
			max = mid
		}
	}

	if min >= len(points) || points[min].Time != timestamp {
		min--
	}

	if min <= 0 && timestamp <= points[0].Time {
		if points[0].Time-timestamp <= MaxTimeGap {
			return points[0], true
		}
		return Point{}, false
	}

	if min >= len(points)-1 {
		last := points[len(points)-1]
		if timestamp-last.Time <= MaxTimeGap {
			return last, true
		}
		return Point{}, false
	}

	if timestamp-points[min].Time > MaxTimeGap {
		if points[min+1].Time-timestamp <= MaxTimeGap {
			return points[min+1], true
		}
		return Point{}, false
	}

	if points[min+1].Time-timestamp > MaxTimeGap {
		return points[min], true
	}

	// Both samples are in range so interpolate them.
	a, b := points[min], points[min+1]
	t := (timestamp - a.Time) / (b.Time - a.Time)

	return Point{
		Time:      timestamp,
		Lat:       lerp(t, a.Lat, b.Lat),
		Lon:       lerp(t, a.Lon, b.Lon),
		Speed:     lerp(t, a.Speed, b.Speed),
		Elevation: lerp(t, a.Elevation, b.Elevation),
		Distance:  lerp(t, a.Distance, b.Distance),
	}, true
}
