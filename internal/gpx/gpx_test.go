package gpx

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		source   string
		expected float64
	}{
		{"2023-04-29T12:30:00Z", 1682771400},
		{"1970-01-01T00:00:00Z", 0},
		{"2023-04-29T12:30:00.5Z", 1682771400.5},
		{"2023-04-29T12:30:00.25Z", 1682771400.25},
		{" 2023-04-29T12:30:00Z ", 1682771400},
	}

	for _, tt := range tests {
		got, err := ParseTime(tt.source)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.source, err)
			continue
		}
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("%q: got %v, expected %v",
				tt.source, got, tt.expected)
		}
	}
}

func TestParseTimeTimezone(t *testing.T) {
	for _, source := range []string{
		"2023-04-29T12:30:00+02:00",
		"2023-04-29T12:30:00-07:00",
	} {
		_, err := ParseTime(source)
		if !errors.Is(err, ErrTimezone) {
			t.Errorf("%q: expected ErrTimezone, got %v",
				source, err)
		}
	}
}

func TestParseTimeInvalid(t *testing.T) {
	for _, source := range []string{
		"",
		"yesterday",
		"2023-4-29T12:30:00Z",
		"2023-04-29 12:30:00Z",
		"2023-04-29T12:30:00Zjunk",
	} {
		_, err := ParseTime(source)
		if err == nil {
			t.Errorf("%q: expected an error", source)
		}
		if errors.Is(err, ErrTimezone) {
			t.Errorf("%q: should not be a timezone error", source)
		}
	}
}

func gpxDocument(points string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<gpx xmlns="http://www.topografix.com/GPX/1/1" version="1.1">
 <trk><trkseg>` + points + `</trkseg></trk>
</gpx>
`
}

func trkpt(lat, lon, ele, timestamp string) string {
	return `<trkpt lat="` + lat + `" lon="` + lon + `">
<ele>` + ele + `</ele><time>` + timestamp + `</time></trkpt>`
}

func mustParse(t *testing.T, doc string) *Store {
	t.Helper()

	store, err := Parse("test", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	return store
}

func TestParseBasic(t *testing.T) {
	store := mustParse(t, gpxDocument(
		trkpt("50.0", "4.0", "100", "2023-04-29T12:30:00Z")+
			trkpt("50.001", "4.0", "110", "2023-04-29T12:30:10Z")))

	points := store.Points()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	// 0.001 degrees of latitude is about 111 metres.
	dist := points[1].Distance
	if dist < 110 || dist > 112 {
		t.Errorf("distance = %g, expected about 111", dist)
	}

	// Without a recorded speed it is derived from distance over time.
	speed := points[1].Speed
	if math.Abs(speed-dist/10) > 1e-9 {
		t.Errorf("speed = %g, expected %g", speed, dist/10)
	}

	if points[0].Distance != 0 {
		t.Errorf("first point distance = %g", points[0].Distance)
	}
}

func TestParseRecordedSpeed(t *testing.T) {
	doc := gpxDocument(`<trkpt lat="50.0" lon="4.0">
<ele>100</ele><time>2023-04-29T12:30:00Z</time>
<extensions><speed>3.5</speed></extensions></trkpt>` +
		trkpt("50.001", "4.0", "110", "2023-04-29T12:30:10Z"))

	store := mustParse(t, doc)

	if got := store.Points()[0].Speed; got != 3.5 {
		t.Errorf("speed = %g, expected recorded 3.5", got)
	}
}

func TestParseSortsAndDeduplicates(t *testing.T) {
	// Out of order, with a duplicated timestamp. The first sample with
	// a given timestamp wins.
	store := mustParse(t, gpxDocument(
		trkpt("50.002", "4.0", "120", "2023-04-29T12:30:20Z")+
			trkpt("50.0", "4.0", "100", "2023-04-29T12:30:00Z")+
			trkpt("50.5", "4.5", "999", "2023-04-29T12:30:00Z")))

	points := store.Points()
	if len(points) != 2 {
		t.Fatalf("expected 2 points after dedupe, got %d",
			len(points))
	}

	if points[0].Elevation != 100 {
		t.Errorf("dedupe kept the wrong sample: %+v", points[0])
	}
	if points[0].Time >= points[1].Time {
		t.Errorf("points not sorted: %v >= %v",
			points[0].Time, points[1].Time)
	}
}

func TestParseDistanceThroughDuplicate(t *testing.T) {
	// Distance accumulates in document order, so the leg through a
	// duplicated-timestamp sample still counts even though the
	// duplicate itself is collapsed away.
	store := mustParse(t, gpxDocument(
		trkpt("50.0", "4.0", "100", "2023-04-29T12:30:00Z")+
			trkpt("50.001", "4.0", "110", "2023-04-29T12:30:10Z")+
			trkpt("50.002", "4.0", "999", "2023-04-29T12:30:10Z")+
			trkpt("50.003", "4.0", "120", "2023-04-29T12:30:20Z")))

	points := store.Points()
	if len(points) != 3 {
		t.Fatalf("expected 3 points after dedupe, got %d",
			len(points))
	}

	// Three legs of about 111 metres each.
	dist := points[2].Distance
	if dist < 330 || dist > 336 {
		t.Errorf("distance = %g, expected about 333", dist)
	}
}

func TestParseDropsIncompletePoints(t *testing.T) {
	// A missing time, elevation or position drops the point without
	// an error.
	doc := gpxDocument(`<trkpt lat="50.0" lon="4.0"><ele>100</ele></trkpt>` +
		`<trkpt lat="50.0" lon="4.0"><time>2023-04-29T12:30:00Z</time></trkpt>` +
		`<trkpt><ele>100</ele><time>2023-04-29T12:30:05Z</time></trkpt>` +
		trkpt("50.0", "4.0", "100", "2023-04-29T12:30:10Z"))

	store := mustParse(t, doc)

	if got := len(store.Points()); got != 1 {
		t.Errorf("expected 1 usable point, got %d", got)
	}
}

func TestParseInvalidValues(t *testing.T) {
	// A value that is present but malformed or out of range is an
	// error, unlike an absent one.
	tests := []struct {
		name string
		doc  string
	}{
		{"outOfRangeLat",
			trkpt("91.0", "4.0", "100", "2023-04-29T12:30:00Z")},
		{"outOfRangeLon",
			trkpt("50.0", "181.0", "100", "2023-04-29T12:30:00Z")},
		{"malformedLat",
			trkpt("north", "4.0", "100", "2023-04-29T12:30:00Z")},
		{"malformedEle",
			trkpt("50.0", "4.0", "high", "2023-04-29T12:30:00Z")},
		{"malformedTime",
			trkpt("50.0", "4.0", "100", "yesterday")},
		{"malformedSpeed", `<trkpt lat="50.0" lon="4.0">
<ele>100</ele><time>2023-04-29T12:30:00Z</time>
<extensions><speed>fast</speed></extensions></trkpt>`},
	}

	for _, tt := range tests {
		_, err := Parse("test", strings.NewReader(gpxDocument(tt.doc)))
		if err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}

func TestParseNonUTCTimestamp(t *testing.T) {
	doc := gpxDocument(
		trkpt("50.0", "4.0", "100", "2023-04-29T12:30:00+02:00"))

	_, err := Parse("test", strings.NewReader(doc))
	if !errors.Is(err, ErrTimezone) {
		t.Errorf("expected ErrTimezone, got %v", err)
	}
}

func TestParseEmptyTrack(t *testing.T) {
	_, err := Parse("test", strings.NewReader(gpxDocument("")))
	if err == nil || !strings.Contains(err.Error(), "no track points") {
		t.Errorf("expected a no-track-points error, got %v", err)
	}
}

func lookupStore(t *testing.T) *Store {
	t.Helper()

	// Two close samples, then a 60 second gap to a third.
	return mustParse(t, gpxDocument(
		trkpt("50.0", "4.0", "100", "2023-04-29T12:30:00Z")+
			trkpt("50.001", "4.002", "110", "2023-04-29T12:30:10Z")+
			trkpt("50.002", "4.004", "120", "2023-04-29T12:31:10Z")))
}

func TestLookupExact(t *testing.T) {
	store := lookupStore(t)

	point, ok := store.Lookup(1682771400)
	if !ok {
		t.Fatalf("expected a fix at an exact sample time")
	}
	if point.Elevation != 100 || point.Lat != 50.0 {
		t.Errorf("unexpected sample %+v", point)
	}
}

func TestLookupInterpolatesAllFields(t *testing.T) {
	store := lookupStore(t)

	point, ok := store.Lookup(1682771405)
	if !ok {
		t.Fatalf("expected a fix between close samples")
	}

	checks := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"lat", point.Lat, 50.0005},
		{"lon", point.Lon, 4.001},
		{"elevation", point.Elevation, 105},
		{"time", point.Time, 1682771405},
	}

	for _, c := range checks {
		if math.Abs(c.got-c.expected) > 1e-6 {
			t.Errorf("%s = %v, expected %v",
				c.name, c.got, c.expected)
		}
	}

	points := store.Points()
	expSpeed := (points[0].Speed + points[1].Speed) / 2
	if math.Abs(point.Speed-expSpeed) > 1e-9 {
		t.Errorf("speed = %v, expected %v", point.Speed, expSpeed)
	}
}

func TestLookupGapFailure(t *testing.T) {
	store := lookupStore(t)

	// The middle of the 60 second gap is more than MaxTimeGap from
	// both neighbours.
	if _, ok := store.Lookup(1682771440); ok {
		t.Errorf("expected no fix in the middle of a long gap")
	}
}

func TestLookupOneSidedGap(t *testing.T) {
	store := lookupStore(t)

	// 3 seconds past the second sample. The next sample is 57 seconds
	// away so only the earlier one is usable and it is returned as is.
	point, ok := store.Lookup(1682771413)
	if !ok {
		t.Fatalf("expected a fix near the second sample")
	}
	if point.Elevation != 110 {
		t.Errorf("expected the boundary sample, got %+v", point)
	}

	// And symmetrically, 3 seconds before the third sample.
	point, ok = store.Lookup(1682771467)
	if !ok {
		t.Fatalf("expected a fix near the third sample")
	}
	if point.Elevation != 120 {
		t.Errorf("expected the boundary sample, got %+v", point)
	}
}

func TestLookupEnds(t *testing.T) {
	store := lookupStore(t)

	// Slightly before the first sample, within the gap.
	point, ok := store.Lookup(1682771397)
	if !ok || point.Elevation != 100 {
		t.Errorf("expected the first sample, got %+v ok=%v",
			point, ok)
	}

	// Far before the first sample.
	if _, ok := store.Lookup(1682771300); ok {
		t.Errorf("expected no fix long before the track")
	}

	// Slightly after the last sample.
	point, ok = store.Lookup(1682771473)
	if !ok || point.Elevation != 120 {
		t.Errorf("expected the last sample, got %+v ok=%v",
			point, ok)
	}

	// Far after the last sample.
	if _, ok := store.Lookup(1682771600); ok {
		t.Errorf("expected no fix long after the track")
	}
}
