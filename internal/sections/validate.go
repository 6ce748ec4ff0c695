package sections

import (
	"fmt"
	"strings"
	"time"

	"dqsurvey/internal/catalog"
)

var surveyCatalog = catalog.MustDefault()

func (r *Section1Record) Validate() error {
	fe := &fieldErrors{section: 1}
	requireText(fe, "dataset_name", r.DatasetName)
	requireText(fe, "dataset_provider", r.DatasetProvider)
	requireText(fe, "evaluator_name", r.EvaluatorName)
	requireOption(fe, "evaluation_type", "evaluationType", r.EvaluationType)
	if r.EvaluatorEmail != "" && !strings.Contains(r.EvaluatorEmail, "@") {
		fe.add("evaluator_email", "must be an email address")
	}
	checkScore(fe, "source_credibility", r.SourceCredibility)
	checkScore(fe, "documentation_availability", r.DocumentationAvailability)
	return fe.err()
}

func (r *Section2Record) Validate() error {
	fe := &fieldErrors{section: 2}
	requireID(fe, "section1_id", r.Section1ID)
	requireOption(fe, "data_type", "dataType", r.DataType)
	requireOption(fe, "processing_level", "processingLevel", r.ProcessingLevel)
	if r.AoiMethod != "" {
		requireOption(fe, "aoi_method", "aoiMethod", r.AoiMethod)
	}
	checkRange(fe, "aoi_min_lon", r.AoiMinLon, -180, 180)
	checkRange(fe, "aoi_max_lon", r.AoiMaxLon, -180, 180)
	checkRange(fe, "aoi_min_lat", r.AoiMinLat, -90, 90)
	checkRange(fe, "aoi_max_lat", r.AoiMaxLat, -90, 90)
	if r.AoiMinLon != nil && r.AoiMaxLon != nil && *r.AoiMinLon > *r.AoiMaxLon {
		fe.add("aoi_min_lon", "must not exceed aoi_max_lon")
	}
	if r.AoiMinLat != nil && r.AoiMaxLat != nil && *r.AoiMinLat > *r.AoiMaxLat {
		fe.add("aoi_min_lat", "must not exceed aoi_max_lat")
	}
	for name, v := range map[string]*float64{
		"pixel_resolution":      r.PixelResolution,
		"grid_resolution":       r.GridResolution,
		"ml_resolution":         r.MlResolution,
		"prediction_resolution": r.PredictionResolution,
		"aggregation_units":     r.AggregationUnits,
	} {
		if v != nil && *v <= 0 {
			fe.add(name, "must be positive")
		}
	}
	start, okStart := parseDate(r.TemporalStart)
	end, okEnd := parseDate(r.TemporalEnd)
	if okStart && okEnd && start.After(end) {
		fe.add("temporal_start", "must not be after temporal_end")
	}
	checkScore(fe, "spatial_coverage_score", r.SpatialCoverageScore)
	checkScore(fe, "temporal_coverage_score", r.TemporalCoverageScore)
	checkScore(fe, "resolution_score", r.ResolutionScore)
	return fe.err()
}

func (r *Section3Record) Validate() error {
	fe := &fieldErrors{section: 3}
	requireID(fe, "section1_id", r.Section1ID)
	requireID(fe, "section2_id", r.Section2ID)
	checkScores(fe, r)
	return fe.err()
}

func (r *Section4Record) Validate() error {
	fe := &fieldErrors{section: 4}
	requireID(fe, "section1_id", r.Section1ID)
	requireID(fe, "section2_id", r.Section2ID)
	requireID(fe, "section3_id", r.Section3ID)
	checkScores(fe, r)
	return fe.err()
}

func (r *Section5Record) Validate() error {
	fe := &fieldErrors{section: 5}
	requireID(fe, "section1_id", r.Section1ID)
	requireID(fe, "section2_id", r.Section2ID)
	requireID(fe, "section3_id", r.Section3ID)
	if r.Section4ID != nil && *r.Section4ID <= 0 {
		fe.add("section4_id", "must be a positive id or null")
	}
	checkScores(fe, r)
	return fe.err()
}

func checkScores(fe *fieldErrors, rec Record) {
	for name, v := range ScoreFields(rec) {
		v := v
		checkScore(fe, name, &v)
	}
}

func requireText(fe *fieldErrors, name, v string) {
	if strings.TrimSpace(v) == "" {
		fe.add(name, "is required")
	}
}

func requireID(fe *fieldErrors, name string, id int64) {
	if id <= 0 {
		fe.add(name, "is required")
	}
}

func requireOption(fe *fieldErrors, name, fieldID, v string) {
	if strings.TrimSpace(v) == "" {
		fe.add(name, "is required")
		return
	}
	f, ok := surveyCatalog.Field(fieldID)
	if !ok {
		return
	}
	for _, opt := range f.Options {
		if opt == v {
			return
		}
	}
	fe.add(name, fmt.Sprintf("must be one of %s", strings.Join(f.Options, ", ")))
}

func checkScore(fe *fieldErrors, name string, v *int) {
	if v == nil {
		return
	}
	if !surveyCatalog.Scale.Contains(*v) {
		fe.add(name, fmt.Sprintf("must be between %d and %d", surveyCatalog.Scale.Min, surveyCatalog.Scale.Max))
	}
}

func checkRange(fe *fieldErrors, name string, v *float64, lo, hi float64) {
	if v != nil && (*v < lo || *v > hi) {
		fe.add(name, fmt.Sprintf("must be between %g and %g", lo, hi))
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
