package sections

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Count is the number of survey sections.
const Count = 5

// ConformanceSection is the section that may be skipped for primary data.
const ConformanceSection = 4

// ProcessingLevelPrimary marks a dataset as primary data; such surveys skip conformance.
const ProcessingLevelPrimary = "primary"

// Record is a persisted section payload.
type Record interface {
	// Section returns the 1-based section number.
	Section() int
	// RecordID returns the server-generated id, 0 before creation.
	RecordID() int64
	SetRecordID(id int64)
	// Parents returns the foreign ids of prior sections keyed by section number.
	// A zero value marks an absent (skipped) parent.
	Parents() map[int]int64
	Validate() error
}

// SectionKey returns the catalog id of section n ("section3").
func SectionKey(n int) string {
	return fmt.Sprintf("section%d", n)
}

// SectionNumber parses a catalog section id back to its number.
func SectionNumber(key string) (int, bool) {
	if !strings.HasPrefix(key, "section") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(key, "section"))
	if err != nil || n < 1 || n > Count {
		return 0, false
	}
	return n, true
}

// NewRecord returns an empty record for section n.
func NewRecord(n int) (Record, error) {
	switch n {
	case 1:
		return &Section1Record{}, nil
	case 2:
		return &Section2Record{}, nil
	case 3:
		return &Section3Record{}, nil
	case 4:
		return &Section4Record{}, nil
	case 5:
		return &Section5Record{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown section %d", ErrInvalidInput, n)
	}
}

// Section1Record holds basic dataset and evaluator information.
type Section1Record struct {
	ID                        int64      `json:"id,omitempty"`
	DatasetName               string     `json:"dataset_name"`
	DatasetURL                string     `json:"dataset_url,omitempty"`
	DatasetProvider           string     `json:"dataset_provider"`
	EvaluatorName             string     `json:"evaluator_name"`
	EvaluatorEmail            string     `json:"evaluator_email,omitempty"`
	EvaluationType            string     `json:"evaluation_type"`
	UseCaseDescription        string     `json:"use_case_description,omitempty"`
	SourceCredibility         *int       `json:"source_credibility"`
	DocumentationAvailability *int       `json:"documentation_availability"`
	CreatedAt                 *time.Time `json:"created_at,omitempty"`
}

// Section2Record holds dataset descriptives.
type Section2Record struct {
	ID                         int64      `json:"id,omitempty"`
	Section1ID                 int64      `json:"section1_id"`
	DataType                   string     `json:"data_type"`
	ProcessingLevel            string     `json:"processing_level"`
	PixelResolution            *float64   `json:"pixel_resolution"`
	PixelResolutionUnit        string     `json:"pixel_resolution_unit,omitempty"`
	GridResolution             *float64   `json:"grid_resolution"`
	GridResolutionUnit         string     `json:"grid_resolution_unit,omitempty"`
	MlResolution               *float64   `json:"ml_resolution"`
	MlResolutionUnit           string     `json:"ml_resolution_unit,omitempty"`
	PredictionResolution       *float64   `json:"prediction_resolution"`
	PredictionResolutionUnit   string     `json:"prediction_resolution_unit,omitempty"`
	AggregationLevel           string     `json:"aggregation_level,omitempty"`
	AggregationUnits           *float64   `json:"aggregation_units"`
	OtherResolutionDescription string     `json:"other_resolution_description,omitempty"`
	AoiMethod                  string     `json:"aoi_method,omitempty"`
	AoiGeography               string     `json:"aoi_geography,omitempty"`
	AoiMinLon                  *float64   `json:"aoi_min_lon"`
	AoiMinLat                  *float64   `json:"aoi_min_lat"`
	AoiMaxLon                  *float64   `json:"aoi_max_lon"`
	AoiMaxLat                  *float64   `json:"aoi_max_lat"`
	AoiFileName                string     `json:"aoi_file_name,omitempty"`
	TemporalStart              string     `json:"temporal_start,omitempty"`
	TemporalEnd                string     `json:"temporal_end,omitempty"`
	OpenAccess                 *bool      `json:"open_access"`
	SpatialCoverageScore       *int       `json:"spatial_coverage_score"`
	TemporalCoverageScore      *int       `json:"temporal_coverage_score"`
	ResolutionScore            *int       `json:"resolution_score"`
	CreatedAt                  *time.Time `json:"created_at,omitempty"`
}

// Section3Record holds design-quality scores for either evaluation type.
type Section3Record struct {
	ID                     int64      `json:"id,omitempty"`
	Section1ID             int64      `json:"section1_id"`
	Section2ID             int64      `json:"section2_id"`
	DesignSpatialAccuracy  *int       `json:"design_spatial_accuracy"`
	DesignThematicAccuracy *int       `json:"design_thematic_accuracy"`
	DesignCompleteness     *int       `json:"design_completeness"`
	DesignConsistency      *int       `json:"design_consistency"`
	DesignTimeliness       *int       `json:"design_timeliness"`
	DesignNotes            string     `json:"design_notes,omitempty"`
	UseCaseSpatialFit      *int       `json:"use_case_spatial_fit"`
	UseCaseTemporalFit     *int       `json:"use_case_temporal_fit"`
	UseCaseThematicFit     *int       `json:"use_case_thematic_fit"`
	UseCaseCompleteness    *int       `json:"use_case_completeness"`
	UseCaseNotes           string     `json:"use_case_notes,omitempty"`
	CreatedAt              *time.Time `json:"created_at,omitempty"`
}

// Section4Record holds conformance scores.
type Section4Record struct {
	ID                  int64      `json:"id,omitempty"`
	Section1ID          int64      `json:"section1_id"`
	Section2ID          int64      `json:"section2_id"`
	Section3ID          int64      `json:"section3_id"`
	ConformanceStandard string     `json:"conformance_standard,omitempty"`
	MetadataStandard    *int       `json:"metadata_standard"`
	FormatStandard      *int       `json:"format_standard"`
	QualityReporting    *int       `json:"quality_reporting"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
}

// Section5Record holds context scores. Section4ID is nil when conformance was skipped.
type Section5Record struct {
	ID              int64      `json:"id,omitempty"`
	Section1ID      int64      `json:"section1_id"`
	Section2ID      int64      `json:"section2_id"`
	Section3ID      int64      `json:"section3_id"`
	Section4ID      *int64     `json:"section4_id"`
	Accessibility   *int       `json:"accessibility"`
	Licensing       *int       `json:"licensing"`
	Maintenance     *int       `json:"maintenance"`
	CommunityUse    *int       `json:"community_use"`
	ContextComments string     `json:"context_comments,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

func (*Section1Record) Section() int { return 1 }
func (*Section2Record) Section() int { return 2 }
func (*Section3Record) Section() int { return 3 }
func (*Section4Record) Section() int { return 4 }
func (*Section5Record) Section() int { return 5 }

func (r *Section1Record) RecordID() int64 { return r.ID }
func (r *Section2Record) RecordID() int64 { return r.ID }
func (r *Section3Record) RecordID() int64 { return r.ID }
func (r *Section4Record) RecordID() int64 { return r.ID }
func (r *Section5Record) RecordID() int64 { return r.ID }

func (r *Section1Record) SetRecordID(id int64) { r.ID = id }
func (r *Section2Record) SetRecordID(id int64) { r.ID = id }
func (r *Section3Record) SetRecordID(id int64) { r.ID = id }
func (r *Section4Record) SetRecordID(id int64) { r.ID = id }
func (r *Section5Record) SetRecordID(id int64) { r.ID = id }

func (r *Section1Record) Parents() map[int]int64 { return map[int]int64{} }

func (r *Section2Record) Parents() map[int]int64 {
	return map[int]int64{1: r.Section1ID}
}

func (r *Section3Record) Parents() map[int]int64 {
	return map[int]int64{1: r.Section1ID, 2: r.Section2ID}
}

func (r *Section4Record) Parents() map[int]int64 {
	return map[int]int64{1: r.Section1ID, 2: r.Section2ID, 3: r.Section3ID}
}

func (r *Section5Record) Parents() map[int]int64 {
	var s4 int64
	if r.Section4ID != nil {
		s4 = *r.Section4ID
	}
	return map[int]int64{1: r.Section1ID, 2: r.Section2ID, 3: r.Section3ID, 4: s4}
}

// ScoreFields returns the record's score values keyed by snake_case field name.
// Absent scores are omitted.
func ScoreFields(rec Record) map[string]int {
	out := map[string]int{}
	add := func(name string, v *int) {
		if v != nil {
			out[name] = *v
		}
	}
	switch r := rec.(type) {
	case *Section1Record:
		add("source_credibility", r.SourceCredibility)
		add("documentation_availability", r.DocumentationAvailability)
	case *Section2Record:
		add("spatial_coverage_score", r.SpatialCoverageScore)
		add("temporal_coverage_score", r.TemporalCoverageScore)
		add("resolution_score", r.ResolutionScore)
	case *Section3Record:
		add("design_spatial_accuracy", r.DesignSpatialAccuracy)
		add("design_thematic_accuracy", r.DesignThematicAccuracy)
		add("design_completeness", r.DesignCompleteness)
		add("design_consistency", r.DesignConsistency)
		add("design_timeliness", r.DesignTimeliness)
		add("use_case_spatial_fit", r.UseCaseSpatialFit)
		add("use_case_temporal_fit", r.UseCaseTemporalFit)
		add("use_case_thematic_fit", r.UseCaseThematicFit)
		add("use_case_completeness", r.UseCaseCompleteness)
	case *Section4Record:
		add("metadata_standard", r.MetadataStandard)
		add("format_standard", r.FormatStandard)
		add("quality_reporting", r.QualityReporting)
	case *Section5Record:
		add("accessibility", r.Accessibility)
		add("licensing", r.Licensing)
		add("maintenance", r.Maintenance)
		add("community_use", r.CommunityUse)
	}
	return out
}
