package sections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres. Each section has its own table.
type PGRepo struct {
	DB *sql.DB
}

type column struct {
	name string
	ptr  func(Record) any
}

// pgColumns lists the writable columns of each section table in insert order.
// Every ptr returns a pointer into the record so the same list serves Exec args and Scan targets.
var pgColumns = map[int][]column{
	1: {
		{"dataset_name", func(r Record) any { return &r.(*Section1Record).DatasetName }},
		{"dataset_url", func(r Record) any { return &r.(*Section1Record).DatasetURL }},
		{"dataset_provider", func(r Record) any { return &r.(*Section1Record).DatasetProvider }},
		{"evaluator_name", func(r Record) any { return &r.(*Section1Record).EvaluatorName }},
		{"evaluator_email", func(r Record) any { return &r.(*Section1Record).EvaluatorEmail }},
		{"evaluation_type", func(r Record) any { return &r.(*Section1Record).EvaluationType }},
		{"use_case_description", func(r Record) any { return &r.(*Section1Record).UseCaseDescription }},
		{"source_credibility", func(r Record) any { return &r.(*Section1Record).SourceCredibility }},
		{"documentation_availability", func(r Record) any { return &r.(*Section1Record).DocumentationAvailability }},
	},
	2: {
		{"section1_id", func(r Record) any { return &r.(*Section2Record).Section1ID }},
		{"data_type", func(r Record) any { return &r.(*Section2Record).DataType }},
		{"processing_level", func(r Record) any { return &r.(*Section2Record).ProcessingLevel }},
		{"pixel_resolution", func(r Record) any { return &r.(*Section2Record).PixelResolution }},
		{"pixel_resolution_unit", func(r Record) any { return &r.(*Section2Record).PixelResolutionUnit }},
		{"grid_resolution", func(r Record) any { return &r.(*Section2Record).GridResolution }},
		{"grid_resolution_unit", func(r Record) any { return &r.(*Section2Record).GridResolutionUnit }},
		{"ml_resolution", func(r Record) any { return &r.(*Section2Record).MlResolution }},
		{"ml_resolution_unit", func(r Record) any { return &r.(*Section2Record).MlResolutionUnit }},
		{"prediction_resolution", func(r Record) any { return &r.(*Section2Record).PredictionResolution }},
		{"prediction_resolution_unit", func(r Record) any { return &r.(*Section2Record).PredictionResolutionUnit }},
		{"aggregation_level", func(r Record) any { return &r.(*Section2Record).AggregationLevel }},
		{"aggregation_units", func(r Record) any { return &r.(*Section2Record).AggregationUnits }},
		{"other_resolution_description", func(r Record) any { return &r.(*Section2Record).OtherResolutionDescription }},
		{"aoi_method", func(r Record) any { return &r.(*Section2Record).AoiMethod }},
		{"aoi_geography", func(r Record) any { return &r.(*Section2Record).AoiGeography }},
		{"aoi_min_lon", func(r Record) any { return &r.(*Section2Record).AoiMinLon }},
		{"aoi_min_lat", func(r Record) any { return &r.(*Section2Record).AoiMinLat }},
		{"aoi_max_lon", func(r Record) any { return &r.(*Section2Record).AoiMaxLon }},
		{"aoi_max_lat", func(r Record) any { return &r.(*Section2Record).AoiMaxLat }},
		{"aoi_file_name", func(r Record) any { return &r.(*Section2Record).AoiFileName }},
		{"temporal_start", func(r Record) any { return &r.(*Section2Record).TemporalStart }},
		{"temporal_end", func(r Record) any { return &r.(*Section2Record).TemporalEnd }},
		{"open_access", func(r Record) any { return &r.(*Section2Record).OpenAccess }},
		{"spatial_coverage_score", func(r Record) any { return &r.(*Section2Record).SpatialCoverageScore }},
		{"temporal_coverage_score", func(r Record) any { return &r.(*Section2Record).TemporalCoverageScore }},
		{"resolution_score", func(r Record) any { return &r.(*Section2Record).ResolutionScore }},
	},
	3: {
		{"section1_id", func(r Record) any { return &r.(*Section3Record).Section1ID }},
		{"section2_id", func(r Record) any { return &r.(*Section3Record).Section2ID }},
		{"design_spatial_accuracy", func(r Record) any { return &r.(*Section3Record).DesignSpatialAccuracy }},
		{"design_thematic_accuracy", func(r Record) any { return &r.(*Section3Record).DesignThematicAccuracy }},
		{"design_completeness", func(r Record) any { return &r.(*Section3Record).DesignCompleteness }},
		{"design_consistency", func(r Record) any { return &r.(*Section3Record).DesignConsistency }},
		{"design_timeliness", func(r Record) any { return &r.(*Section3Record).DesignTimeliness }},
		{"design_notes", func(r Record) any { return &r.(*Section3Record).DesignNotes }},
		{"use_case_spatial_fit", func(r Record) any { return &r.(*Section3Record).UseCaseSpatialFit }},
		{"use_case_temporal_fit", func(r Record) any { return &r.(*Section3Record).UseCaseTemporalFit }},
		{"use_case_thematic_fit", func(r Record) any { return &r.(*Section3Record).UseCaseThematicFit }},
		{"use_case_completeness", func(r Record) any { return &r.(*Section3Record).UseCaseCompleteness }},
		{"use_case_notes", func(r Record) any { return &r.(*Section3Record).UseCaseNotes }},
	},
	4: {
		{"section1_id", func(r Record) any { return &r.(*Section4Record).Section1ID }},
		{"section2_id", func(r Record) any { return &r.(*Section4Record).Section2ID }},
		{"section3_id", func(r Record) any { return &r.(*Section4Record).Section3ID }},
		{"conformance_standard", func(r Record) any { return &r.(*Section4Record).ConformanceStandard }},
		{"metadata_standard", func(r Record) any { return &r.(*Section4Record).MetadataStandard }},
		{"format_standard", func(r Record) any { return &r.(*Section4Record).FormatStandard }},
		{"quality_reporting", func(r Record) any { return &r.(*Section4Record).QualityReporting }},
	},
	5: {
		{"section1_id", func(r Record) any { return &r.(*Section5Record).Section1ID }},
		{"section2_id", func(r Record) any { return &r.(*Section5Record).Section2ID }},
		{"section3_id", func(r Record) any { return &r.(*Section5Record).Section3ID }},
		{"section4_id", func(r Record) any { return &r.(*Section5Record).Section4ID }},
		{"accessibility", func(r Record) any { return &r.(*Section5Record).Accessibility }},
		{"licensing", func(r Record) any { return &r.(*Section5Record).Licensing }},
		{"maintenance", func(r Record) any { return &r.(*Section5Record).Maintenance }},
		{"community_use", func(r Record) any { return &r.(*Section5Record).CommunityUse }},
		{"context_comments", func(r Record) any { return &r.(*Section5Record).ContextComments }},
	},
}

func tableName(section int) string {
	return SectionKey(section)
}

// Insert writes rec and returns the generated id.
func (r *PGRepo) Insert(ctx context.Context, rec Record) (int64, error) {
	cols, ok := pgColumns[rec.Section()]
	if !ok {
		return 0, fmt.Errorf("%w: unknown section %d", ErrInvalidInput, rec.Section())
	}
	names := make([]string, len(cols))
	holders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		holders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = deref(c.ptr(rec))
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES (%s)
RETURNING id, created_at`, tableName(rec.Section()), strings.Join(names, ", "), strings.Join(holders, ", "))

	var id int64
	var createdAt time.Time
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id, &createdAt); err != nil {
		return 0, err
	}
	rec.SetRecordID(id)
	setCreatedAt(rec, createdAt.UTC())
	return id, nil
}

// Get fetches a record by id.
func (r *PGRepo) Get(ctx context.Context, section int, id int64) (Record, error) {
	cols, ok := pgColumns[section]
	if !ok {
		return nil, fmt.Errorf("%w: unknown section %d", ErrInvalidInput, section)
	}
	rec, err := NewRecord(section)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	var recID int64
	var createdAt time.Time
	dest := make([]any, 0, len(cols)+2)
	dest = append(dest, &recID)
	for i, c := range cols {
		names[i] = c.name
		dest = append(dest, c.ptr(rec))
	}
	dest = append(dest, &createdAt)

	query := fmt.Sprintf(`
SELECT id, %s, created_at
FROM %s
WHERE id = $1`, strings.Join(names, ", "), tableName(section))

	if err := r.DB.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.SetRecordID(recID)
	setCreatedAt(rec, createdAt.UTC())
	return rec, nil
}

// deref turns a field pointer into a driver argument; nil optional values become NULL.
func deref(p any) any {
	switch v := p.(type) {
	case *string:
		return *v
	case *int64:
		return *v
	case **int:
		if *v == nil {
			return nil
		}
		return int64(**v)
	case **int64:
		if *v == nil {
			return nil
		}
		return **v
	case **float64:
		if *v == nil {
			return nil
		}
		return **v
	case **bool:
		if *v == nil {
			return nil
		}
		return **v
	default:
		return p
	}
}

var _ Repo = (*PGRepo)(nil)
