package survey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/sections"
)

// BuildPayload turns sanitized form values into a validated section record.
// ids holds the identifiers of prior sections; prior sections absent from
// ids are sent as null foreign keys.
func BuildPayload(cat *catalog.Catalog, section string, values Fields, ids map[string]int64) (sections.Record, error) {
	n, ok := sections.SectionNumber(section)
	if !ok {
		return nil, fmt.Errorf("unknown section %q", section)
	}
	verr := &ValidationError{Section: section}
	body := map[string]any{}

	for _, f := range cat.SectionFields(section) {
		raw, present := values[f.ID]
		v, err := coercePayload(f, raw, cat.Scale)
		if err != nil {
			verr.Fields = append(verr.Fields, FieldError{Field: f.ID, Message: err.Error()})
			continue
		}
		if f.Required && (!present || v == nil || v == "") {
			verr.Fields = append(verr.Fields, FieldError{Field: f.ID, Message: "is required"})
			continue
		}
		body[catalog.ToSnake(f.ID)] = v
	}
	for _, prior := range cat.SectionIDs() {
		if prior == section {
			break
		}
		key := catalog.ToSnake(prior + "Id")
		if id, ok := ids[prior]; ok && id > 0 {
			body[key] = id
		} else {
			body[key] = nil
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", section, err)
	}
	rec, err := sections.NewRecord(n)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(rec); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", section, err)
	}
	if err := rec.Validate(); err != nil {
		var rejected *sections.ValidationError
		if errors.As(err, &rejected) {
			return nil, fromRecordError(section, rejected)
		}
		return nil, err
	}
	return rec, nil
}

func fromRecordError(section string, err *sections.ValidationError) *ValidationError {
	out := &ValidationError{Section: section}
	for _, f := range err.Fields {
		out.Fields = append(out.Fields, FieldError{Field: catalog.ToCamel(f.Field), Message: f.Message})
	}
	return out
}

// coercePayload maps a stored value to its JSON payload form. Empty text
// stays "", empty numbers and scores become null.
func coercePayload(f catalog.Field, raw any, scale catalog.Scale) (any, error) {
	switch f.Kind {
	case catalog.KindText, catalog.KindSelect:
		if raw == nil {
			return "", nil
		}
		return strings.TrimSpace(fmt.Sprint(raw)), nil
	case catalog.KindScore:
		n, present, err := parseScore(raw, scale)
		if err != nil || !present {
			return nil, err
		}
		return n, nil
	default:
		return normalizeValue(f, raw, scale)
	}
}
