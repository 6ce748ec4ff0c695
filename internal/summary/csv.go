package summary

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

var csvHeader = []string{"section", "subsection", "field", "label", "value"}

const (
	averageField = "_average"
	groupsRow    = "_groups"
	overallRow   = "_overall"
)

// ExportCSV renders the summary as one row per answer, followed by the
// section averages, group averages and the overall score.
func ExportCSV(s Summary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{csvHeader}
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			rows = append(rows, []string{sec.ID, f.Subsection, f.ID, f.Label, f.Value})
		}
		rows = append(rows, []string{sec.ID, "", averageField, "Section average", sec.Average})
	}
	for _, group := range sortedGroups(s.Groups) {
		rows = append(rows, []string{groupsRow, "", group, "Group average", s.Groups[group]})
	}
	rows = append(rows, []string{overallRow, "", "overall", "Overall score", s.Overall})
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write summary csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseCSV reads an ExportCSV document back. Section titles, record ids and
// timestamps are not part of the CSV and stay zero.
func ParseCSV(data []byte) (Summary, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(csvHeader)
	header, err := r.Read()
	if err != nil {
		return Summary{}, fmt.Errorf("read summary csv header: %w", err)
	}
	for i, h := range csvHeader {
		if header[i] != h {
			return Summary{}, fmt.Errorf("unexpected summary csv column %q", header[i])
		}
	}

	var out Summary
	index := map[string]int{}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("read summary csv: %w", err)
		}
		section, subsection, field, label, value := row[0], row[1], row[2], row[3], row[4]
		switch section {
		case groupsRow:
			if out.Groups == nil {
				out.Groups = map[string]string{}
			}
			out.Groups[field] = value
			continue
		case overallRow:
			out.Overall = value
			continue
		}
		i, ok := index[section]
		if !ok {
			i = len(out.Sections)
			index[section] = i
			out.Sections = append(out.Sections, Section{ID: section})
		}
		if field == averageField {
			out.Sections[i].Average = value
			continue
		}
		out.Sections[i].Fields = append(out.Sections[i].Fields, Field{
			Subsection: subsection,
			ID:         field,
			Label:      label,
			Value:      value,
		})
	}
	return out, nil
}
