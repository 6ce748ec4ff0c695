package summary

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	manifestName = "manifest.json"
	csvName      = "summary.csv"
)

type manifest struct {
	Scope       string            `json:"scope"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Overall     string            `json:"overall"`
	Groups      map[string]string `json:"groups,omitempty"`
	Sections    []manifestSection `json:"sections"`
	Files       []string          `json:"files"`
}

type manifestSection struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	RecordID int64  `json:"recordId,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Average  string `json:"average"`
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ExportArchive renders the summary as a zip of documents: a manifest, the
// CSV export, and a Markdown and HTML page per section. The output is
// byte-identical for identical summaries.
func ExportArchive(s Summary) ([]byte, error) {
	files := map[string][]byte{}

	table, err := ExportCSV(s)
	if err != nil {
		return nil, err
	}
	files[csvName] = table

	for _, sec := range s.Sections {
		md := SectionMarkdown(sec)
		var html bytes.Buffer
		if err := markdown.Convert(md, &html); err != nil {
			return nil, fmt.Errorf("render %s: %w", sec.ID, err)
		}
		files[sec.ID+".md"] = md
		files[sec.ID+".html"] = html.Bytes()
	}

	m := manifest{
		Scope:       s.Scope,
		GeneratedAt: s.GeneratedAt.UTC(),
		Overall:     s.Overall,
		Groups:      s.Groups,
	}
	for _, sec := range s.Sections {
		m.Sections = append(m.Sections, manifestSection{
			ID:       sec.ID,
			Title:    sec.Title,
			RecordID: sec.RecordID,
			Skipped:  sec.Skipped,
			Average:  sec.Average,
		})
	}
	for name := range files {
		m.Files = append(m.Files, name)
	}
	sort.Strings(m.Files)
	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	files[manifestName] = manifestJSON

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: s.GeneratedAt.UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseArchive reads an ExportArchive document back.
func ParseArchive(data []byte) (Summary, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Summary{}, fmt.Errorf("open archive: %w", err)
	}
	var manifestJSON, table []byte
	for _, f := range zr.File {
		switch f.Name {
		case manifestName:
			manifestJSON, err = readZipFile(f)
		case csvName:
			table, err = readZipFile(f)
		}
		if err != nil {
			return Summary{}, err
		}
	}
	if manifestJSON == nil || table == nil {
		return Summary{}, fmt.Errorf("archive is missing %s or %s", manifestName, csvName)
	}

	var m manifest
	if err := json.Unmarshal(manifestJSON, &m); err != nil {
		return Summary{}, fmt.Errorf("decode manifest: %w", err)
	}
	out, err := ParseCSV(table)
	if err != nil {
		return Summary{}, err
	}
	out.Scope = m.Scope
	out.GeneratedAt = m.GeneratedAt
	meta := map[string]manifestSection{}
	for _, ms := range m.Sections {
		meta[ms.ID] = ms
	}
	for i := range out.Sections {
		ms := meta[out.Sections[i].ID]
		out.Sections[i].Title = ms.Title
		out.Sections[i].RecordID = ms.RecordID
		out.Sections[i].Skipped = ms.Skipped
	}
	return out, nil
}

// SectionMarkdown renders one section as a Markdown document.
func SectionMarkdown(sec Section) []byte {
	var b strings.Builder
	title := sec.Title
	if title == "" {
		title = sec.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if sec.Skipped {
		b.WriteString("_Not part of this evaluation._\n\n")
	}
	b.WriteString("| Field | Value |\n|---|---|\n")
	for _, f := range sec.Fields {
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(f.Label), escapeCell(f.Value))
	}
	fmt.Fprintf(&b, "\n**Section average:** %s\n", sec.Average)
	return []byte(b.String())
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

func sortedGroups(groups map[string]string) []string {
	out := make([]string, 0, len(groups))
	for g := range groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
