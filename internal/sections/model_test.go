package sections

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"dqsurvey/internal/catalog"
)

func jsonKeys(rec Record) map[string]bool {
	keys := map[string]bool{}
	t := reflect.TypeOf(rec).Elem()
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

func TestRecordsCarryEveryCatalogField(t *testing.T) {
	c := catalog.MustDefault()
	for n := 1; n <= Count; n++ {
		rec, err := NewRecord(n)
		if err != nil {
			t.Fatalf("NewRecord(%d): %v", n, err)
		}
		keys := jsonKeys(rec)
		for _, f := range c.SectionFields(SectionKey(n)) {
			if !keys[catalog.ToSnake(f.ID)] {
				t.Fatalf("section%d record has no %s field", n, catalog.ToSnake(f.ID))
			}
		}
		for k := 1; k < n; k++ {
			fk := fmt.Sprintf("section%d_id", k)
			if !keys[fk] {
				t.Fatalf("section%d record has no %s", n, fk)
			}
		}
	}
}

func TestScoreFieldsMatchCatalogScores(t *testing.T) {
	c := catalog.MustDefault()
	four := 4
	for n := 1; n <= Count; n++ {
		rec, _ := NewRecord(n)
		// set every *int field so ScoreFields reports all of them
		v := reflect.ValueOf(rec).Elem()
		for i := 0; i < v.NumField(); i++ {
			if v.Field(i).Type() == reflect.TypeOf(&four) {
				v.Field(i).Set(reflect.ValueOf(&four))
			}
		}
		got := ScoreFields(rec)
		want := 0
		for _, f := range c.SectionFields(SectionKey(n)) {
			if !f.IsScore() {
				continue
			}
			want++
			if got[catalog.ToSnake(f.ID)] != 4 {
				t.Fatalf("section%d: missing score %s in %v", n, f.ID, got)
			}
		}
		if len(got) != want {
			t.Fatalf("section%d: expected %d scores, got %v", n, want, got)
		}
	}
}

func TestNewRecordRejectsUnknownSection(t *testing.T) {
	if _, err := NewRecord(6); err == nil {
		t.Fatalf("expected error for section6")
	}
}
