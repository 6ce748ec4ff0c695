package summary

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"dqsurvey/internal/shared/storage/object"
	"dqsurvey/internal/shared/telemetry"
	"dqsurvey/internal/shared/util"
)

// Export formats.
const (
	FormatCSV     = "csv"
	FormatArchive = "zip"
)

// Publish renders s in format and writes it to store under
// exports/<scope>/<uuid>.<ext>, returning the key.
func Publish(ctx context.Context, store object.ObjectStore, s Summary, format string) (string, error) {
	var (
		data        []byte
		err         error
		contentType string
	)
	switch strings.ToLower(format) {
	case FormatCSV:
		data, err = ExportCSV(s)
		contentType = "text/csv"
		format = FormatCSV
	case FormatArchive, "":
		data, err = ExportArchive(s)
		contentType = "application/zip"
		format = FormatArchive
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return "", err
	}

	scope, err := util.KeySegment(s.Scope)
	if err != nil {
		scope = "default"
	}
	key := path.Join("exports", scope, uuid.NewString()+"."+format)
	n, err := store.SaveWithKey(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}
	telemetry.Info("summary.exported", map[string]any{
		"scope":  s.Scope,
		"key":    key,
		"format": format,
		"bytes":  n,
	})
	return key, nil
}
