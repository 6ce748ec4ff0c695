package health

import (
	"context"
	"database/sql"
	"time"

	"dqsurvey/internal/shared/storage/db"
)

// Service encapsulates health-related checks.
type Service struct {
	DB          *sql.DB
	PingTimeout time.Duration
	// SchemaVersion reads the applied migration version. Failures are
	// reported but do not mark the service unhealthy.
	SchemaVersion func(ctx context.Context, database *sql.DB) (int64, error)
}

// NewService constructs a new health service. database may be nil when the
// service runs on in-memory repositories.
func NewService(database *sql.DB) *Service {
	return &Service{DB: database, PingTimeout: 2 * time.Second, SchemaVersion: db.SchemaVersion}
}

// Status reports overall health and the state of the section database.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	if s == nil || s.DB == nil {
		return map[string]any{"ok": true, "database": "memory"}, true
	}
	timeout := s.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		return map[string]any{"ok": false, "database": "down"}, false
	}
	status := map[string]any{"ok": true, "database": "up"}
	if s.SchemaVersion != nil {
		if v, err := s.SchemaVersion(pingCtx, s.DB); err == nil {
			status["schema_version"] = v
		} else {
			status["schema_version"] = "unknown"
		}
	}
	return status, true
}
