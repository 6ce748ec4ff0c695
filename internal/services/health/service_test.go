package health

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStatusWithoutDatabase(t *testing.T) {
	status, ok := NewService(nil).Status(context.Background())
	if !ok || status["database"] != "memory" {
		t.Fatalf("unexpected status %v ok=%v", status, ok)
	}
}

func TestStatusReportsSchemaVersion(t *testing.T) {
	database, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer database.Close()
	mock.ExpectPing()

	svc := NewService(database)
	svc.SchemaVersion = func(context.Context, *sql.DB) (int64, error) { return 1, nil }
	status, ok := svc.Status(context.Background())
	if !ok || status["database"] != "up" || status["schema_version"] != int64(1) {
		t.Fatalf("unexpected status %v ok=%v", status, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStatusDownWhenPingFails(t *testing.T) {
	database, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer database.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	status, ok := NewService(database).Status(context.Background())
	if ok || status["database"] != "down" {
		t.Fatalf("unexpected status %v ok=%v", status, ok)
	}
}

func TestStatusToleratesUnreadableSchemaVersion(t *testing.T) {
	database, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer database.Close()
	mock.ExpectPing()

	svc := NewService(database)
	svc.SchemaVersion = func(context.Context, *sql.DB) (int64, error) { return 0, errors.New("no goose table") }
	status, ok := svc.Status(context.Background())
	if !ok || status["schema_version"] != "unknown" {
		t.Fatalf("unexpected status %v ok=%v", status, ok)
	}
}
