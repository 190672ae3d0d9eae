package http

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"counseling-intake/internal/app"
	"counseling-intake/internal/catalog"
	"counseling-intake/internal/classify"
	"counseling-intake/internal/infra/memory"
)

const testPassword = "s3cret"

func newTestService(t *testing.T) *app.IntakeService {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return app.NewIntakeService(memory.NewRecordStore(), memory.NewSessionStore(), cat, classify.Default(), app.Options{
		AdminPassword: testPassword,
		Logger:        quietLogger(),
		Now:           func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
