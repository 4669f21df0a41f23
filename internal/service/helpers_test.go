package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/events"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return db, mock
}

func newTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func strPtr(s string) *string {
	return &s
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.events = append(p.events, e)
}

var (
	fixedTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	summaryRowColumns = []string{
		"id", "title", "link", "company", "salary", "deadline", "last_modified", "views", "created_at",
		"locations", "sectors", "employment_types",
	}
	detailRowColumns = append(append([]string{}, summaryRowColumns...),
		"user_id", "updated_at", "education_level", "employment_type", "experience_levels")
)

func summaryRows() *sqlmock.Rows {
	return sqlmock.NewRows(summaryRowColumns)
}

func addSummary(rows *sqlmock.Rows, id uint64, title string) *sqlmock.Rows {
	return rows.AddRow(id, title, "https://jobs.example.com/"+title, "Acme", nil, nil, nil, 0,
		fixedTime, "{Seoul}", "{IT}", "{}")
}
