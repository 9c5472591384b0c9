package repository_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/repository"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(
		&model.Client{},
		&model.ContactPerson{},
		&model.RegisteredService{},
		&model.LogEntry{},
	)
	assert.NoError(t, err)

	return db
}

func seedLogEntry(t *testing.T, repo repository.LogRepository, serviceID, clientID string, level model.LogLevel, message string, ts time.Time) model.LogEntry {
	t.Helper()
	entry := model.LogEntry{
		Timestamp: ts,
		Level:     level,
		Message:   message,
		ServiceID: serviceID,
		ClientID:  clientID,
	}
	assert.NoError(t, repo.Add(&entry))
	return entry
}

func TestLogRepositoryAddAndGetByID(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLogRepository(db)

	entry := seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelError, "boom", time.Now().UTC())

	loaded, err := repo.GetByID(entry.ID)
	assert.NoError(t, err)
	assert.Equal(t, "boom", loaded.Message)
	assert.Equal(t, model.LevelError, loaded.Level)

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLogRepositorySearchFilters(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLogRepository(db)
	now := time.Now().UTC()

	seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelInformation, "started", now.Add(-2*time.Hour))
	seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelError, "db timeout", now.Add(-time.Hour))
	seedLogEntry(t, repo, "svc-2", "cli-2", model.LevelCritical, "oom killed", now.Add(-30*time.Minute))

	params := repository.LogSearchParams{Start: now.Add(-24 * time.Hour), End: now}

	all, err := repo.Search(params)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "oom killed", all[0].Message)

	params.ServiceID = "svc-1"
	byService, err := repo.Search(params)
	assert.NoError(t, err)
	assert.Len(t, byService, 2)

	minLevel := model.LevelError
	params.MinLevel = &minLevel
	errorsOnly, err := repo.Search(params)
	assert.NoError(t, err)
	assert.Len(t, errorsOnly, 1)
	assert.Equal(t, "db timeout", errorsOnly[0].Message)

	// A window before all entries matches nothing.
	empty, err := repo.Search(repository.LogSearchParams{
		Start: now.Add(-48 * time.Hour),
		End:   now.Add(-24 * time.Hour),
	})
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLogRepositorySearchPagination(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLogRepository(db)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelWarning,
			fmt.Sprintf("warn %d", i), now.Add(-time.Duration(i)*time.Minute))
	}

	page, err := repo.Search(repository.LogSearchParams{
		Start: now.Add(-time.Hour),
		End:   now,
		Skip:  2,
		Take:  2,
	})
	assert.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "warn 2", page[0].Message)
	assert.Equal(t, "warn 3", page[1].Message)
}

func TestLogRepositorySearchByTextIsCaseInsensitive(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLogRepository(db)
	now := time.Now().UTC()

	seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelError, "Payment DECLINED for order", now.Add(-time.Minute))
	stack := model.LogEntry{
		Timestamp:  now.Add(-2 * time.Minute),
		Level:      model.LevelError,
		Message:    "unhandled exception",
		ServiceID:  "svc-1",
		ClientID:   "cli-1",
		StackTrace: "at PaymentGateway.Charge()",
	}
	assert.NoError(t, repo.Add(&stack))
	seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelInformation, "healthy", now.Add(-3*time.Minute))

	hits, err := repo.SearchByText("payment", repository.LogSearchParams{
		Start: now.Add(-time.Hour),
		End:   now,
	})
	assert.NoError(t, err)
	assert.Len(t, hits, 2)

	none, err := repo.SearchByText("refund", repository.LogSearchParams{
		Start: now.Add(-time.Hour),
		End:   now,
	})
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestLogRepositoryCounts(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLogRepository(db)
	now := time.Now().UTC()

	seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelError, "e1", now)
	seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelError, "e2", now)
	seedLogEntry(t, repo, "svc-2", "cli-1", model.LevelWarning, "w1", now)

	n, err := repo.CountByServiceID("svc-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountByClientID("cli-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Count is by exact level, not at-or-above.
	n, err = repo.CountByLevel(model.LevelError)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountByLevel(model.LevelCritical)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestLogRepositoryUpdateAIAnalysis(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLogRepository(db)

	entry := seedLogEntry(t, repo, "svc-1", "cli-1", model.LevelError, "boom", time.Now().UTC())

	updated, err := repo.UpdateAIAnalysis(entry.ID, "root cause: connection pool exhausted")
	assert.NoError(t, err)
	assert.True(t, updated)

	loaded, err := repo.GetByID(entry.ID)
	assert.NoError(t, err)
	assert.True(t, loaded.AnalyzedByAI)
	assert.Equal(t, "root cause: connection pool exhausted", loaded.AIAnalysisResult)
	// The rest of the entry is untouched.
	assert.Equal(t, "boom", loaded.Message)

	updated, err = repo.UpdateAIAnalysis("missing", "whatever")
	assert.NoError(t, err)
	assert.False(t, updated)
}
