package analysis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/logcentral/platform/analysis"
	"github.com/logcentral/platform/config"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/repository"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAnalysisTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_analysis_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(&model.Client{}, &model.ContactPerson{}, &model.RegisteredService{}, &model.LogEntry{})
	assert.NoError(t, err)

	return db
}

func newTestAnalyzer(t *testing.T, db *gorm.DB) (*analysis.Analyzer, repository.LogRepository) {
	t.Helper()
	logs := repository.NewLogRepository(db)
	// No OpenAI key: summaries come from the heuristic path.
	return analysis.NewAnalyzer(&config.Config{}, logs), logs
}

func TestAnalyzeLogErrorEntry(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, _ := newTestAnalyzer(t, db)

	entry := &model.LogEntry{
		ID:          "log-1",
		Timestamp:   time.Now().UTC(),
		Level:       model.LevelError,
		Message:     "payment declined",
		ServiceName: "billing-api",
		Category:    "Payments",
	}

	result, err := analyzer.AnalyzeLog(context.Background(), entry)
	assert.NoError(t, err)
	assert.Contains(t, result.Summary, "billing-api")
	assert.Contains(t, result.Summary, "payment declined")
	assert.Equal(t, 80, result.ConfidenceLevel)

	assert.Len(t, result.Anomalies, 1)
	assert.Equal(t, "Error", result.Anomalies[0].Type)
	assert.Equal(t, []string{"log-1"}, result.Anomalies[0].RelatedLogIDs)
	assert.Len(t, result.Suggestions, 1)
}

func TestAnalyzeLogCriticalEntryFlagsCriticalAnomaly(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, _ := newTestAnalyzer(t, db)

	result, err := analyzer.AnalyzeLog(context.Background(), &model.LogEntry{
		ID:      "log-2",
		Level:   model.LevelCritical,
		Message: "out of memory",
	})
	assert.NoError(t, err)
	assert.Len(t, result.Anomalies, 1)
	assert.Equal(t, "Critical Error", result.Anomalies[0].Type)
}

func TestAnalyzeLogInfoEntryHasNoAnomalies(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, _ := newTestAnalyzer(t, db)

	result, err := analyzer.AnalyzeLog(context.Background(), &model.LogEntry{
		Level:   model.LevelInformation,
		Message: "request handled",
	})
	assert.NoError(t, err)
	assert.Empty(t, result.Anomalies)
	assert.Empty(t, result.Suggestions)
}

func TestAnalyzeLogNilEntry(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, _ := newTestAnalyzer(t, db)

	_, err := analyzer.AnalyzeLog(context.Background(), nil)
	assert.Error(t, err)
}

func TestAnalyzeLogsPatternGroupsRecurringMessages(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, _ := newTestAnalyzer(t, db)
	now := time.Now().UTC()

	entries := []model.LogEntry{
		{ID: "a", Message: "db timeout", Level: model.LevelError, Timestamp: now.Add(-3 * time.Minute)},
		{ID: "b", Message: "db timeout", Level: model.LevelError, Timestamp: now.Add(-time.Minute)},
		{ID: "c", Message: "cache miss", Level: model.LevelDebug, Timestamp: now},
	}

	result, err := analyzer.AnalyzeLogsPattern(context.Background(), entries)
	assert.NoError(t, err)
	assert.Contains(t, result.Summary, "3 entries")
	assert.Len(t, result.Anomalies, 1)

	anomaly := result.Anomalies[0]
	assert.Equal(t, "Recurring Message", anomaly.Type)
	assert.Equal(t, 2, anomaly.OccurrenceCount)
	assert.ElementsMatch(t, []string{"a", "b"}, anomaly.RelatedLogIDs)
	assert.Equal(t, model.LevelError, anomaly.Severity)

	_, err = analyzer.AnalyzeLogsPattern(context.Background(), nil)
	assert.Error(t, err)
}

func TestDetectAnomaliesUsesStoredLogs(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, logs := newTestAnalyzer(t, db)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		assert.NoError(t, logs.Add(&model.LogEntry{
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			Level:     model.LevelError,
			Message:   "db timeout",
			ServiceID: "svc-1",
		}))
	}
	assert.NoError(t, logs.Add(&model.LogEntry{
		Timestamp: now,
		Level:     model.LevelInformation,
		Message:   "healthy",
		ServiceID: "svc-1",
	}))

	anomalies, err := analyzer.DetectAnomalies(context.Background(), "svc-1", now.Add(-time.Hour), now)
	assert.NoError(t, err)
	assert.Len(t, anomalies, 1)
	assert.Equal(t, 3, anomalies[0].OccurrenceCount)
}

func TestCategorizeLog(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, _ := newTestAnalyzer(t, db)
	ctx := context.Background()

	categories, err := analyzer.CategorizeLog(ctx, &model.LogEntry{
		Message:          "request timed out waiting for database",
		ExceptionDetails: "deadline exceeded",
	})
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"Database", "Timeout"}, categories)

	categories, err = analyzer.CategorizeLog(ctx, &model.LogEntry{Message: "something odd"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"Uncategorized"}, categories)

	_, err = analyzer.CategorizeLog(ctx, nil)
	assert.Error(t, err)
}

func TestSuggestSolutionsMatchesCategories(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, logs := newTestAnalyzer(t, db)

	entry := model.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     model.LevelError,
		Message:   "connection refused by downstream",
	}
	assert.NoError(t, logs.Add(&entry))

	suggestions, err := analyzer.SuggestSolutions(context.Background(), entry.ID, "")
	assert.NoError(t, err)
	assert.Len(t, suggestions, 1)
	assert.Equal(t, "Network", suggestions[0].Type)

	unmatched := model.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     model.LevelError,
		Message:   "weird state",
	}
	assert.NoError(t, logs.Add(&unmatched))

	suggestions, err = analyzer.SuggestSolutions(context.Background(), unmatched.ID, "")
	assert.NoError(t, err)
	assert.Len(t, suggestions, 1)
	assert.Equal(t, "General", suggestions[0].Type)
}

func TestGenerateReportSummarizesWindow(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, logs := newTestAnalyzer(t, db)
	now := time.Now().UTC()

	assert.NoError(t, logs.Add(&model.LogEntry{Timestamp: now.Add(-time.Minute), Level: model.LevelError, Message: "boom", ServiceID: "svc-1"}))
	assert.NoError(t, logs.Add(&model.LogEntry{Timestamp: now.Add(-2 * time.Minute), Level: model.LevelWarning, Message: "slow", ServiceID: "svc-1"}))
	assert.NoError(t, logs.Add(&model.LogEntry{Timestamp: now.Add(-3 * time.Minute), Level: model.LevelInformation, Message: "ok", ServiceID: "svc-1"}))

	report, err := analyzer.GenerateReport(context.Background(), "svc-1", now.Add(-time.Hour), now)
	assert.NoError(t, err)
	assert.Equal(t, "svc-1", report.ServiceID)
	assert.Contains(t, report.ExecutiveSummary, "3 log entries")
	assert.Contains(t, report.ExecutiveSummary, "1 errors")
	assert.Contains(t, report.ExecutiveSummary, "1 warnings")
	assert.NotEmpty(t, report.Trends)
}

func TestExecuteWorkflowSkipsWhenUnconfigured(t *testing.T) {
	db := setupAnalysisTestDB(t)
	analyzer, logs := newTestAnalyzer(t, db)

	entry := model.LogEntry{Timestamp: time.Now().UTC(), Message: "boom"}
	assert.NoError(t, logs.Add(&entry))

	result, err := analyzer.ExecuteWorkflow(context.Background(), entry.ID, "escalate", nil)
	assert.NoError(t, err)
	assert.Equal(t, "skipped", result.Status)
	assert.Equal(t, "escalate", result.WorkflowName)
}
