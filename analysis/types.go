// Package analysis enriches log entries with summaries, anomalies and
// suggested fixes. The analyzer runs standalone with canned heuristics and
// can optionally delegate summaries to OpenAI or a named n8n workflow.
package analysis

import (
	"context"
	"time"

	"github.com/logcentral/platform/model"
)

// Result is the outcome of analyzing a single log entry.
type Result struct {
	ID              string       `json:"id"`
	AnalyzedAt      time.Time    `json:"analyzed_at"`
	Summary         string       `json:"summary"`
	ConfidenceLevel int          `json:"confidence_level"`
	Anomalies       []Anomaly    `json:"anomalies"`
	Suggestions     []Suggestion `json:"suggestions"`
	RawData         string       `json:"raw_data,omitempty"`
}

// Anomaly is a detected irregularity across one or more entries.
type Anomaly struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Description     string         `json:"description"`
	Severity        model.LogLevel `json:"severity"`
	RelatedLogIDs   []string       `json:"related_log_ids"`
	OccurrenceCount int            `json:"occurrence_count"`
	FirstOccurrence time.Time      `json:"first_occurrence"`
	LastOccurrence  time.Time      `json:"last_occurrence"`
}

// Suggestion is a proposed remediation.
type Suggestion struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	ActionCode      string   `json:"action_code,omitempty"`
	Type            string   `json:"type"`
	ConfidenceLevel int      `json:"confidence_level"`
	References      []string `json:"references"`
}

// Report aggregates analysis over a service and date range.
type Report struct {
	ID               string       `json:"id"`
	ServiceID        string       `json:"service_id"`
	GeneratedAt      time.Time    `json:"generated_at"`
	StartDate        time.Time    `json:"start_date"`
	EndDate          time.Time    `json:"end_date"`
	ExecutiveSummary string       `json:"executive_summary"`
	Anomalies        []Anomaly    `json:"anomalies"`
	Suggestions      []Suggestion `json:"suggestions"`
	Trends           []string     `json:"trends"`
}

// WorkflowResult is the outcome of invoking a named external workflow.
type WorkflowResult struct {
	ID           string    `json:"id"`
	WorkflowName string    `json:"workflow_name"`
	ExecutedAt   time.Time `json:"executed_at"`
	Status       string    `json:"status"`
	Result       string    `json:"result,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Service is the analysis contract consumed by the handlers and the
// background worker.
type Service interface {
	AnalyzeLog(ctx context.Context, entry *model.LogEntry) (*Result, error)
	AnalyzeLogsPattern(ctx context.Context, entries []model.LogEntry) (*Result, error)
	DetectAnomalies(ctx context.Context, serviceID string, start, end time.Time) ([]Anomaly, error)
	SuggestSolutions(ctx context.Context, logID, sourceCode string) ([]Suggestion, error)
	GenerateReport(ctx context.Context, serviceID string, start, end time.Time) (*Report, error)
	CategorizeLog(ctx context.Context, entry *model.LogEntry) ([]string, error)
	ExecuteWorkflow(ctx context.Context, logID, workflowName string, params map[string]interface{}) (*WorkflowResult, error)
}
