package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/logcentral/platform/config"
	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/repository"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Analyzer implements Service. Without an OpenAI key it produces canned
// heuristic results; with one, summaries come from the model and the
// heuristics remain the fallback.
type Analyzer struct {
	logs       repository.LogRepository
	client     *openai.Client
	limiter    *rate.Limiter
	httpClient *http.Client
	n8nURL     string
	n8nKey     string
}

// NewAnalyzer builds an Analyzer from the application config.
func NewAnalyzer(cfg *config.Config, logs repository.LogRepository) *Analyzer {
	a := &Analyzer{
		logs: logs,
		// One request per second with a small burst keeps the OpenAI
		// account clear of rate-limit errors under error storms.
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		n8nURL:     cfg.N8nAPIURL,
		n8nKey:     cfg.N8nAPIKey,
	}
	if cfg.OpenAIAPIKey != "" {
		a.client = openai.NewClient(cfg.OpenAIAPIKey)
	}
	return a
}

// AnalyzeLog produces a summary plus anomalies and suggestions for error
// level entries. It never returns an error for analyzable input; external
// failures degrade to the heuristic summary.
func (a *Analyzer) AnalyzeLog(ctx context.Context, entry *model.LogEntry) (*Result, error) {
	if entry == nil {
		return nil, fmt.Errorf("log entry is nil")
	}

	summary := a.basicSummary(entry)
	confidence := 80

	if a.client != nil {
		if s, err := a.openAISummary(ctx, entry); err == nil && s != "" {
			summary = s
			confidence = 90
		} else if err != nil {
			log.Printf("analysis: openai summary failed for log %s: %v", entry.ID, err)
		}
	}

	result := &Result{
		ID:              uuid.NewString(),
		AnalyzedAt:      time.Now().UTC(),
		Summary:         summary,
		ConfidenceLevel: confidence,
		Anomalies:       []Anomaly{},
		Suggestions:     []Suggestion{},
	}

	if entry.Level >= model.LevelError {
		anomalyType := "Error"
		if entry.Level == model.LevelCritical {
			anomalyType = "Critical Error"
		}
		result.Anomalies = append(result.Anomalies, Anomaly{
			ID:              uuid.NewString(),
			Type:            anomalyType,
			Description:     fmt.Sprintf("Detected %s in service %s: %s", entry.Level, entry.ServiceName, entry.Message),
			Severity:        entry.Level,
			RelatedLogIDs:   []string{entry.ID},
			OccurrenceCount: 1,
			FirstOccurrence: entry.Timestamp,
			LastOccurrence:  entry.Timestamp,
		})
		result.Suggestions = append(result.Suggestions, Suggestion{
			ID:    uuid.NewString(),
			Title: "Investigate Error Source",
			Description: fmt.Sprintf("Investigate the root cause of the %s in %s. Check the error message and stack trace for details.",
				entry.Level, entry.ServiceName),
			Type:            "Troubleshooting",
			ConfidenceLevel: 85,
			References:      []string{"Error logs", "Service documentation"},
		})
	}

	return result, nil
}

func (a *Analyzer) basicSummary(entry *model.LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s from %s", entry.Level, entry.ServiceName)
	if entry.Category != "" {
		fmt.Fprintf(&b, " (%s)", entry.Category)
	}
	fmt.Fprintf(&b, ": %s", entry.Message)
	if entry.ExceptionDetails != "" {
		fmt.Fprintf(&b, " | exception: %s", firstLine(entry.ExceptionDetails))
	}
	return b.String()
}

func (a *Analyzer) openAISummary(ctx context.Context, entry *model.LogEntry) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("Summarize this %s log from service %q in two sentences and name the most likely cause.\nMessage: %s\nException: %s\nStack trace: %s",
		entry.Level, entry.ServiceName, entry.Message, entry.ExceptionDetails, entry.StackTrace)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a production-incident analyst. Be concise and factual."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   200,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// AnalyzeLogsPattern summarizes a batch of entries, grouping repeated
// messages into anomalies.
func (a *Analyzer) AnalyzeLogsPattern(ctx context.Context, entries []model.LogEntry) (*Result, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no log entries to analyze")
	}

	groups := groupByMessage(entries)
	result := &Result{
		ID:              uuid.NewString(),
		AnalyzedAt:      time.Now().UTC(),
		Summary:         fmt.Sprintf("Analyzed %d entries across %d distinct messages.", len(entries), len(groups)),
		ConfidenceLevel: 70,
		Anomalies:       []Anomaly{},
		Suggestions:     []Suggestion{},
	}

	for _, g := range groups {
		if g.count < 2 || g.maxLevel < model.LevelWarning {
			continue
		}
		result.Anomalies = append(result.Anomalies, Anomaly{
			ID:              uuid.NewString(),
			Type:            "Recurring Message",
			Description:     fmt.Sprintf("%q occurred %d times", g.message, g.count),
			Severity:        g.maxLevel,
			RelatedLogIDs:   g.ids,
			OccurrenceCount: g.count,
			FirstOccurrence: g.first,
			LastOccurrence:  g.last,
		})
	}
	return result, nil
}

// DetectAnomalies scans a service's error entries over the window and flags
// repeated failures.
func (a *Analyzer) DetectAnomalies(ctx context.Context, serviceID string, start, end time.Time) ([]Anomaly, error) {
	minLevel := model.LevelError
	entries, err := a.logs.Search(repository.LogSearchParams{
		Start:     start,
		End:       end,
		ServiceID: serviceID,
		MinLevel:  &minLevel,
		Take:      1000,
	})
	if err != nil {
		return nil, err
	}

	anomalies := []Anomaly{}
	for _, g := range groupByMessage(entries) {
		anomalies = append(anomalies, Anomaly{
			ID:              uuid.NewString(),
			Type:            "Repeated Failure",
			Description:     fmt.Sprintf("%q failed %d times between %s and %s", g.message, g.count, g.first.Format(time.RFC3339), g.last.Format(time.RFC3339)),
			Severity:        g.maxLevel,
			RelatedLogIDs:   g.ids,
			OccurrenceCount: g.count,
			FirstOccurrence: g.first,
			LastOccurrence:  g.last,
		})
	}
	return anomalies, nil
}

// SuggestSolutions proposes fixes for one entry, keyed off its categories.
func (a *Analyzer) SuggestSolutions(ctx context.Context, logID, sourceCode string) ([]Suggestion, error) {
	entry, err := a.logs.GetByID(logID)
	if err != nil {
		return nil, err
	}

	categories, _ := a.CategorizeLog(ctx, entry)
	suggestions := []Suggestion{}
	for _, cat := range categories {
		if tmpl, ok := suggestionTemplates[cat]; ok {
			suggestions = append(suggestions, Suggestion{
				ID:              uuid.NewString(),
				Title:           tmpl.title,
				Description:     tmpl.description,
				Type:            cat,
				ConfidenceLevel: 60,
				References:      tmpl.references,
			})
		}
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, Suggestion{
			ID:              uuid.NewString(),
			Title:           "Review Recent Changes",
			Description:     "No known failure pattern matched. Review deployments and configuration changes around " + entry.Timestamp.Format(time.RFC3339) + ".",
			Type:            "General",
			ConfidenceLevel: 40,
			References:      []string{"Deployment history"},
		})
	}
	return suggestions, nil
}

// GenerateReport aggregates a service's window into an executive summary.
func (a *Analyzer) GenerateReport(ctx context.Context, serviceID string, start, end time.Time) (*Report, error) {
	entries, err := a.logs.Search(repository.LogSearchParams{
		Start:     start,
		End:       end,
		ServiceID: serviceID,
		Take:      5000,
	})
	if err != nil {
		return nil, err
	}

	var errors, warnings int
	for _, e := range entries {
		switch {
		case e.Level >= model.LevelError:
			errors++
		case e.Level == model.LevelWarning:
			warnings++
		}
	}

	anomalies, err := a.DetectAnomalies(ctx, serviceID, start, end)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:          uuid.NewString(),
		ServiceID:   serviceID,
		GeneratedAt: time.Now().UTC(),
		StartDate:   start,
		EndDate:     end,
		ExecutiveSummary: fmt.Sprintf("%d log entries in window: %d errors, %d warnings, %d recurring failure patterns.",
			len(entries), errors, warnings, len(anomalies)),
		Anomalies:   anomalies,
		Suggestions: []Suggestion{},
		Trends:      []string{},
	}
	if errors > 0 && len(entries) > 0 {
		report.Trends = append(report.Trends, fmt.Sprintf("error rate %.1f%%", float64(errors)*100/float64(len(entries))))
	}
	return report, nil
}

// CategorizeLog tags an entry with known failure categories based on its
// message and exception text.
func (a *Analyzer) CategorizeLog(ctx context.Context, entry *model.LogEntry) ([]string, error) {
	if entry == nil {
		return nil, fmt.Errorf("log entry is nil")
	}
	haystack := strings.ToLower(entry.Message + " " + entry.ExceptionDetails + " " + entry.Category)

	categories := []string{}
	for cat, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				categories = append(categories, cat)
				break
			}
		}
	}
	if len(categories) == 0 {
		categories = append(categories, "Uncategorized")
	}
	sort.Strings(categories)
	return categories, nil
}

// ExecuteWorkflow posts the log to a named n8n workflow and reports the
// engine's response.
func (a *Analyzer) ExecuteWorkflow(ctx context.Context, logID, workflowName string, params map[string]interface{}) (*WorkflowResult, error) {
	result := &WorkflowResult{
		ID:           uuid.NewString(),
		WorkflowName: workflowName,
		ExecutedAt:   time.Now().UTC(),
	}

	if a.n8nURL == "" {
		result.Status = "skipped"
		result.Error = "workflow engine is not configured"
		return result, nil
	}

	entry, err := a.logs.GetByID(logID)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"log":        entry,
		"parameters": params,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(a.n8nURL, "/") + "/webhook/" + workflowName
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-N8N-API-KEY", a.n8nKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result, nil
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 300 {
		result.Status = "failed"
		result.Error = fmt.Sprintf("workflow engine returned %d", resp.StatusCode)
		return result, nil
	}
	result.Status = "completed"
	result.Result = string(out)
	return result, nil
}

type messageGroup struct {
	message  string
	ids      []string
	count    int
	maxLevel model.LogLevel
	first    time.Time
	last     time.Time
}

func groupByMessage(entries []model.LogEntry) []messageGroup {
	byMessage := map[string]*messageGroup{}
	order := []string{}
	for _, e := range entries {
		g, ok := byMessage[e.Message]
		if !ok {
			g = &messageGroup{message: e.Message, first: e.Timestamp, last: e.Timestamp}
			byMessage[e.Message] = g
			order = append(order, e.Message)
		}
		g.ids = append(g.ids, e.ID)
		g.count++
		if e.Level > g.maxLevel {
			g.maxLevel = e.Level
		}
		if e.Timestamp.Before(g.first) {
			g.first = e.Timestamp
		}
		if e.Timestamp.After(g.last) {
			g.last = e.Timestamp
		}
	}

	groups := make([]messageGroup, 0, len(order))
	for _, msg := range order {
		groups = append(groups, *byMessage[msg])
	}
	return groups
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var categoryKeywords = map[string][]string{
	"Timeout":       {"timeout", "timed out", "deadline exceeded"},
	"Database":      {"sql", "database", "deadlock", "constraint", "connection pool"},
	"Network":       {"connection refused", "dns", "unreachable", "broken pipe", "tls"},
	"Authorization": {"unauthorized", "forbidden", "access denied", "permission", "invalid token"},
	"Memory":        {"out of memory", "oom", "allocation"},
}

var suggestionTemplates = map[string]struct {
	title       string
	description string
	references  []string
}{
	"Timeout": {
		title:       "Raise or Tune Timeouts",
		description: "The failure matches a timeout pattern. Check downstream latency and the configured client timeouts.",
		references:  []string{"Timeout configuration"},
	},
	"Database": {
		title:       "Inspect Database Health",
		description: "The failure references the database layer. Check connection pool saturation, slow queries and recent migrations.",
		references:  []string{"Database dashboard"},
	},
	"Network": {
		title:       "Check Network Path",
		description: "The failure looks network-related. Verify DNS, firewall rules and downstream endpoint availability.",
		references:  []string{"Network runbook"},
	},
	"Authorization": {
		title:       "Review Credentials and Grants",
		description: "The failure indicates denied access. Confirm the credentials in use and the grants they carry.",
		references:  []string{"Access policy"},
	},
	"Memory": {
		title:       "Profile Memory Usage",
		description: "The failure suggests memory exhaustion. Capture a heap profile and review recent allocation-heavy changes.",
		references:  []string{"Profiling guide"},
	},
}
