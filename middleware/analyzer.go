package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/logcentral/platform/analysis"
)

const analyzerContextKey = "analysis_worker"

// AnalyzerMiddleware injects the background analysis worker so the ingestion
// handler can submit error entries to it.
func AnalyzerMiddleware(w *analysis.Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(analyzerContextKey, w)
		c.Next()
	}
}

// GetAnalyzer returns the worker set by AnalyzerMiddleware, or nil.
func GetAnalyzer(c *gin.Context) *analysis.Worker {
	value, exists := c.Get(analyzerContextKey)
	if !exists {
		return nil
	}
	w, ok := value.(*analysis.Worker)
	if !ok {
		return nil
	}
	return w
}

const analysisServiceContextKey = "analysis_service"

// AnalysisServiceMiddleware injects the analysis service used by the
// synchronous analyze-on-demand handler.
func AnalysisServiceMiddleware(svc analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(analysisServiceContextKey, svc)
		c.Next()
	}
}

// GetAnalysisService returns the service set by AnalysisServiceMiddleware, or nil.
func GetAnalysisService(c *gin.Context) analysis.Service {
	value, exists := c.Get(analysisServiceContextKey)
	if !exists {
		return nil
	}
	svc, ok := value.(analysis.Service)
	if !ok {
		return nil
	}
	return svc
}
