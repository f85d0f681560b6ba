package assistant

import "strings"

var (
	countKeywords = []string{"how many", "count", "number of", "total"}
	chartKeywords = []string{"plot", "graph", "chart", "visualize", "visualise", "draw", "pie", "bar", "trend", "scatter"}
)

// IsCountQuery reports whether a question asks for a row count.
func IsCountQuery(question string) bool {
	return containsAny(strings.ToLower(question), countKeywords)
}

// IsChartQuery reports whether a message asks for a visualization.
func IsChartQuery(question string) bool {
	return containsAny(strings.ToLower(question), chartKeywords)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
