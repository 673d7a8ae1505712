package models

type Stats struct {
	TotalUsers     int64   `json:"total_users"`
	CompletedUsers int64   `json:"completed_users"`
	CompletionRate float64 `json:"completion_rate"`
}

func NewStats(total, completed int64) *Stats {
	stats := &Stats{TotalUsers: total, CompletedUsers: completed}
	if total > 0 {
		stats.CompletionRate = float64(completed) / float64(total) * 100
	}
	return stats
}
