package sessionusage

import (
	"bufio"
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// ModelTotals is one line of the model-stats file: whitespace-separated
// "model total input cache_write cache_read output".
type ModelTotals struct {
	Model       string
	Total       int64
	Input       int64
	CacheWrite  int64
	CacheRead   int64
	Output      int64
}

// ReadModelStats parses the model-stats file at path.
func ReadModelStats(path string) ([]ModelTotals, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []ModelTotals
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		mt := ModelTotals{Model: fields[0]}
		mt.Total, _ = strconv.ParseInt(fields[1], 10, 64)
		mt.Input, _ = strconv.ParseInt(fields[2], 10, 64)
		mt.CacheWrite, _ = strconv.ParseInt(fields[3], 10, 64)
		mt.CacheRead, _ = strconv.ParseInt(fields[4], 10, 64)
		mt.Output, _ = strconv.ParseInt(fields[5], 10, 64)
		out = append(out, mt)
	}
	return out, scanner.Err()
}

// DailyActivity is one entry of stats-cache.json's dailyActivity array.
type DailyActivity struct {
	Date          string `json:"date"`
	MessageCount  int    `json:"messageCount"`
	SessionCount  int    `json:"sessionCount"`
	ToolCallCount int    `json:"toolCallCount"`
}

// DailyModelTokens is one entry of stats-cache.json's dailyModelTokens array.
type DailyModelTokens struct {
	Date           string         `json:"date"`
	TokensByModel  map[string]int `json:"tokensByModel"`
}

// ModelUsageEntry is one value in stats-cache.json's modelUsage map.
type ModelUsageEntry struct {
	Input          int `json:"input"`
	Output         int `json:"output"`
	CacheRead      int `json:"cacheRead"`
	CacheCreation  int `json:"cacheCreation"`
}

// StatsCache is the loosely-decoded shape of stats-cache.json: only the
// fields this system consumes are modeled; unknown fields are ignored.
type StatsCache struct {
	DailyActivity     []DailyActivity            `json:"dailyActivity"`
	DailyModelTokens  []DailyModelTokens         `json:"dailyModelTokens"`
	ModelUsage        map[string]ModelUsageEntry `json:"modelUsage"`
	TotalSessions     int                        `json:"totalSessions"`
	TotalMessages     int                        `json:"totalMessages"`
	FirstSessionDate  string                     `json:"firstSessionDate"`
	HourCounts        map[string]int             `json:"hourCounts"`
}

// ReadStatsCache decodes stats-cache.json at path.
func ReadStatsCache(path string) (*StatsCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cache StatsCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}
