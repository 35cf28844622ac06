// Package stats keeps simple usage counters and timing aggregates,
// persisted to a flat YAML file after every record. Only one job is ever
// active, so serialization is a single mutex.
package stats

import (
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// maxRecentTimes bounds the retained duration samples used for the
// timing aggregates.
const maxRecentTimes = 100

type fileData struct {
	CreatedAt              string    `yaml:"created_at"`
	LastUpdated            string    `yaml:"last_updated"`
	UniqueSessions         int       `yaml:"unique_sessions"`
	TotalCompilations      int       `yaml:"total_compilations"`
	SuccessfulCompilations int       `yaml:"successful_compilations"`
	FailedCompilations     int       `yaml:"failed_compilations"`
	CompilationTimes       []float64 `yaml:"compilation_times"`
	AvgSeconds             float64   `yaml:"avg_compilation_time_seconds"`
	MedianSeconds          float64   `yaml:"median_compilation_time_seconds"`
	MinSeconds             float64   `yaml:"min_compilation_time_seconds"`
	MaxSeconds             float64   `yaml:"max_compilation_time_seconds"`
}

// Snapshot is the externally visible view; the raw sample list stays
// internal.
type Snapshot struct {
	CreatedAt              string  `json:"created_at"`
	LastUpdated            string  `json:"last_updated"`
	UniqueSessions         int     `json:"unique_sessions"`
	TotalCompilations      int     `json:"total_compilations"`
	SuccessfulCompilations int     `json:"successful_compilations"`
	FailedCompilations     int     `json:"failed_compilations"`
	AvgSeconds             float64 `json:"avg_compilation_time_seconds"`
	MedianSeconds          float64 `json:"median_compilation_time_seconds"`
	MinSeconds             float64 `json:"min_compilation_time_seconds"`
	MaxSeconds             float64 `json:"max_compilation_time_seconds"`
}

// Recorder mutates the counters and writes the file. Safe for concurrent
// use.
type Recorder struct {
	mu     sync.Mutex
	path   string
	data   fileData
	logger *zap.Logger
}

// NewRecorder loads existing stats from path or initializes fresh ones.
// A corrupt or missing file is not fatal; counters restart from zero.
func NewRecorder(path string, logger *zap.Logger) *Recorder {
	r := &Recorder{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, &r.data); err != nil {
			logger.Warn("stats file unreadable, starting fresh", zap.String("path", path), zap.Error(err))
			r.data = fileData{}
		}
	}
	if r.data.CreatedAt == "" {
		r.data.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return r
}

// RecordVisit counts a front-end session.
func (r *Recorder) RecordVisit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.UniqueSessions++
	r.save()
}

// RecordStart counts a compilation beginning to run.
func (r *Recorder) RecordStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.TotalCompilations++
	r.save()
}

// RecordSuccess counts a successful compilation and its duration.
func (r *Recorder) RecordSuccess(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.SuccessfulCompilations++
	r.recordTime(d)
	r.save()
}

// RecordFailure counts a failed (or timed out, or cancelled-while-running)
// compilation and its duration.
func (r *Recorder) RecordFailure(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.FailedCompilations++
	r.recordTime(d)
	r.save()
}

// Snapshot returns a copy of the current aggregates.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		CreatedAt:              r.data.CreatedAt,
		LastUpdated:            r.data.LastUpdated,
		UniqueSessions:         r.data.UniqueSessions,
		TotalCompilations:      r.data.TotalCompilations,
		SuccessfulCompilations: r.data.SuccessfulCompilations,
		FailedCompilations:     r.data.FailedCompilations,
		AvgSeconds:             r.data.AvgSeconds,
		MedianSeconds:          r.data.MedianSeconds,
		MinSeconds:             r.data.MinSeconds,
		MaxSeconds:             r.data.MaxSeconds,
	}
}

func (r *Recorder) recordTime(d time.Duration) {
	times := append(r.data.CompilationTimes, round3(d.Seconds()))
	if len(times) > maxRecentTimes {
		times = times[len(times)-maxRecentTimes:]
	}
	r.data.CompilationTimes = times

	sorted := append([]float64(nil), times...)
	sort.Float64s(sorted)

	var sum float64
	for _, t := range times {
		sum += t
	}
	r.data.AvgSeconds = round3(sum / float64(len(times)))
	r.data.MinSeconds = sorted[0]
	r.data.MaxSeconds = sorted[len(sorted)-1]

	n := len(sorted)
	if n%2 == 0 {
		r.data.MedianSeconds = round3((sorted[n/2-1] + sorted[n/2]) / 2)
	} else {
		r.data.MedianSeconds = sorted[n/2]
	}
}

func (r *Recorder) save() {
	r.data.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	raw, err := yaml.Marshal(&r.data)
	if err == nil {
		err = os.WriteFile(r.path, raw, 0o644)
	}
	if err != nil {
		r.logger.Warn("could not save stats", zap.String("path", r.path), zap.Error(err))
	}
}

func round3(f float64) float64 {
	return float64(int64(f*1000+0.5)) / 1000
}
