package detect

import (
	"sync"
	"time"
)

// stats tracks detection counters. Mutated only by the owning Detector;
// callers read a snapshot copy.
type stats struct {
	mu            sync.Mutex
	totalRuns     int64
	connections   int64
	highRelevance int64
	cacheHits     int64
	avgProcessing float64 // seconds, running mean over full runs
	lastDetection time.Time
}

// recordRun folds one completed (non-cached) run into the counters.
func (s *stats) recordRun(connections, highRelevance int, elapsed time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRuns++
	s.connections += int64(connections)
	s.highRelevance += int64(highRelevance)
	s.lastDetection = at

	// Running mean: fold the new sample into the previous average.
	n := float64(s.totalRuns)
	s.avgProcessing = (s.avgProcessing*(n-1) + elapsed.Seconds()) / n
}

func (s *stats) recordCacheHit() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

// Stats is a point-in-time snapshot of detector counters.
type Stats struct {
	TotalRuns          int64     `json:"total_detections"`
	ConnectionsFound   int64     `json:"connections_found"`
	HighRelevanceFound int64     `json:"high_relevance_connections"`
	CacheHits          int64     `json:"cached_results"`
	AvgProcessingTime  float64   `json:"average_processing_time"`
	LastDetection      time.Time `json:"last_detection"`
}

func (s *stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalRuns:          s.totalRuns,
		ConnectionsFound:   s.connections,
		HighRelevanceFound: s.highRelevance,
		CacheHits:          s.cacheHits,
		AvgProcessingTime:  s.avgProcessing,
		LastDetection:      s.lastDetection,
	}
}
