package aggregate

import (
	"sort"
	"time"

	"github.com/music-livereview/backend/internal/models"
)

// Stage identifies a phase of the aggregation pipeline for progress
// reporting. Progress notifications are advisory only; they never affect
// engine semantics and are emitted synchronously on the calling goroutine.
type Stage string

const (
	// StageNormalizing covers event validation and normalization.
	StageNormalizing Stage = "normalizing"
	// StageAccumulating covers the order-independent bucket pass.
	StageAccumulating Stage = "accumulating"
	// StageSegmenting covers the sorted stamina and marathon passes.
	StageSegmenting Stage = "segmenting"
	// StageMaterializing covers flattening the maps into the result.
	StageMaterializing Stage = "materializing"
)

// Options configures a single aggregation run.
type Options struct {
	// MaxEvents caps how many validated events the run accepts. Zero or
	// negative means DefaultMaxEvents.
	MaxEvents int

	// Progress, when non-nil, is called as the pipeline enters each stage.
	Progress func(stage Stage)

	// now overrides the clock in tests. Nil means time.Now.
	now func() time.Time
}

// Engine is the streaming-history aggregation engine. It is stateless
// between runs and safe for concurrent use; every run owns its own
// accumulator state.
type Engine struct {
	opts Options
}

// New creates an engine with the given options.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Aggregate converts raw export entries into the full bucket/summary result.
// It performs no I/O and never fails on malformed input: invalid entries are
// skipped and counted, and input past the event cap flags the result as
// truncated. The sorted event copy used by the chain and marathon passes is
// released before the function returns; only bucket-sized state survives.
func (e *Engine) Aggregate(entries []models.StreamEntry) *models.AggregationResult {
	e.progress(StageNormalizing)
	norm := normalizeEntries(entries, e.opts.MaxEvents)

	e.progress(StageAccumulating)
	acc := newAccumulator()
	for i := range norm.events {
		acc.observe(&norm.events[i])
	}

	// The two order-dependent passes share one stable timestamp-sorted copy;
	// ties keep their original input order.
	e.progress(StageSegmenting)
	sorted := make([]models.PlayEvent, len(norm.events))
	copy(sorted, norm.events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	segmentChains(sorted, acc.hourly)
	marathons := detectMarathons(sorted)
	sorted = nil

	e.progress(StageMaterializing)
	now := time.Now
	if e.opts.now != nil {
		now = e.opts.now
	}
	return &models.AggregationResult{
		Summary:            acc.summary(now()),
		ArtistBuckets:      materializeArtists(acc.artistMonthly),
		TrackBuckets:       materializeTracks(acc.trackMonthly),
		HourlyStatsBuckets: materializeHourly(acc.hourly),
		TrackFirstPlays:    materializeFirstPlays(acc.firstPlays),
		MonthlyTotals:      materializeMonthlyTotals(acc.monthlyTotals),
		Marathons:          marathons,
		Truncated:          norm.truncated,
		SkippedEntries:     norm.skipped,
	}
}

func (e *Engine) progress(stage Stage) {
	if e.opts.Progress != nil {
		e.opts.Progress(stage)
	}
}
