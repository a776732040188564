package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stageLabel = "stage"
	levelLabel = "level"
)

var (
	stageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipgi_stage_runs",
		Help: "The number of times a pipeline stage ran for a clip level.",
	}, []string{
		stageLabel,
		levelLabel,
	})

	revoxelizedVoxels = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipgi_revoxelized_voxels",
		Help: "The number of voxels rewritten by opacity voxelization.",
	}, []string{
		levelLabel,
	})

	framesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipgi_frames_skipped",
		Help: "The number of frames whose GI update was skipped.",
	})

	frameErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipgi_frame_errors",
		Help: "The number of frames whose commands failed.",
	})

	frameLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clipgi_frame_latency",
		Help:    "The time to record and run the GI update of a frame.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
)

func instrumentStageRun(stage string, level int) {
	stageRuns.With(prometheus.Labels{
		stageLabel: stage,
		levelLabel: strconv.Itoa(level),
	}).Inc()
}

func instrumentRevoxelized(level, voxels int) {
	revoxelizedVoxels.With(prometheus.Labels{
		levelLabel: strconv.Itoa(level),
	}).Add(float64(voxels))
}

func instrumentSkippedFrame() {
	framesSkipped.Inc()
}

func instrumentFrameError() {
	frameErrors.Inc()
}

func instrumentFrame(elapsed time.Duration) {
	frameLatency.Observe(elapsed.Seconds())
}
