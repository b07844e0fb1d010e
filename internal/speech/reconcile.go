package speech

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/nikhilbhutani/readaloud/internal/models"
)

const (
	// SentenceGap is the silence inserted between consecutive sentences.
	SentenceGap = 200 * time.Millisecond

	// DriftTolerance is how far the measured stream may differ from the
	// estimate before timings are rescaled.
	DriftTolerance = 50 * time.Millisecond
)

// Reconciliation is one playable stream plus timings that match it.
type Reconciliation struct {
	Audio             []byte
	Timings           []models.SentenceTiming
	TotalDuration     float64 // measured length of Audio
	EstimatedDuration float64 // sum of segment durations and gaps
	Scale             float64 // 1 when no rescale was applied
}

// EstimateTimings lays the segments end to end with gap between them and
// returns their timings and the estimated total length.
func EstimateTimings(segments []*AudioSegment, gap time.Duration) ([]models.SentenceTiming, float64) {
	timings := make([]models.SentenceTiming, len(segments))
	t := 0.0
	for i, seg := range segments {
		timings[i] = models.SentenceTiming{
			Index:     seg.Index,
			Text:      seg.Text,
			StartTime: t,
			EndTime:   t + seg.Duration,
			Duration:  seg.Duration,
		}
		t += seg.Duration
		if i < len(segments)-1 {
			t += gap.Seconds()
		}
	}
	return timings, t
}

// Rescale multiplies every boundary by scale. A single factor keeps order and
// relative proportions but assumes drift is spread evenly over the stream.
func Rescale(timings []models.SentenceTiming, scale float64) []models.SentenceTiming {
	out := make([]models.SentenceTiming, len(timings))
	for i, t := range timings {
		t.StartTime *= scale
		t.EndTime *= scale
		t.Duration = t.EndTime - t.StartTime
		out[i] = t
	}
	return out
}

// Reconciler concatenates segments and corrects their timings against the
// measured length of the result.
type Reconciler struct {
	concat  Concatenator
	prober  DurationProber
	gap     time.Duration
	metrics *Metrics
}

func NewReconciler(concat Concatenator, prober DurationProber, metrics *Metrics) *Reconciler {
	return &Reconciler{
		concat:  concat,
		prober:  prober,
		gap:     SentenceGap,
		metrics: metrics,
	}
}

// Reconcile requires at least one segment, ordered by sentence position.
func (r *Reconciler) Reconcile(ctx context.Context, segments []*AudioSegment, format Format) (*Reconciliation, error) {
	if len(segments) == 0 {
		return nil, newError(KindNoValidSentences, nil, "no valid sentences to synthesize")
	}

	timings, estimated := EstimateTimings(segments, r.gap)

	blobs := make([][]byte, len(segments))
	for i, seg := range segments {
		blobs[i] = seg.Audio
	}

	audio, err := r.concat.Concat(ctx, blobs, r.gap, format)
	if err != nil {
		return nil, newError(KindReconcileFailed, err, "concatenate segments")
	}

	result := &Reconciliation{
		Audio:             audio,
		Timings:           timings,
		TotalDuration:     estimated,
		EstimatedDuration: estimated,
		Scale:             1,
	}

	actual, err := r.prober.Probe(ctx, audio, format)
	if err != nil {
		r.metrics.probeFailed()
		slog.Warn("concatenated duration unknown, keeping estimated timings",
			"estimated", estimated,
			"error", err,
		)
		return result, nil
	}
	result.TotalDuration = actual

	if estimated > 0 && math.Abs(actual-estimated) > DriftTolerance.Seconds() {
		scale := actual / estimated
		result.Timings = Rescale(timings, scale)
		result.Scale = scale
		r.metrics.rescaled()
		slog.Debug("rescaled sentence timings",
			"estimated", estimated,
			"actual", actual,
			"scale", scale,
		)
	}

	return result, nil
}
