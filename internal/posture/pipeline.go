package posture

import (
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// Outcome is how a frame went through the pipeline.
type Outcome int

const (
	OutcomeAnalyzed  Outcome = iota // Subject measured and classified
	OutcomeNoSubject                // No usable landmarks this frame
	OutcomeFailed                   // Processing failed; Err is set
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnalyzed:
		return "analyzed"
	case OutcomeNoSubject:
		return "no_subject"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FrameResult is everything one pipeline pass produced.
type FrameResult struct {
	Outcome        Outcome
	Err            error
	Payload        types.PosturePayload
	Status         Status
	Features       FeatureSample  // Raw, only for OutcomeAnalyzed
	Smoothed       FilterState    // Filter state after this frame
	Classification Classification // Per-frame verdict, only for OutcomeAnalyzed
	Counter        int            // Debounce counter after this frame
	Alarm          bool           // Debounced posture alarm
	Session        SessionSnapshot
	Event          SessionEvent
}

// Pipeline wires the stages together and owns their persistent state:
// the smoother and debouncer belong to the analysis loop, the session tracker
// is shared with status readers.
type Pipeline struct {
	cfg        Config
	smoother   *Smoother
	classifier *Classifier
	debouncer  *Debouncer
	tracker    *SessionTracker
}

// NewPipeline creates a pipeline with fresh state.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		smoother:   NewSmoother(cfg),
		classifier: NewClassifier(cfg),
		debouncer:  NewDebouncer(cfg),
		tracker:    NewSessionTracker(cfg),
	}
}

// Config returns the pipeline tuning.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Sessions exposes the tracker for concurrent status readers.
func (p *Pipeline) Sessions() *SessionTracker {
	return p.tracker
}

// Filter returns the current smoother state.
func (p *Pipeline) Filter() FilterState {
	return p.smoother.State()
}

// Process runs one frame observed at now.
func (p *Pipeline) Process(frame *types.LandmarkFrame, now time.Time) FrameResult {
	res := FrameResult{Outcome: OutcomeNoSubject}
	status := Status{Text: TextNoPerson}

	sample, ok := ExtractFeatures(frame, p.cfg)
	if ok {
		res.Outcome = OutcomeAnalyzed
		res.Features = sample

		res.Smoothed = p.smoother.Update(sample)
		smoothed := p.smoother.Sample()

		res.Classification = p.classifier.Classify(smoothed)
		res.Alarm = p.debouncer.Update(res.Classification.Bad)

		if res.Alarm {
			status = Status{Text: res.Classification.Text, Bad: true, Label: res.Classification.Label}
		} else {
			status = Status{Text: GoodText(smoothed), Label: LabelGood}
		}
	} else {
		// Only a present subject can accumulate bad frames.
		p.debouncer.Reset()
		res.Smoothed = p.smoother.State()
	}

	res.Session, res.Event = p.tracker.Observe(ok, now)
	if res.Event == SessionEnded {
		p.debouncer.Reset()
	}
	if !ok && res.Session.MissedFrames > p.cfg.GraceFrames {
		status.Text = TextUserAway
	}

	res.Status = ApplySedentary(status, res.Session, p.cfg.SedentaryLimitSec)
	res.Counter = p.debouncer.Counter()
	res.Payload = BuildPayload(res.Status, res.Session)
	return res
}
