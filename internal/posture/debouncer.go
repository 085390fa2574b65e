package posture

const (
	debounceRise  = 1 // Counter step on a bad frame
	debounceDecay = 2 // Counter step on a good frame
)

// Debouncer is a one-sided leaky integrator over per-frame bad verdicts.
// Slow rise, fast decay: the alarm needs sustained bad posture and clears
// quickly once posture recovers.
type Debouncer struct {
	trigger int
	counter int
}

// NewDebouncer creates a debouncer that alarms once the counter exceeds
// cfg.AlarmTriggerFrames.
func NewDebouncer(cfg Config) *Debouncer {
	return &Debouncer{trigger: cfg.AlarmTriggerFrames}
}

// Update records one subject-present frame and reports whether the alarm is active.
func (d *Debouncer) Update(bad bool) bool {
	if bad {
		d.counter += debounceRise
	} else {
		d.counter = max(0, d.counter-debounceDecay)
	}
	return d.Active()
}

// Active reports whether the counter is strictly above the trigger.
func (d *Debouncer) Active() bool {
	return d.counter > d.trigger
}

// Reset clears the counter (no subject in view).
func (d *Debouncer) Reset() {
	d.counter = 0
}

// Counter returns the current bad-frame count.
func (d *Debouncer) Counter() int {
	return d.counter
}
