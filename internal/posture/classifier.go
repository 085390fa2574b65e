package posture

import "fmt"

// Label is the per-frame posture class.
type Label string

const (
	LabelGood        Label = "good"
	LabelHunchback   Label = "hunchback"
	LabelNeckForward Label = "neck_forward"
)

// Classification is the raw, undebounced verdict for one frame.
type Classification struct {
	Label Label  `json:"label"`
	Bad   bool   `json:"bad"`
	Text  string `json:"text"`
}

// Rule is one row of the decision table. The first rule whose Match returns
// true decides the frame.
type Rule struct {
	Label Label
	Bad   bool
	Match func(s FeatureSample) bool
	Text  func(s FeatureSample) string
}

// Classifier applies an ordered rule list; the last rule should always match.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the posture decision table:
// Hunchback first, then NeckForward, else Good.
func NewClassifier(cfg Config) *Classifier {
	angleThreshold := cfg.AngleThreshold
	neckThreshold := cfg.NeckOffsetThreshold

	return &Classifier{rules: []Rule{
		{
			Label: LabelHunchback,
			Bad:   true,
			Match: func(s FeatureSample) bool { return s.TrunkAngle < angleThreshold },
			Text:  func(s FeatureSample) string { return fmt.Sprintf("Hunchback (%d)", int(s.TrunkAngle)) },
		},
		{
			Label: LabelNeckForward,
			Bad:   true,
			Match: func(s FeatureSample) bool { return s.NeckOffset > neckThreshold },
			Text:  func(FeatureSample) string { return "Neck Forward" },
		},
		{
			Label: LabelGood,
			Bad:   false,
			Match: func(FeatureSample) bool { return true },
			Text:  GoodText,
		},
	}}
}

// Rules returns the decision table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify evaluates the rules against a smoothed sample.
func (c *Classifier) Classify(s FeatureSample) Classification {
	for _, r := range c.rules {
		if r.Match(s) {
			return Classification{Label: r.Label, Bad: r.Bad, Text: r.Text(s)}
		}
	}
	return Classification{Label: LabelGood, Text: GoodText(s)}
}

// GoodText is the status shown for an acceptable (or not yet alarming) posture.
func GoodText(s FeatureSample) string {
	return fmt.Sprintf("Good (%d)", int(s.TrunkAngle))
}
