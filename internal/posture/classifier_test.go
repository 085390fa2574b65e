package posture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	tests := []struct {
		name   string
		sample FeatureSample
		want   Classification
	}{
		{"upright", FeatureSample{TrunkAngle: 170, NeckOffset: 0.02}, Classification{LabelGood, false, "Good (170)"}},
		{"hunchback", FeatureSample{TrunkAngle: 140.7, NeckOffset: 0}, Classification{LabelHunchback, true, "Hunchback (140)"}},
		{"neck forward", FeatureSample{TrunkAngle: 160, NeckOffset: 0.2}, Classification{LabelNeckForward, true, "Neck Forward"}},
		{"hunchback wins over neck forward", FeatureSample{TrunkAngle: 130, NeckOffset: 0.4}, Classification{LabelHunchback, true, "Hunchback (130)"}},
		{"angle at threshold is good", FeatureSample{TrunkAngle: 145, NeckOffset: 0}, Classification{LabelGood, false, "Good (145)"}},
		{"offset at threshold is good", FeatureSample{TrunkAngle: 150, NeckOffset: 0.15}, Classification{LabelGood, false, "Good (150)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.sample))
		})
	}
}

func TestClassifierRuleOrder(t *testing.T) {
	rules := NewClassifier(DefaultConfig()).Rules()

	labels := make([]Label, 0, len(rules))
	for _, r := range rules {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []Label{LabelHunchback, LabelNeckForward, LabelGood}, labels)
}
