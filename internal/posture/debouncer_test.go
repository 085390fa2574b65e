package posture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerStrictThreshold(t *testing.T) {
	d := NewDebouncer(DefaultConfig())

	for i := 1; i <= 20; i++ {
		assert.False(t, d.Update(true), "frame %d", i)
	}
	assert.Equal(t, 20, d.Counter())
	assert.False(t, d.Active())

	assert.True(t, d.Update(true))
	assert.Equal(t, 21, d.Counter())
}

func TestDebouncerFastDecay(t *testing.T) {
	d := NewDebouncer(DefaultConfig())
	for i := 0; i < 5; i++ {
		d.Update(true)
	}

	var got []int
	for i := 0; i < 4; i++ {
		d.Update(false)
		got = append(got, d.Counter())
	}
	assert.Equal(t, []int{3, 1, 0, 0}, got)
}

func TestDebouncerRecurrence(t *testing.T) {
	d := NewDebouncer(DefaultConfig())
	pattern := []bool{true, true, false, true, true, true, false, false, true}

	want := 0
	for i, bad := range pattern {
		if bad {
			want++
		} else {
			want = max(0, want-2)
		}
		d.Update(bad)
		assert.Equal(t, want, d.Counter(), "frame %d", i)
		assert.GreaterOrEqual(t, d.Counter(), 0)
	}
}

func TestDebouncerAlarmClearsQuickly(t *testing.T) {
	d := NewDebouncer(DefaultConfig())
	for i := 0; i < 22; i++ {
		d.Update(true)
	}
	assert.True(t, d.Active())

	d.Update(false)
	assert.False(t, d.Active())

	d.Reset()
	assert.Equal(t, 0, d.Counter())
}
