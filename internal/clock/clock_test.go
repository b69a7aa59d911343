package clock

import (
	"testing"
	"time"
)

func TestSystem(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	now := System().Now()
	after := time.Now().UTC().Add(time.Second)

	if now.Before(before) || now.After(after) {
		t.Errorf("System().Now() = %v, outside [%v, %v]", now, before, after)
	}
}

func TestFixed(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixed(base)

	if !c.Now().Equal(base) {
		t.Errorf("Now() = %v, want %v", c.Now(), base)
	}

	c.Advance(2 * time.Hour)
	if !c.Now().Equal(base.Add(2 * time.Hour)) {
		t.Errorf("after Advance, Now() = %v, want %v", c.Now(), base.Add(2*time.Hour))
	}

	c.Set(base)
	if !c.Now().Equal(base) {
		t.Errorf("after Set, Now() = %v, want %v", c.Now(), base)
	}
}
