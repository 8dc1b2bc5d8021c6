package streaming

import (
	"testing"
	"time"
)

func TestConfigWithDefaults(t *testing.T) {
	c := &Config{}
	out := c.withDefaults()
	if out.WholeStreamTimeout != DefaultWholeStreamTimeout {
		t.Errorf("WholeStreamTimeout = %v, want %v", out.WholeStreamTimeout, DefaultWholeStreamTimeout)
	}
	if out.InterChunkTimeout != DefaultInterChunkTimeout {
		t.Errorf("InterChunkTimeout = %v, want %v", out.InterChunkTimeout, DefaultInterChunkTimeout)
	}
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := &Config{WholeStreamTimeout: 5 * time.Second, InterChunkTimeout: 2 * time.Second, LegacyCompat: true}
	out := c.withDefaults()
	if out.WholeStreamTimeout != 5*time.Second || out.InterChunkTimeout != 2*time.Second || !out.LegacyCompat {
		t.Errorf("withDefaults() = %+v, want explicit values preserved", out)
	}
}

func TestStreamExpiredWholeDeadline(t *testing.T) {
	s := &Stream{
		cfg:           Config{WholeStreamTimeout: time.Hour, InterChunkTimeout: time.Hour},
		wholeDeadline: time.Now().Add(-time.Second),
		lastChunkAt:   time.Now(),
	}
	if !s.Expired() {
		t.Error("Expired() = false, want true (whole-stream deadline passed)")
	}
}

func TestStreamExpiredInterChunkTimeout(t *testing.T) {
	s := &Stream{
		cfg:           Config{WholeStreamTimeout: time.Hour, InterChunkTimeout: time.Millisecond},
		wholeDeadline: time.Now().Add(time.Hour),
		lastChunkAt:   time.Now().Add(-time.Second),
	}
	if !s.Expired() {
		t.Error("Expired() = false, want true (inter-chunk timeout passed)")
	}
}

func TestStreamNotExpired(t *testing.T) {
	s := &Stream{
		cfg:           Config{WholeStreamTimeout: time.Hour, InterChunkTimeout: time.Hour},
		wholeDeadline: time.Now().Add(time.Hour),
		lastChunkAt:   time.Now(),
	}
	if s.Expired() {
		t.Error("Expired() = true, want false")
	}
}
