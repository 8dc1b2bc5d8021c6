package embedding

import (
	"context"
	"testing"
)

func TestDedupeKeyDistinguishesTextSets(t *testing.T) {
	a := dedupeKey([]string{"foo", "bar"})
	b := dedupeKey([]string{"foobar"})
	if a == b {
		t.Errorf("dedupeKey() collided for distinct text sets: %q", a)
	}
	if dedupeKey([]string{"foo", "bar"}) != dedupeKey([]string{"foo", "bar"}) {
		t.Error("dedupeKey() not stable for identical input")
	}
}

func TestConfigValidateDefaultsModel(t *testing.T) {
	c := &Config{Provider: "primary"}
	if err := c.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.Model != "text-embedding-3-small" {
		t.Errorf("Model = %q, want default", c.Model)
	}
}

func TestConfigValidateDefaultsRequestsPerSecond(t *testing.T) {
	c := &Config{Provider: "primary"}
	if err := c.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.RequestsPerSecond != defaultRequestsPerSecond {
		t.Errorf("RequestsPerSecond = %v, want default %v", c.RequestsPerSecond, defaultRequestsPerSecond)
	}
}

func TestConfigValidatePreservesExplicitRequestsPerSecond(t *testing.T) {
	c := &Config{Provider: "primary", RequestsPerSecond: 5}
	if err := c.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.RequestsPerSecond != 5 {
		t.Errorf("RequestsPerSecond = %v, want 5", c.RequestsPerSecond)
	}
}

func TestConfigValidateRejectsUnknownProvider(t *testing.T) {
	c := &Config{Provider: "bogus"}
	if err := c.validate(); err == nil {
		t.Error("validate(bogus provider) = nil error, want error")
	}
}

func TestConfigValidateNil(t *testing.T) {
	var c *Config
	if err := c.validate(); err == nil {
		t.Error("validate(nil) = nil error, want error")
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	a := &Adapter{}
	vecs, err := a.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(empty) = (%v, %v), want (nil, nil)", vecs, err)
	}
}
