package session

import (
	"testing"
	"time"
)

func TestReconnectPolicyDelay(t *testing.T) {
	policy := ReconnectPolicy{MaxRetries: 10, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second, Jitter: 0.5}
	zero := func() float64 { return 0 }
	half := func() float64 { return 0.5 }

	tests := []struct {
		name    string
		attempt int
		random  func() float64
		want    time.Duration
	}{
		{"first attempt", 0, zero, 500 * time.Millisecond},
		{"doubles", 1, zero, time.Second},
		{"doubles again", 2, zero, 2 * time.Second},
		{"capped", 6, zero, 4 * time.Second},
		{"negative attempt", -3, zero, 500 * time.Millisecond},
		{"jitter added", 1, half, 1250 * time.Millisecond},
		{"jitter on cap", 9, half, 5 * time.Second},
		{"nil random", 1, nil, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Delay(tt.attempt, tt.random); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestReconnectPolicyEnabled(t *testing.T) {
	if NoReconnect().Enabled() {
		t.Error("NoReconnect is enabled")
	}
	if !DefaultReconnectPolicy().Enabled() {
		t.Error("DefaultReconnectPolicy is disabled")
	}
	if (ReconnectPolicy{MaxRetries: 3}).Enabled() {
		t.Error("policy without a base delay is enabled")
	}
}

func TestStateString(t *testing.T) {
	for _, s := range []State{StateIdle, StateConnecting, StateAuthenticating, StateSynced, StateClosed} {
		if s.String() == "" || s.String() == "unknown" {
			t.Errorf("state %d has no name", int(s))
		}
	}
}
