package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want Timeframe
	}{
		{"", TF1m},
		{"1m", TF1m},
		{"5m", TF5m},
		{"15m", TF15m},
		{"1h", TF1h},
		{"4h", TF4h},
		{"2h", TF1m},
		{"junk", TF1m},
	}
	for _, c := range cases {
		if got := NormalizeTimeframe(c.in); got != c.want {
			t.Fatalf("NormalizeTimeframe(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestTimeframeAlign(t *testing.T) {
	at := time.Date(2025, 6, 2, 9, 37, 42, 0, time.UTC)

	if got := TF1m.Align(at); got.Minute() != 37 || got.Second() != 0 {
		t.Fatalf("1m align = %v", got)
	}
	if got := TF5m.Align(at); got.Minute() != 35 {
		t.Fatalf("5m align = %v", got)
	}
	if got := TF1h.Align(at); got.Minute() != 0 || got.Hour() != 9 {
		t.Fatalf("1h align = %v", got)
	}
}

func TestTimeframeDuration(t *testing.T) {
	if TF4h.Duration() != 4*time.Hour {
		t.Fatalf("4h duration = %v", TF4h.Duration())
	}
	if Timeframe("junk").Duration() != time.Minute {
		t.Fatalf("unknown timeframe duration = %v", Timeframe("junk").Duration())
	}
}
