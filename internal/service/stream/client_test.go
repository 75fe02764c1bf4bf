package stream

import (
	"testing"
	"time"
)

func TestDecodeTickFrame(t *testing.T) {
	raw := []byte(`{"type":"tick","instrument":"EUR_USD","bid":1.1000,"ask":1.1002,"spread":0.0002,"observed_at":1748855100000}`)
	ev, ok := decodeFrame(raw)
	if !ok || ev.Tick == nil {
		t.Fatalf("tick frame not decoded")
	}
	if ev.Tick.Instrument != "EUR_USD" || ev.Tick.Bid != 1.1000 || ev.Tick.Ask != 1.1002 {
		t.Fatalf("tick = %+v", ev.Tick)
	}
	if ev.Tick.ObservedAt != time.UnixMilli(1748855100000).UTC() {
		t.Fatalf("observed_at = %v", ev.Tick.ObservedAt)
	}
}

func TestDecodeBarUpdateFrame(t *testing.T) {
	raw := []byte(`{"type":"bar_update","instrument":"EUR_USD","timeframe":"1m","open_time":1748855100000,"open":1.1,"high":1.2,"low":1.0,"close":1.15,"volume":420}`)
	ev, ok := decodeFrame(raw)
	if !ok || ev.Bar == nil {
		t.Fatalf("bar frame not decoded")
	}
	if ev.Bar.Timeframe != "1m" || ev.Bar.Bar.Close != 1.15 || ev.Bar.Bar.Volume != 420 {
		t.Fatalf("bar = %+v", ev.Bar)
	}
	if !ev.Bar.Bar.OpenTime.Equal(time.UnixMilli(1748855100000).UTC()) {
		t.Fatalf("open_time = %v", ev.Bar.Bar.OpenTime)
	}
}

func TestDecodeStatusFrame(t *testing.T) {
	ev, ok := decodeFrame([]byte(`{"type":"status","state":"reconnecting"}`))
	if !ok || ev.Status == nil || string(*ev.Status) != "reconnecting" {
		t.Fatalf("status frame = %+v, ok=%v", ev, ok)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	cases := map[string]string{
		"unknown type":    `{"type":"heartbeat"}`,
		"invalid json":    `{"type":`,
		"empty tick":      `{"type":"tick","instrument":""}`,
		"negative spread": `{"type":"tick","instrument":"EUR_USD","spread":-0.1}`,
		"bare bar":        `{"type":"bar_update","instrument":"EUR_USD"}`,
	}
	for name, raw := range cases {
		if _, ok := decodeFrame([]byte(raw)); ok {
			t.Fatalf("%s accepted", name)
		}
	}
}
