package risk

import (
	"errors"
	"testing"

	"TradePulse/internal/domain/models"
)

func TestAllowUnlimitedByDefault(t *testing.T) {
	m := New(models.RiskConfig{}, 100_000)
	for i := 0; i < 50; i++ {
		if err := m.Allow("EUR_USD", 10_000); err != nil {
			t.Fatalf("unconfigured limits blocked: %v", err)
		}
		m.AddPosition("EUR_USD", 10_000)
	}
}

func TestMaxOpenPositions(t *testing.T) {
	m := New(models.RiskConfig{MaxOpenPositions: 2}, 100_000)
	m.AddPosition("EUR_USD", 100)
	m.AddPosition("GBP_USD", 100)

	err := m.Allow("USD_JPY", 100)
	var lerr *LimitError
	if !errors.As(err, &lerr) || lerr.Limit != "max_open_positions" {
		t.Fatalf("err = %v, want max_open_positions limit", err)
	}

	m.RemovePosition("EUR_USD", 100)
	if err := m.Allow("USD_JPY", 100); err != nil {
		t.Fatalf("blocked after freeing a slot: %v", err)
	}
}

func TestMaxExposurePerInstrument(t *testing.T) {
	m := New(models.RiskConfig{MaxExposure: 1000}, 100_000)
	m.AddPosition("EUR_USD", 800)

	err := m.Allow("EUR_USD", 300)
	var lerr *LimitError
	if !errors.As(err, &lerr) || lerr.Limit != "max_exposure" {
		t.Fatalf("err = %v, want max_exposure limit", err)
	}
	// Exposure is tracked per instrument.
	if err := m.Allow("GBP_USD", 300); err != nil {
		t.Fatalf("other instrument blocked: %v", err)
	}
}

func TestMaxDailyLoss(t *testing.T) {
	m := New(models.RiskConfig{MaxDailyLoss: 500}, 100_000)
	m.RecordPnL(-400)
	if err := m.Allow("EUR_USD", 100); err != nil {
		t.Fatalf("blocked under the loss limit: %v", err)
	}

	m.RecordPnL(-200)
	err := m.Allow("EUR_USD", 100)
	var lerr *LimitError
	if !errors.As(err, &lerr) || lerr.Limit != "max_daily_loss" {
		t.Fatalf("err = %v, want max_daily_loss limit", err)
	}

	m.ResetDaily()
	if err := m.Allow("EUR_USD", 100); err != nil {
		t.Fatalf("blocked after daily reset: %v", err)
	}
}

func TestMaxDrawdown(t *testing.T) {
	m := New(models.RiskConfig{MaxDrawdownPct: 0.05}, 100_000)
	m.RecordPnL(6000)
	m.RecordPnL(-5500)

	err := m.Allow("EUR_USD", 100)
	var lerr *LimitError
	if !errors.As(err, &lerr) || lerr.Limit != "max_drawdown" {
		t.Fatalf("err = %v, want max_drawdown limit", err)
	}
}
