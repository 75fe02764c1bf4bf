package risk

import (
	"fmt"
	"sync"

	"TradePulse/internal/domain/models"
)

// LimitError reports which risk limit blocked a signal.
type LimitError struct {
	Limit  string
	Detail string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("risk limit %s: %s", e.Limit, e.Detail)
}

// Manager enforces an agent's risk configuration before auto-mode
// submissions. A violated limit suppresses the signal; it never stops the
// agent.
type Manager struct {
	mu            sync.RWMutex
	cfg           models.RiskConfig
	openPositions int
	exposure      map[string]float64 // instrument -> open exposure
	dailyPnL      float64
	peakPnL       float64
	capital       float64
}

func New(cfg models.RiskConfig, capital float64) *Manager {
	return &Manager{
		cfg:      cfg,
		capital:  capital,
		exposure: make(map[string]float64),
	}
}

// Allow returns nil if a trade of the given size on instrument is within
// every configured limit, or a *LimitError naming the violated limit.
func (m *Manager) Allow(instrument string, size float64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cfg.MaxOpenPositions > 0 && m.openPositions >= m.cfg.MaxOpenPositions {
		return &LimitError{Limit: "max_open_positions",
			Detail: fmt.Sprintf("%d/%d open", m.openPositions, m.cfg.MaxOpenPositions)}
	}
	if m.cfg.MaxExposure > 0 {
		if exp := m.exposure[instrument]; exp+size > m.cfg.MaxExposure {
			return &LimitError{Limit: "max_exposure",
				Detail: fmt.Sprintf("%s: %.2f+%.2f > %.2f", instrument, exp, size, m.cfg.MaxExposure)}
		}
	}
	if m.cfg.MaxDailyLoss > 0 && m.dailyPnL <= -m.cfg.MaxDailyLoss {
		return &LimitError{Limit: "max_daily_loss",
			Detail: fmt.Sprintf("%.2f/%.2f", m.dailyPnL, -m.cfg.MaxDailyLoss)}
	}
	if m.cfg.MaxDrawdownPct > 0 && m.capital > 0 {
		drawdown := (m.peakPnL - m.dailyPnL) / m.capital
		if drawdown >= m.cfg.MaxDrawdownPct {
			return &LimitError{Limit: "max_drawdown",
				Detail: fmt.Sprintf("%.2f%% >= %.2f%%", drawdown*100, m.cfg.MaxDrawdownPct*100)}
		}
	}
	return nil
}

func (m *Manager) AddPosition(instrument string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions++
	m.exposure[instrument] += size
}

func (m *Manager) RemovePosition(instrument string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openPositions > 0 {
		m.openPositions--
	}
	m.exposure[instrument] -= size
	if m.exposure[instrument] <= 0 {
		delete(m.exposure, instrument)
	}
}

func (m *Manager) RecordPnL(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL += amount
	if m.dailyPnL > m.peakPnL {
		m.peakPnL = m.dailyPnL
	}
}

func (m *Manager) DailyPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyPnL
}

func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = 0
	m.peakPnL = 0
}
