// Package inventory models the synthetic paper-mode float balances (and
// the safety buffers and sizing rules shared with live mode) that the
// execution component mutates on every trade.
package inventory

import (
	"sync"

	"github.com/dtarb/arbengine/internal/edge"
)

// SafetyBuffers is the per-currency floor below which a balance is treated
// as zero for sizing purposes.
type SafetyBuffers struct {
	AZAR  float64
	ABTC  float64
	BBTC  float64
	BUSDT float64
}

// DefaultSafetyBuffers matches the documented defaults.
func DefaultSafetyBuffers() SafetyBuffers {
	return SafetyBuffers{AZAR: 1000, ABTC: 0.0005, BBTC: 0.001, BUSDT: 50}
}

// Limits bounds how large a single trade may be.
type Limits struct {
	MaxTradeZAR     float64
	MaxTradeSizeBTC float64
	MinTradeSizeBTC float64
}

// Floats are the four synthetic balances tracked in paper mode, plus the
// bookkeeping fields the selector and reporting layer read.
type Floats struct {
	AZAR  float64
	ABTC  float64
	BBTC  float64
	BUSDT float64

	LastDirection       edge.Direction
	AccumulatedProfitZAR float64
	AccumulatedProfitUSD float64
	TradesCompleted      int64
	Initialized          bool
}

// Manager owns the paper floats and the safety-buffer/sizing rules applied
// to both paper and live trades.
type Manager struct {
	buffers SafetyBuffers
	limits  Limits

	mu     sync.Mutex
	floats Floats
}

// NewManager builds an inventory manager with the given buffers and limits.
func NewManager(buffers SafetyBuffers, limits Limits) *Manager {
	return &Manager{buffers: buffers, limits: limits}
}

// Initialize sets the paper floats from the first valid venue A price, per
// the documented symmetric pre-funding rule. A no-op if already initialised.
func (m *Manager) Initialize(venueALast float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.floats.Initialized {
		return
	}

	m.floats.AZAR = m.limits.MaxTradeZAR
	m.floats.ABTC = 0
	if venueALast > 0 {
		m.floats.BBTC = m.limits.MaxTradeZAR / venueALast
	}
	m.floats.BUSDT = 0
	m.floats.Initialized = true
}

// Snapshot returns a copy of the current floats.
func (m *Manager) Snapshot() Floats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.floats
}

// Reset discards the current floats, returning the manager to its
// uninitialised state so the next Initialize call re-seeds them from the
// prevailing venue A price. Mirrors the paper-float lifecycle's explicit
// reset path.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.floats = Floats{}
}

// tradeable returns max(0, balance-buffer).
func tradeable(balance, buffer float64) float64 {
	v := balance - buffer
	if v < 0 {
		return 0
	}
	return v
}

// Executable reports whether direction has strictly positive tradeable
// amounts on both legs under the current floats.
func (m *Manager) Executable(direction edge.Direction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executableLocked(direction)
}

func (m *Manager) executableLocked(direction edge.Direction) bool {
	switch direction {
	case edge.DirectionAtoB:
		return tradeable(m.floats.AZAR, m.buffers.AZAR) > 0 && tradeable(m.floats.BBTC, m.buffers.BBTC) > 0
	case edge.DirectionBtoA:
		return tradeable(m.floats.BUSDT, m.buffers.BUSDT) > 0 && tradeable(m.floats.ABTC, m.buffers.ABTC) > 0
	default:
		return false
	}
}

// TradeSize computes the BTC amount (and its ZAR equivalent at venueALast)
// tradeable for direction, clamped by value limits and available tradeable
// balances on both legs. venueBPrice is the venue-B price (USDT) for the
// leg that spends or receives BUSDT, needed to convert that tradeable
// balance into a BTC-equivalent clamp. Returns (0, 0) if the result is
// below MinTradeSizeBTC.
func (m *Manager) TradeSize(direction edge.Direction, venueALast, venueBPrice float64) (btcAmount, zarEquivalent float64) {
	if venueALast <= 0 {
		return 0, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	btc := m.limits.MaxTradeZAR / venueALast
	if btc > m.limits.MaxTradeSizeBTC {
		btc = m.limits.MaxTradeSizeBTC
	}

	switch direction {
	case edge.DirectionAtoB:
		availableZARasBTC := tradeable(m.floats.AZAR, m.buffers.AZAR) / venueALast
		availableBTC := tradeable(m.floats.BBTC, m.buffers.BBTC)
		btc = minOf(btc, availableZARasBTC, availableBTC)
	case edge.DirectionBtoA:
		if venueBPrice <= 0 {
			return 0, 0
		}
		availableBTC := tradeable(m.floats.ABTC, m.buffers.ABTC)
		availableUSDTasBTC := tradeable(m.floats.BUSDT, m.buffers.BUSDT) / venueBPrice
		btc = minOf(btc, availableBTC, availableUSDTasBTC)
	default:
		return 0, 0
	}

	if btc < m.limits.MinTradeSizeBTC {
		return 0, 0
	}
	return btc, btc * venueALast
}

func minOf(values ...float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// ApplyPaperTrade mutates the paper floats for a completed paper trade and
// returns the realised profit in ZAR and USD. usdtZar is the USDT-
// denominated ZAR cross rate used to translate the ZAR profit to USD.
func (m *Manager) ApplyPaperTrade(direction edge.Direction, btcAmount, zarNotional, venueBPrice, feeA, feeB, netEdgeBps, usdtZar float64) (profitZAR, profitUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch direction {
	case edge.DirectionAtoB:
		m.floats.AZAR -= zarNotional
		m.floats.ABTC += btcAmount * (1 - feeA)
		m.floats.BBTC -= btcAmount
		m.floats.BUSDT += btcAmount * venueBPrice * (1 - feeB)
	case edge.DirectionBtoA:
		m.floats.BUSDT -= btcAmount * venueBPrice
		m.floats.BBTC += btcAmount * (1 - feeB)
		m.floats.ABTC -= btcAmount
		m.floats.AZAR += zarNotional * (1 - feeA)
	}

	profitZAR = zarNotional * netEdgeBps / 10000
	if usdtZar > 0 {
		profitUSD = profitZAR / usdtZar
	}

	m.floats.LastDirection = direction
	m.floats.AccumulatedProfitZAR += profitZAR
	m.floats.AccumulatedProfitUSD += profitUSD
	m.floats.TradesCompleted++

	return profitZAR, profitUSD
}

// Buffers returns the configured safety buffers.
func (m *Manager) Buffers() SafetyBuffers { return m.buffers }

// Limits returns the configured trade-size limits.
func (m *Manager) Limits() Limits { return m.limits }
