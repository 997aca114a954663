package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtarb/arbengine/internal/edge"
)

func testLimits() Limits {
	return Limits{MaxTradeZAR: 5000, MaxTradeSizeBTC: 0.01, MinTradeSizeBTC: 0.0001}
}

func TestInitialize_SymmetricPreFunding(t *testing.T) {
	m := NewManager(DefaultSafetyBuffers(), testLimits())
	m.Initialize(1_000_000)

	f := m.Snapshot()
	assert.Equal(t, 5000.0, f.AZAR)
	assert.Zero(t, f.ABTC)
	assert.InDelta(t, 0.005, f.BBTC, 1e-9)
	assert.Zero(t, f.BUSDT)
	assert.True(t, f.Initialized)
}

func TestInitialize_IsIdempotent(t *testing.T) {
	m := NewManager(DefaultSafetyBuffers(), testLimits())
	m.Initialize(1_000_000)
	m.Initialize(2_000_000)

	f := m.Snapshot()
	assert.InDelta(t, 0.005, f.BBTC, 1e-9)
}

func TestExecutable_InventoryBlock(t *testing.T) {
	m := NewManager(DefaultSafetyBuffers(), testLimits())
	m.mu.Lock()
	m.floats = Floats{AZAR: 10000, ABTC: 0.01, BBTC: 0, BUSDT: 0, Initialized: true}
	m.mu.Unlock()

	assert.False(t, m.Executable(edge.DirectionAtoB), "needs B-BTC, which is zero")
	assert.False(t, m.Executable(edge.DirectionBtoA), "needs B-USDT, which is zero")
}

func TestTradeSize_ClampsByAvailability(t *testing.T) {
	m := NewManager(SafetyBuffers{}, Limits{MaxTradeZAR: 1_000_000, MaxTradeSizeBTC: 10, MinTradeSizeBTC: 0.0001})
	m.mu.Lock()
	m.floats = Floats{AZAR: 1000, BBTC: 0.5, Initialized: true}
	m.mu.Unlock()

	btc, zarEq := m.TradeSize(edge.DirectionAtoB, 1_000_000, 60000)
	assert.InDelta(t, 0.001, btc, 1e-9) // AZAR 1000 / price 1,000,000
	assert.InDelta(t, 1000, zarEq, 1e-6)
}

func TestTradeSize_BelowMinimumReturnsZero(t *testing.T) {
	m := NewManager(SafetyBuffers{}, Limits{MaxTradeZAR: 1_000_000, MaxTradeSizeBTC: 10, MinTradeSizeBTC: 0.01})
	m.mu.Lock()
	m.floats = Floats{AZAR: 100, BBTC: 1, Initialized: true}
	m.mu.Unlock()

	btc, zarEq := m.TradeSize(edge.DirectionAtoB, 1_000_000, 60000)
	assert.Zero(t, btc)
	assert.Zero(t, zarEq)
}

func TestTradeSize_BtoA_ClampsByUSDTAvailability(t *testing.T) {
	m := NewManager(SafetyBuffers{}, Limits{MaxTradeZAR: 1_000_000, MaxTradeSizeBTC: 10, MinTradeSizeBTC: 0.0001})
	m.mu.Lock()
	m.floats = Floats{ABTC: 1, BUSDT: 600, Initialized: true}
	m.mu.Unlock()

	// venueBPrice 60000 USDT/BTC -> 600 USDT caps the trade at 0.01 BTC,
	// well below the 1 BTC available on venue A.
	btc, zarEq := m.TradeSize(edge.DirectionBtoA, 1_000_000, 60000)
	assert.InDelta(t, 0.01, btc, 1e-9)
	assert.InDelta(t, 10000, zarEq, 1e-6)
}

func TestTradeSize_BtoA_BelowMinimumReturnsZero(t *testing.T) {
	m := NewManager(SafetyBuffers{}, Limits{MaxTradeZAR: 1_000_000, MaxTradeSizeBTC: 10, MinTradeSizeBTC: 0.01})
	m.mu.Lock()
	m.floats = Floats{ABTC: 1, BUSDT: 60, Initialized: true}
	m.mu.Unlock()

	btc, zarEq := m.TradeSize(edge.DirectionBtoA, 1_000_000, 60000)
	assert.Zero(t, btc)
	assert.Zero(t, zarEq)
}

func TestTradeSize_BtoA_ZeroVenueBPriceReturnsZero(t *testing.T) {
	m := NewManager(SafetyBuffers{}, Limits{MaxTradeZAR: 1_000_000, MaxTradeSizeBTC: 10, MinTradeSizeBTC: 0.0001})
	m.mu.Lock()
	m.floats = Floats{ABTC: 1, BUSDT: 600, Initialized: true}
	m.mu.Unlock()

	btc, zarEq := m.TradeSize(edge.DirectionBtoA, 1_000_000, 0)
	assert.Zero(t, btc)
	assert.Zero(t, zarEq)
}

func TestApplyPaperTrade_AtoB_MovesBalancesAndAccrues(t *testing.T) {
	m := NewManager(SafetyBuffers{}, testLimits())
	m.Initialize(1_000_000)

	before := m.Snapshot()
	profitZAR, profitUSD := m.ApplyPaperTrade(edge.DirectionAtoB, 0.001, 1000, 60000, 0.001, 0.001, 30, 16.5)

	after := m.Snapshot()
	assert.Less(t, after.AZAR, before.AZAR, "ZAR spent to buy on venue A")
	assert.Greater(t, after.ABTC, before.ABTC, "BTC received on venue A")
	assert.Less(t, after.BBTC, before.BBTC, "BTC sold on venue B")
	assert.Greater(t, after.BUSDT, before.BUSDT, "USDT received on venue B")
	assert.InDelta(t, 3.0, profitZAR, 1e-6) // 1000 * 30bps / 10000
	assert.Greater(t, profitUSD, 0.0)
	assert.Equal(t, int64(1), after.TradesCompleted)
	assert.Equal(t, edge.DirectionAtoB, after.LastDirection)
}

func TestReset_ReturnsToUninitializedState(t *testing.T) {
	m := NewManager(DefaultSafetyBuffers(), testLimits())
	m.Initialize(1_000_000)
	m.ApplyPaperTrade(edge.DirectionAtoB, 0.001, 1000, 60000, 0.001, 0.001, 30, 16.5)

	m.Reset()

	f := m.Snapshot()
	assert.False(t, f.Initialized)
	assert.Zero(t, f.AZAR)
	assert.Zero(t, f.TradesCompleted)

	m.Initialize(2_000_000)
	f = m.Snapshot()
	assert.True(t, f.Initialized)
	assert.Equal(t, 5000.0, f.AZAR)
}
