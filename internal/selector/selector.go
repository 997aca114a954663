// Package selector implements the trade-selection decision tree: choosing
// between a profitable trade, a keepalive trade that re-mints blocked
// inventory, a periodic rebalance, or no trade at all.
package selector

import (
	"time"

	"github.com/dtarb/arbengine/internal/edge"
)

// TradeType classifies why a trade was selected.
type TradeType string

const (
	TradeProfitable TradeType = "profitable"
	TradeKeepalive  TradeType = "keepalive"
	TradeRebalance  TradeType = "rebalance"
	TradeNone       TradeType = "none"
)

// Params configures the selector's thresholds; all live-mode and paper-mode
// behaviour is driven by the same struct (live mode never applies the
// keepalive/rebalance rules, per Select's mode argument).
type Params struct {
	KeepaliveThresholdBps  float64
	RebalanceEnabled       bool
	RebalanceTriggerCount  int
	RebalanceThresholdBps  float64
	MinTradeInterval       time.Duration
}

// Executability reports whether a direction currently has both legs funded.
type Executability interface {
	Executable(d edge.Direction) bool
}

// Decision is the outcome of one Select call.
type Decision struct {
	Type      TradeType
	Direction edge.Direction
	Result    edge.Result
}

// Selector holds the cross-iteration state the decision tree needs: the
// consecutive-same-direction counter that arms rebalance, whether a
// rebalance is currently armed, and the last trade's timestamp for cooldown.
type Selector struct {
	params Params

	consecutiveCount int
	lastDirection    edge.Direction
	rebalanceArmed   bool
	lastTradeAt      time.Time
}

// New builds a Selector with the given params.
func New(params Params) *Selector {
	return &Selector{params: params}
}

// Select runs the decision tree for one iteration. paperMode controls
// whether keepalive/rebalance rules apply at all — live mode always
// reduces to rule 1 (profitable-and-executable, or nothing).
func (s *Selector) Select(now time.Time, eval edge.Evaluation, inv Executability, paperMode bool) Decision {
	if !s.cooldownElapsed(now) {
		return Decision{Type: TradeNone}
	}

	best := eval.Best
	bestExecutable := inv.Executable(best.Direction)
	s.trackConsecutive(best)

	if best.IsProfitable && bestExecutable {
		return Decision{Type: TradeProfitable, Direction: best.Direction, Result: best}
	}

	if !paperMode {
		return Decision{Type: TradeNone}
	}

	opposite := s.oppositeResult(eval, best.Direction)
	oppositeExecutable := inv.Executable(opposite.Direction)

	if best.IsProfitable && !bestExecutable &&
		oppositeExecutable && opposite.NetEdgeBps >= s.params.KeepaliveThresholdBps {
		return Decision{Type: TradeKeepalive, Direction: opposite.Direction, Result: opposite}
	}

	if s.params.RebalanceEnabled && s.rebalanceArmed &&
		oppositeExecutable && opposite.NetEdgeBps > s.params.RebalanceThresholdBps {
		s.rebalanceArmed = false
		return Decision{Type: TradeRebalance, Direction: opposite.Direction, Result: opposite}
	}

	return Decision{Type: TradeNone}
}

func (s *Selector) oppositeResult(eval edge.Evaluation, direction edge.Direction) edge.Result {
	if direction == edge.DirectionAtoB {
		return eval.BtoA
	}
	return eval.AtoB
}

// trackConsecutive increments the same-direction counter when a profitable
// opportunity repeats the prior direction, arming rebalance
// once it reaches the trigger count.
func (s *Selector) trackConsecutive(best edge.Result) {
	if !best.IsProfitable {
		return
	}
	if best.Direction == s.lastDirection {
		s.consecutiveCount++
	} else {
		s.consecutiveCount = 1
		s.lastDirection = best.Direction
	}
	if s.params.RebalanceEnabled && s.consecutiveCount >= s.params.RebalanceTriggerCount {
		s.rebalanceArmed = true
	}
}

func (s *Selector) cooldownElapsed(now time.Time) bool {
	if s.lastTradeAt.IsZero() {
		return true
	}
	return now.Sub(s.lastTradeAt) >= s.params.MinTradeInterval
}

// RecordTrade marks now as the time of the most recently executed trade,
// for cooldown gating on the next Select call.
func (s *Selector) RecordTrade(now time.Time) {
	s.lastTradeAt = now
}
