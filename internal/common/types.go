package common

import (
	"fmt"
	"time"
)

// Time is the simulated clock, in nanoseconds since the run epoch.
// The core never reads the host clock; all timestamps are assigned by the
// scheduler so replays are bit-for-bit stable.
type Time int64

// Add advances a simulated timestamp by a wall-style duration.
func (t Time) Add(d time.Duration) Time {
	return t + Time(d.Nanoseconds())
}

func (t Time) String() string {
	return time.Duration(t).String()
}

// OrderID is assigned monotonically by the simulation context at submit time.
type OrderID uint64

// TradeID is assigned monotonically by the matching engine.
type TradeID uint64

// AgentID identifies a registered trading agent.
type AgentID string

// InstrumentID identifies a tradeable instrument.
type InstrumentID string

type Side int

const (
	Buy Side = iota
	Sell
)

// Opposite returns the side a marketable order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

type OrderType int

const (
	// Limit orders trade at the given price or better and may rest on the
	// book until filled or cancelled.
	LimitOrder OrderType = iota
	// Market orders consume liquidity immediately; any unfilled remainder
	// is rejected rather than rested.
	MarketOrder
	// Stop orders are held off-book and converted to market orders when a
	// trade print satisfies the trigger price.
	StopOrder
	// StopLimit orders convert to limit orders at their limit price when
	// triggered.
	StopLimitOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "limit"
	case MarketOrder:
		return "market"
	case StopOrder:
		return "stop"
	case StopLimitOrder:
		return "stop_limit"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

type OrderStatus int

const (
	Open OrderStatus = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s OrderStatus) String() string {
	switch s {
	case Open:
		return "open"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Live reports whether the order can still rest or trade.
func (s OrderStatus) Live() bool {
	return s == Open || s == PartiallyFilled
}
