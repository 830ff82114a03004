package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidSignal  = errors.New("invalid signal")
	ErrInvalidTrade   = errors.New("invalid trade")
	ErrAdapterFault   = errors.New("execution adapter fault")
	ErrBrokerRejected = errors.New("broker rejected order")
	ErrNoPrice        = errors.New("no reference price")
	ErrContextDone    = errors.New("context cancelled")
	ErrLockHeld       = errors.New("lock already held")
)

// TradeExecutionError is returned when handling a signal hits an unexpected
// internal fault. The ledger is untouched when this error is returned.
type TradeExecutionError struct {
	Signal TradeSignal
	Err    error
}

func (e *TradeExecutionError) Error() string {
	return fmt.Sprintf("trade execution failed [signal %s %s %s]: %v",
		e.Signal.ID, e.Signal.Direction, e.Signal.Symbol, e.Err)
}

func (e *TradeExecutionError) Unwrap() error {
	return e.Err
}

// NewTradeExecutionError wraps err with the signal being handled.
func NewTradeExecutionError(sig TradeSignal, err error) *TradeExecutionError {
	return &TradeExecutionError{Signal: sig, Err: err}
}
