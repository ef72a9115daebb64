package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
	ErrMissingFX           = errors.New("missing fx rate")
)

// InconsistencyError reports the trade that cannot be applied to the ledger.
type InconsistencyError struct {
	TradeID int64
	Reason  string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s: trade %d: %s", ErrLedgerInconsistency, e.TradeID, e.Reason)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrLedgerInconsistency
}

func inconsistent(tradeID int64, format string, args ...interface{}) error {
	return &InconsistencyError{TradeID: tradeID, Reason: fmt.Sprintf(format, args...)}
}
