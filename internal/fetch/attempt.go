package fetch

import (
	"errors"
	"time"

	"monthbars/internal/executor"
	"monthbars/internal/source"
)

// Strategy names the kind of provider call an attempt made.
type Strategy string

const (
	StrategyMonthly Strategy = "monthly"
	StrategyDaily   Strategy = "daily"
	// StrategyPrior is the bounded lookup of the month before the window.
	StrategyPrior Strategy = "prior_month"
)

// Outcome classifies how a provider call ended.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeEmpty          Outcome = "empty"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeSchemaMismatch Outcome = "schema_mismatch"
	OutcomeUnsupported    Outcome = "unsupported"
	OutcomeAdapterError   Outcome = "adapter_error"
)

// Attempt records one provider call. It exists for diagnostics only.
type Attempt struct {
	ID       string        `json:"id"`
	Source   string        `json:"source"`
	Symbol   string        `json:"symbol"`
	Start    string        `json:"start"`
	End      string        `json:"end"`
	Strategy Strategy      `json:"strategy"`
	Outcome  Outcome       `json:"outcome"`
	Rows     int           `json:"rows"`
	Err      string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, executor.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, source.ErrUnsupported):
		return OutcomeUnsupported
	case errors.Is(err, source.ErrSchemaMismatch):
		return OutcomeSchemaMismatch
	default:
		return OutcomeAdapterError
	}
}
