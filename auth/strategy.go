package auth

import (
	"context"

	"github.com/upb/crm-gateway/models"
)

// Outcome tells the Verifier what to do after a strategy runs.
type Outcome int

const (
	// OutcomeContinue hands the credential to the next strategy.
	OutcomeContinue Outcome = iota
	// OutcomeSuccess ends verification with an identity.
	OutcomeSuccess
	// OutcomeFatal ends verification with a rejection.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFatal:
		return "fatal"
	default:
		return "continue"
	}
}

// StrategyResult is the result of a single verification attempt.
type StrategyResult struct {
	Outcome  Outcome
	Identity *models.Identity
	Err      error
}

// Strategy is one trust source for bearer credentials.
type Strategy interface {
	Name() string
	Verify(ctx context.Context, token string) StrategyResult
}

func success(identity *models.Identity) StrategyResult {
	return StrategyResult{Outcome: OutcomeSuccess, Identity: identity}
}

func continueWith(err error) StrategyResult {
	return StrategyResult{Outcome: OutcomeContinue, Err: err}
}

func fatal(err error) StrategyResult {
	return StrategyResult{Outcome: OutcomeFatal, Err: err}
}
