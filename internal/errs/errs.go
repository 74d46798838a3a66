// Package errs defines the typed error kinds that cross component
// boundaries in the screener pipeline (spec §7). Errors local to a
// single unit (an article, a provider attempt) are expected to be
// caught and converted to one of these kinds before they reach a phase
// boundary.
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the error categories the orchestrator must
// branch on when deciding abort vs. degrade.
type Kind string

const (
	KindConfig             Kind = "config"
	KindProviderTransient  Kind = "provider_transient"
	KindProviderPermanent  Kind = "provider_permanent"
	KindProviderExhausted  Kind = "provider_exhausted"
	KindValidationFailure  Kind = "validation_failure"
	KindComponentFailure   Kind = "component_failure"
	KindPhaseTimeout       Kind = "phase_timeout"
	KindCancelled          Kind = "cancelled"
	KindInternal           Kind = "internal"
)

// Error is a typed, wrappable error carrying one of the Kind values
// above plus the symbol/provider it occurred against, where relevant.
type Error struct {
	Kind     Kind
	Symbol   string
	Provider string
	Msg      string
	Cause    error
}

func (e *Error) Error() string {
	parts := string(e.Kind)
	if e.Provider != "" {
		parts += " provider=" + e.Provider
	}
	if e.Symbol != "" {
		parts += " symbol=" + e.Symbol
	}
	if e.Msg != "" {
		parts += ": " + e.Msg
	}
	if e.Cause != nil {
		parts += ": " + e.Cause.Error()
	}
	return parts
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is comparison by Kind only (Symbol/Provider are
// context, not identity).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func ConfigError(msg string, cause error) *Error { return newErr(KindConfig, msg, cause) }

func ProviderTransient(provider, msg string, cause error) *Error {
	return &Error{Kind: KindProviderTransient, Provider: provider, Msg: msg, Cause: cause}
}

func ProviderPermanent(provider, msg string, cause error) *Error {
	return &Error{Kind: KindProviderPermanent, Provider: provider, Msg: msg, Cause: cause}
}

func ProviderExhausted(symbol string) *Error {
	return &Error{Kind: KindProviderExhausted, Symbol: symbol, Msg: "all providers exhausted"}
}

func ValidationFailure(symbol, reason string) *Error {
	return &Error{Kind: KindValidationFailure, Symbol: symbol, Msg: reason}
}

func ComponentFailure(symbol, component string, cause error) *Error {
	return &Error{Kind: KindComponentFailure, Symbol: symbol, Msg: fmt.Sprintf("component %s", component), Cause: cause}
}

func PhaseTimeout(phase string) *Error {
	return &Error{Kind: KindPhaseTimeout, Msg: fmt.Sprintf("phase %s exceeded timeout", phase)}
}

func Cancelled() *Error { return &Error{Kind: KindCancelled, Msg: "cancelled"} }

func Internal(msg string, cause error) *Error { return newErr(KindInternal, msg, cause) }

// Sentinels for errors.Is comparisons without constructing a value.
var (
	ErrConfig            = &Error{Kind: KindConfig}
	ErrProviderTransient = &Error{Kind: KindProviderTransient}
	ErrProviderPermanent = &Error{Kind: KindProviderPermanent}
	ErrProviderExhausted = &Error{Kind: KindProviderExhausted}
	ErrValidationFailure = &Error{Kind: KindValidationFailure}
	ErrComponentFailure  = &Error{Kind: KindComponentFailure}
	ErrPhaseTimeout      = &Error{Kind: KindPhaseTimeout}
	ErrCancelled         = &Error{Kind: KindCancelled}
	ErrInternal          = &Error{Kind: KindInternal}
)
