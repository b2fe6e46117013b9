package llm

import "fmt"

// ErrProviderUnavailable indicates the provider is down, unreachable, or
// rejected the request. The fallback chain treats it as "try the next one".
type ErrProviderUnavailable struct {
	Provider string
	Err      error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s unavailable", e.Provider)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrUnsupportedInput indicates the request shape cannot be served by this
// provider, e.g. image parts sent to a text-only configuration.
type ErrUnsupportedInput struct {
	Provider string
	Reason   string
}

func (e *ErrUnsupportedInput) Error() string {
	return fmt.Sprintf("provider %s: unsupported input: %s", e.Provider, e.Reason)
}
