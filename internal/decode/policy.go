package decode

import (
	"errors"
	"fmt"
)

// Policy selects how decode failures are handled for a batch of files.
type Policy string

const (
	// PolicyChain tries every backend including the ffmpeg fallback and
	// fails the file when none succeeds. This is the default.
	PolicyChain Policy = "chain"
	// PolicyNative restricts decoding to the pure-Go backends, never
	// spawning an ffmpeg subprocess.
	PolicyNative Policy = "native"
	// PolicySkip decodes like PolicyChain but marks undecodable files as
	// skipped instead of failed, letting the rest of the batch proceed.
	PolicySkip Policy = "skip"
)

// ErrUnknownPolicy is returned when a policy string is not recognized.
var ErrUnknownPolicy = errors.New("decode: unknown policy")

// ParsePolicy validates a policy string. The empty string parses to
// PolicyChain.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return PolicyChain, nil
	case PolicyChain, PolicyNative, PolicySkip:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// SkipsFailures reports whether files the decoder cannot handle should be
// skipped rather than failed.
func (p Policy) SkipsFailures() bool { return p == PolicySkip }

// Selector maps a Policy to the backend chain it should use.
type Selector struct {
	full   Decoder
	native Decoder
}

// NewSelector builds a Selector from the full chain (native backends plus
// ffmpeg) and the native-only chain.
func NewSelector(full, native Decoder) *Selector {
	return &Selector{full: full, native: native}
}

// For returns the Decoder for the given policy.
func (s *Selector) For(p Policy) Decoder {
	if p == PolicyNative {
		return s.native
	}
	return s.full
}
