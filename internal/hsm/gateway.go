package hsm

import "context"

// OtpResult carries the gateway's answer to an OTP request, including the
// human-readable confirmation relayed to the signing officer.
type OtpResult struct {
	Success     bool
	Message     string
	RawResponse string
}

// SignResult carries the outcome of a sign operation. RawResponse keeps
// the provider body verbatim for diagnostics on failure.
type SignResult struct {
	Success     bool
	SignedBytes []byte
	Message     string
	RawResponse string
}

// Coordinates is the stamp position for the signature visual. It is a
// rendering detail passed through to the provider and never affects
// success or failure.
type Coordinates struct {
	Page   int `json:"page"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Gateway is the external HSM boundary: an unreliable remote dependency.
// Both calls block for as long as the provider holds its OTP window; the
// caller cancels by abandoning the context.
type Gateway interface {
	RequestOtp(ctx context.Context, txnID, keyLabel string) (*OtpResult, error)
	Sign(ctx context.Context, txnID, keyLabel string, document []byte, otp string, coords Coordinates) (*SignResult, error)
}
