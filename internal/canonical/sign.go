package canonical

import (
	"net/url"
	"time"

	"binconn/pkg/core"
	"binconn/pkg/signer"
)

// Options control how a signed payload is produced.
type Options struct {
	// RecvWindow in milliseconds; 0 leaves recvWindow out unless the caller set it.
	RecvWindow   int64
	ListEncoding core.ListEncoding
	// Now defaults to time.Now.
	Now func() time.Time
}

// Signed is the outcome of signing a parameter set.
type Signed struct {
	// Params is a copy of the input with timestamp and recvWindow appended.
	Params *core.Params
	// Payload is the exact string the signature covers.
	Payload   string
	Signature string
}

// Query returns the payload followed by the escaped signature as the last pair.
func (s *Signed) Query() string {
	sig := "signature=" + url.QueryEscape(s.Signature)
	if s.Payload == "" {
		return sig
	}
	return s.Payload + "&" + sig
}

// Sign appends timestamp and recvWindow when absent, encodes the result and
// signs it. The input set is not modified.
func Sign(params *core.Params, sgn signer.Signer, opts Options) (*Signed, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	p := params.Clone()
	if !p.Has("timestamp") {
		p.Set("timestamp", now().UnixMilli())
	}
	if opts.RecvWindow > 0 && !p.Has("recvWindow") {
		p.Set("recvWindow", opts.RecvWindow)
	}

	payload, err := Encode(p, opts.ListEncoding)
	if err != nil {
		return nil, err
	}

	sig, err := sgn.Sign(payload)
	if err != nil {
		return nil, err
	}

	return &Signed{Params: p, Payload: payload, Signature: sig}, nil
}
