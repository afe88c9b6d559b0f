package knock

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"
)

// Signature is the secret byte prefix a client sends to request hidden-port
// routing. Comparison is byte-exact.
type Signature []byte

// Parse builds a Signature from either a literal string or a hex encoded one.
// The hex form wins when both are given so binary knocks stay expressible.
func Parse(literal, hexEncoded string) (Signature, error) {
	if hexEncoded != "" {
		b, err := hex.DecodeString(hexEncoded)
		if err != nil {
			return nil, fmt.Errorf("decode hex knock: %w", err)
		}
		if len(b) == 0 {
			return nil, errors.New("empty knock signature")
		}
		return Signature(b), nil
	}
	if literal == "" {
		return nil, errors.New("empty knock signature")
	}
	return Signature(literal), nil
}

// Match reports whether buf starts with the full signature.
func (s Signature) Match(buf []byte) bool {
	if len(buf) < len(s) {
		return false
	}
	for i := range s {
		if buf[i] != s[i] {
			return false
		}
	}
	return true
}

// Decision is the outcome of sniffing one new connection.
type Decision struct {
	Hidden   bool   // route to the hidden port, signature stripped
	TimedOut bool   // routing was forced by the sniff window elapsing
	Buffered []byte // bytes already consumed that must reach the backend verbatim
}

// Sniff reads the first bytes of c until the full signature length is
// buffered or the sniff window elapses, then decides the route. A window
// expiring with a partial (or no) prefix still runs the comparison with
// whatever is buffered, which resolves to the normal port. Any non-timeout
// read error aborts the connection: no backend is contacted for a client
// that vanished before routing was decided.
func Sniff(c net.Conn, sig Signature, window time.Duration) (Decision, error) {
	if err := c.SetReadDeadline(time.Now().Add(window)); err != nil {
		return Decision{}, fmt.Errorf("arm sniff deadline: %w", err)
	}
	buf := make([]byte, 0, len(sig)+512)
	tmp := make([]byte, 4096)
	timedOut := false
	for len(buf) < len(sig) {
		n, err := c.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				timedOut = true
				break
			}
			return Decision{}, err
		}
	}
	if err := c.SetReadDeadline(time.Time{}); err != nil {
		return Decision{}, fmt.Errorf("clear sniff deadline: %w", err)
	}
	d := Decision{TimedOut: timedOut, Buffered: buf}
	if sig.Match(buf) {
		d.Hidden = true
		d.Buffered = buf[len(sig):]
	}
	return d, nil
}
