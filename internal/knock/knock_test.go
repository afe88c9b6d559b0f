package knock

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	sig, err := Parse("op3n", "")
	if err != nil {
		t.Fatalf("literal parse failed: %v", err)
	}
	if !bytes.Equal(sig, []byte("op3n")) {
		t.Errorf("expected literal bytes, got %q", sig)
	}

	sig, err = Parse("", "6f70336e")
	if err != nil {
		t.Fatalf("hex parse failed: %v", err)
	}
	if !bytes.Equal(sig, []byte("op3n")) {
		t.Errorf("expected decoded hex bytes, got %q", sig)
	}

	// hex wins over literal so binary knocks stay expressible
	sig, err = Parse("ignored", "00ff")
	if err != nil {
		t.Fatalf("hex override parse failed: %v", err)
	}
	if !bytes.Equal(sig, []byte{0x00, 0xff}) {
		t.Errorf("expected hex to override literal, got %v", []byte(sig))
	}

	if _, err := Parse("", ""); err == nil {
		t.Error("expected error for empty signature")
	}
	if _, err := Parse("", "zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestMatch(t *testing.T) {
	sig := Signature("op3n")
	cases := []struct {
		buf  string
		want bool
	}{
		{"op3n", true},
		{"op3nmore", true},
		{"op3", false},
		{"", false},
		{"OP3N", false},
		{"xp3n", false},
	}
	for _, c := range cases {
		if got := sig.Match([]byte(c.buf)); got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.buf, got, c.want)
		}
	}
}

func sniffWith(t *testing.T, sig Signature, window time.Duration, feed func(c net.Conn)) (Decision, error) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	go feed(client)
	return Sniff(server, sig, window)
}

func TestSniffFullKnock(t *testing.T) {
	d, err := sniffWith(t, Signature("op3n"), time.Second, func(c net.Conn) {
		_, _ = c.Write([]byte("op3nhello"))
	})
	if err != nil {
		t.Fatalf("sniff failed: %v", err)
	}
	if !d.Hidden {
		t.Error("expected hidden routing for exact knock prefix")
	}
	if d.TimedOut {
		t.Error("did not expect a timeout decision")
	}
	if !bytes.Equal(d.Buffered, []byte("hello")) {
		t.Errorf("expected knock stripped from buffered bytes, got %q", d.Buffered)
	}
}

func TestSniffNoMatchPreservesBytes(t *testing.T) {
	d, err := sniffWith(t, Signature("op3n"), time.Second, func(c net.Conn) {
		_, _ = c.Write([]byte("GET / HTTP/1.1"))
	})
	if err != nil {
		t.Fatalf("sniff failed: %v", err)
	}
	if d.Hidden {
		t.Error("expected normal routing for non-matching prefix")
	}
	if !bytes.Equal(d.Buffered, []byte("GET / HTTP/1.1")) {
		t.Errorf("non-matching bytes must be preserved verbatim, got %q", d.Buffered)
	}
}

func TestSniffWaitsForFullSignature(t *testing.T) {
	d, err := sniffWith(t, Signature("op3n"), time.Second, func(c net.Conn) {
		_, _ = c.Write([]byte("op"))
		time.Sleep(20 * time.Millisecond)
		_, _ = c.Write([]byte("3nrest"))
	})
	if err != nil {
		t.Fatalf("sniff failed: %v", err)
	}
	if !d.Hidden {
		t.Error("knock split across segments must still match")
	}
	if !bytes.Equal(d.Buffered, []byte("rest")) {
		t.Errorf("expected trailing bytes after stripped knock, got %q", d.Buffered)
	}
}

func TestSniffTimeoutNoData(t *testing.T) {
	d, err := sniffWith(t, Signature("op3n"), 50*time.Millisecond, func(c net.Conn) {})
	if err != nil {
		t.Fatalf("sniff failed: %v", err)
	}
	if d.Hidden {
		t.Error("a silent client must take the normal route")
	}
	if !d.TimedOut {
		t.Error("expected a timeout decision")
	}
	if len(d.Buffered) != 0 {
		t.Errorf("expected no buffered bytes, got %q", d.Buffered)
	}
}

func TestSniffTimeoutPartialKnock(t *testing.T) {
	d, err := sniffWith(t, Signature("op3n"), 80*time.Millisecond, func(c net.Conn) {
		_, _ = c.Write([]byte("op"))
	})
	if err != nil {
		t.Fatalf("sniff failed: %v", err)
	}
	if d.Hidden {
		t.Error("partial knock at timeout must take the normal route")
	}
	if !d.TimedOut {
		t.Error("expected a timeout decision")
	}
	if !bytes.Equal(d.Buffered, []byte("op")) {
		t.Errorf("partial prefix must be preserved for forwarding, got %q", d.Buffered)
	}
}

func TestSniffClientGoneIsAnError(t *testing.T) {
	_, err := sniffWith(t, Signature("op3n"), time.Second, func(c net.Conn) {
		_ = c.Close()
	})
	if err == nil {
		t.Fatal("expected an error when the client vanishes before routing")
	}
}
