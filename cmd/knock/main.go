// Command knock dials a knockport server, sends the knock signature and then
// relays stdin/stdout over the tunnel, netcat style:
//
//	knock -server host:8022 -knock secret < request > response
package main

import (
	"flag"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/matst80/knockport/internal/knock"
)

func main() {
	var server string
	var knockLiteral string
	var knockHex string
	var noKnock bool
	var timeout time.Duration
	flag.StringVar(&server, "server", "127.0.0.1:8022", "knockport public address")
	flag.StringVar(&knockLiteral, "knock", "", "knock signature (literal bytes)")
	flag.StringVar(&knockHex, "knock-hex", "", "knock signature, hex encoded (overrides -knock)")
	flag.BoolVar(&noKnock, "no-knock", false, "skip the knock and take the normal-port route")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "connect timeout")
	flag.Parse()

	c, err := net.DialTimeout("tcp", server, timeout)
	if err != nil {
		log.Fatalf("dial %s: %v", server, err)
	}
	defer c.Close()

	if !noKnock {
		sig, err := knock.Parse(knockLiteral, knockHex)
		if err != nil {
			log.Fatalf("knock: %v", err)
		}
		if _, err := c.Write(sig); err != nil {
			log.Fatalf("send knock: %v", err)
		}
	}

	go func() {
		_, _ = io.Copy(c, os.Stdin)
		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		}
	}()
	if _, err := io.Copy(os.Stdout, c); err != nil {
		log.Fatalf("read: %v", err)
	}
}
