package main

import (
	"flag"
	"time"
)

// Config holds all runtime configuration derived from flags (future: env vars / file).
type Config struct {
	ListenAddr    string
	NormalPort    int
	HiddenPort    int
	Knock         string
	KnockHex      string
	SniffTimeout  time.Duration
	IdleTimeout   time.Duration
	GracePeriod   time.Duration
	DialTimeout   time.Duration
	MetricsAddr   string
	Debug         bool
	GlobalRate    int
	PerSourceRate int
	RateBurst     int
	SweepInterval time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

var cfg Config

// init registers flags into the global flag set. main() simply parses and uses cfg.
func init() {
	flag.StringVar(&cfg.ListenAddr, "listen", ":8022", "public listener address")
	flag.IntVar(&cfg.NormalPort, "normal-port", 443, "loopback port for connections without the knock")
	flag.IntVar(&cfg.HiddenPort, "hidden-port", 22, "loopback port for connections starting with the knock")
	flag.StringVar(&cfg.Knock, "knock", "", "knock signature (literal bytes)")
	flag.StringVar(&cfg.KnockHex, "knock-hex", "", "knock signature, hex encoded (overrides -knock)")
	flag.DurationVar(&cfg.SniffTimeout, "sniff-timeout", 2*time.Second, "how long to wait for first bytes before routing to the normal port")
	flag.DurationVar(&cfg.IdleTimeout, "idle-timeout", 10*time.Minute, "pipe idle probe interval; a pipe dies when both legs are idle at once")
	flag.DurationVar(&cfg.GracePeriod, "grace", time.Second, "drain window for a surviving leg after its peer dies")
	flag.DurationVar(&cfg.DialTimeout, "dial-timeout", 5*time.Second, "backend connect timeout")
	flag.StringVar(&cfg.MetricsAddr, "metrics", ":9100", "metrics and health listen address")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logs")
	flag.IntVar(&cfg.GlobalRate, "accept-rate", 0, "global accepted connections per second (0 = unlimited)")
	flag.IntVar(&cfg.PerSourceRate, "accept-rate-per-source", 0, "accepted connections per second per source IP (0 = unlimited)")
	flag.IntVar(&cfg.RateBurst, "accept-burst", 10, "token bucket burst for the accept gate")
	flag.DurationVar(&cfg.SweepInterval, "gate-sweep-interval", time.Minute, "interval for dropping idle per-source rate buckets")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for shared stats counters (empty = in-memory)")
	flag.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database")
}
