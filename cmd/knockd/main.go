package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/matst80/knockport/internal/knock"
	"github.com/matst80/knockport/internal/netutil"
	"github.com/matst80/knockport/internal/obs"
	"github.com/matst80/knockport/internal/ratelimit"
	"github.com/matst80/knockport/internal/tunnel"
)

func main() {
	flag.Parse()
	if cfg.Debug {
		obs.EnableDebug(true)
	}
	sig, err := knock.Parse(cfg.Knock, cfg.KnockHex)
	if err != nil {
		obs.Error("config.knock", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	state, err := newStateStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		obs.Error("state.init", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	obs.Info("knockd.start", obs.Fields{
		"listen":    cfg.ListenAddr,
		"normal":    cfg.NormalPort,
		"hidden":    cfg.HiddenPort,
		"knock_len": len(sig),
		"metrics":   cfg.MetricsAddr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := netutil.Listen(cfg.ListenAddr)
	if err != nil {
		obs.Error("listen.public", obs.Fields{"err": err.Error(), "addr": cfg.ListenAddr})
		os.Exit(1)
	}
	defer ln.Close()

	var gate *ratelimit.SourceGate
	if cfg.GlobalRate > 0 || cfg.PerSourceRate > 0 {
		gate = ratelimit.NewSourceGate(cfg.GlobalRate, cfg.PerSourceRate, cfg.RateBurst)
		go runGateSweep(ctx, gate, cfg.SweepInterval)
	}

	go startMetricsServer(cfg.MetricsAddr, state)

	srv := tunnel.NewServer(tunnel.Config{
		Knock:       sig,
		NormalPort:  cfg.NormalPort,
		HiddenPort:  cfg.HiddenPort,
		SniffWindow: cfg.SniffTimeout,
		IdleTimeout: cfg.IdleTimeout,
		GracePeriod: cfg.GracePeriod,
		DialTimeout: cfg.DialTimeout,
		Gate:        gate,
	}, state)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); srv.Serve(ctx, ln) }()

	state.setReady(true)
	obs.Info("knockd.ready", obs.Fields{})

	<-ctx.Done()
	obs.Info("knockd.shutdown.signal", obs.Fields{})
	state.setClosing(true)
	_ = ln.Close()
	// in-flight pipes are not drained; process exit closes them
	wg.Wait()
	obs.Info("knockd.shutdown.complete", obs.Fields{})
}

func runGateSweep(ctx context.Context, gate *ratelimit.SourceGate, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if removed := gate.Sweep(); removed > 0 {
				obs.Debug("gate.sweep", obs.Fields{"removed": removed})
			}
		}
	}
}
