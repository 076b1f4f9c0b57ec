// Command simcore-bench drives a small realtime-async world end to end:
// a ring Space, a constant-write Propagator, one set-parameter command,
// and a single latest_snapshot read once the tick deadline (or a signal)
// arrives, printing Metrics on exit.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/behrlich/simcore"
	"github.com/behrlich/simcore/backoff"
	"github.com/behrlich/simcore/internal/logging"
	"github.com/behrlich/simcore/internal/metricsutil"
)

const benchFieldID = simcore.FieldID(1)

func main() {
	var (
		cells       = flag.Int("cells", 1024, "number of cells in the ring space")
		ticks       = flag.Int("ticks", 200, "number of ticks to run before shutting down")
		workers     = flag.Int("workers", 4, "number of egress worker goroutines")
		ringSize    = flag.Int("ring-size", 4, "snapshot ring buffer capacity")
		rateHz      = flag.Float64("rate-hz", 240, "tick rate in hz")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	)
	flag.Parse()

	logger := logging.Default()
	runID := uuid.New()
	logger.Info("starting simcore-bench", "run_id", runID.String(), "cells", *cells, "ticks", *ticks)

	space := simcore.NewMockSpace(*cells, 1)
	prop := simcore.NewMockPropagator(
		"constant-write",
		[]simcore.FieldID{benchFieldID},
		[]simcore.FieldWrite{{Field: benchFieldID, Mode: simcore.WriteFull}},
		func(ctx simcore.StepContext) error {
			out, err := ctx.Write(benchFieldID)
			if err != nil {
				return err
			}
			for i := range out {
				out[i] = 1
			}
			return nil
		},
	)

	metrics := metricsutil.NewMetrics()

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metricsutil.NewPrometheusCollector(metrics))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			logger.Info("serving metrics", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	world, err := simcore.NewRealtimeAsyncWorld(simcore.AsyncWorldConfig{
		WorldConfig: simcore.WorldConfig{
			Fields:               []simcore.FieldDef{{ID: benchFieldID, Name: "value", Mutability: simcore.PerTick}},
			CellCount:            uint32(*cells),
			SegmentSize:          4096,
			MaxSegments:          64,
			Pipeline:             []simcore.Propagator{prop},
			Space:                space,
			Dt:                   1.0 / (*rateHz),
			IngressQueueCapacity: 256,
			Seed:                 1,
			Metrics:              metrics,
			Log:                  logger,
		},
		TickRateHz:        *rateHz,
		RingBufferSize:    *ringSize,
		WorkerCount:       *workers,
		CommandChannelLen: 64,
		TaskQueueLen:      64,
		MaxEpochHoldMs:    50,
		CancelGraceMs:     20,
		Backoff:           backoff.DefaultConfig(),
	})
	if err != nil {
		log.Fatalf("simcore-bench: failed to start world: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	receipts := world.SubmitCommands([]simcore.Command{
		{Kind: simcore.KindSetParameter, ParameterKey: "gain", ParameterValue: 2},
	})
	logger.Info("submitted startup commands", "receipts", len(receipts))

	deadline := time.After(time.Duration(*ticks) * time.Duration(float64(time.Second)/(*rateHz)))
	select {
	case <-deadline:
	case <-sigCh:
		logger.Info("received shutdown signal")
	}

	if snap, ok := world.LatestSnapshot(); ok {
		logger.Info("final snapshot", "tick_id", snap.TickID())
	}

	report := world.Shutdown()
	snapshot := metrics.Snapshot()
	fmt.Printf("ticks observed via metrics: rollback=%d force_unpins=%d ring_evictions=%d\n",
		snapshot.RollbackCount, snapshot.ForceUnpins, snapshot.RingEvictions)
	fmt.Printf("shutdown report: draining=%s quiescing=%s total=%s\n",
		time.Duration(report.DrainingNs), time.Duration(report.QuiescingNs), time.Duration(report.TotalNs))
}
