// vmrangectl drives a vmrange.Root through a randomized alloc/free
// workload and optionally exposes Prometheus metrics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nainya/vmrange/internal/logger"
	"github.com/nainya/vmrange/internal/metrics"
	"github.com/nainya/vmrange/internal/server"
	"github.com/nainya/vmrange/pkg/vm"
)

var (
	vstart      = flag.Uint64("vstart", vm.DefaultVStart, "window start (inclusive)")
	vend        = flag.Uint64("vend", vm.DefaultVEnd, "window end (exclusive)")
	metricsPort = flag.Int("metrics-port", 9191, "observability HTTP port (0 disables)")
	workload    = flag.Int("ops", 1000, "number of random alloc/free operations to run")
	minSize     = flag.Uint64("min-size", vm.PageSize, "minimum allocation size in bytes")
	maxSize     = flag.Uint64("max-size", 64*vm.PageSize, "maximum allocation size in bytes")
	align       = flag.Uint64("align", vm.PageSize, "allocation alignment, must be a power of two")
	dumpDot     = flag.String("dump-dot", "", "path to write a Graphviz dump of the final tree (empty disables)")
	seed        = flag.Uint64("seed", 1, "PRNG seed for the random workload")
	logLevel    = flag.String("log-level", "info", "debug, info, warn, error")
)

func main() {
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{Level: *logLevel, Pretty: true})
	log := logger.GetGlobalLogger()

	log.LogServerStart(*metricsPort, *vstart, *vend)

	m := metrics.NewMetrics()

	var obs *server.ObservabilityServer
	if *metricsPort != 0 {
		obs = server.NewObservabilityServer(*metricsPort, log)
		go func() {
			if err := obs.Start(); err != nil {
				log.Error("observability server exited").Err(err).Send()
			}
		}()
		log.LogServerReady(*metricsPort)
	}

	cfg := vm.Config{
		NodeProvider:  vm.NewPoolNodeProvider(),
		RangeProvider: vm.NewPoolRangeProvider(),
	}
	var dumpFile *os.File
	if *dumpDot != "" {
		f, err := os.Create(*dumpDot)
		if err != nil {
			log.Fatal("failed to open dump-dot file").Str("path", *dumpDot).Err(err).Send()
		}
		dumpFile = f
		cfg.Dump = vm.DotDumpSink{W: f}
		defer dumpFile.Close()
	}

	root := vm.NewRoot(cfg)
	if err := root.Init(*vstart, *vend); err != nil {
		log.Fatal("failed to initialize allocator").Err(err).Send()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		runWorkload(root, log, m)
		close(done)
	}()

	select {
	case <-sigChan:
		log.LogServerShutdown()
	case <-done:
		log.Info("workload finished").Int("ops", *workload).Send()
	}

	if *dumpDot != "" {
		root.Dump()
		fmt.Fprintf(os.Stderr, "tree dump written to %s\n", *dumpDot)
	}

	if obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(ctx); err != nil {
			log.Error("observability server shutdown failed").Err(err).Send()
		}
	}

	root.Destroy()
}

// runWorkload drives *workload random Alloc/Free calls against root,
// keeping outstanding allocations in a slice so frees have something to
// target. The PRNG is seeded explicitly so a run is reproducible given the
// same -seed.
func runWorkload(root *vm.Root, log *logger.Logger, m *metrics.Metrics) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*vm.InvariantError); ok {
				log.LogInvariantFailure(ie.Op, ie.Reason)
			}
			panic(r)
		}
	}()

	rng := rand.New(rand.NewPCG(*seed, *seed>>32|1))
	var live []*vm.Range

	for i := 0; i < *workload; i++ {
		if len(live) > 0 && rng.IntN(3) == 0 {
			idx := rng.IntN(len(live))
			ra := live[idx]
			live = append(live[:idx], live[idx+1:]...)

			start := time.Now()
			err := root.Free(ra)
			dur := time.Since(start)

			// An uncoalesced range is stored in the tree as-is; a coalesced
			// one is folded into a neighbor and is not itself stored.
			coalesced := false
			if err == nil {
				stored, ok := root.Lookup(ra.Start)
				coalesced = !ok || stored != ra
			}
			log.LogFreeOperation(ra.Start, ra.End, dur, coalesced, err)
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.RecordFree(status, dur, coalesced)
			continue
		}

		size := *minSize
		if *maxSize > *minSize {
			size += uint64(rng.IntN(int(*maxSize - *minSize + 1)))
		}

		start := time.Now()
		ra, err := root.Alloc(size, *align, *vstart, *vend)
		dur := time.Since(start)

		log.LogAllocOperation(size, *align, *vstart, *vend, dur, err)
		switch {
		case err == vm.ErrExhausted:
			m.RecordAlloc("exhausted", dur)
			log.LogExhaustion(size, *align, *vstart, *vend)
		case err != nil:
			m.RecordAlloc("error", dur)
			log.LogContractViolation("alloc", err)
		default:
			m.RecordAlloc("ok", dur)
			live = append(live, ra)
		}

		if i%100 == 0 {
			stats := root.Stats()
			m.UpdateTreeStats(stats.Depth, stats.FreeRanges, stats.FreeBytes, stats.LargestFree)
		}
	}
}
