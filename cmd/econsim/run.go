package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stockyard.ai/internal/metrics"
	"stockyard.ai/internal/persistence/indexdb"
	persistlog "stockyard.ai/internal/persistence/log"
	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/world"
	"stockyard.ai/internal/transport/observer"
)

var (
	runAddr         string
	runDataDir      string
	runTicks        uint64
	runDisableDB    bool
	runLogEveryTick bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Seed the world and run the simulation",
	Long: `Seed a world from the scenario and step it at tick_rate_hz until interrupted.

With --ticks the world is stepped that many times as fast as possible and the
command exits; no HTTP server is started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSim(newLogger())
	},
}

func init() {
	runCmd.Flags().StringVar(&runAddr, "addr", "127.0.0.1:8080", "HTTP listen address")
	runCmd.Flags().StringVar(&runDataDir, "data", "./data", "directory for tick logs and the index")
	runCmd.Flags().Uint64Var(&runTicks, "ticks", 0, "step this many ticks headless and exit (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&runDisableDB, "disable-db", false, "do not write the SQLite tick index")
	runCmd.Flags().BoolVar(&runLogEveryTick, "log-every-tick", false, "write idle ticks to the tick log too")
	rootCmd.AddCommand(runCmd)
}

func runSim(logger *log.Logger) error {
	cfg, err := loadConfigs(paths, logger)
	if err != nil {
		return err
	}

	tickLog := persistlog.NewTickLogger(runDataDir, runLogEveryTick)
	collector := metrics.NewCollector()
	opts := []world.Option{world.WithTickLogger(tickLog), world.WithMetricsSink(collector)}

	var idx *indexdb.SQLiteIndex
	if !runDisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(runDataDir, "index", "econsim.sqlite"))
		if err != nil {
			_ = tickLog.Close()
			return fmt.Errorf("open index: %w", err)
		}
		if err := idx.UpsertConfig(cfg.tune, cfg.catalog); err != nil {
			logger.Printf("index: upsert config: %v", err)
		}
		opts = append(opts, world.WithTickLogger(idx))
	}
	closeSinks := func() {
		if err := tickLog.Close(); err != nil {
			logger.Printf("close tick log: %v", err)
		}
		if idx != nil {
			if err := idx.Close(); err != nil {
				logger.Printf("close index: %v", err)
			}
			st := idx.Stats()
			logger.Printf("index: ticks=%d dropped=%d failed=%d", st.TicksIndexed, st.DropTickTotal, st.WriteFailTotal)
		}
	}
	defer closeSinks()

	w, sum, err := buildWorld(cfg, logger, opts...)
	if err != nil {
		return err
	}
	logger.Printf("seeded world=%s civilians=%d nodes=%d sites=%d buildings=%d",
		w.ID(), sum.Civilians, sum.Nodes, sum.Sites, sum.Buildings)
	for _, key := range sum.DeniedSites {
		logger.Printf("site %s: reservation denied; it stays inert", key)
	}

	if runTicks > 0 {
		runHeadless(w, runTicks, logger)
		return nil
	}
	return serve(w, collector, idx, logger)
}

func runHeadless(w *world.World, n uint64, logger *log.Logger) {
	start := time.Now()
	for i := uint64(0); i < n; i++ {
		w.StepOnce()
	}
	m := w.Metrics()
	logger.Printf("stepped %d ticks in %s: assigned=%d rejected=%d generated=%d canceled=%d",
		n, time.Since(start).Round(time.Millisecond), m.AssignedTotal, m.RejectedTotal, m.GeneratedTotal, m.CanceledTotal)
	for _, tl := range m.Ledger {
		for _, e := range tl.Entries {
			logger.Printf("team %d %s: stored=%d reserved=%d capacity=%d", tl.Team, e.Resource, e.Stored, e.Reserved, e.Capacity)
		}
	}
}

func serve(w *world.World, collector *metrics.Collector, idx *indexdb.SQLiteIndex, logger *log.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/debug/world", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, w.Metrics())
	})
	mux.HandleFunc("/debug/index", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, idx.Stats())
	})
	if idx != nil {
		mux.HandleFunc("/debug/assignments", assignmentsHandler(idx))
		mux.HandleFunc("/debug/ledger", ledgerHandler(idx))
	}
	observer.NewServer(w, logger).Routes(mux)

	srv := &http.Server{
		Addr:              runAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", runAddr)
	err := srv.ListenAndServe()
	cancel()
	<-stopped
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

// assignmentsHandler serves ?worker=<id> or ?target=<id>, with optional limit.
func assignmentsHandler(idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		var (
			rows []indexdb.AssignmentRow
			err  error
		)
		switch {
		case q.Get("worker") != "":
			rows, err = idx.WorkerAssignments(r.Context(), q.Get("worker"), limit)
		case q.Get("target") != "":
			rows, err = idx.TargetAssignments(r.Context(), q.Get("target"), limit)
		default:
			http.Error(rw, "worker or target required", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(rw, rows)
	}
}

// ledgerHandler serves ?team=<n>&resource=<key>[&from=<tick>&to=<tick>].
func ledgerHandler(idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		team, err := strconv.Atoi(q.Get("team"))
		if err != nil || q.Get("resource") == "" {
			http.Error(rw, "team and resource required", http.StatusBadRequest)
			return
		}
		from, _ := strconv.ParseUint(q.Get("from"), 10, 64)
		to, _ := strconv.ParseUint(q.Get("to"), 10, 64)
		pts, err := idx.LedgerSeries(r.Context(), team, string(resources.Normalize(q.Get("resource"))), from, to)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(rw, pts)
	}
}
