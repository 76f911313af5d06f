package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/desimio/desim/analysis"
	"github.com/desimio/desim/examples/heartbeat"
	"github.com/desimio/desim/examples/pingpong"
	"github.com/desimio/desim/examples/telephone"
	"github.com/desimio/desim/introspect"
	"github.com/desimio/desim/sim"
	"github.com/desimio/desim/tracing"
)

func newRunCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a built-in scenario (telephone, pingpong, heartbeat) to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&opts.MaxSecs, "max-secs", 0, "stop once simulated time would exceed this duration (0 = unbounded)")
	flags.DurationVar(&opts.MaxWall, "max-wall", 0, "stop once wall-clock run time exceeds this duration (0 = unbounded)")
	flags.Uint64Var(&opts.Seed, "seed", 1, "master RNG seed")
	flags.StringVar(&opts.LogLevel, "log-level", "info", "minimum log level: trace, debug, info, warn, error")
	flags.StringVar(&opts.LogGlob, "log-glob", "", "only log records from components whose name matches this glob")
	flags.IntVar(&opts.Workers, "workers", 0, "passive worker pool size (0 = GOMAXPROCS)")
	flags.IntVar(&opts.MonitorPort, "monitor-port", 0, "port for the introspection HTTP server (0 = disabled)")
	flags.BoolVar(&opts.OpenMonitor, "open-monitor", false, "open the introspection server's component listing in a browser")
	flags.StringVar(&opts.TraceFile, "trace-file", "", "write a JSON-lines task trace of every dispatched event to this path (\"\" = disabled)")
	flags.StringVar(&opts.PerfCSV, "perf-csv", "", "write per-key store write-churn counts to this CSV path (\"\" = disabled)")

	return cmd
}

// dispatchTracer bridges a Simulation's BeforeDispatch/AfterDispatch hook
// positions into one tracing.Task span per dispatched event, so a run can
// be traced from the CLI without threading a Tracer through scenario
// handler code. At AfterDispatch it ends the tasks for the batch it
// remembered at BeforeDispatch (the results slice carried by the hook is
// not read), and it relies on both positions firing from the same single
// conductor goroutine, so no locking is needed around lastBatch.
type dispatchTracer struct {
	tr        *tracing.MemTracer
	nameOf    func(sim.ComponentID) string
	lastBatch []sim.Event
}

func (d *dispatchTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosBeforeDispatch:
		d.lastBatch = ctx.Item.([]sim.Event)
		for _, evt := range d.lastBatch {
			d.tr.StartTask(tracing.Task{
				ID:        taskID(evt),
				Kind:      "dispatch",
				What:      evt.Name,
				Where:     d.nameOf(evt.Target),
				StartTime: evt.ScheduledTime,
			})
		}
	case sim.HookPosAfterDispatch:
		for _, evt := range d.lastBatch {
			d.tr.EndTask(taskID(evt), evt.ScheduledTime)
		}
	}
}

func taskID(evt sim.Event) string {
	return fmt.Sprintf("%d", evt.Sequence)
}

func runScenario(opts *Options, scenario string) error {
	var s *sim.Simulation

	logger := log.New(os.Stderr, "", 0)
	sink := sim.NewStdLogSink(logger, sim.ParseLogLevel(opts.LogLevel), opts.LogGlob, func(id sim.ComponentID) string {
		return s.NameOf(id)
	})

	simOpts := []sim.Option{sim.WithSeed(opts.Seed), sim.WithLogSink(sink)}
	if opts.Workers > 0 {
		simOpts = append(simOpts, sim.WithWorkers(opts.Workers))
	}

	s = sim.NewSimulation(simOpts...)

	var mailbox sim.Buffer

	switch scenario {
	case "telephone":
		if _, err := telephone.Build(s, "hi"); err != nil {
			return fmt.Errorf("building telephone scenario: %w", err)
		}
	case "pingpong":
		_, _, mb, err := pingpong.Build(s)
		if err != nil {
			return fmt.Errorf("building pingpong scenario: %w", err)
		}
		mailbox = mb
	case "heartbeat":
		if _, err := heartbeat.Build(s); err != nil {
			return fmt.Errorf("building heartbeat scenario: %w", err)
		}
	default:
		return fmt.Errorf("unknown scenario %q (want telephone, pingpong, or heartbeat)", scenario)
	}

	var tracer *tracing.MemTracer
	if opts.TraceFile != "" {
		tracer = tracing.NewMemTracer()
		s.AcceptHook(&dispatchTracer{tr: tracer, nameOf: s.NameOf})
	}

	var perf *analysis.CSVBackend
	var storeAnalyzer *analysis.StoreAnalyzer
	if opts.PerfCSV != "" {
		var err error
		perf, err = analysis.NewCSVBackend(opts.PerfCSV)
		if err != nil {
			return fmt.Errorf("opening perf CSV: %w", err)
		}
		storeAnalyzer = analysis.NewStoreAnalyzer(s.Store(), "*/*", perf, time.Second)

		if mailbox != nil {
			analysis.NewBufferAnalyzer(mailbox.Name(), mailbox, perf, 0)
		}
	}

	if opts.MonitorPort > 0 {
		srv := introspect.NewServer(s)

		addr := fmt.Sprintf(":%d", opts.MonitorPort)

		bound, err := srv.ListenAndServe(addr)
		if err != nil {
			return fmt.Errorf("starting introspection server: %w", err)
		}

		fmt.Fprintf(os.Stderr, "introspection server listening on %s\n", bound)

		if opts.OpenMonitor {
			if err := browser.OpenURL("http://" + bound + "/api/components"); err != nil {
				fmt.Fprintf(os.Stderr, "could not open browser: %v\n", err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	go func() {
		<-sigCh
		cancel()
	}()

	stop := sim.StopCondition{}
	if opts.MaxSecs > 0 {
		stop.MaxSimTime = sim.SimTime(opts.MaxSecs.Nanoseconds())
	}
	if opts.MaxWall > 0 {
		stop.MaxWallClock = sim.SimDuration(opts.MaxWall.Nanoseconds())
	}

	outcome, err := s.Run(ctx, stop)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("run %s stopped (%s) after %d events at t=%d (%dms wall)\n",
		outcome.RunID, outcome.StoppedReason, outcome.EventsDispatched, outcome.FinalSimTime, outcome.WallClockMS)

	for _, f := range outcome.Faults {
		fmt.Fprintln(os.Stderr, f.Error())
	}

	if storeAnalyzer != nil {
		storeAnalyzer.Close()
		perf.Flush()
	}

	if tracer != nil {
		w := tracing.NewJSONWriter(tracer, opts.TraceFile)
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing trace file: %w", err)
		}

		fmt.Fprintf(os.Stderr, "wrote task trace to %s\n", opts.TraceFile)
	}

	return nil
}
