// Command inject loads a shared library into a running target process: it
// finds the target by a literal command-line match, attaches via ptrace,
// drives the remote-call engine through allocate -> write path -> dlopen
// -> free, then detaches. Argument parsing, usage messages, and this
// orchestration are the "Driver" — a thin caller over the core described
// in SPEC_FULL.md, not part of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"ptrinject/pkg/log"
	"ptrinject/pkg/loader"
	"ptrinject/pkg/metrics"
	"ptrinject/pkg/procfs"
	"ptrinject/pkg/remotecall"
	"ptrinject/pkg/target"
	"ptrinject/pkg/trace"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("inject", flag.ContinueOnError)
	cmdline := fs.String("p", "", "command-line literal identifying the target process (required)")
	libPath := fs.String("l", "", "path of the shared library to load into the target (required)")
	verbosity := fs.Int("v", 0, "log verbosity")
	tracePath := fs.String("trace", "", "optional path to append a flatbuffers-encoded audit trail of remote calls")
	if err := fs.Parse(argv); err != nil {
		return 1
	}
	log.SetVerbosity(*verbosity)

	if *cmdline == "" || *libPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inject -p <cmdline_literal> -l <library_path>")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := inject(ctx, *cmdline, *libPath, *tracePath); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	fmt.Println("Info: Operation completed.")
	return 0
}

func inject(ctx context.Context, cmdline, libPath, tracePath string) error {
	// /proc/<pid>/cmdline ends each argument with a NUL, which a command-line
	// flag cannot carry, so the terminator is appended here.
	pid, err := procfs.Locate(cmdline + "\x00")
	if err != nil {
		return fmt.Errorf("locate target: %w", err)
	}
	log.Logf(0, "found process %q with pid %d", cmdline, pid)

	sess, err := target.Attach(pid)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer func() {
		if err := sess.Detach(); err != nil {
			log.Errorf("detach: %v", err)
		}
	}()

	var tr *trace.Writer
	if tracePath != "" {
		tr, err = trace.Create(tracePath)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer tr.Close()
	}

	stats := metrics.New(prometheus.DefaultRegisterer)
	eng := remotecall.New(sess, remotecall.WithMetrics(stats), remotecall.WithTrace(tr))

	ld := loader.New(sess, eng)
	err = ld.Inject(ctx, libPath)
	log.Logf(0, "%v", stats.Summary())
	return err
}
