// Command autorun-launch discovers the Garry's Mod install via Steam,
// then execs it with the autorun-core shared library preloaded: the
// external launcher that launches the host with the injectable library
// preloaded, built on internal/locate with a plain flag-based CLI shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/autorun-labs/autorun/internal/locate"
)

func main() {
	libPath := flag.String("lib", "", "path to the autorun-core shared library (built with -buildmode=c-shared)")
	flag.Parse()

	if *libPath == "" {
		fmt.Fprintln(os.Stderr, "autorun-launch: -lib is required")
		os.Exit(1)
	}
	if _, err := os.Stat(*libPath); err != nil {
		fmt.Fprintf(os.Stderr, "autorun-launch: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, err := locate.Launch(*libPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "autorun-launch: %v\n", err)
		os.Exit(1)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		os.Exit(1)
	case err := <-done:
		if err != nil {
			fmt.Fprintf(os.Stderr, "autorun-launch: host exited: %v\n", err)
			os.Exit(1)
		}
	}
}
