package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/silkrt/silk/internal/bridge"
	"github.com/silkrt/silk/internal/config"
	"github.com/silkrt/silk/runtime"
)

var (
	errorColor = color.New(color.FgRed).SprintFunc()
	okColor    = color.New(color.FgGreen).SprintFunc()
	dimColor   = color.New(color.FgHiBlack).SprintFunc()
)

// runHost loads configuration, builds a Runtime with a synchronous
// fake UI thread (schedule runs its flush inline, post writes to w),
// and feeds each line of in as one HandleMessage call.
func runHost(configPath string, in *bufio.Scanner, w io.Writer) error {
	cfg, err := loadRuntimeConfig(configPath)
	if err != nil {
		return err
	}

	rt := runtime.New(cfg, inlineSchedule, func(script string) {
		fmt.Fprintln(w, script)
	})

	ctx := context.Background()
	rt.Start(ctx)
	defer rt.Stop()

	for in.Scan() {
		line := in.Bytes()
		if len(line) == 0 {
			continue
		}
		rt.HandleMessage(ctx, append([]byte(nil), line...))
	}
	return in.Err()
}

func inlineSchedule(flush func()) { flush() }

func loadRuntimeConfig(path string) (runtime.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return runtime.Config{}, fmt.Errorf("silkhost: %w", err)
	}
	return runtime.Config{Permissions: cfg.Permissions, ModeA: cfg.ModeA}, nil
}

// runBridgeExec exercises the External Handler Bridge against a single
// child process, forwarding each stdin line as a "bridge:exec" invoke
// whose cmd carries no meaning beyond a label for the reply.
func runBridgeExec(argv []string, in *bufio.Scanner, w io.Writer) error {
	b := bridge.New(bridge.Config{Enabled: true, Argv: argv}, func(script string) {
		fmt.Fprintln(w, script)
	})

	ctx := context.Background()
	b.Start(ctx)
	defer b.Stop()

	callback := int64(1)
	for in.Scan() {
		line := in.Bytes()
		if len(line) == 0 {
			continue
		}
		req, perr := parseBridgeLine(callback, line)
		if perr != nil {
			fmt.Fprintln(w, errorColor(perr.Error()))
			callback++
			continue
		}
		if err := b.Submit(req); err != nil {
			fmt.Fprintln(w, errorColor(err.Error()))
		}
		callback++
	}
	return in.Err()
}

// validateConfig loads path and reports success or the parse failure.
func validateConfig(path string, w io.Writer) error {
	if path == "" {
		fmt.Fprintln(w, dimColor("no --config given; nothing to validate"))
		return nil
	}
	if _, err := config.Load(path); err != nil {
		fmt.Fprintln(w, errorColor(err.Error()))
		return err
	}
	fmt.Fprintln(w, okColor(fmt.Sprintf("%s: ok", path)))
	return nil
}
