// Command infiltration evaluates the infiltration losses of a building over
// the weather feeds of a PHPFina directory and extends the output feed.
//
// Usage:
//
//	go run ./cmd/infiltration -dir /var/lib/phpfina -userid 1 \
//	  -tint 12 -text 13 -ws 14 \
//	  -qvent 50 -hbat 6 -q4pasurf 1.2 -atbat 250 -mea 45 \
//	  -output "infiltration losses"
//
// An -output that is a feed id extends that feed; any other value creates a
// feed with that name.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/alexandrecuer/postprocess/internal/adapter/phpfina"
	"github.com/alexandrecuer/postprocess/internal/building"
	"github.com/alexandrecuer/postprocess/internal/observability"
	"github.com/alexandrecuer/postprocess/internal/process"
)

func main() {
	dir := flag.String("dir", "", "PHPFina feed directory")
	userID := flag.Int("userid", 1, "owner of the feeds")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	maxIter := flag.Int("max-iterations", 200, "solver iteration cap")
	trace := flag.Bool("trace", false, "log every solver iteration")

	params := map[string]*string{}
	for _, key := range []string{"tint", "text", "ws", "qvent", "hbat", "q4pasurf", "atbat", "mea", "output"} {
		params[key] = flag.String(key, "", key+" setting of infiltration_losses")
	}
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	settings := make(map[string]string, len(params))
	for key, v := range params {
		if *v != "" {
			settings[key] = *v
		}
	}

	if code := run(*dir, *userID, settings, *logLevel, *maxIter, *trace); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, userID int, settings map[string]string, logLevel string, maxIter int, trace bool) int {
	logger := sharedobs.NewLogger(logLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feeds, err := phpfina.Open(dir, logger)
	if err != nil {
		logger.Error("failed to open feed directory", "error", err)
		return 1
	}

	registry := process.DefaultRegistry()
	p, err := registry.Get(process.InfiltrationLosses)
	if err != nil {
		logger.Error("process not registered", "error", err)
		return 1
	}

	mode := process.ModeCreate
	if _, err := strconv.Atoi(settings["output"]); err == nil {
		mode = process.ModeUpdate
	}
	valid, err := process.Validate(p.Description, userID, settings, feeds, mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	opts := []building.Option{building.WithMaxIterations(maxIter)}
	if trace {
		opts = append(opts, building.WithLogger(logger))
	}
	runner := process.NewRunner(registry, feeds, logger, observability.NewMetrics(), process.WithBuildingOptions(opts...))

	res, err := runner.Run(ctx, process.Item{ID: "cli", Process: process.InfiltrationLosses, UserID: userID, Params: valid})
	if err != nil && !errors.Is(err, process.ErrUpToDate) {
		logger.Error("run failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("write result", "error", err)
		return 1
	}
	return 0
}
