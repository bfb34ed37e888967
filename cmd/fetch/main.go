// Command fetch runs one report for a symbol and prints it as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocktracker/internal/app"
	"stocktracker/internal/config"
	"stocktracker/internal/model"
	"stocktracker/internal/pipeline"
	"stocktracker/internal/prewarm"
)

func main() {
	var (
		symbol     string
		start      string
		end        string
		company    string
		configPath string
		timeout    time.Duration
	)
	flag.StringVar(&symbol, "symbol", os.Getenv("SYMBOL"), "ticker symbol, e.g. AAPL")
	flag.StringVar(&start, "start", "", "start date YYYY-MM-DD (default: end minus server.lookback_days)")
	flag.StringVar(&end, "end", "", "end date YYYY-MM-DD (default: today)")
	flag.StringVar(&company, "company", "", "company name (default: looked up from the symbol)")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.DurationVar(&timeout, "timeout", 0, "request timeout (default: pipeline.timeout)")
	flag.Parse()

	if err := run(symbol, start, end, company, configPath, timeout); err != nil {
		fmt.Fprintln(os.Stderr, "fetch:", err)
		if model.IsInputError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(symbol, start, end, company, configPath string, timeout time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if timeout > 0 {
		cfg.Pipeline.Timeout = timeout
	}
	logger := app.NewLogger(cfg.Log, os.Stderr)

	orch, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}

	req, err := request(symbol, start, end, company, cfg.Server.LookbackDays)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	report, err := orch.Run(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func request(symbol, start, end, company string, lookbackDays int) (pipeline.Request, error) {
	req := pipeline.Request{Symbol: symbol, CompanyName: company}
	_, req.End = prewarm.Window(time.Now(), lookbackDays)
	if end != "" {
		t, err := time.Parse(model.DateLayout, end)
		if err != nil {
			return req, &model.InputError{Field: "end", Reason: "expected YYYY-MM-DD"}
		}
		req.End = t
	}
	req.Start = req.End.AddDate(0, 0, -lookbackDays)
	if start != "" {
		t, err := time.Parse(model.DateLayout, start)
		if err != nil {
			return req, &model.InputError{Field: "start", Reason: "expected YYYY-MM-DD"}
		}
		req.Start = t
	}
	return req, nil
}
