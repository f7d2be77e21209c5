// Command tradesim-exec runs one backtest as a child process: it reads a
// JSON request from stdin (or a file via -f), writes the JSON result
// envelope to stdout, and exits non-zero on failure. Logs go to stderr so
// stdout carries only the envelope.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"tradesim/internal/backtest"
	"tradesim/internal/httpapi"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
)

func main() {
	inputPath := flag.String("f", "", "read the request from this file instead of stdin")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*inputPath, logger); err != nil {
		writeFailure(err)
		os.Exit(1)
	}
}

func run(inputPath string, logger *slog.Logger) error {
	var in io.Reader = os.Stdin
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var req httpapi.BacktestRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return httpapi.NewRequestError("invalid JSON request: " + err.Error())
	}

	registry := strategy.NewRegistry()
	registry.Register(builtins.NewSMACross(10, 30, 10000))

	defaults := backtest.Config{
		InitialCash:    backtest.DefaultInitialCash,
		CommissionRate: backtest.DefaultCommissionRate,
	}

	resp, err := httpapi.ExecuteBacktest(context.Background(), &req, nil, registry, defaults, logger)
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(resp)
}

func writeFailure(err error) {
	errType := "RuntimeError"
	var reqErr *httpapi.RequestError
	switch {
	case errors.As(err, &reqErr):
		errType = "ValueError"
	case errors.Is(err, backtest.ErrIntegrity):
		errType = "IntegrityError"
	}
	json.NewEncoder(os.Stdout).Encode(httpapi.ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Type:    errType,
	})
}
