package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"domaincheck/internal/alert"
	"domaincheck/internal/checker"
	"domaincheck/internal/utils"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jessevdk/go-flags"
)

// Options is the options for the terminal client
type Options struct {
	API            string        `short:"a" long:"api" description:"Base URL of the check service" default:"http://127.0.0.1:5000"`
	AlertTTL       time.Duration `short:"t" long:"alert-ttl" description:"How long a notification stays visible" default:"3s"`
	CancelInFlight bool          `short:"c" long:"cancel-in-flight" description:"Abort the running check when a new one is submitted"`
	Domain         string        `short:"d" long:"domain" description:"Domain to pre-fill and check on start"`
	LogFile        string        `short:"l" long:"log-file" description:"Log file path" default:"domaincheck.log"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if opts.AlertTTL <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --alert-ttl must be positive")
		os.Exit(1)
	}

	if err := utils.InitFileLogger(opts.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = utils.Log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := checker.New(checker.Options{
		BaseURL:        opts.API,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		Alerts:         alert.NewStore(alert.WithTTL(opts.AlertTTL)),
		CancelInFlight: opts.CancelInFlight,
	})

	p := tea.NewProgram(newFormModel(ctx, ctrl, opts.Domain, opts.CancelInFlight), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		os.Exit(1)
	}
}
