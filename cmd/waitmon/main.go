package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"set_and_wait/internal/logger"
	"set_and_wait/internal/monitor"

	tea "github.com/charmbracelet/bubbletea"
)

const dialTimeout = 5 * time.Second

func main() {
	host := flag.String("host", "localhost:8080", "Host address serving /ws")
	interval := flag.Duration("interval", time.Second, "Status push interval")
	logFile := flag.String("log-file", "", "Append logs to this file; discarded when empty")
	logLevel := flag.String("log-level", logger.InfoLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	// the TUI owns the terminal
	log := logger.Nop()
	if *logFile != "" {
		l, closeLog, err := logger.NewFile(*logFile, *logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "waitmon: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = closeLog() }()
		log = l
	}
	url := monitor.StreamURL(*host, *interval)

	dial := func() (monitor.Source, error) {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		s, err := monitor.Dial(ctx, url, log.Named("monitor"))
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	p := tea.NewProgram(monitor.NewModel(dial), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Errorw("monitor_exit", "err", err)
		fmt.Fprintf(os.Stderr, "waitmon: %v\n", err)
		os.Exit(1)
	}
}
