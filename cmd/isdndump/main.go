// Command isdndump runs one Controller against a D-channel device and
// prints every Q.921/Q.931/ROSE event it produces as a table, the
// engine's equivalent of the teacher's iecat diagnostic client.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/pascaldekloe/isdnsig"
	"github.com/pascaldekloe/isdnsig/dchan"
	"github.com/pascaldekloe/isdnsig/internal/config"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML configuration file")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug-level logging")
	pflag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "isdndump: -config is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "isdndump:", err)
		os.Exit(1)
	}

	dev, err := dchan.Open(cfg.Device)
	if err != nil {
		fmt.Fprintln(os.Stderr, "isdndump:", err)
		os.Exit(1)
	}
	defer dev.Close()

	logger := isdnsig.NewLogger()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	ctl := isdnsig.New(cfg, dev, logger)
	ctl.Establish()

	go func() {
		if err := ctl.ReadLoop(); err != nil {
			logger.Error("d-channel read loop ended", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"time", "kind", "call", "detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")

	for {
		select {
		case <-sig:
			ctl.Release()
			time.Sleep(200 * time.Millisecond)
			return
		case now := <-ticker.C:
			ctl.RunTimers(now)
			for _, e := range ctl.TakeEvents() {
				table.Append(eventRow(now, e))
			}
			table.Render()
		}
	}
}

func eventRow(now time.Time, e isdnsig.Event) []string {
	ts := now.Format("15:04:05.000")
	switch e.Kind {
	case isdnsig.EventCall:
		return []string{ts, "CALL", fmt.Sprintf("%d", e.CallRef.Value), e.Call.Kind.String()}
	case isdnsig.EventConfigErr:
		return []string{ts, "CONFIG-ERR", "", e.Err.Error()}
	default:
		return []string{ts, e.Kind.String(), "", ""}
	}
}
