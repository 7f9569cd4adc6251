package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/asydsolutions/sentinel/internal/config"
	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/monittime"
	"github.com/asydsolutions/sentinel/internal/statestore"
)

// runStatus implements the `status`/`summary` verbs: it reads the control
// file for the service set and, when a state file is configured, overlays
// the persisted Monitor state, without dialing a running daemon at all —
// there is no production HTTP control surface to ask (spec §1).
func runStatus(cfg *config.Config, summary bool, verbose bool) {
	services, err := config.LoadServices(cfg.ControlFile)
	fatalIf(err, "load control file")

	table := depgraph.NewTable(services)

	if cfg.StateFile != "" {
		if _, err := os.Stat(cfg.StateFile); err == nil {
			store, err := statestore.Open(context.Background(), statestore.Config{Path: cfg.StateFile}, zerolog.Nop())
			if err != nil {
				fmt.Fprintln(os.Stderr, "sentinelctl: state file unreadable:", err)
			} else {
				defer store.Close()
				if err := store.Load(context.Background(), table); err != nil {
					fmt.Fprintln(os.Stderr, "sentinelctl: state file load failed:", err)
				}
			}
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	if summary {
		fmt.Fprintln(tw, "NAME\tTYPE\tMONITOR")
		for _, s := range table.All() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Type, s.Monitor)
		}
	} else {
		header := "NAME\tTYPE\tGROUP\tMONITOR\tPID\tCPU%\tRSS(kB)\tUPTIME"
		if verbose {
			header += "\tCHILDREN\tSAMPLED"
		}
		fmt.Fprintln(tw, header)
		for _, s := range table.All() {
			group := s.Group
			if group == "" {
				group = "-"
			}
			uptime := "-"
			if !s.Info.StartedAt.IsZero() {
				uptime = monittime.Uptime(time.Since(s.Info.StartedAt))
			}
			row := fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%.1f\t%d\t%s", s.Name, s.Type, group, s.Monitor, s.Info.PID, s.Info.CPUPercent, s.Info.RSSKB, uptime)
			if verbose {
				row += fmt.Sprintf("\t%d\t%s", s.Info.Children, s.Info.SampledAt.Format("15:04:05"))
			}
			fmt.Fprintln(tw, row)
		}
	}
	tw.Flush()
}
