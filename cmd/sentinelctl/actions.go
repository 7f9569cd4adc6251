package main

import (
	"context"
	"fmt"

	"github.com/asydsolutions/sentinel/internal/config"
	"github.com/asydsolutions/sentinel/internal/controlclient"
)

// runAction resolves target (a service name, or "all") against the
// control file's service set — narrowed to cfg.Group when set — and
// issues verb against each match through client.
func runAction(ctx context.Context, client *controlclient.Client, cfg *config.Config, verb, target string) error {
	services, err := config.LoadServices(cfg.ControlFile)
	if err != nil {
		return fmt.Errorf("load control file: %w", err)
	}

	var names []string
	for _, s := range services {
		if cfg.Group != "" && s.Group != cfg.Group {
			continue
		}
		if target == "all" || s.Name == target {
			names = append(names, s.Name)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no matching service for %q (group %q)", target, cfg.Group)
	}

	var failures []string
	for _, name := range names {
		if err := client.Do(ctx, name, verb); err != nil {
			failures = append(failures, err.Error())
			continue
		}
		fmt.Printf("%s: %s OK\n", name, verb)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d failed: %v", len(failures), len(names), failures)
	}
	return nil
}
