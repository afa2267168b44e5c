// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"axonflow/aiservice/usage"
)

var errStorageDisabled = errors.New("usage storage is disabled; set storage.enabled and storage.database_url")

// usageCmd returns the parent command for usage storage operations.
func (a *app) usageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect and maintain recorded usage",
	}
	cmd.AddCommand(a.usageListCmd())
	cmd.AddCommand(a.usageSummaryCmd())
	cmd.AddCommand(a.usagePurgeCmd())
	return cmd
}

// filterFlags are the flags shared by list and summary.
type filterFlags struct {
	provider string
	model    string
	status   string
	caller   string
	since    string
	until    string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "filter-provider", "", "Only records from this provider")
	cmd.Flags().StringVar(&f.model, "filter-model", "", "Only records for this model")
	cmd.Flags().StringVar(&f.status, "status", "", "Only records with this status (success, error)")
	cmd.Flags().StringVar(&f.caller, "filter-caller", "", "Only records from this caller")
	cmd.Flags().StringVar(&f.since, "since", "", "Start of the window: a duration back from now (24h) or a date (2006-01-02)")
	cmd.Flags().StringVar(&f.until, "until", "", "End of the window, same formats as --since")
}

func (f *filterFlags) filter(now time.Time) (usage.Filter, error) {
	filter := usage.Filter{
		Provider: f.provider,
		Model:    f.model,
		Status:   usage.Status(f.status),
		CallerID: f.caller,
	}
	if f.status != "" && filter.Status != usage.StatusSuccess && filter.Status != usage.StatusError {
		return filter, fmt.Errorf("invalid --status %q", f.status)
	}
	var err error
	if filter.Since, err = parseTime(f.since, now); err != nil {
		return filter, fmt.Errorf("invalid --since: %w", err)
	}
	if filter.Until, err = parseTime(f.until, now); err != nil {
		return filter, fmt.Errorf("invalid --until: %w", err)
	}
	return filter, nil
}

// parseTime accepts a duration before now or a UTC date.
func parseTime(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	return time.Parse(time.DateOnly, value)
}

func (a *app) usageListCmd() *cobra.Command {
	var (
		ff    filterFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded requests, newest first",
		Long: `List recorded requests, newest first.

Examples:
  aictl usage list --since 24h --status error
  aictl usage list --filter-provider openai --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.filter(time.Now().UTC())
			if err != nil {
				return err
			}
			filter.Limit = limit

			res, err := a.build(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()
			if res.Usage == nil {
				return errStorageDisabled
			}

			records, err := res.Usage.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}

	ff.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to list (0 for all)")
	return cmd
}

func (a *app) usageSummaryCmd() *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize token usage",
		Long: `Summarize token usage over the matching records.

Examples:
  aictl usage summary --since 720h
  aictl usage summary --filter-caller billing-service --since 2025-01-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.filter(time.Now().UTC())
			if err != nil {
				return err
			}

			res, err := a.build(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()
			if res.Usage == nil {
				return errStorageDisabled
			}

			summary, err := res.Usage.Summarize(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}

	ff.register(cmd)
	return cmd
}

func (a *app) usagePurgeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete usage records older than the retention window",
		Long: `Delete usage records older than the retention window. The window
defaults to storage.purge_after_days from the configuration.

Examples:
  aictl usage purge
  aictl usage purge --days 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("days") && days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			res, err := a.build(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()
			if res.Usage == nil {
				return errStorageDisabled
			}

			if !cmd.Flags().Changed("days") {
				days = a.cfg.Storage.PurgeAfterDays
			}
			if days < 1 {
				return fmt.Errorf("retention is not configured; pass --days")
			}

			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			removed, err := res.Usage.Purge(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d records older than %s\n", removed, cutoff.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default: storage.purge_after_days)")
	return cmd
}
