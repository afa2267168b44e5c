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

// Package main implements the aictl CLI for calling AI providers through the
// dispatcher and inspecting recorded usage.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"axonflow/aiservice/bootstrap"
	"axonflow/aiservice/config"
	"axonflow/aiservice/llm"
	"axonflow/aiservice/service"
)

var version = "1.0.0"

func main() {
	if err := newRootCmd(bootstrap.Options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the global flags and builds the service on demand.
type app struct {
	opts bootstrap.Options

	configPath  string
	provider    string
	model       string
	caller      string
	temperature float64
	maxTokens   int
	system      string
	metrics     bool

	cmd      *cobra.Command
	cfg      *config.Config
	registry *prometheus.Registry
}

func newRootCmd(opts bootstrap.Options) *cobra.Command {
	a := &app{opts: opts}

	rootCmd := &cobra.Command{
		Use:     "aictl",
		Short:   "AxonFlow AI service CLI",
		Long:    `aictl calls AI providers through the AxonFlow dispatcher (cache, fallback and usage recording included) and manages recorded usage.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.cmd = cmd
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", os.Getenv("AI_CONFIG"), "Path to the YAML config file (default: $AI_CONFIG, else environment only)")
	flags.StringVarP(&a.provider, "provider", "p", "", "Provider to try first (default: configured default provider)")
	flags.StringVarP(&a.model, "model", "m", "", "Model override for the selected provider")
	flags.StringVar(&a.caller, "caller", "aictl", "Caller id recorded with usage")
	flags.Float64Var(&a.temperature, "temperature", 0, "Sampling temperature")
	flags.IntVar(&a.maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	flags.StringVar(&a.system, "system", "", "System prompt")
	flags.BoolVar(&a.metrics, "metrics", false, "Print collected metrics to stderr after the command")

	rootCmd.AddCommand(a.generateCmd())
	rootCmd.AddCommand(a.embedCmd())
	rootCmd.AddCommand(a.sentimentCmd())
	rootCmd.AddCommand(a.classifyCmd())
	rootCmd.AddCommand(a.entitiesCmd())
	rootCmd.AddCommand(a.imageCmd())
	rootCmd.AddCommand(a.providersCmd())
	rootCmd.AddCommand(a.usageCmd())
	rootCmd.AddCommand(configCmd())

	return rootCmd
}

// loadConfig reads the config file, or the environment when none is given.
func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath == "" {
		return config.FromEnv()
	}
	return config.Load(a.configPath)
}

// build creates the service for one command. Logs go to stderr when the
// configured channel is stdout so results stay machine readable.
func (a *app) build(ctx context.Context) (*bootstrap.Result, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	opts := a.opts
	if opts.LogOutput == nil && (cfg.Logging.Channel == "" || strings.EqualFold(cfg.Logging.Channel, "stdout")) {
		opts.LogOutput = a.cmd.ErrOrStderr()
	}
	if opts.Registerer == nil {
		a.registry = prometheus.NewRegistry()
		opts.Registerer = a.registry
		cfg.Metrics.Enabled = cfg.Metrics.Enabled || a.metrics
	}
	return bootstrap.Build(ctx, cfg, opts)
}

// run builds the service, runs fn with the call scope from the flags and
// releases everything afterwards.
func (a *app) run(ctx context.Context, fn func(call service.Call) error) error {
	res, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer res.Close()

	call := res.Service.Caller(a.caller).WithMetadata("source", "aictl")
	if a.provider != "" {
		call = call.Provider(a.provider)
	}
	if a.model != "" {
		call = call.Model(a.model)
	}
	err = fn(call)
	if a.metrics {
		a.printMetrics(a.cmd.ErrOrStderr())
	}
	return err
}

// options builds the provider options from the flags that were set.
func (a *app) options() llm.Options {
	opts := llm.Options{}
	flags := a.cmd.Flags()
	if flags.Changed("temperature") {
		opts[llm.OptionTemperature] = a.temperature
	}
	if flags.Changed("max-tokens") {
		opts[llm.OptionMaxTokens] = a.maxTokens
	}
	if a.system != "" {
		opts[llm.OptionSystemPrompt] = a.system
	}
	return opts
}

func (a *app) printMetrics(w io.Writer) {
	if a.registry == nil {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "failed to gather metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s{%s} count=%d sum=%g\n", mf.GetName(), strings.Join(labels, ","), h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}

// input joins args, or reads stdin when there are none.
func input(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
