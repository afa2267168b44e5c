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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"axonflow/aiservice/llm"
	"axonflow/aiservice/service"
)

// generateCmd returns the command for text generation.
func (a *app) generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate text from a prompt",
		Long: `Generate text from a prompt given as arguments or on stdin.

Examples:
  aictl generate "Write a haiku about failover"
  echo "Explain retries" | aictl generate --provider anthropic --max-tokens 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := input(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(call service.Call) error {
				text, err := call.GenerateText(cmd.Context(), prompt, a.options())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

// embedCmd returns the command for embeddings.
func (a *app) embedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed text...",
		Short: "Generate one embedding per argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), func(call service.Call) error {
				vectors, err := call.GenerateEmbeddings(cmd.Context(), args, a.options())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), vectors)
			})
		},
	}
}

// sentimentCmd returns the command for sentiment analysis.
func (a *app) sentimentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sentiment [text]",
		Short: "Analyze the sentiment of text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := input(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(call service.Call) error {
				result, err := call.AnalyzeSentiment(cmd.Context(), text, a.options())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

// classifyCmd returns the command for text classification.
func (a *app) classifyCmd() *cobra.Command {
	var categories []string

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Classify text into one of the given categories",
		Long: `Classify text into one of the given categories.

Examples:
  aictl classify --categories hardware_issue,software_bug,user_error "The screen keeps freezing after the update"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(categories) == 0 {
				return fmt.Errorf("--categories is required")
			}
			text, err := input(cmd, args)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(call service.Call) error {
				result, err := call.ClassifyText(cmd.Context(), text, categories, a.options())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringSliceVar(&categories, "categories", nil, "Comma-separated categories (required)")
	return cmd
}

// entitiesCmd returns the command for entity extraction.
func (a *app) entitiesCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "entities [text]",
		Short: "Extract named entities from text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := input(cmd, args)
			if err != nil {
				return err
			}
			opts := a.options()
			if cmd.Flags().Changed("threshold") {
				opts[llm.OptionEntityThreshold] = threshold
			}
			return a.run(cmd.Context(), func(call service.Call) error {
				entities, err := call.ExtractEntities(cmd.Context(), text, opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entities)
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "Minimum detection score")
	return cmd
}

// imageCmd returns the command for image generation.
func (a *app) imageCmd() *cobra.Command {
	var size string

	cmd := &cobra.Command{
		Use:   "image [prompt]",
		Short: "Generate an image and print its URL or data URI",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := input(cmd, args)
			if err != nil {
				return err
			}
			opts := a.options()
			if size != "" {
				opts[llm.OptionImageSize] = size
			}
			return a.run(cmd.Context(), func(call service.Call) error {
				uri, err := call.GenerateImage(cmd.Context(), prompt, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), uri)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&size, "size", "", "Image size, e.g. 1024x1024")
	return cmd
}

// providersCmd returns the command listing configured providers.
func (a *app) providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.build(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()

			out := cmd.OutOrStdout()
			svc := res.Service
			for _, name := range res.Registry.List() {
				p, _ := res.Registry.Get(name)
				marker := " "
				if name == svc.DefaultProvider() {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-14s %s\n", marker, name, p.Type())
			}
			for name, failure := range res.ProvidersFailed {
				fmt.Fprintf(out, "! %-14s %v\n", name, failure)
			}
			if fallback := svc.FallbackProviders(); len(fallback) > 0 {
				fmt.Fprintf(out, "\nFallback: %s\n", strings.Join(fallback, " -> "))
			}
			return nil
		},
	}
}
