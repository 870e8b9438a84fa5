/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/llm"
	"newsradar/internal/logger"
	"newsradar/internal/pipeline"
	"newsradar/internal/store"
	"newsradar/internal/usage"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "newsradar",
	Short: "newsradar discovers, classifies and tracks news articles",
	Long: `newsradar is a CLI tool that discovers news articles via a language
model, extracts structured records from its free-form responses, filters and
deduplicates them, classifies them against a cluster taxonomy and keeps
running counts for tracked keywords.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.newsradar.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	cfg = loaded
	logger.Configure(cfg.Logging.Level, cfg.Logging.Format)
}

// openStore opens the SQLite store at the configured data directory.
func openStore() (*store.Store, error) {
	st, err := store.NewStore(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// newProvider builds the Gemini client wrapped with usage telemetry. The
// command name ends up in each usage record's metadata.
func newProvider(ctx context.Context, st *store.Store, command string) (llm.Provider, *llm.Client, error) {
	client, err := llm.NewClient(ctx, cfg.Gemini.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	tracked := usage.NewTrackedProvider(client, st, map[string]string{"command": command})
	return tracked, client, nil
}

func generationOptions() llm.Options {
	return llm.Options{
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
		MaxTokens:   cfg.Gemini.MaxTokens,
		RecencyDays: cfg.Discovery.RecencyDays,
	}
}

func pipelineOptions() pipeline.Options {
	return pipeline.Options{
		PromptTemplate:       cfg.Discovery.PromptTemplate,
		MinScore:             cfg.Discovery.MinScore,
		MaxResults:           cfg.Discovery.MaxResults,
		IncludeTaxonomy:      cfg.Discovery.IncludeTaxonomy,
		InlineClassification: cfg.Discovery.InlineClassification,
		Generation:           generationOptions(),
		BatchSize:            cfg.Analysis.BatchSize,
		BatchPause:           cfg.Analysis.BatchPauseDuration(),
		AnalysisLimit:        cfg.Analysis.Limit,
	}
}
