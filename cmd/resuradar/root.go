package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resuradar/internal/analyses"
	"resuradar/internal/bootstrap"
	"resuradar/internal/shared/config"
	"resuradar/internal/shared/telemetry"
)

const app = "resuradar"

var rootCmd = &cobra.Command{
	Use:           app,
	Short:         "resuradar scores résumés and matches them against job descriptions",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := "warn"
		if viper.GetBool("debug") {
			level = "debug"
		}
		format := "console"
		if viper.GetBool("json") {
			format = "json"
		}
		telemetry.Init(telemetry.Options{Level: level, Format: format, Service: app, Writer: cmd.ErrOrStderr()})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// envBindings maps viper keys to the environment variables the API reads.
var envBindings = map[string]string{
	"provider":           "LLM_PROVIDER",
	"model":              "LLM_MODEL",
	"base-url":           "LLM_BASE_URL",
	"openrouter-api-key": "OPENROUTER_API_KEY",
	"gemini-api-key":     "GEMINI_API_KEY",
	"timeout":            "LLM_TIMEOUT_SECONDS",
}

func init() {
	for key, env := range envBindings {
		_ = viper.BindEnv(key, env)
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "verbose/debug output")
	flags.BoolP("json", "j", false, "json format for logging")
	flags.String("provider", "openrouter", "model provider: openrouter or gemini")
	flags.String("model", "", "model name (provider default when empty)")
	flags.Int("timeout", 60, "model call timeout in seconds")

	for _, name := range []string{"debug", "json", "provider", "model", "timeout"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

// cliConfig layers flags and env bindings over the API configuration.
func cliConfig() config.Config {
	cfg := config.Load()
	cfg.LLMProvider = viper.GetString("provider")
	cfg.LLMModel = viper.GetString("model")
	if v := viper.GetString("base-url"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := viper.GetString("openrouter-api-key"); v != "" {
		cfg.OpenRouterAPIKey = v
	}
	if v := viper.GetString("gemini-api-key"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if secs := viper.GetInt("timeout"); secs > 0 {
		cfg.LLMTimeout = time.Duration(secs) * time.Second
	}
	// Credentials must be present; the CLI has no unconfigured fallback.
	cfg.Env = "production"
	return cfg
}

func newAnalyzer(ctx context.Context) (*analyses.Service, error) {
	cfg := cliConfig()
	client, err := bootstrap.BuildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &analyses.Service{
		LLM:      client,
		Timeout:  cfg.LLMTimeout,
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
	}, nil
}
