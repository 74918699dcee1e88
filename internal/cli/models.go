package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/prpilot/internal/providers"
)

const doctorTimeout = 30 * time.Second

func (a *app) modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Provider and model management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List supported providers and their default models",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, info := range providers.Known {
				keys := "none"
				if len(info.KeyEnv) > 0 {
					keys = strings.Join(info.KeyEnv, " or ")
				}
				fmt.Fprintf(a.stdout, "%s:\n  default model: %s\n  api key: %s\n\n", info.Name, info.DefaultModel, keys)
			}
		},
	}

	var provider, model string
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured provider answers",
		Args:  cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("provider") {
				overrides["model.provider"] = provider
				overrides["model.name"] = ""
			}
			if cmd.Flags().Changed("model") {
				overrides["model.name"] = model
			}
			cfg, err := a.loadConfig(overrides)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Checking %s...\n", cfg.Model.Provider)
			m, err := a.newModel(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
			defer cancel()
			if _, err := m.Generate(ctx, providers.Request{
				SystemPrompt: "Respond with exactly: ok",
				UserPrompt:   "ping",
				MaxTokens:    10,
			}); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "OK: %s is configured and responding\n", m.Name())
			return nil
		}),
	}
	doctorCmd.Flags().StringVar(&provider, "provider", "", "Provider to check")
	doctorCmd.Flags().StringVar(&model, "model", "", "Model to check")

	cmd.AddCommand(listCmd, doctorCmd)
	return cmd
}
