package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/quorumlabs/quorum/pkg/adapter"
	"github.com/quorumlabs/quorum/pkg/config"
	"github.com/quorumlabs/quorum/pkg/consensus"
	"github.com/quorumlabs/quorum/pkg/profile"
	"github.com/quorumlabs/quorum/pkg/store"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quorum",
		Short: "Multi-model consensus pipeline for LLM answers",
		Long: `Quorum runs a query through a four-stage consensus pipeline
	(Generator, Refiner, Validator, Curator), with each stage served by its
	own model. Later stages refine, verify, and polish the earlier output;
	the Curator's answer is what you see.`,
	}

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(profilesCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var profileFlag string
	var progressFlag bool
	var jsonFlag bool
	var storeDir string
	var mockFlag bool

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Run a query through the consensus pipeline",
		Long: `Runs the query through all four consensus stages and prints the
	Curator's final answer.

	Use --profile to pick which models serve each stage; the active profile
	from ~/.quorum/profiles.yaml is used otherwise.

	Use --progress to watch per-stage progress bars instead of streaming
	the answer. Use --json to emit the full run record, including every
	stage's output and cost, as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var registry *adapter.Registry
			if mockFlag {
				registry = mockRegistry()
			} else {
				registry, err = createRegistry(cfg)
				if err != nil {
					return err
				}
			}

			engine, err := createEngine(cfg, registry, storeDir)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var callbacks consensus.Callbacks
			if !jsonFlag {
				callbacks = &consensus.ConsoleCallbacks{Out: os.Stdout, ShowProgress: progressFlag}
			}

			result, err := engine.Process(ctx, query, consensus.ProcessOptions{
				Profile:   profileFlag,
				User:      os.Getenv("USER"),
				Callbacks: callbacks,
			})
			if err != nil {
				return err
			}

			if jsonFlag {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if progressFlag {
				fmt.Println()
				fmt.Println(result.Answer)
			}
			fmt.Fprintf(os.Stderr, "\nTotal: $%.4f across %d stages in %s (run %s)\n",
				result.TotalCost, len(result.Stages),
				result.TotalDuration.Round(10*time.Millisecond), result.ConversationID)
			return nil
		},
	}

	cmd.Flags().StringVar(&profileFlag, "profile", "", "consensus profile id or name")
	cmd.Flags().BoolVar(&progressFlag, "progress", false, "show per-stage progress bars")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full run record as JSON")
	cmd.Flags().StringVar(&storeDir, "store-dir", "", "directory to archive run records (default ~/.quorum/runs)")
	cmd.Flags().BoolVar(&mockFlag, "mock", false, "use the mock adapter for every stage")

	return cmd
}

func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available consensus profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			profiles := profile.NewFileStore(profilesPath(cfg))
			list, err := profiles.List(context.Background())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tGENERATOR\tREFINER\tVALIDATOR\tCURATOR")
			for _, p := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.Name, p.GeneratorModel, p.RefinerModel, p.ValidatorModel, p.CuratorModel)
			}
			return w.Flush()
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available providers and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			registry, err := createRegistry(cfg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, name := range []string{"anthropic", "openai", "google", "deepseek", "mock"} {
				a, ok := registry.Get(name)
				if !ok {
					fmt.Fprintf(w, "%s\t\tno key\n", name)
					continue
				}
				status := "ready"
				if name != "mock" && !cfg.HasAdapter(name) {
					status = "no key"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, formatList(a.Models()), status)
			}
			return w.Flush()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [profiles.yaml]",
		Short: "Validate a profiles file",
		Long:  "Checks that every profile assigns a model to every stage without running anything.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				path = profilesPath(cfg)
			}

			profiles := profile.NewFileStore(path)
			list, err := profiles.List(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%d profiles are valid.\n", len(list))
			return nil
		},
	}
}

func createRegistry(cfg *config.Config) (*adapter.Registry, error) {
	registry := adapter.NewRegistry()

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		registry.Register(a)
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		registry.Register(a)
	}

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		registry.Register(a)
	}

	if cfg.DeepSeekAPIKey != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		registry.Register(a)
	}

	registry.Register(adapter.NewMockAdapter())

	return registry, nil
}

// mockRegistry resolves every model id to the mock adapter, so any
// profile runs offline.
func mockRegistry() *adapter.Registry {
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewMockAdapter(), "")
	return registry
}

func createEngine(cfg *config.Config, registry *adapter.Registry, storeDir string) (*consensus.Engine, error) {
	profiles := profile.NewFileStore(profilesPath(cfg))

	if storeDir == "" {
		storeDir = filepath.Join(cfg.ConfigDir, "runs")
	}
	runs, err := store.NewFileStore(storeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	opts := []consensus.Option{
		consensus.WithStore(runs),
		consensus.WithRetry(cfg.Retry),
	}
	if len(cfg.Pricing) > 0 {
		opts = append(opts, consensus.WithPricing(cfg.Pricing))
	}

	return consensus.New(registry, profiles, opts...), nil
}

func profilesPath(cfg *config.Config) string {
	return filepath.Join(cfg.ConfigDir, "profiles.yaml")
}

func formatList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	result := items[0]
	for i := 1; i < len(items); i++ {
		result += ", " + items[i]
	}
	return result
}
