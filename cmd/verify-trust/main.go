// Command verify-trust checks that every client surface trusts the OS
// certificate store once systemcerts is installed, and that pinning the
// bundled CA list still refuses the fixture certificate.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arun0009/systemcerts/internal/harness"
	"github.com/arun0009/systemcerts/pkg/systemcerts"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "verify-trust",
		Short:         "Check which trust anchors the client surfaces use",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd(), surfacesCmd(), initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		configPath  string
		noSpawn     bool
		baseURL     string
		caFile      string
		only        []string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the fixture and run the surface matrix",
		Long: `Start the fixture server, wait for it to report readiness, install the
OS certificate store as the default trust and run every surface twice:

  explicit  pins the bundled CA list and must be refused
  default   relies on the installed default and must succeed

Exits non-zero when any surface misbehaves.

Examples:
  verify-trust run                          # defaults, spawns fixture-server
  verify-trust run --config harness.yaml
  verify-trust run --no-spawn --base-url https://localhost:8443 --ca-file cert.pem
  verify-trust run --surface get --surface grpc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := harness.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = harness.LoadConfig(configPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("base-url") {
				cfg.BaseURL = baseURL
			}
			if cmd.Flags().Changed("ca-file") {
				cfg.CAFile = caFile
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Concurrency = concurrency
			}

			surfaces := harness.Surfaces()
			if len(only) > 0 {
				var err error
				if surfaces, err = harness.Lookup(only...); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !noSpawn {
				p, err := harness.Start(ctx, cfg.Options())
				if err != nil {
					return fmt.Errorf("starting fixture: %w", err)
				}
				defer p.Stop()
				fmt.Printf("Fixture %s ready (pid %d)\n", cfg.Command, p.Pid())
			}

			var opts []systemcerts.Option
			if cfg.CAFile != "" {
				opts = append(opts, systemcerts.WithExtraCAFile(cfg.CAFile))
			}
			if err := systemcerts.Install(opts...); err != nil {
				return fmt.Errorf("installing system certificates: %w", err)
			}
			defer systemcerts.Uninstall()

			results := harness.Run(ctx, cfg.BaseURL, surfaces, cfg.Concurrency)
			printResults(os.Stdout, results)
			if err := harness.Failures(results); err != nil {
				return fmt.Errorf("%d of %d surfaces failed", failedSurfaces(results), len(surfaces))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Harness YAML config")
	cmd.Flags().BoolVar(&noSpawn, "no-spawn", false, "Use an already running server at --base-url")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL (overrides config)")
	cmd.Flags().StringVar(&caFile, "ca-file", "", "Extra PEM bundle to trust (overrides config)")
	cmd.Flags().StringSliceVarP(&only, "surface", "s", nil, "Run only these surfaces")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Surfaces in flight (overrides config)")

	return cmd
}

func printResults(w io.Writer, results []harness.Result) {
	for i := 0; i+1 < len(results); i += 2 {
		explicit, def := results[i], results[i+1]
		mark := color.GreenString("✓")
		if !explicit.Passed() || !def.Passed() {
			mark = color.RedString("✗")
		}
		fmt.Fprintf(w, "%s %-18s %s\n", mark, explicit.Surface,
			color.HiBlackString("%v / %v", explicit.Elapsed.Round(time.Millisecond), def.Elapsed.Round(time.Millisecond)))
		for _, r := range []harness.Result{explicit, def} {
			if err := r.Err(); err != nil {
				fmt.Fprintf(w, "    %s %s\n", color.YellowString(string(r.Phase)), color.RedString(err.Error()))
			}
		}
	}
}

func failedSurfaces(results []harness.Result) int {
	n := 0
	for i := 0; i+1 < len(results); i += 2 {
		if !results[i].Passed() || !results[i+1].Passed() {
			n++
		}
	}
	return n
}

func surfacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "surfaces",
		Short: "List the surface matrix",
		Run: func(cmd *cobra.Command, args []string) {
			for _, s := range harness.Surfaces() {
				fmt.Println(s.Name)
			}
		},
	}
}

func initConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a default harness config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "harness.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force)", path)
			}
			if err := os.WriteFile(path, []byte(harness.DefaultConfigTemplate), 0644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Println(color.GreenString("Wrote"), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
