// Command fixture-server runs the HTTPS fixture used by verify-trust.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arun0009/systemcerts/internal/fixture"
	"github.com/arun0009/systemcerts/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "fixture-server",
		Short:         "Disposable HTTPS endpoint for trust-store checks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), gencertCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Error("fixture-server failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cfg := fixture.LoadConfigFromEnv()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve / over TLS until SIGINT or SIGTERM",
		Long: `Serve DELETE, GET, HEAD, OPTIONS, PATCH, POST and PUT on / with the JSON
body {"message": "Hello World"}, plus a websocket echo on /ws, the gRPC health
service and Prometheus metrics on /metrics, all on one TLS port.

A self-signed certificate is generated when --ssl-certfile does not exist.
Flags default to the FIXTURE_* environment variables.

Examples:
  fixture-server serve --host 0.0.0.0 --port 8443 --ssl-keyfile key.pem --ssl-certfile cert.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return fixture.New(cfg).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "Interface to bind")
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Port to bind")
	cmd.Flags().StringVar(&cfg.CertFile, "ssl-certfile", cfg.CertFile, "PEM certificate file")
	cmd.Flags().StringVar(&cfg.KeyFile, "ssl-keyfile", cfg.KeyFile, "PEM private key file")
	cmd.Flags().BoolVar(&cfg.LogRequests, "log-requests", cfg.LogRequests, "Log every request")
	cmd.Flags().BoolVar(&cfg.LogHeaders, "log-headers", cfg.LogHeaders, "Log request headers")
	cmd.Flags().Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", cfg.RateLimitRPS, "Global requests per second (0 disables)")
	cmd.Flags().IntVar(&cfg.RateLimitBurst, "rate-limit-burst", cfg.RateLimitBurst, "Rate limit burst size")

	return cmd
}

func gencertCmd() *cobra.Command {
	var (
		certFile string
		keyFile  string
		hosts    []string
	)

	cmd := &cobra.Command{
		Use:   "gencert",
		Short: "Write a self-signed certificate and key",
		Long: `Write a self-signed certificate valid for localhost, 127.0.0.1 and ::1,
plus any --host given. The certificate is its own CA, so the same file can be
handed to SYSTEMCERTS_EXTRA_CA_FILE or installed into the OS store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fixture.GenerateSelfSignedCert(certFile, keyFile, hosts...); err != nil {
				return err
			}
			logger.Info("Wrote certificate", "cert", certFile, "key", keyFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&certFile, "ssl-certfile", "cert.pem", "Certificate output path")
	cmd.Flags().StringVar(&keyFile, "ssl-keyfile", "key.pem", "Private key output path")
	cmd.Flags().StringSliceVar(&hosts, "host", nil, "Extra DNS names or IPs for the certificate")

	return cmd
}
