package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gateguard/gateguard-api/pkg/client"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	apiToken  string
	timeout   time.Duration
	outFormat string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ggctl",
	Short: "GateGuard scoring API CLI",
	Long: `ggctl talks to a gateguard-api server.

It can score hosts the way the inspection engine does, trigger the
server's test fault modes, and browse the audit log.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.gateguard")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8000"
		}
		if apiToken == "" {
			apiToken = viper.GetString("api_token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.gateguard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "gateguard-api base URL (default http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API bearer token (default $API_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "per-request timeout")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(logsCmd)
}

func newClient() (*client.Client, error) {
	return client.New(serverURL, client.WithToken(apiToken), client.WithTimeout(timeout))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ggctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ggctl", version)
	},
}

// ── health ───────────────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		h, err := c.Health(context.Background())
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		if outFormat == "json" {
			return printJSON(h)
		}
		fmt.Printf("Status:        %s\n", h.Status)
		fmt.Printf("Service:       %s\n", h.Service)
		fmt.Printf("Model version: %s\n", h.ModelVersion)
		return nil
	},
}
