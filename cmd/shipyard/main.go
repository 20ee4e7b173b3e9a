// Shipyard CLI — локальный запуск pipelines и управление runs через HTTP API.
//
// Использование:
//
//	shipyard [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	run       Локальный запуск pipeline
//	runs      Runs на сервере
//	ingress   Таблицы маршрутизации
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Shipyard/internal/cli"
	"github.com/shaiso/Shipyard/internal/kube"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "shipyard",
		Short:         "Shipyard CLI — build, push and deploy container images",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("SHIPYARD_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(outputFn, cli.LivePipeline),
		cli.NewRunsCmd(clientFn, outputFn),
		cli.NewIngressCmd(clientFn, outputFn, kube.ConnectorFunc(kube.Connect)),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
