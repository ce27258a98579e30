// Command termninja runs the matchmaking front end: it accepts players on
// a TCP port, optionally authenticates them and drops each group of
// matched players into a lobby.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	port       int
	autoReload bool
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:          "termninja",
	Short:        "Matchmaking front end for terminal games",
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional .env file")
	rootCmd.Flags().IntVarP(&port, "port", "p", 3000, "TCP port to accept players on")
	rootCmd.Flags().BoolVarP(&autoReload, "auto-reload", "a", false, "Restart the server when files change")
	rootCmd.AddCommand(tokenCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
