// Command luabridge serves uwsgi requests with a Lua handler script.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "luabridge",
	Short:         "Run Lua request handlers behind a uwsgi socket",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "luabridge:", err)
		os.Exit(1)
	}
}
