// Command h2demo wires a client and a server engine together over an
// in-process net.Pipe and drives one request/response exchange, following
// the cobra command-tree shape of packetd's cmd package (agent.go, log.go,
// watch.go each registering a subcommand via init()).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "h2demo",
	Short: "Drive the h2engine dual-mode HTTP engine over an in-process pipe",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
