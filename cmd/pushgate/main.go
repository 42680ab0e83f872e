// Command pushgate runs the push dispatch engine and its REST front end.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when `pushgate` is called without any subcommands.
// rootCmd 代表在没有任何子命令的情况下调用 `pushgate` 时的基本命令。
var rootCmd = &cobra.Command{
	Use:   "pushgate",
	Short: "Push notification dispatch engine for edge devices.",
	Long: `pushgate signs gateway credentials, keeps a persistent allow/deny registry of
recipient tokens, and delivers single and broadcast notifications over HTTP/2.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newServeCmd())
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
