// Package cmd wires svt's command-line entrypoint: argument parsing,
// terminal setup, the orchestrator run loop, and teardown.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func init() {
	rootCmd.Flags().BoolP("debug", "d", false, "Enable debug status overlay")
}

var rootCmd = &cobra.Command{
	Use:   "svt PATH [PATH...]",
	Short: "Simple Viewer in Terminal",
	Long:  "A terminal image viewer that renders via the Kitty Graphics Protocol",
	Example: `
# View a single image
svt photo.png

# View every image in a directory
svt ./photos

# Mix files and directories
svt a.png b.jpg ./more-photos`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		return run(cmd.Context(), args, debug)
	},
}

// Execute runs the root command, exiting the process with a non-zero
// status on error.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
