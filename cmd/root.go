package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "walkypainty",
		Short:        "Shared drawing canvas server",
		Long:         "walkypainty runs a real-time collaborative drawing server: rooms of artists sketch on a shared canvas over WebSockets, and finished strokes are saved to a canvas store.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newRenderCmd(),
		newMirrorCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
