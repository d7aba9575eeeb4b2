package main

import (
	"fmt"

	"github.com/reglet-dev/classrunner/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of classrunner",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "classrunner version %s\n", version.Get().Full())
		},
	}
}
