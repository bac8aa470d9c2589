package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/maltesIam/cyberdemo-sub000/internal/cli"
)

func main() {
	command := NewEnricherCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewEnricherCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enricher [flags] [options]",
		Short: "enricher runs multi-source enrichment batches.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdEnrich())
	cmd.AddCommand(cli.NewCmdSources())

	return cmd
}
