package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
)

func NewCmdSources() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the registered enrichment sources.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources()
		},
		SilenceUsage: true,
	}
	return cmd
}

func runSources() error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tPRIORITY\tBREAKER")
	for _, kind := range []enrich.TargetKind{enrich.KindVulnerability, enrich.KindThreatIndicator} {
		for _, name := range rt.registry.Names(kind) {
			entry, _ := rt.registry.Get(name)
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", name, entry.Kind, entry.Priority, entry.Breaker.State())
		}
	}
	return w.Flush()
}
