package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
)

type EnrichOptions struct {
	Kind         string
	Sources      []string
	ForceRefresh bool
	PollInterval time.Duration
	Timeout      time.Duration
}

func DefaultEnrichOptions() *EnrichOptions {
	return &EnrichOptions{
		Kind:         string(enrich.KindVulnerability),
		PollInterval: 200 * time.Millisecond,
		Timeout:      5 * time.Minute,
	}
}

func NewCmdEnrich() *cobra.Command {
	o := DefaultEnrichOptions()
	cmd := &cobra.Command{
		Use:   "enrich ID [ID...]",
		Short: "Submit an enrichment batch and wait for the result.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *EnrichOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Kind, "kind", "k", o.Kind, fmt.Sprintf("Target kind. One of: (%s, %s).", enrich.KindVulnerability, enrich.KindThreatIndicator))
	fs.StringSliceVarP(&o.Sources, "sources", "s", o.Sources, "Sources to query. Defaults to all registered for the kind.")
	fs.BoolVar(&o.ForceRefresh, "force-refresh", false, "Bypass the batch cache.")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "How long to wait for the job to finish.")
}

func (o *EnrichOptions) Validate(args []string) error {
	kind := enrich.TargetKind(o.Kind)
	if kind != enrich.KindVulnerability && kind != enrich.KindThreatIndicator {
		return fmt.Errorf("invalid kind %q", o.Kind)
	}
	return nil
}

func (o *EnrichOptions) Run(ctx context.Context, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	jobID, err := rt.service.Submit(ctx, enrich.Request{
		Kind:         enrich.TargetKind(o.Kind),
		ItemIDs:      args,
		Sources:      o.Sources,
		ForceRefresh: o.ForceRefresh,
	})
	if err != nil {
		return err
	}
	fmt.Printf("job %s submitted\n", jobID)

	waitCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	var job *enrich.Job
	for {
		job, err = rt.service.Status(waitCtx, jobID)
		if err != nil {
			return err
		}
		if job.Terminal() {
			break
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("timed out waiting for job %s (progress %.0f%%)", jobID, job.Progress()*100)
		case <-time.After(o.PollInterval):
		}
	}

	fmt.Printf("job %s %s: %d processed, %d failed of %d items\n",
		jobID, job.Status, job.ProcessedItems, job.FailedItems, job.TotalItems)
	for _, outcome := range job.Outcomes {
		fmt.Printf("  source %-12s %-12s enriched=%d", outcome.Source, outcome.Status, outcome.EnrichedCount)
		if outcome.Error != "" {
			fmt.Printf(" error=%q", outcome.Error)
		}
		fmt.Println()
	}
	if job.Status == enrich.JobStatusFailed {
		return fmt.Errorf("job failed: %s", job.Error)
	}

	marshalled, err := json.MarshalIndent(job.Records, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(marshalled))
	return nil
}
