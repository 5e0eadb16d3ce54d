package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridsub/gridsub/internal/gridsub/manifest"
	"github.com/gridsub/gridsub/internal/gridsub/store"
)

func newSubmitCmd() *cobra.Command {
	var (
		dryRun             bool
		force              bool
		submitsPerInterval int
	)

	cmd := &cobra.Command{
		Use:   "submit <manifest>",
		Short: "Build descriptors from a manifest and submit them",
		Long: "Reads a YAML manifest, validates it, writes the submit and workflow\n" +
			"descriptors, stages input files into the store, and runs the\n" +
			"scheduler's submission command.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			runner := store.NewExecRunner(log)
			plan, err := manifest.NewBuilder(cfg, runner, log).Build(cmd.Context(), m)
			if err != nil {
				return err
			}

			perInterval := cfg.SubmitsPerInterval
			if cmd.Flags().Changed("submits-per-interval") {
				perInterval = submitsPerInterval
			}

			if dryRun {
				return writeOnly(plan)
			}

			ctx := cmd.Context()
			if plan.Graph != nil {
				if err := plan.Graph.Submit(ctx, plan.Copier, runner, cfg.SubmitDAGCommand, force, perInterval); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "submitted workflow with %d node(s)\n", plan.Graph.Len())
				return nil
			}

			for _, g := range plan.Groups {
				if err := g.Submit(ctx, plan.Copier, runner, cfg.SubmitCommand, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "submitted group %s with %d job(s)\n", g.Name(), g.Len())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Write descriptors but do not stage files or submit")
	cmd.Flags().BoolVar(&force, "force", false,
		"Pass the force flag to the scheduler's submission command")
	cmd.Flags().IntVar(&submitsPerInterval, "submits-per-interval", 0,
		"Override the workflow node submission throttle")
	return cmd
}

func writeOnly(plan *manifest.Plan) error {
	if plan.Graph != nil {
		return plan.Graph.Write()
	}
	for _, g := range plan.Groups {
		if err := g.Write(false); err != nil {
			return err
		}
	}
	return nil
}
