package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencivicdata/civic-import/internal/merge"
	"github.com/opencivicdata/civic-import/internal/model"
)

var (
	importPlanPath     string
	importDataDir      string
	importJurisdiction string
	importTypes        []string
	importSkip         []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Merge a directory of scraped records into the canonical store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		jurisdiction := cfg.Import.Jurisdiction
		datadir := cfg.Import.DataDir
		policy := model.DupePolicy(cfg.Import.DuplicateLinks)
		types := importTypes
		skip := importSkip

		if importPlanPath != "" {
			plan, err := loadPlan(importPlanPath)
			if err != nil {
				return err
			}
			if plan.Jurisdiction != "" {
				jurisdiction = plan.Jurisdiction
			}
			if plan.DataDir != "" {
				datadir = plan.DataDir
			}
			if plan.DuplicateLinks != "" {
				policy = model.DupePolicy(plan.DuplicateLinks)
			}
			if len(plan.Types) > 0 {
				types = plan.Types
			}
			if len(plan.Skip) > 0 {
				skip = plan.Skip
			}
		}
		if importJurisdiction != "" {
			jurisdiction = importJurisdiction
		}
		if importDataDir != "" {
			datadir = importDataDir
		}

		if jurisdiction == "" {
			return eris.New("jurisdiction is required (--jurisdiction, plan file, or CIVIC_IMPORT_JURISDICTION)")
		}
		switch policy {
		case model.DupeError, model.DupeIgnore:
		default:
			return eris.Errorf("unknown duplicate link policy %q", policy)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		batches, err := loadBatches(ctx, datadir, cfg.Import.DecodeWorkers, policy)
		if err != nil {
			return err
		}
		batches = filterBatches(batches, types, skip)

		runner := merge.NewRunner(st, jurisdiction)
		runner.SkipKinds(excludedKinds(types, skip)...)
		reports, err := runner.Run(ctx, batches)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		formatReports(reports)
		zap.L().Info("import complete",
			zap.String("jurisdiction", jurisdiction),
			zap.String("datadir", datadir),
		)
		return nil
	},
}

func formatReports(reports map[string]*merge.Report) {
	kinds := make([]string, 0, len(reports))
	for k := range reports {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tINSERT\tUPDATE\tNOOP\tDELETED")
	for _, k := range kinds {
		r := reports[k]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", k, r.Insert, r.Update, r.Noop, r.Deleted)
	}
	_ = w.Flush()
}

func init() {
	importCmd.Flags().StringVar(&importPlanPath, "plan", "", "path to a YAML import plan")
	importCmd.Flags().StringVar(&importDataDir, "datadir", "", "directory of scraped *.json files (default from config)")
	importCmd.Flags().StringVar(&importJurisdiction, "jurisdiction", "", "jurisdiction id for this run (default from config)")
	importCmd.Flags().StringSliceVar(&importTypes, "types", nil, "only merge these entity kinds (others are left untouched)")
	importCmd.Flags().StringSliceVar(&importSkip, "skip", nil, "entity kinds to skip (left untouched, including stale cleanup)")
	rootCmd.AddCommand(importCmd)
}
