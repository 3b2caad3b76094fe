package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencivicdata/civic-import/internal/merge"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the merge order for the built-in entity kinds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rounds, err := merge.DefaultGraph().Sort()
		if err != nil {
			return err
		}
		for i, round := range rounds {
			fmt.Printf("round %d: %s\n", i+1, strings.Join(round, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
