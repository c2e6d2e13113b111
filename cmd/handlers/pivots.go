package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"catcluster/internal/render"
)

// NewPivotsCmd creates the pivots command
func NewPivotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pivots",
		Short: "List the category trees the vector embedding is built from",
		Long: `Build one category tree per top-level category from every business in the
corpus and print them in embedding order. Each tree is one dimension of the
vec representation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			pivots, err := orch.Pivots()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.PivotTable(pivots.Pivots()))
			fmt.Fprintf(cmd.OutOrStdout(), "%d dimensions\n", pivots.Len())
			return nil
		},
	}
}
