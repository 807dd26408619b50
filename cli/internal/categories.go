package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List expense categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := getCliContext(cmd).API.Categories.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOLOR")
			for _, c := range categories {
				fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Color)
			}
			return w.Flush()
		},
	}
}

func newActivitiesCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "activity",
		Aliases: []string{"activities"},
		Short:   "Show recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			activities, err := getCliContext(cmd).API.Activities.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(activities) == 0 {
				fmt.Fprintln(out, "No activity yet")
				return nil
			}
			if limit > 0 && len(activities) > limit {
				activities = activities[:limit]
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "WHEN\tWHO\tWHAT")
			for _, a := range activities {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.Timestamp.Local().Format("2006-01-02 15:04"), a.User.Name(), a.Action)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries (0 for all)")

	return cmd
}
