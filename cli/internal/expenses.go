package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/tally/internal/api"
	"github.com/devilmonastery/tally/internal/domain/entities"
)

func newExpensesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "expenses",
		Aliases: []string{"expense"},
		Short:   "Manage expenses",
	}

	cmd.AddCommand(newExpensesListCommand())
	cmd.AddCommand(newExpensesShowCommand())
	cmd.AddCommand(newExpensesCreateCommand())
	cmd.AddCommand(newExpensesUpdateCommand())
	cmd.AddCommand(newExpensesDeleteCommand())

	return cmd
}

func newExpensesListCommand() *cobra.Command {
	var (
		group string
		page  int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List expenses",
		RunE: func(cmd *cobra.Command, args []string) error {
			expenses, err := getCliContext(cmd).API.Expenses.List(cmd.Context(), api.ListOptions{
				Group: entities.ID(group),
				Page:  page,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(expenses) == 0 {
				fmt.Fprintln(out, "No expenses found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTITLE\tAMOUNT\tPAID BY\tGROUP")
			for _, e := range expenses {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Title, e.Amount, e.PaidByName, e.GroupName)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Only show expenses of this group")
	cmd.Flags().IntVar(&page, "page", 0, "Page number")

	return cmd
}

func newExpensesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show EXPENSE_ID",
		Short: "Show an expense and how it is split",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			expense, err := cc.API.Expenses.Get(cmd.Context(), entities.ID(args[0]))
			if err != nil {
				return err
			}
			printMarkdown(cmd.OutOrStdout(), cc, expenseMarkdown(expense))
			return nil
		},
	}
}

func expenseMarkdown(e *entities.ExpenseDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", e.Title)
	if e.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", e.Description)
	}
	fmt.Fprintf(&b, "**Amount:** %s  \n", e.Amount)
	fmt.Fprintf(&b, "**Date:** %s  \n", e.Date)
	fmt.Fprintf(&b, "**Group:** %s  \n", e.GroupName)
	fmt.Fprintf(&b, "**Paid by:** %s  \n", e.PaidByName)
	if e.Category != nil {
		fmt.Fprintf(&b, "**Category:** %s  \n", e.Category.Name)
	}
	fmt.Fprintf(&b, "**Split:** %s\n\n", e.SplitType)

	b.WriteString("| Participant | Share |\n|---|---|\n")
	for _, p := range e.Participants {
		fmt.Fprintf(&b, "| %s | %s |\n", p.UserName, p.Amount)
	}
	return b.String()
}

// parseParticipants turns "ID" or "ID=VALUE" flags into shares. VALUE is the
// amount, percentage or share count depending on split.
func parseParticipants(entries []string, split entities.SplitType) ([]entities.ParticipantShare, error) {
	shares := make([]entities.ParticipantShare, 0, len(entries))
	for _, entry := range entries {
		idStr, value, hasValue := strings.Cut(entry, "=")
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid participant %q: user id must be a number", entry)
		}

		share := entities.ParticipantShare{UserID: id}
		if split != entities.SplitEqual {
			if !hasValue {
				return nil, fmt.Errorf("participant %q needs a value for a %s split (ID=VALUE)", entry, split)
			}
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				return nil, fmt.Errorf("invalid participant %q: %q is not a number", entry, value)
			}
			switch split {
			case entities.SplitUnequal:
				share.Amount = json.Number(value)
			case entities.SplitPercentage:
				share.Percentage = json.Number(value)
			case entities.SplitShares:
				share.Shares = json.Number(value)
			}
		}
		shares = append(shares, share)
	}
	return shares, nil
}

func newExpensesCreateCommand() *cobra.Command {
	var (
		group        string
		paidBy       int64
		title        string
		description  string
		amount       string
		split        string
		category     int64
		date         string
		participants []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record an expense",
		Long: `Record an expense in a group.

Examples:
  # Split a dinner equally between three members
  tally expenses create --group 7f0c... --paid-by 1 --title Dinner --amount 90.00 -P 1 -P 2 -P 3

  # Split a taxi by percentage
  tally expenses create --group 7f0c... --paid-by 2 --title Taxi --amount 30 --split percentage -P 1=25 -P 2=75`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseFloat(amount, 64); err != nil {
				return fmt.Errorf("invalid --amount %q", amount)
			}
			splitType := entities.SplitType(split)
			if !splitType.Valid() {
				return fmt.Errorf("invalid --split %q: must be equal, unequal, percentage or shares", split)
			}
			shares, err := parseParticipants(participants, splitType)
			if err != nil {
				return err
			}
			if date == "" {
				date = time.Now().Format("2006-01-02")
			}

			data := entities.CreateExpenseData{
				Group:        entities.ID(group),
				PaidBy:       paidBy,
				Title:        title,
				Description:  description,
				Amount:       json.Number(amount),
				SplitType:    splitType,
				Date:         date,
				Participants: shares,
			}
			if cmd.Flags().Changed("category") {
				data.Category = &category
			}

			expense, err := getCliContext(cmd).API.Expenses.Create(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded %q for %s (%s)\n", expense.Title, expense.Amount, expense.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Group ID")
	cmd.Flags().Int64Var(&paidBy, "paid-by", 0, "User ID of the payer")
	cmd.Flags().StringVar(&title, "title", "", "Expense title")
	cmd.Flags().StringVar(&description, "description", "", "Expense description")
	cmd.Flags().StringVar(&amount, "amount", "", "Total amount, e.g. 42.50")
	cmd.Flags().StringVar(&split, "split", string(entities.SplitEqual), "Split type (equal, unequal, percentage, shares)")
	cmd.Flags().Int64Var(&category, "category", 0, "Category ID")
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (default today)")
	cmd.Flags().StringArrayVarP(&participants, "participant", "P", nil, "Participant as ID or ID=VALUE (repeatable)")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("paid-by")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func newExpensesUpdateCommand() *cobra.Command {
	var (
		title       string
		description string
		amount      string
		category    int64
		date        string
	)

	cmd := &cobra.Command{
		Use:   "update EXPENSE_ID",
		Short: "Change fields of an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data entities.UpdateExpenseData
			flags := cmd.Flags()
			if flags.Changed("title") {
				data.Title = &title
			}
			if flags.Changed("description") {
				data.Description = &description
			}
			if flags.Changed("amount") {
				if _, err := strconv.ParseFloat(amount, 64); err != nil {
					return fmt.Errorf("invalid --amount %q", amount)
				}
				n := json.Number(amount)
				data.Amount = &n
			}
			if flags.Changed("category") {
				data.Category = &category
			}
			if flags.Changed("date") {
				data.Date = &date
			}
			if data == (entities.UpdateExpenseData{}) {
				return fmt.Errorf("nothing to update")
			}

			expense, err := getCliContext(cmd).API.Expenses.Update(cmd.Context(), entities.ID(args[0]), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated %q\n", expense.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&amount, "amount", "", "New total amount")
	cmd.Flags().Int64Var(&category, "category", 0, "New category ID")
	cmd.Flags().StringVar(&date, "date", "", "New date as YYYY-MM-DD")

	return cmd
}

func newExpensesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete EXPENSE_ID",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := getCliContext(cmd).API.Expenses.Delete(cmd.Context(), entities.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Expense deleted")
			return nil
		},
	}
}
