package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/tally/internal/domain/entities"
)

func newGroupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Manage expense groups",
	}

	cmd.AddCommand(newGroupsListCommand())
	cmd.AddCommand(newGroupsShowCommand())
	cmd.AddCommand(newGroupsCreateCommand())
	cmd.AddCommand(newGroupsMembersCommand())
	cmd.AddCommand(newGroupsInviteCommand())
	cmd.AddCommand(newGroupsInvitesCommand())
	cmd.AddCommand(newGroupsRemoveMemberCommand())

	return cmd
}

func newGroupsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := getCliContext(cmd).API.Groups.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No groups found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMEMBERS\tCURRENCY")
			for _, g := range groups {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", g.ID, g.Name, len(g.Members), g.Currency)
			}
			return w.Flush()
		},
	}
}

func newGroupsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show GROUP_ID",
		Short: "Show a group with balances and recent expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			group, err := cc.API.Groups.Get(cmd.Context(), entities.ID(args[0]))
			if err != nil {
				return err
			}
			printMarkdown(cmd.OutOrStdout(), cc, groupMarkdown(group))
			return nil
		},
	}
}

func groupMarkdown(g *entities.GroupDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", g.Name)
	if g.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", g.Description)
	}
	fmt.Fprintf(&b, "**Total spent:** %s %s  \n", g.TotalExpenses, g.Currency)
	fmt.Fprintf(&b, "**Your balance:** %s %s\n\n", g.YourBalance, g.Currency)

	b.WriteString("## Members\n\n")
	b.WriteString("| Name | Email | Balance |\n|---|---|---|\n")
	for _, m := range g.Members {
		name := m.Name()
		if m.IsAdmin {
			name += " (admin)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", name, m.Email, m.Balance)
	}

	if len(g.RecentExpenses) > 0 {
		b.WriteString("\n## Recent expenses\n\n")
		for _, e := range g.RecentExpenses {
			fmt.Fprintf(&b, "- %s **%s** %s %s (paid by %s)\n", e.Date, e.Description, e.Amount, e.Currency, e.CreatedBy.Name())
		}
	}
	return b.String()
}

func newGroupsCreateCommand() *cobra.Command {
	var data entities.CreateGroupData

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := getCliContext(cmd).API.Groups.Create(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created group %q (%s)\n", group.Name, group.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&data.Name, "name", "", "Group name")
	cmd.Flags().StringVar(&data.Description, "description", "", "Group description")
	cmd.Flags().StringVar(&data.Currency, "currency", "", "Currency code, e.g. USD")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newGroupsMembersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "members GROUP_ID",
		Short: "List the members of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := getCliContext(cmd).API.Groups.Members(cmd.Context(), entities.ID(args[0]))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tADMIN")
			for _, m := range members {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", m.ID, m.Name(), m.Email, m.IsAdmin)
			}
			return w.Flush()
		},
	}
}

func newGroupsInviteCommand() *cobra.Command {
	var email, message string

	cmd := &cobra.Command{
		Use:   "invite GROUP_ID",
		Short: "Invite someone to a group by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invite, err := getCliContext(cmd).API.Groups.Invite(cmd.Context(), entities.ID(args[0]), email, message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Invited %s (%s)\n", invite.Email, invite.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address to invite")
	cmd.Flags().StringVar(&message, "message", "", "Personal message included in the invite")
	cmd.MarkFlagRequired("email")

	return cmd
}

func newGroupsInvitesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invites GROUP_ID",
		Short: "List pending and past invites of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invites, err := getCliContext(cmd).API.Groups.Invites(cmd.Context(), entities.ID(args[0]))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tSTATUS\tEXPIRES")
			for _, inv := range invites {
				fmt.Fprintf(w, "%s\t%s\t%s\n", inv.Email, inv.Status, inv.ExpiresAt.Local().Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

func newGroupsRemoveMemberCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member GROUP_ID MEMBER_ID",
		Short: "Remove a member from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid member id %q", args[1])
			}
			if err := getCliContext(cmd).API.Groups.RemoveMember(cmd.Context(), entities.ID(args[0]), memberID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Member removed")
			return nil
		},
	}
}
