package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/IPFiling-Assistant/pkg/client"
)

type applicationListView struct {
	Items []client.Application
	Total int
	// single prints one application instead of a list.
	single bool
}

func (v applicationListView) JSONValue() interface{} {
	if v.single && len(v.Items) == 1 {
		return v.Items[0]
	}
	return client.ApplicationList{Items: v.Items, Total: v.Total}
}

func (v applicationListView) TableHeaders() []string {
	return []string{"ID", "OWNER", "TYPE", "STEP", "SCORE", "VERSION", "UPDATED"}
}

func (v applicationListView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Items))
	for _, a := range v.Items {
		rows = append(rows, []string{
			a.ID, a.OwnerID, a.FilingType, strconv.Itoa(a.Step), strconv.Itoa(a.Score),
			strconv.Itoa(a.Version), a.UpdatedAt.Format(time.RFC3339),
		})
	}
	return rows
}

func (v applicationListView) String() string {
	if len(v.Items) == 0 {
		return "no applications"
	}
	var b strings.Builder
	for i, a := range v.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "application %s (%s, owner %s) step %d, score %d, version %d",
			a.ID, a.FilingType, a.OwnerID, a.Step, a.Score, a.Version)
	}
	if !v.single {
		fmt.Fprintf(&b, "\n%d total", v.Total)
	}
	return b.String()
}

// NewApplicationCmd groups the saved application commands.
func NewApplicationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "application",
		Aliases: []string{"applications", "app"},
		Short:   "Manage saved applications on a running server",
	}

	cmd.AddCommand(
		newApplicationListCmd(),
		newApplicationGetCmd(),
		newApplicationResumeCmd(),
		newApplicationDeleteCmd(),
	)

	return cmd
}

func newApplicationListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			list, err := c.Applications().List(ctx, owner)
			if err != nil {
				return err
			}
			return PrintResult(cmd, applicationListView{Items: list.Items, Total: list.Total})
		},
	}

	cmd.Flags().StringVar(&owner, "for", "", "list another owner's applications (admin only)")
	return cmd
}

func newApplicationGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <application-id>",
		Short: "Show a saved application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			a, err := c.Applications().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, applicationListView{Items: []client.Application{*a}, Total: 1, single: true})
		},
	}
}

func newApplicationResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <application-id>",
		Short: "Open a new session from a saved application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			s, err := c.Applications().Resume(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, sessionView{s})
		},
	}
}

func newApplicationDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <application-id>",
		Short: "Delete a saved application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := remote(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			if err := c.Applications().Delete(ctx, args[0]); err != nil {
				return err
			}
			PrintSuccess(cmd, "application "+args[0]+" deleted")
			return nil
		},
	}
}

//Personal.AI order the ending
