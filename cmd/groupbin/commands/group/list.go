package group

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/cli/output"
	"github.com/metorm/groupBin/internal/cli/timeutil"
	"github.com/metorm/groupBin/pkg/store/models"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all groups",
	Long: `List all groups in the metadata store, including expired ones
that reclamation has not removed yet.

Examples:
  # List groups as table
  groupbin group list

  # List as JSON
  groupbin group list -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// GroupList is a list of groups for table rendering.
type GroupList []*models.Group

// Headers implements TableRenderer.
func (gl GroupList) Headers() []string {
	return []string{"ID", "NAME", "CREATED", "EXPIRES", "PROTECTED", "READONLY"}
}

// Rows implements TableRenderer.
func (gl GroupList) Rows() [][]string {
	now := time.Now()
	rows := make([][]string, 0, len(gl))
	for _, g := range gl {
		rows = append(rows, []string{
			g.ID,
			g.Name,
			g.CreatedAt.Local().Format(timeutil.LocalTimeFormat),
			timeutil.Expiry(g.ExpiresAt, now),
			yesNo(g.HasPassword()),
			yesNo(g.IsReadonly),
		})
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	st, err := openStores(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	groups, err := st.db.ListGroups(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, groups)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, groups)
	default:
		if len(groups) == 0 {
			fmt.Println("No groups found.")
			return nil
		}
		return output.PrintTable(os.Stdout, GroupList(groups))
	}
}
