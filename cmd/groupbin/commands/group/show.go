package group

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/bytesize"
	"github.com/metorm/groupBin/internal/cli/output"
	"github.com/metorm/groupBin/internal/cli/timeutil"
	"github.com/metorm/groupBin/pkg/store/models"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "Show group details",
	Long: `Show detailed information about a group and its files.

Examples:
  # Show group details as table
  groupbin group show 1a2b3c4d

  # Show as JSON
  groupbin group show 1a2b3c4d -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// GroupDetail wraps a group for field/value table rendering.
type GroupDetail struct {
	group *models.Group
}

// Headers implements TableRenderer.
func (gd GroupDetail) Headers() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements TableRenderer.
func (gd GroupDetail) Rows() [][]string {
	g := gd.group
	creator := g.Creator
	if creator == "" {
		creator = "-"
	}
	var totalSize int64
	for i := range g.Files {
		totalSize += g.Files[i].Size
	}

	return [][]string{
		{"ID", g.ID},
		{"Name", g.Name},
		{"Created", g.CreatedAt.Local().Format(timeutil.LocalTimeFormat)},
		{"Expires", timeutil.Expiry(g.ExpiresAt, time.Now())},
		{"Lifetime", fmt.Sprintf("%dh", g.CreatedDurationHours)},
		{"Creator", creator},
		{"Protected", yesNo(g.HasPassword())},
		{"Readonly", yesNo(g.IsReadonly)},
		{"Files", fmt.Sprintf("%d", len(g.Files))},
		{"Total size", bytesize.ByteSize(totalSize).String()},
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	id := args[0]

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	st, err := openStores(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	g, err := st.db.GetGroupWithFiles(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, g)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, g)
	}

	if err := output.PrintTable(os.Stdout, GroupDetail{group: g}); err != nil {
		return err
	}

	if len(g.Files) > 0 {
		fmt.Println()
		files := output.NewTableData("FILE ID", "FILENAME", "SIZE", "VERSIONS", "UPLOADED")
		for i := range g.Files {
			f := &g.Files[i]
			files.AddRow(
				f.ID,
				f.OriginalFilename,
				bytesize.ByteSize(f.Size).String(),
				fmt.Sprintf("%d", len(f.Versions)),
				f.UploadedAt.Local().Format(timeutil.LocalTimeFormat),
			)
		}
		if err := output.PrintTable(os.Stdout, files); err != nil {
			return err
		}
	}

	return nil
}
