package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/boskaart/internal/archive"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the render run archive",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived render runs, newest first",
	RunE:  runArchiveList,
}

var archiveSourceCmd = &cobra.Command{
	Use:   "source <id>",
	Short: "Print the survey GeoJSON of an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveSource,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveSourceCmd)

	archiveListCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	if err := viper.BindPFlag("archive_list.limit", archiveListCmd.Flags().Lookup("limit")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func openArchive() (*archive.Store, error) {
	path := viper.GetString("archive")
	if path == "" {
		return nil, fmt.Errorf("--archive is required for archive commands")
	}
	return archive.Open(path)
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(viper.GetInt("archive_list.limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSURVEY\tOUTPUT\tFORMAT\tTREES\tSPECIES\tSKIPPED")
	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.CreatedAt.Local().Format(time.DateTime),
			run.TreesPath,
			run.Output,
			run.Format,
			run.Trees,
			run.Species,
			run.Skipped,
		)
	}
	return w.Flush()
}

func runArchiveSource(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	source, err := store.Source(id)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	_, err = os.Stdout.Write(source)
	return err
}
