package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/export"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect recorded attendance",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list --event <id>",
	Short: "List attendance of an event",
	Args:  cobra.NoArgs,
	RunE:  runAttendanceList,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export --event <id> --out <file.parquet>",
	Short: "Export attendance of an event to Parquet",
	Args:  cobra.NoArgs,
	RunE:  runAttendanceExport,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd, attendanceExportCmd)

	attendanceCmd.PersistentFlags().String("event", "", "Event ID (required)")
	_ = attendanceCmd.MarkPersistentFlagRequired("event")
	attendanceExportCmd.Flags().String("out", "", "Output file (required)")
	_ = attendanceExportCmd.MarkFlagRequired("out")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListAttendance(ctx, facematch.CanonicalID(mustGetString(cmd, "event")))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VOLUNTEER\tCONFIDENCE\tSOURCE\tMARKED AT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%.3f\t%s\t%s\n", r.VolunteerID, r.Confidence, r.Source, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d volunteers\n", len(records))
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()
	out := mustGetString(cmd, "out")

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListAttendance(ctx, facematch.CanonicalID(mustGetString(cmd, "event")))
	if err != nil {
		return err
	}
	if err := export.WriteFile(out, records); err != nil {
		return err
	}
	fmt.Printf("Wrote %d records to %s\n", len(records), out)
	return nil
}
