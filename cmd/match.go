package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/extractor"
)

var matchCmd = &cobra.Command{
	Use:   "match --event <id> photo...",
	Short: "Mark attendance from group photos",
	Long: `Extract faces from one or more group photos, match them against the
event gallery and record attendance for every recognized volunteer.

All photos are matched together, so a volunteer appearing in several photos
is counted once. Use --dry-run to see the matches without recording them.

Examples:
  face-attendance match --event spring-cleanup photos/*.jpg
  face-attendance match --event spring-cleanup --threshold 0.7 --dry-run group.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("event", "", "Event ID (required)")
	matchCmd.Flags().Float64("threshold", 0, "Similarity threshold in (0, 1) (default from MATCH_THRESHOLD)")
	matchCmd.Flags().Bool("dry-run", false, "Match only, do not record attendance")
	matchCmd.Flags().Bool("json", false, "Print the full result as JSON")
	_ = matchCmd.MarkFlagRequired("event")
}

func readPhotos(paths []string) ([][]byte, error) {
	photos := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		if !extractor.IsSupported(data) {
			return nil, fmt.Errorf("%s: unsupported image type", p)
		}
		photos = append(photos, data)
	}
	return photos, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()
	dryRun := mustGetBool(cmd, "dry-run")

	photos, err := readPhotos(args)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := attendance.NewService(store, extractor.NewClient(cfg.Embedding), cfg.Matching, cfg.Embedding.Timeout)
	if err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Extracting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	resp, err := svc.Bulk(ctx, attendance.BulkRequest{
		EventID:   mustGetString(cmd, "event"),
		Photos:    photos,
		Threshold: optionalFloat64(cmd, "threshold"),
		DryRun:    dryRun,
		OnImage:   func(int) { _ = bar.Add(1) },
	})
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printMatchSummary(resp, args, dryRun)
	if len(resp.Failed) > 0 {
		return errors.New("some attendance records could not be written")
	}
	return nil
}

func printMatchSummary(resp *attendance.BulkResponse, paths []string, dryRun bool) {
	fmt.Printf("Event %s, threshold %.2f\n", resp.EventID, resp.Threshold)
	fmt.Printf("Faces: %d, matched: %d, unmatched: %d\n",
		resp.TotalFaces, resp.MatchesFound, len(resp.UnmatchedFaces))

	for _, ex := range resp.ExcludedImages {
		fmt.Printf("  skipped %s: %s (%s)\n", filepath.Base(paths[ex.Index]), ex.Reason, ex.Kind)
	}
	for _, s := range resp.SkippedEntries {
		fmt.Printf("  gallery entry %s ignored: %s\n", s.VolunteerID, s.Reason)
	}

	if dryRun {
		fmt.Println("\nMatches (dry run, nothing recorded):")
		for _, m := range resp.Matches {
			fmt.Printf("  %-24s %.3f  face %s\n", m.VolunteerID, m.Score, m.FaceID)
		}
		return
	}

	fmt.Println("\nAttendance:")
	for _, o := range resp.AttendanceMarked {
		status := "marked"
		switch {
		case o.Upgraded:
			status = "upgraded"
		case o.AlreadyMarked:
			status = "already marked"
		}
		fmt.Printf("  %-24s %.3f  %s\n", o.VolunteerID, o.Confidence, status)
	}
	for _, f := range resp.Failed {
		fmt.Printf("  %-24s FAILED: %s\n", f.VolunteerID, f.Reason)
	}
	if resp.Dropped > 0 {
		fmt.Printf("  %d matches not recorded (interrupted)\n", resp.Dropped)
	}
}
