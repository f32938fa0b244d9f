package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage event galleries",
}

var galleryImportCmd = &cobra.Command{
	Use:   "import --event <id> <file.json>",
	Short: "Seed an event gallery from a JSON file",
	Long: `Store precomputed descriptors for an event. The file holds a JSON list:

  [{"volunteer_id": "v-001", "descriptor": [0.12, -0.03, ...]}, ...]

A volunteer that is already enrolled gets the new descriptor.`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryImport,
}

var galleryRemoveCmd = &cobra.Command{
	Use:   "remove --event <id> <volunteer-id>...",
	Short: "Remove volunteers from an event gallery",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGalleryRemove,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryImportCmd, galleryRemoveCmd)

	galleryCmd.PersistentFlags().String("event", "", "Event ID (required)")
	_ = galleryCmd.MarkPersistentFlagRequired("event")
}

func runGalleryImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	var items []attendance.GalleryItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := attendance.ImportGallery(ctx, store, mustGetString(cmd, "event"), items)
	if res != nil {
		for _, r := range res.Rejected {
			fmt.Printf("  rejected %q: %s\n", r.VolunteerID, r.Reason)
		}
		fmt.Printf("Imported %d of %d entries\n", res.Imported, len(items))
	}
	return err
}

func runGalleryRemove(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()
	eventID := facematch.CanonicalID(mustGetString(cmd, "event"))

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, v := range args {
		if err := store.DeleteEntry(ctx, eventID, facematch.CanonicalID(v)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", v, err)
		}
		fmt.Printf("Removed %s\n", v)
	}
	return nil
}
