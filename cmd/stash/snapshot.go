package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stashd/stash/internal/output"
	"github.com/stashd/stash/internal/persistence"
	"github.com/stashd/stash/internal/resource"
)

// inspectReport is the full inspect result for json/yaml output.
type inspectReport struct {
	Path      string            `json:"path" yaml:"path"`
	Version   int               `json:"version" yaml:"version"`
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
	Live      int               `json:"live" yaml:"live"`
	Expired   int               `json:"expired" yaml:"expired"`
	Entries   []output.EntryRow `json:"entries" yaml:"entries"`
}

// buildInspectReport flattens a decoded snapshot into display rows,
// classifying each entry as live or expired relative to now.
func buildInspectReport(path string, snap *persistence.Snapshot, now time.Time) inspectReport {
	report := inspectReport{
		Path:      path,
		Version:   snap.Version,
		Timestamp: snap.Timestamp,
	}
	for _, se := range snap.Entries {
		row := output.EntryRow{
			Key:  se.Key,
			Type: resource.TypeOf(se.Key),
			ID:   resource.IDOf(se.Key),
			Live: true,
			Tags: se.Tags,
		}
		if se.ExpiresAt != 0 {
			expiresAt := time.UnixMilli(se.ExpiresAt)
			row.Expires = expiresAt.UTC().Format(time.RFC3339)
			row.Live = expiresAt.After(now)
		}
		if row.Live {
			report.Live++
		} else {
			report.Expired++
		}
		report.Entries = append(report.Entries, row)
	}
	return report
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Decode a snapshot file and list its entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := persistence.NewStore(cfg.SnapshotPath(), nil)
			snap, err := store.Read()
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no snapshot at %s", store.Path())
				}
				return err
			}

			report := buildInspectReport(store.Path(), snap, time.Now())

			format := output.ParseFormat(outputFormat)
			printer := output.NewPrinter(format)
			if format != output.FormatTable {
				return printer.Print(report)
			}

			fmt.Printf("Snapshot: %s (version %d, written %s)\n", report.Path, report.Version, report.Timestamp)
			fmt.Printf("Entries: %d live, %d expired\n\n", report.Live, report.Expired)
			return printer.PrintEntries(report.Entries)
		},
	}
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Rewrite the snapshot, dropping expired entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := persistence.NewStore(cfg.SnapshotPath(), nil)
			entries, stats := store.Restore()
			if stats.Restored == 0 && stats.Expired == 0 {
				fmt.Printf("Nothing to prune at %s\n", store.Path())
				return nil
			}

			if err := store.Save(entries); err != nil {
				return err
			}
			fmt.Printf("Pruned %s: kept %d, dropped %d expired\n", store.Path(), stats.Restored, stats.Expired)
			return nil
		},
	}
}

func pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved snapshot file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Println(cfg.SnapshotPath())
			return nil
		},
	}
}
