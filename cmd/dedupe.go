package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attic-market/appraisal/internal/dedupe"
	"github.com/attic-market/appraisal/internal/model"
)

var (
	dedupeFile      string
	dedupeThreshold float64
	dedupeKeep      bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find near-duplicate items in a batch",
	Long:  "Reads a JSON array of items and reports near-duplicate groups, or with --prune prints the batch with duplicates removed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := loadItems(dedupeFile)
		if err != nil {
			return err
		}

		threshold := dedupeThreshold
		if threshold == 0 {
			threshold = cfg.Dedupe.Threshold
		}

		result := dedupe.RemoveDuplicates(items, threshold)
		zap.L().Info("dedupe complete",
			zap.Int("items", len(items)),
			zap.Int("groups", len(result.Groups)),
			zap.Int("duplicates", len(result.Duplicates)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if dedupeKeep {
			return enc.Encode(result.Unique)
		}
		return enc.Encode(result)
	},
}

// loadItems reads a JSON array of item records.
func loadItems(path string) ([]model.Item, error) {
	if path == "" {
		return nil, eris.New("--file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read items file")
	}
	var items []model.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, eris.Wrap(err, "parse items file")
	}
	return items, nil
}

func init() {
	dedupeCmd.Flags().StringVarP(&dedupeFile, "file", "f", "", "path to items JSON file")
	dedupeCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 0, "similarity threshold (default from config)")
	dedupeCmd.Flags().BoolVar(&dedupeKeep, "prune", false, "print the batch with duplicates removed instead of the group report")
	rootCmd.AddCommand(dedupeCmd)
}
