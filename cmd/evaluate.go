package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attic-market/appraisal/internal/model"
)

var evaluateFile string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Appraise a single item",
	Long:  "Reads an item description from a JSON file, queries every enabled expert and price source, and prints the consolidated evaluation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := loadItem(evaluateFile)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		if cfg.Pipeline.TimeoutSecs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Pipeline.TimeoutSecs)*time.Second)
			defer cancel()
		}

		eval, err := env.Evaluator.Evaluate(ctx, *item)
		if err != nil {
			return eris.Wrap(err, "evaluate item")
		}

		zap.L().Info("evaluation finished",
			zap.String("id", eval.ID),
			zap.Int("experts_succeeded", eval.Experts.Succeeded),
			zap.Int("price_sources_succeeded", eval.PriceSources.Succeeded),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(eval)
	},
}

// loadItem reads one item record from a JSON file.
func loadItem(path string) (*model.Item, error) {
	if path == "" {
		return nil, eris.New("--file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read item file")
	}
	var item model.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, eris.Wrap(err, "parse item file")
	}
	if item.Title == "" {
		return nil, eris.New("item file has no title")
	}
	return &item, nil
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateFile, "file", "f", "", "path to item JSON file")
	rootCmd.AddCommand(evaluateCmd)
}
