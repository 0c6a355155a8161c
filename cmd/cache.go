package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	invalidateSource string
	invalidateMatch  string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the evaluation cache",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Cache.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("sweep complete", zap.Int("removed", n))
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Delete cache entries by source or key substring",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Cache.Invalidate(cmd.Context(), invalidateSource, invalidateMatch)
		if err != nil {
			return err
		}
		zap.L().Info("invalidate complete",
			zap.String("source", invalidateSource),
			zap.String("match", invalidateMatch),
			zap.Int("removed", n),
		)
		return nil
	},
}

func init() {
	cacheInvalidateCmd.Flags().StringVar(&invalidateSource, "source", "", "restrict to entries from one source")
	cacheInvalidateCmd.Flags().StringVar(&invalidateMatch, "match", "", "restrict to keys containing this substring")
	cacheCmd.AddCommand(cacheSweepCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
