package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check tuning, resources and scenario without running",
	Long: `Load every config, validate it and seed a throwaway world from the
scenario. Sites whose reservation would be denied are reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := loadConfigs(paths, logger)
		if err != nil {
			return err
		}
		_, sum, err := buildWorld(cfg, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ok: resources=%d recipes=%d teams=%d civilians=%d nodes=%d sites=%d buildings=%d\n",
			len(cfg.catalog.Keys()), len(cfg.catalog.Recipes), len(cfg.scenario.Teams),
			sum.Civilians, sum.Nodes, sum.Sites, sum.Buildings)
		for _, key := range sum.DeniedSites {
			fmt.Fprintf(out, "warning: site %s cannot reserve its costs from starting stock\n", key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
