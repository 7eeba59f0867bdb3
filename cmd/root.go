/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assessment-workflow",
	Short: "Assessment review workflow API server",
	Long: `Assessment Workflow is a REST API server for the digital readiness
assessment lifecycle: drafting axis scores, peer review with quorum,
approval, versioned snapshots and threaded axis discussions.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default: search in current directory, ./config, or $HOME/.assessment-workflow)")
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}
