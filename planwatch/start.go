package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mentorlounge/shared/message"
)

var (
	startTopic   string
	startGoal    string
	startNoWatch bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Request a new learning plan and follow the build",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVarP(&startTopic, "topic", "t", "", "Topic to build a plan for")
	startCmd.Flags().StringVarP(&startGoal, "goal", "g", "", "Optional learning goal")
	startCmd.Flags().BoolVar(&startNoWatch, "no-watch", false, "Print the session id and exit")
	startCmd.MarkFlagRequired("topic")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client := newClient(cfg)
	if err := preflight(cmd.Context(), client); err != nil {
		return err
	}
	resp, err := client.StartPlanBuild(cmd.Context(), message.StartPlanBuildRequest{Topic: startTopic, Goal: startGoal})
	if err != nil {
		return fmt.Errorf("start plan build: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.SessionID)
	if startNoWatch {
		return nil
	}
	return followOutcome(watchSession(cmd.Context(), cfg, log, resp.SessionID, resp.Message, cmd.OutOrStdout()))
}
