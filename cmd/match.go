package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prospectline/prospect-matcher/internal/coordinator"
	"github.com/prospectline/prospect-matcher/internal/prospects"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a single prospect given on the command line",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("prospect-id", "", "id of the saved prospect")
	matchCmd.Flags().String("company", "", "company the prospect belongs to")
	matchCmd.Flags().String("title", "", "job title of the prospect")
	matchCmd.Flags().String("location", "", "optional location")
	matchCmd.Flags().String("query", "", "optional free-text query")

	matchCmd.MarkFlagRequired("prospect-id")
	matchCmd.MarkFlagRequired("company")
	matchCmd.MarkFlagRequired("title")
}

func match(cmd *cobra.Command) {
	ctx := context.Background()

	log := newLogger()

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	req := prospects.MatchRequest{
		ProspectID: cmd.Flag("prospect-id").Value.String(),
		Company:    cmd.Flag("company").Value.String(),
		JobTitle:   cmd.Flag("title").Value.String(),
		Location:   cmd.Flag("location").Value.String(),
		Query:      cmd.Flag("query").Value.String(),
	}

	coord, _, err := buildCoordinator(ctx, config, log)
	if err != nil {
		log.Fatal("building coordinator", zap.Error(err))
	}

	jobID := coord.StartSingle(ctx, req)
	log.Info("matching started",
		zap.String("prospect_id", req.ProspectID),
		zap.String("job_id", jobID),
	)

	waitForJobs(ctx, coord, []string{jobID})

	job, ok := coord.Status(jobID)
	if !ok {
		log.Fatal("job disappeared before completion", zap.String("job_id", jobID))
	}

	if job.Status == coordinator.StatusError {
		log.Fatal("matching failed", zap.String("error", job.Err))
	}

	pretty, _ := json.MarshalIndent(job.Matches, "", "  ")
	fmt.Println(string(pretty))

	log.Info("matching completed", zap.Int("matches", len(job.Matches)))
}
