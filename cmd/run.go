package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/prospectline/prospect-matcher/internal/coordinator"
	"github.com/prospectline/prospect-matcher/internal/logger"
	"github.com/prospectline/prospect-matcher/internal/prospects"
)

const (
	PromptReportByCompany = "Report matches by company"
	PromptRematch         = "Re-match one prospect"
	PromptDumpToFile      = "Dump matches to file"
	PromptExit            = "Exit"
	PromptBack            = "back"

	rematchWait = 2 * time.Minute
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReportByCompany, PromptRematch, PromptDumpToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Match every prospect from the prospects file and explore the results",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-exit", "y", false, "print the report and exit without the interactive prompt")
	runCmd.Flags().StringP("prospects-file", "p", "", "JSON file with prospects to match")

	viper.BindPFlag("prospects-file", runCmd.Flags().Lookup("prospects-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	log := newLogger()

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	log.Info("starting the prospect-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		log.Fatal("config is required")
	}

	prospectsFile := strings.TrimSpace(viper.GetString("prospects-file"))
	if prospectsFile == "" {
		prospectsFile = strings.TrimSpace(config.ProspectsFile)
	}
	if prospectsFile == "" {
		log.Fatal("a prospects file is required",
			zap.String("hint", "set prospects-file in the config or pass --prospects-file"),
		)
	}

	list, err := prospects.FromFile(prospectsFile)
	if err != nil {
		log.Fatal("loading prospects", zap.Error(err))
	}

	if err := list.Validate(); err != nil {
		log.Fatal("validating prospects", zap.Error(err))
	}

	log.Info("loaded prospects", zap.Int("count", list.Len()))

	if list.Len() == 0 {
		log.Info("exiting", zap.String("reason", "no prospects to match"))
		return
	}

	coord, matchCache, err := buildCoordinator(ctx, config, log)
	if err != nil {
		log.Fatal("building coordinator", zap.Error(err))
	}

	unsubscribe := coord.Subscribe(func(job coordinator.Job) {
		log.Debug("job transition",
			zap.String("job_id", job.ID),
			zap.String("prospect_id", job.ProspectID),
			zap.String("status", string(job.Status)),
			zap.Int("progress", job.Progress),
		)
	})
	defer unsubscribe()

	reqs := make([]prospects.MatchRequest, 0, list.Len())
	for _, req := range list.Items {
		reqs = append(reqs, *req)
	}

	ids, err := coord.StartBulk(ctx, reqs)
	if err != nil {
		log.Fatal("starting bulk matching", zap.Error(err))
	}

	log.Info("bulk matching started",
		zap.Int("jobs", len(ids)),
		zap.Int("cached_or_running", list.Len()-len(ids)),
	)

	waitForJobs(ctx, coord, ids)
	coord.CleanupCompleted()

	userID := strings.TrimSpace(viper.GetString("user-id"))
	if userID == "" {
		userID = config.UserID
	}
	results := matchCache.GetAllForUser(ctx, userID)

	log.Info("matching finished", zap.Int("prospects_with_matches", len(results)))

	autoExit := cmd.Flag("auto-exit").Value.String() == "true"
	for {
		action := PromptReportByCompany
		if !autoExit {
			var err error
			_, action, err = prompt.Run()
			if err != nil {
				log.Fatal("exiting", zap.Error(err))
			}
		}

		if err := handleAction(ctx, action, coord, list, results, log); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			log.Fatal("exiting", zap.Error(err))
		}

		if autoExit {
			return
		}

		// Re-read the cache so re-matches show up in subsequent reports.
		results = matchCache.GetAllForUser(ctx, userID)
	}
}

func handleAction(ctx context.Context, action string, coord *coordinator.Coordinator, list *prospects.List, results map[string][]prospects.Candidate, log *zap.Logger) error {
	switch action {
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(prospects.ReportByCompany(list, results), "", "  ")
		log.Info(string(pretty), zap.Int("prospects", list.Len()))
		return nil
	case PromptRematch:
		return rematch(ctx, coord, list, log)
	case PromptDumpToFile:
		filename, err := prospects.DumpToTmpFile(results)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		log.Info("dumping results to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		log.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func rematch(ctx context.Context, coord *coordinator.Coordinator, list *prospects.List, log *zap.Logger) error {
	items := make([]string, 0, list.Len())
	for _, req := range list.Items {
		items = append(items, fmt.Sprintf("%s %s / %s", req.ProspectID, req.Company, req.JobTitle))
	}

	prospectPrompt := promptui.Select{
		Label: "Choose a prospect and press ENTER",
		Items: append(items, PromptBack),
	}

	_, selected, err := prospectPrompt.Run()
	if err != nil {
		return err
	}

	if selected == PromptBack {
		return nil
	}

	prospectID := strings.Split(selected, " ")[0]
	req := list.FindByProspectID(prospectID)
	if req == nil {
		return fmt.Errorf("there is no such prospect id %s", prospectID)
	}

	jobID := coord.StartSingle(ctx, *req)
	log.Info("re-matching prospect",
		zap.String("prospect_id", prospectID),
		zap.String("job_id", jobID),
	)

	if !coord.WaitNavigable(ctx, jobID, rematchWait) {
		job, _ := coord.Status(jobID)
		return fmt.Errorf("re-matching %s failed: %s", prospectID, job.Err)
	}

	if job, ok := coord.Status(jobID); ok && job.Status == coordinator.StatusCompleted {
		log.Info("re-matching completed",
			zap.String("prospect_id", prospectID),
			zap.Int("matches", len(job.Matches)),
		)
	}

	return nil
}

// waitForJobs blocks until every listed job reaches a terminal state.
func waitForJobs(ctx context.Context, coord *coordinator.Coordinator, ids []string) {
	if len(ids) == 0 {
		return
	}

	var mu sync.Mutex
	remaining := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remaining[id] = struct{}{}
	}

	done := make(chan struct{})
	finish := func(id string) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := remaining[id]; !ok {
			return
		}
		delete(remaining, id)
		if len(remaining) == 0 {
			close(done)
		}
	}

	unsubscribe := coord.Subscribe(func(job coordinator.Job) {
		if job.Terminal() {
			finish(job.ID)
		}
	})
	defer unsubscribe()

	// Transitions may have landed before the subscription did.
	for _, id := range ids {
		if job, ok := coord.Status(id); ok && job.Terminal() {
			finish(id)
		}
	}

	mu.Lock()
	left := len(remaining)
	mu.Unlock()
	if left == 0 {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}
