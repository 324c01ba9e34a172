package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fedleads/harvester/internal/api"
	"github.com/fedleads/harvester/internal/app"
	"github.com/fedleads/harvester/internal/clock/system"
	"github.com/fedleads/harvester/internal/contracts"
	"github.com/fedleads/harvester/internal/httpclient"
	"github.com/fedleads/harvester/internal/pacing"
	"github.com/fedleads/harvester/internal/pipeline"
	"github.com/fedleads/harvester/internal/provider/sam"
	"github.com/fedleads/harvester/internal/provider/usaspending"
	"github.com/fedleads/harvester/internal/relevance"
)

func newAcquireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "acquire",
		Short: "Runs one acquisition sweep",
		Long: `Fetches recent contract opportunities for the configured regions and
category codes, falling back to the bulk award source when the primary
provider is unavailable, then stores the prioritized results.`,

		RunE: runAcquireCommand,
	}
}

func runAcquireCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config
	logger := appInstance.Logger

	var opsServer *api.Server
	if cfg.Server.Enabled {
		opsServer = api.NewServer(cfg.Server.Port, logger)
		go func() {
			if serveErr := opsServer.Start(); serveErr != nil {
				logger.Error("ops server stopped", zap.Error(serveErr))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutErr := opsServer.Shutdown(shutdownCtx); shutErr != nil {
				logger.Warn("ops server shutdown", zap.Error(shutErr))
			}
		}()
	}

	orchestrator := buildOrchestrator(appInstance)
	report, err := orchestrator.Acquire(cmd.Context(), pipeline.Config{
		Regions:                cfg.Acquire.Regions,
		CategoryCodes:          cfg.Acquire.CategoryCodes,
		LookbackDays:           cfg.Acquire.LookbackDays,
		SecondaryLookbackDays:  cfg.Acquire.SecondaryLookbackDays,
		MaxConsecutiveFailures: cfg.Acquire.MaxConsecutiveFailures,
		CredentialPresent:      cfg.SAM.APIKey != "",
	})
	if err != nil {
		return fmt.Errorf("acquisition run: %w", err)
	}
	if opsServer != nil {
		opsServer.SetReport(&report)
	}

	inserted, err := appInstance.Store.SaveContracts(cmd.Context(), report.RunID, report.Contracts)
	if err != nil {
		return fmt.Errorf("persist contracts: %w", err)
	}

	if appInstance.Publisher != nil {
		payload, marshalErr := json.Marshal(report)
		if marshalErr != nil {
			return fmt.Errorf("encode run report: %w", marshalErr)
		}
		msgID, pubErr := appInstance.Publisher.Publish(cmd.Context(), cfg.Publisher.Topic, payload)
		if pubErr != nil {
			logger.Warn("publish run report", zap.Error(pubErr))
		} else {
			logger.Info("run report published", zap.String("message_id", msgID))
		}
	}

	printSummary(report, inserted)
	return nil
}

func buildOrchestrator(appInstance *app.App) *pipeline.Orchestrator {
	cfg := appInstance.Config
	logger := appInstance.Logger
	clk := system.Clock{}
	sleeper := contracts.TimerSleeper{}

	httpClient := httpclient.New(httpclient.Config{
		MaxRetries: cfg.HTTP.MaxRetries,
		BaseDelay:  cfg.HTTP.BaseDelay,
		MaxDelay:   cfg.HTTP.MaxDelay,
		Timeout:    cfg.HTTP.Timeout,
		HostRPS:    cfg.HTTP.HostRPS,
		HostBurst:  cfg.HTTP.HostBurst,
	}, sleeper, logger)

	pacer := pacing.New(pacing.Config{
		MinDelay:            cfg.Pacing.MinDelay,
		MaxDelay:            cfg.Pacing.MaxDelay,
		WideRegionThreshold: cfg.Pacing.WideRegionThreshold,
		WideScale:           cfg.Pacing.WideScale,
	}, sleeper, rand.New(rand.NewSource(time.Now().UnixNano())))

	classifier := relevance.NewClassifier(relevance.Config{
		PrimaryCode:  cfg.Relevance.PrimaryCode,
		RelatedCodes: cfg.Relevance.RelatedCodes,
		SectorPrefix: cfg.Relevance.SectorPrefix,
		Keywords:     cfg.Relevance.Keywords,
		RelatedCap:   cfg.Relevance.RelatedCap,
		GeneralCap:   cfg.Relevance.GeneralCap,
	})

	primary := sam.New(httpClient, sam.Config{
		BaseURL:  cfg.SAM.BaseURL,
		APIKey:   cfg.SAM.APIKey,
		PageSize: cfg.SAM.PageSize,
		PageCap:  cfg.SAM.PageCap,
	}, pacer, appInstance.Archive, clk, logger)

	secondary := usaspending.New(httpClient, usaspending.Config{
		BaseURL:  cfg.USASpending.BaseURL,
		PageSize: cfg.USASpending.PageSize,
	}, classifier, appInstance.Archive, clk, logger)

	return pipeline.New(primary, secondary, classifier, clk, logger)
}

func printSummary(report pipeline.Report, inserted int) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("run %s finished in %s\n", report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	fmt.Printf("  contracts:     %d (%d new)\n", len(report.Contracts), inserted)
	fmt.Printf("  primary:       %d\n", report.PrimaryCount)
	fmt.Printf("  dedup dropped: %d\n", report.DedupDropped)
	if report.FellBack {
		color.Yellow("  fell back to the bulk award source")
	}
	if report.CredentialErr != "" {
		color.Red("  credential failure: %s", report.CredentialErr)
	}
}
