package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/surveus/surveus/internal/config"
	"github.com/surveus/surveus/internal/pipeline"
	"github.com/surveus/surveus/internal/storage"
)

// --- create ---

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Evaluate customers and provision surveys for the eligible ones",
	Long: `Evaluate every customer against the eligibility rules, generate a
personalized question set for each eligible one, provision a Google Form,
record it in the survey ledger, and email an invitation to customers who
opted into marketing and open their email.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, pipeline.ModeCreate)
	},
}

// --- fetch ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Collect submitted responses for all provisioned surveys",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, pipeline.ModeFetch)
	},
}

func runPipeline(cmd *cobra.Command, mode pipeline.Mode) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, string(mode))
	if err != nil {
		return err
	}
	defer a.Close()

	printStep("Running %s batch...", mode)
	report, err := a.runner.Run(ctx, mode)
	if err != nil {
		return err
	}

	printReport(report)
	if report.Failed > 0 {
		return fmt.Errorf("%d item(s) failed", report.Failed)
	}
	return nil
}

func printReport(report pipeline.Report) {
	for _, item := range report.Items {
		switch {
		case item.Err != nil:
			printError("%s: %s failed: %v", item.CustomerID, item.Stage, item.Err)
		case report.Mode == pipeline.ModeFetch:
			printSuccess("%s: %d response(s) collected", item.SurveyID, item.Responses)
		case !item.Eligible:
			printStatus("skipped", "%s (%s)", item.CustomerID, item.Reason)
		default:
			notified := "invitation suppressed"
			if item.Notified {
				notified = "invitation sent"
			}
			printSuccess("%s: survey %s (%s)", item.CustomerID, item.SurveyID, notified)
			for _, w := range item.Warnings {
				printWarning("%s: %v", item.CustomerID, w)
			}
		}
	}

	switch report.Mode {
	case pipeline.ModeCreate:
		printStatus("Created", "%d", report.Created)
		printStatus("Skipped", "%d", report.Skipped)
	case pipeline.ModeFetch:
		printStatus("Responses", "%d", report.Collected)
	}
	if report.Failed > 0 {
		printStatus("Failed", "%d", report.Failed)
	}
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Import customers from a JSON file",
	Long: `Import customers from a JSON file holding an array of customer
objects. Records without an email address are rejected; missing ids are
assigned.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		n, err := store.ImportCustomers(args[0])
		if err != nil {
			return err
		}

		printSuccess("Imported %d customer(s)", n)
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show surveus system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
		client := &http.Client{Timeout: 2 * time.Second}

		resp, err := client.Get(serverURL + "/health")
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				printStatus("Server", "running on port %d", cfg.Server.Port)
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}

		printStatus("Model", "%s", cfg.OpenAI.Model)
		printStatus("Operator", "%s", valueOrUnset(cfg.Google.OperatorEmail))
		printStatus("Sender", "%s", cfg.Resend.From)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			printError("storage error: %v", err)
			return nil
		}
		defer store.Close()

		customers, err := store.ListCustomers()
		if err == nil {
			printStatus("Customers", "%d", len(customers))
		}
		surveys, err := store.ListSurveys()
		if err == nil {
			printStatus("Surveys", "%d", len(surveys))
			active := 0
			for _, sv := range surveys {
				if sv.Status == "active" {
					active++
				}
			}
			printStatus("Active", "%d", active)
		}

		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	},
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
