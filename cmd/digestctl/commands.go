package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"digest-backend/internal/bootstrap"
	"digest-backend/internal/extract"
	"digest-backend/internal/ingest"
	"digest-backend/internal/notify"
	"digest-backend/internal/scheduler"
	"digest-backend/internal/shared/config"
	"digest-backend/internal/shared/telemetry"
	"digest-backend/internal/summarize"
)

// buildApp is replaced in tests.
var buildApp = func(ctx context.Context) (*bootstrap.App, error) {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel, "console")
	return bootstrap.Build(ctx, cfg)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "digestctl",
		Short:         "Operate the PDF digest pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSummarizeCommand(),
		newScanCommand(),
		newSweepCommand(),
		newSendCommand(),
		newJobsCommand(),
	)
	return root
}

func newSummarizeCommand() *cobra.Command {
	var sentences, messages int
	var method string

	cmd := &cobra.Command{
		Use:   "summarize <file.pdf>",
		Short: "Extract and summarize a local PDF without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := summarize.Method(strings.ToLower(method))
			if m != summarize.MethodLexRank && m != summarize.MethodTextRank {
				return errors.Newf("unknown method %q", method)
			}
			text, err := extract.TextFromFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			engine := summarize.Engine{SentenceCount: sentences, MaxMessages: messages, Method: m}
			printDigest(engine.Process(text, filepath.Base(args[0])))
			return nil
		},
	}
	cmd.Flags().IntVar(&sentences, "sentences", summarize.DefaultSentenceCount, "Sentences in the summary")
	cmd.Flags().IntVar(&messages, "messages", summarize.DefaultMaxMessages, "Maximum key messages")
	cmd.Flags().StringVar(&method, "method", string(summarize.MethodLexRank), "Ranking method (lexrank or textrank)")
	return cmd
}

func newScanCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan one tenant's folder and summarize new PDFs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(tenantID) == "" {
				return errors.New("--tenant is required")
			}
			app, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := app.Ingest.Tenant(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			printScan(app.Ingest.Scan(cmd.Context(), t))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id")
	return cmd
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Scan every tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			report := app.Ingest.ScanAll(cmd.Context())
			for _, s := range report.Scans {
				printScan(s)
			}
			for _, e := range report.Errors {
				pterm.Error.Printf("%s: %s\n", e.TenantID, e.Message)
			}
			pterm.Info.Printf("%d tenants, %d processed, %d skipped\n", report.Tenants, report.Processed, report.Skipped)
			return nil
		},
	}
}

func newSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send-digests",
		Short: "Publish the weekly digest for every tenant now",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			printResults(app.Notify.SendDigests(cmd.Context()))
			return nil
		},
	}
}

func newJobsCommand() *cobra.Command {
	var mode, tz string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show the jobs a schedule mode registers and when they fire next",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return err
			}
			s := scheduler.New()
			noop := func(context.Context) error { return nil }
			if err := scheduler.RegisterMode(s, mode, scheduler.Jobs{Scan: noop, Summaries: noop}, loc); err != nil {
				return err
			}
			printJobs(s.List())
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", scheduler.ModeWeekly, "Schedule mode (weekly, test or none)")
	cmd.Flags().StringVar(&tz, "timezone", "UTC", "IANA timezone for weekly triggers")
	return cmd
}

func printDigest(d summarize.Digest) {
	pterm.DefaultSection.Println(d.Title)
	pterm.Println(d.Summary)
	if len(d.KeyMessages) == 0 {
		return
	}
	items := make([]pterm.BulletListItem, 0, len(d.KeyMessages))
	for _, m := range d.KeyMessages {
		items = append(items, pterm.BulletListItem{Level: 0, Text: m})
	}
	_ = pterm.DefaultBulletList.WithItems(items).Render()
}

func printScan(r ingest.ScanReport) {
	if r.OK() {
		pterm.Success.Printf("%s: %d candidates, %d processed, %d skipped\n", r.TenantID, r.Candidates, r.Processed, r.Skipped)
		return
	}
	pterm.Warning.Printf("%s: %d candidates, %d processed, %d skipped, %d errors\n", r.TenantID, r.Candidates, r.Processed, r.Skipped, len(r.Errors))
	for _, e := range r.Errors {
		pterm.Printf("  %s [%s] %s\n", pterm.LightRed(e.Item), e.Kind, e.Message)
	}
}

func printResults(results []notify.Result) {
	data := pterm.TableData{{"Tenant", "Status", "Message"}}
	for _, r := range results {
		status := pterm.Green("sent")
		switch {
		case !r.Success:
			status = pterm.Red("failed")
		case r.Skipped:
			status = pterm.Yellow("skipped")
		}
		data = append(data, []string{r.TenantID, status, r.Message})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printJobs(jobs []scheduler.JobInfo) {
	if len(jobs) == 0 {
		pterm.Info.Println("no jobs scheduled")
		return
	}
	data := pterm.TableData{{"ID", "Name", "Next run", "Trigger"}}
	for _, j := range jobs {
		data = append(data, []string{j.ID, j.Name, j.NextRunTime.Format(time.RFC3339), j.Trigger})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
