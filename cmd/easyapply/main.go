// Command easyapply drives one job-application session.
//
// Usage:
//
//	easyapply -config easyapply.yaml            # run a session
//	easyapply -config easyapply.yaml -compose-only  # print the task text and exit
//	easyapply -config easyapply.yaml -summary   # print recent audit events and exit
//
// The operator signs into the job board manually in the opened browser
// window; the session starts once the login completes. The automation
// agent connects over MCP on stdio and drives the run through the
// exposed actions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/easyapply/actions"
	"github.com/hazyhaar/easyapply/audit"
	"github.com/hazyhaar/easyapply/browser"
	"github.com/hazyhaar/easyapply/config"
	"github.com/hazyhaar/easyapply/ledger"
	"github.com/hazyhaar/easyapply/resume"
	"github.com/hazyhaar/easyapply/session"
	"github.com/hazyhaar/easyapply/task"
)

func main() {
	configPath := flag.String("config", "easyapply.yaml", "path to the YAML configuration file")
	composeOnly := flag.Bool("compose-only", false, "print the composed task text and exit")
	summary := flag.Bool("summary", false, "print recent audit events and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// Stdout carries the MCP session; everything human-facing goes to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *composeOnly, *summary); err != nil {
		logger.Error("easyapply: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, composeOnly, summary bool) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	if summary {
		return runSummary(ctx, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	logger.Info("ledger loaded", "path", cfg.Ledger.Path, "applied", led.Len())

	prof, err := resume.Load(cfg.Resume.Path)
	if err != nil {
		return err
	}
	logger.Info("resume loaded", "path", prof.Path, "chars", len(prof.Text), "pages", prof.Pages)

	if composeOnly {
		spec, err := task.Compose(task.Params{
			Role:            cfg.Search.Role,
			Location:        cfg.Search.Location,
			MaxApplications: cfg.Search.MaxApplications,
			ResumeExcerpt:   prof.Excerpt(4000),
			AppliedIDs:      led.JobIDs(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, spec.Text)
		return nil
	}

	var auditLog *audit.Logger
	if cfg.Audit.Path != "" {
		auditLog, err = audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			return err
		}
		defer auditLog.Close()
	}

	mgr := browser.NewManager(browser.Config{
		Remote:     cfg.Browser.Remote,
		Headless:   cfg.Browser.Headless,
		NavTimeout: cfg.Browser.NavTimeout.Std(),
		Logger:     logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	tab, err := mgr.OpenTab(ctx, cfg.Auth.LoginURL)
	if err != nil {
		return err
	}
	defer tab.Close()
	logger.Info("login page opened, sign in manually in the browser window", "url", cfg.Auth.LoginURL)

	set := actions.NewSet(logger)
	tracker := set.BindLedger(led, auditLog)
	set.BindResume(prof)
	set.BindPage(tab, prof.Path)

	engine := session.NewMCPEngine(logger)
	engine.Model = cfg.LLM.Model
	engine.BaseURL = cfg.LLM.BaseURL

	driver := session.New(cfg, session.Deps{
		Ledger:  led,
		Resume:  prof,
		Actions: set,
		Tracker: tracker,
		Waiter: &browser.LoginWatcher{
			Tab:           tab,
			SuccessPrefix: cfg.Auth.SuccessPrefix,
		},
		Engine: engine,
		Audit:  auditLog,
		Logger: logger,
	})

	res, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("run finished", "applied", res.Applied, "skipped", res.Skipped, "summary", res.Summary)
	return nil
}

func runSummary(ctx context.Context, cfg *config.Config) error {
	if cfg.Audit.Path == "" {
		return fmt.Errorf("no audit.path configured")
	}
	auditLog, err := audit.Open(cfg.Audit.Path, nil)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	rows, err := auditLog.Recent(ctx, 50)
	if err != nil {
		return err
	}
	for _, r := range rows {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Printf("%s  %-18s %-8s %s  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Event, status, r.JobID, r.Detail)
	}
	return nil
}
