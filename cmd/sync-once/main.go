package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/noah-isme/assignment-sync/internal/bootstrap"
	"github.com/noah-isme/assignment-sync/internal/cli"
	"github.com/noah-isme/assignment-sync/internal/dto"
	"github.com/noah-isme/assignment-sync/internal/sheets"
	"github.com/noah-isme/assignment-sync/pkg/config"
	"github.com/noah-isme/assignment-sync/pkg/logger"
)

func main() {
	var (
		mode       = pflag.StringP("mode", "m", "all", "sync mode: all, future, dry-run or refresh")
		tabs       = pflag.StringSliceP("tab", "t", nil, "limit the sync to these sheet tabs (repeatable)")
		clearTab   = pflag.String("clear", "", "clear the rows of one class tab and exit")
		clearAll   = pflag.Bool("clear-all", false, "clear the rows of every class tab and exit")
		dump       = pflag.Bool("dump", false, "save a raw dump of the sheet tabs and exit")
		maxRows    = pflag.Int("max-rows", sheets.DefaultDumpRows, "row limit per tab for -dump")
		issueToken = pflag.String("issue-token", "", "print an operator token for this name and exit")
		reportPDF  = pflag.String("report", "", "write a PDF report of the sync to this file under the output dir")
	)
	pflag.Parse()

	if err := run(*mode, *tabs, *clearTab, *clearAll, *dump, *maxRows, *issueToken, *reportPDF); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(mode string, tabs []string, clearTab string, clearAll, dump bool, maxRows int, issueToken, reportPDF string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Log.Format == "" || cfg.Log.Format == "json" {
		cfg.Log.Format = "console"
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.BuildDependencies(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer deps.Close()

	switch {
	case issueToken != "":
		token, expiresAt, err := deps.Auth.IssueToken(issueToken)
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "Token expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
		return nil

	case clearAll || clearTab != "":
		report, err := deps.Sync.Clear(ctx, dto.ClearRequest{ClassName: clearTab, All: clearAll})
		if err != nil {
			return err
		}
		cli.PrintClear(os.Stdout, report)
		return nil

	case dump:
		data, err := deps.Sync.DumpTabs(ctx, dto.DumpRequest{MaxRows: maxRows})
		if err != nil {
			return err
		}
		fmt.Printf("Saved sheet dump to %s\n", sheets.DumpResponseFile)
		fmt.Printf("Spreadsheet: %v (%v)\n", valueOr(data, "spreadsheetName"), valueOr(data, "spreadsheetId"))
		return nil
	}

	opts, err := deps.Sync.ResolveOptions(dto.SyncRequest{Mode: mode, Tabs: tabs})
	if err != nil {
		return err
	}

	fmt.Printf("Using endpoint: %s\n", cfg.Sheet.APIURL)
	outcome, err := deps.Sync.Run(ctx, opts)
	if err != nil {
		return err
	}
	cli.PrintOutcome(os.Stdout, outcome, deps.Outputs.Dir(), sheets.SyncResponseFile)

	if reportPDF != "" {
		var buf bytes.Buffer
		if err := deps.Exports.WriteReport(&buf, outcome); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		path, err := deps.Outputs.SaveStream(reportPDF, &buf)
		if err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		fmt.Printf("Saved PDF report to %s\n", path)
	}
	return nil
}

func valueOr(data map[string]interface{}, key string) interface{} {
	if v, ok := data[key]; ok && v != nil && strings.TrimSpace(fmt.Sprint(v)) != "" {
		return v
	}
	return "unknown"
}
