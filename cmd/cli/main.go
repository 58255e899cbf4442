package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budgetbook/internal/domain"
	"github.com/dvloznov/budgetbook/internal/fx"
	"github.com/dvloznov/budgetbook/internal/gcsarchive"
	infraBQ "github.com/dvloznov/budgetbook/internal/infra/bigquery"
	"github.com/dvloznov/budgetbook/internal/logger"
	"github.com/dvloznov/budgetbook/internal/reconcile"
	"github.com/dvloznov/budgetbook/internal/report"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "report":
		runReport(log)
	case "reconcile":
		runReconcile(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Budgetbook CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  report     Build a workspace report and print it as JSON")
	fmt.Println("  reconcile  Reconcile an account against an asserted balance")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

type deps struct {
	client  *bigquery.Client
	builder *report.Builder
	engine  *reconcile.Engine
}

func buildDeps(ctx context.Context, project, dataset string, log zerolog.Logger) *deps {
	if project == "" || dataset == "" {
		log.Fatal().Msg("Error: --project and --dataset are required (or BQ_PROJECT/BQ_DATASET)")
	}
	cfg := infraBQ.Config{ProjectID: project, DatasetID: dataset}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}

	accounts := infraBQ.NewAccountRepositoryWithClient(client, cfg)
	transactions := infraBQ.NewTransactionRepositoryWithClient(client, cfg)
	ledger := infraBQ.NewLedgerRepositoryWithClient(client, cfg)
	fxCache := infraBQ.NewFxCacheRepositoryWithClient(client, cfg)

	resolver := fx.NewResolver(fx.NewERAPIProvider(), fxCache, fx.Config{})
	builder := report.NewBuilder(accounts, transactions, ledger, resolver)
	engine := reconcile.NewEngine(accounts, transactions, builder)

	return &deps{
		client:  client,
		builder: builder,
		engine:  engine,
	}
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	workspace := fs.String("workspace", "", "workspace id")
	period := fs.String("period", "this-month", "window preset (this-month, last-month, 3-months, 6-months, 12-months, all)")
	start := fs.String("start", "", "explicit window start (YYYY-MM-DD, overrides -period with -end)")
	end := fs.String("end", "", "explicit window end (YYYY-MM-DD)")
	currency := fs.String("currency", "", "reporting currency (ISO code)")
	project := fs.String("project", os.Getenv("BQ_PROJECT"), "BigQuery project id")
	dataset := fs.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset id")
	bucket := fs.String("archive", "", "GCS bucket to archive the report to (optional)")
	fs.Parse(os.Args[2:])

	if *workspace == "" || *currency == "" {
		log.Fatal().Msg("Error: --workspace and --currency are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	d := buildDeps(ctx, *project, *dataset, log)
	defer d.client.Close()

	var (
		window report.Window
		err    error
	)
	if *start != "" || *end != "" {
		var s, e civil.Date
		if s, err = civil.ParseDate(*start); err != nil {
			log.Fatal().Err(err).Msg("Invalid --start date")
		}
		if e, err = civil.ParseDate(*end); err != nil {
			log.Fatal().Err(err).Msg("Invalid --end date")
		}
		window, err = report.CustomWindow(s, e)
	} else {
		window, err = report.ResolveWindow(report.Period(*period), time.Now())
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid window")
	}

	rep, err := d.builder.BuildReport(ctx, *workspace, window, domain.NormalizeCurrency(*currency))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build report")
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}
	fmt.Println(string(out))

	if *bucket != "" {
		uri, err := gcsarchive.NewArchiver(*bucket).ArchiveReport(ctx, rep, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to archive report")
		}
		log.Info().Str("uri", uri).Msg("Report archived")
	}
}

func runReconcile(log zerolog.Logger) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	account := fs.String("account", "", "account id")
	balance := fs.Float64("balance", 0, "asserted actual balance in the account's base currency")
	project := fs.String("project", os.Getenv("BQ_PROJECT"), "BigQuery project id")
	dataset := fs.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset id")
	fs.Parse(os.Args[2:])

	if *account == "" {
		log.Fatal().Msg("Error: --account is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	d := buildDeps(ctx, *project, *dataset, log)
	defer d.client.Close()

	result, err := d.engine.Reconcile(ctx, *account, *balance)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	log.Info().
		Bool("adjustment_created", result.AdjustmentCreated).
		Float64("delta", result.Delta).
		Msg("Reconciliation complete")
}
