package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"agri-price-tracker/internal/analysis"
	"agri-price-tracker/internal/config"
	"agri-price-tracker/internal/database"
	"agri-price-tracker/internal/excel"
	"agri-price-tracker/internal/logger"
)

type options struct {
	Output    string  `long:"output" short:"o" description:"Report file (default: a timestamped file in OUTPUT_DIR)"`
	Method    string  `long:"method" default:"iqr" choice:"iqr" choice:"zscore" description:"Outlier rule for the console listing"`
	Threshold float64 `long:"threshold" description:"IQR multiplier or z-score cutoff (default 1.5 / 2.0)"`
	Top       int     `long:"top" default:"20" description:"Outliers to print"`
	NoReport  bool    `long:"no-report" description:"Print only, do not write a workbook"`
}

func main() {
	envErr := godotenv.Load()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Debug("No .env file found")
	}

	db, err := database.Initialize(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	ctx := context.Background()
	snap, err := database.NewPriceRepository(db, log).Snapshot(ctx)
	if err != nil {
		log.Fatalf("Failed to load stored data: %v", err)
	}

	now := time.Now()
	rep := analysis.Build(snap, now)

	method, _ := analysis.ParseMethod(opts.Method)
	outliers, err := analysis.DetectOutliers(snap.Prices, method, opts.Threshold)
	if err != nil {
		log.Fatalf("Outlier detection failed: %v", err)
	}

	fmt.Printf("%d price rows, %d items with a range, %d %s outliers\n",
		rep.Summary.PriceRows, len(rep.Range), len(outliers), method)
	for i, o := range outliers {
		if i >= opts.Top {
			break
		}
		fmt.Printf("  %-10s %-6s %-20s %10d  %-12s [%.0f, %.0f]\n",
			o.Date, o.ItemCode, o.ItemName, o.Price, o.Label, o.Lower, o.Upper)
	}

	if opts.NoReport {
		return
	}
	path := opts.Output
	if path == "" {
		path = excel.ReportPath(cfg.OutputDir, now)
	}
	if err := excel.WriteReport(path, rep); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	log.Infof("Report written: %s", path)
}
