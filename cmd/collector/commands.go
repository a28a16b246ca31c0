package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"agri-price-tracker/internal/analysis"
	"agri-price-tracker/internal/config"
	"agri-price-tracker/internal/database"
	"agri-price-tracker/internal/excel"
	"agri-price-tracker/internal/models"
	"agri-price-tracker/internal/services/kamis"
)

func (a *app) openRepository() (*database.PriceRepository, *gorm.DB, error) {
	db, err := database.Initialize(a.cfg.DatabaseURL, a.log)
	if err != nil {
		return nil, nil, err
	}
	return database.NewPriceRepository(db, a.log), db, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type collectCommand struct {
	app *app

	ClsCode string `long:"cls-code" description:"Price class: 01 retail, 02 wholesale (overrides the catalog)"`
	Workers int    `long:"workers" description:"Concurrent trend requests (overrides COLLECT_WORKERS)"`
	Mode    string `long:"mode" default:"upsert" choice:"upsert" choice:"insert-ignore" description:"What to do with rows that already exist"`
	NoExcel bool   `long:"no-excel" description:"Skip the workbook export"`
}

func (c *collectCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	return c.run(ctx)
}

func (c *collectCommand) run(ctx context.Context) error {
	cfg, log := c.app.cfg, c.app.log
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode, err := database.ParseSaveMode(c.Mode)
	if err != nil {
		return err
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	if c.ClsCode != "" {
		catalog.ProductClsCode = c.ClsCode
	}

	collectorCfg := kamis.NewCollectorConfig(cfg, catalog)
	if c.Workers > 0 {
		collectorCfg.Workers = c.Workers
	}
	clientCfg := kamis.DefaultClientConfig()
	clientCfg.Timeout = cfg.RequestTimeout

	collector := kamis.NewCollector(collectorCfg, catalog, kamis.NewClient(clientCfg, log), log)

	started := time.Now()
	result, err := collector.Collect(ctx)
	if err != nil {
		log.Errorf("Collection aborted: %v", err)
		printRunSummary(&models.CollectionRun{Status: models.RunStatusPartialError, ErrorCount: 1}, nil, time.Since(started))
		return nil
	}

	repo, db, err := c.app.openRepository()
	if err != nil {
		return err
	}
	defer database.Close(db)

	run, err := repo.SaveCollection(ctx, database.Batch{
		Prices:  result.Daily,
		Monthly: result.Monthly,
		Yearly:  result.Yearly,
	}, mode)
	if err != nil {
		return err
	}

	if !c.NoExcel {
		wb := excel.NewWorkbook(cfg.OutputDir, log)
		if _, err := wb.SavePrices(result.Daily, mode); err != nil {
			log.Errorf("Workbook export failed: %v", err)
		} else {
			log.Infof("Workbook updated: %s", wb.Path())
		}
	}

	printRunSummary(run, result.Failures, time.Since(started))
	return nil
}

func printRunSummary(run *models.CollectionRun, failures []kamis.Failure, elapsed time.Duration) {
	fmt.Println("==================== collection summary ====================")
	if run.RunID != "" {
		fmt.Printf("run id:             %s\n", run.RunID)
	}
	fmt.Printf("status:             %s\n", run.Status)
	fmt.Printf("fetched:            %d\n", run.TotalFetched)
	fmt.Printf("inserted:           %d\n", run.NewInserted)
	fmt.Printf("updated:            %d\n", run.Updated)
	fmt.Printf("duplicates skipped: %d\n", run.DuplicatesSkipped)
	fmt.Printf("errors:             %d\n", run.ErrorCount)
	fmt.Printf("failed requests:    %d\n", len(failures))
	for _, f := range failures {
		fmt.Printf("  - %s %s: %s\n", f.Stage, f.ItemCode, f.Error)
	}
	fmt.Printf("elapsed:            %s\n", elapsed.Round(time.Millisecond))
}

type analyzeCommand struct {
	app *app

	Output string `long:"output" short:"o" description:"Report file (default: a timestamped file in OUTPUT_DIR)"`
}

func (c *analyzeCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	return c.run(ctx)
}

func (c *analyzeCommand) run(ctx context.Context) error {
	repo, db, err := c.app.openRepository()
	if err != nil {
		return err
	}
	defer database.Close(db)

	path, rep, err := writeReport(ctx, repo, c.Output, c.app.cfg.OutputDir)
	if err != nil {
		return err
	}

	s := rep.Summary
	c.app.log.Infof("Report written: %s", path)
	fmt.Printf("price rows: %d (priced %d), monthly: %d, yearly: %d, products: %d\n",
		s.PriceRows, s.PricedRows, s.MonthlyRows, s.YearlyRows, s.ProductCount)
	fmt.Printf("outliers: iqr %d, z-score %d\n", s.IQROutliers, s.ZScoreOutliers)
	return nil
}

func writeReport(ctx context.Context, repo *database.PriceRepository, path, outputDir string) (string, *analysis.Report, error) {
	snap, err := repo.Snapshot(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load stored data: %w", err)
	}
	now := time.Now()
	if path == "" {
		path = excel.ReportPath(outputDir, now)
	}
	rep := analysis.Build(snap, now)
	if err := excel.WriteReport(path, rep); err != nil {
		return "", nil, err
	}
	return path, rep, nil
}

type allCommand struct {
	collect collectCommand
	analyze analyzeCommand

	ClsCode string `long:"cls-code" description:"Price class: 01 retail, 02 wholesale (overrides the catalog)"`
	Workers int    `long:"workers" description:"Concurrent trend requests (overrides COLLECT_WORKERS)"`
	Mode    string `long:"mode" default:"upsert" choice:"upsert" choice:"insert-ignore" description:"What to do with rows that already exist"`
	NoExcel bool   `long:"no-excel" description:"Skip the workbook export"`
}

// forward hands the collect flags to the wrapped collect command.
func (c *allCommand) forward() {
	c.collect.ClsCode = c.ClsCode
	c.collect.Workers = c.Workers
	c.collect.Mode = c.Mode
	c.collect.NoExcel = c.NoExcel
}

func (c *allCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c.forward()
	if err := c.collect.run(ctx); err != nil {
		return err
	}
	return c.analyze.run(ctx)
}

type statusCommand struct {
	app *app
}

func (c *statusCommand) Execute(args []string) error {
	ctx := context.Background()
	repo, db, err := c.app.openRepository()
	if err != nil {
		return err
	}
	defer database.Close(db)

	stats, err := repo.Statistics(ctx)
	if err != nil {
		return err
	}
	products, err := repo.Products(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("database:       %s (%s)\n", c.app.cfg.DatabaseURL, database.DriverFor(c.app.cfg.DatabaseURL))
	fmt.Printf("price rows:     %d\n", stats.TotalRecords)
	fmt.Printf("items:          %d\n", stats.UniqueItems)
	if stats.MinDate != "" {
		fmt.Printf("date range:     %s .. %s\n", stats.MinDate, stats.MaxDate)
	}
	fmt.Printf("monthly points: %d\n", stats.MonthlyPoints)
	fmt.Printf("yearly points:  %d\n", stats.YearlyPoints)
	if stats.LastRun != nil {
		fmt.Printf("last run:       %s %s\n", stats.LastRun.CreatedAt.Format("2006-01-02 15:04:05"), stats.LastRun.Status)
	}

	fmt.Printf("\nproducts (%d):\n", len(products))
	for _, p := range products {
		fmt.Printf("  %-6s %-20s %s\n", p.Code, p.Name, p.Unit)
	}
	return nil
}

type historyCommand struct {
	app *app

	Limit int `long:"limit" short:"n" default:"10" description:"Number of runs to show"`
}

func (c *historyCommand) Execute(args []string) error {
	repo, db, err := c.app.openRepository()
	if err != nil {
		return err
	}
	defer database.Close(db)

	runs, err := repo.CollectionHistory(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no collection runs recorded")
		return nil
	}

	fmt.Printf("%-36s  %-19s  %7s  %8s  %7s  %10s  %6s  %s\n",
		"run id", "created at", "fetched", "inserted", "updated", "duplicates", "errors", "status")
	for _, r := range runs {
		fmt.Printf("%-36s  %-19s  %7d  %8d  %7d  %10d  %6d  %s\n",
			r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.TotalFetched,
			r.NewInserted, r.Updated, r.DuplicatesSkipped, r.ErrorCount, r.Status)
	}
	return nil
}

type daemonCommand struct {
	app *app

	Interval time.Duration `long:"interval" default:"24h" description:"Time between collection runs"`
	Analyze  bool          `long:"analyze" description:"Write the analysis report after every run"`
	Mode     string        `long:"mode" default:"upsert" choice:"upsert" choice:"insert-ignore" description:"What to do with rows that already exist"`
	NoExcel  bool          `long:"no-excel" description:"Skip the workbook export"`
}

// Execute collects once immediately, then on every tick until interrupted.
func (c *daemonCommand) Execute(args []string) error {
	if err := c.app.cfg.Validate(); err != nil {
		return err
	}
	if c.Interval < time.Minute {
		return fmt.Errorf("interval %s is shorter than one minute", c.Interval)
	}

	ctx, cancel := signalContext()
	defer cancel()

	collect := collectCommand{app: c.app, Mode: c.Mode, NoExcel: c.NoExcel}
	analyze := analyzeCommand{app: c.app}
	log := c.app.log

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for iteration := 1; ; iteration++ {
		log.WithField("iteration", iteration).Info("Collection run starting")
		if err := collect.run(ctx); err != nil {
			log.Errorf("Collection run failed: %v", err)
		} else if c.Analyze {
			if err := analyze.run(ctx); err != nil {
				log.Errorf("Analysis failed: %v", err)
			}
		}
		log.Infof("Next run in %s", c.Interval)

		select {
		case <-ctx.Done():
			log.Info("Shutting down daemon")
			return nil
		case <-ticker.C:
		}
	}
}
