package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"TdxBridge/internal/app"
	"TdxBridge/internal/config"
	"TdxBridge/internal/financial"
	"TdxBridge/internal/logging"
	"TdxBridge/internal/scheduler"
	"TdxBridge/internal/series"
)

var configPath string

var commands = []subcommands.Command{
	&syncCmd{},
	&financialCmd{},
	&dailyCmd{},
	&reportsCmd{},
	&runsCmd{},
}

// openApp loads the config and builds the App with logs on stderr.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return app.New(ctx, cfg, logger)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// run opens the App, calls fn and maps its error to an exit status.
func run(ctx context.Context, fn func(*app.App) error) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	if err := fn(a); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type syncCmd struct{}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "download financial report archives missing from the local cache" }
func (*syncCmd) Usage() string {
	return `tdxctl sync

  Lists the archives on the TDX finance server and downloads every one not
  yet cached under <data_dir>/T0002/hq_cache. Prints the sync result.
`
}
func (*syncCmd) SetFlags(*flag.FlagSet) {}

func (*syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app.App) error {
		res := a.Scheduler.SyncNow(ctx, scheduler.TriggerCLI)
		if err := printJSON(os.Stdout, res); err != nil {
			return err
		}
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		return nil
	})
}

type financialCmd struct {
	date   string
	symbol string
}

func (*financialCmd) Name() string     { return "financial" }
func (*financialCmd) Synopsis() string { return "print financial report rows from the local cache" }
func (*financialCmd) Usage() string {
	return `tdxctl financial [-d <report_date>] [-s <symbol>]

  Without -d the newest cached period holding matching rows is used.
`
}

func (c *financialCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Report period end date (YYYYMMDD or YYYY-MM-DD).")
	f.StringVar(&c.symbol, "s", "", "Stock code to filter by (substring match).")
}

func (c *financialCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app.App) error {
		res, err := a.Resolver.Resolve(ctx, financial.Query{ReportDate: c.date, Symbol: c.symbol})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s: %d rows (showing %d)\n", res.File, res.Total, len(res.Records))
		return printJSON(os.Stdout, res.Records)
	})
}

type dailyCmd struct {
	symbol string
	adjust string
	start  string
	end    string
}

func (*dailyCmd) Name() string     { return "daily" }
func (*dailyCmd) Synopsis() string { return "print the daily K-line series of a stock" }
func (*dailyCmd) Usage() string {
	return `tdxctl daily -s <symbol> [-a qfq|hfq|none] [-from <date>] [-to <date>]

  Without a date range only the most recent rows are printed.
`
}

func (c *dailyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Stock code, e.g. 000001 or sh600000.")
	f.StringVar(&c.adjust, "a", "", "Price adjustment (qfq, hfq, none). Defaults to the configured mode.")
	f.StringVar(&c.start, "from", "", "Inclusive start date.")
	f.StringVar(&c.end, "to", "", "Inclusive end date.")
}

func (c *dailyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		fmt.Fprintln(os.Stderr, "-s is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app.App) error {
		bars, err := a.Series.Daily(ctx, series.Query{Symbol: c.symbol, Adjust: c.adjust, StartDate: c.start, EndDate: c.end})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "date\topen\thigh\tlow\tclose\tvolume\t")
		for _, b := range bars {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.0f\t\n", b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		return w.Flush()
	})
}

type reportsCmd struct{}

func (*reportsCmd) Name() string           { return "reports" }
func (*reportsCmd) Synopsis() string       { return "list cached financial report periods, newest first" }
func (*reportsCmd) Usage() string          { return "tdxctl reports\n" }
func (*reportsCmd) SetFlags(*flag.FlagSet) {}

func (*reportsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app.App) error {
		periods, err := a.Store.Periods()
		if err != nil {
			return err
		}
		for _, p := range periods {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", p, financial.ArchiveName(p))
		}
		return nil
	})
}

type runsCmd struct {
	limit int
}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "show recorded sync passes" }
func (*runsCmd) Usage() string    { return "tdxctl runs [-n <limit>]\n" }

func (c *runsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 10, "Number of runs to show.")
}

func (c *runsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app.App) error {
		runs, err := a.Recorder.RecentSyncs(c.limit)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, runs)
	})
}
