package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dafibh/spendbook/internal/app"
	"github.com/dafibh/spendbook/internal/budget"
	"github.com/dafibh/spendbook/internal/client"
	"github.com/dafibh/spendbook/internal/config"
	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/ledger"
	"github.com/dafibh/spendbook/internal/repository/storage"
	"github.com/dafibh/spendbook/internal/util"
	"github.com/dafibh/spendbook/internal/view"
	"github.com/dafibh/spendbook/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const usage = `Usage: spend <command> [flags]

Commands:
  list     show expenses (-note, -category, -from, -to, -month)
  add      record an expense (-amount, -category, -date, -note, -recurring)
  edit     change an expense (-id, any of the add flags, -clear-note)
  delete   remove an expense (-id, -yes)
  report   monthly report (-month YYYY-MM, -prev)
  budget   show or set the monthly budget (-set N)
  export   write a backup (-o FILE.json|FILE.xlsx|s3://bucket/key)
  import   load a backup into this session (-i FILE|s3://bucket/key)
  watch    follow changes made by other clients
`

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if os.Getenv("SPEND_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	c := &cli{
		controller: newController(cfg),
		renderer:   view.NewRenderer(cfg.CurrencySymbol),
		stdin:      bufio.NewReader(stdin),
		stdout:     stdout,
	}

	commands := map[string]func(context.Context, []string) error{
		"list":   c.list,
		"add":    c.add,
		"edit":   c.edit,
		"delete": c.delete,
		"report": c.report,
		"budget": c.budget,
		"export": c.export,
		"import": c.importFile,
		"watch":  c.watch,
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stdout, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	c.controller.Refresh(ctx)
	if err := cmd(ctx, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stdout, view.UserMessage(err))
		return 1
	}
	return 0
}

func newController(cfg *config.ClientConfig) *app.Controller {
	opener := func(ctx context.Context, bucket string) (storage.BackupRepository, error) {
		s3cfg := cfg.S3
		s3cfg.Bucket = bucket
		return storage.NewS3BackupRepository(ctx, s3cfg)
	}
	return app.NewController(
		client.New(cfg.APIURL),
		budget.NewStore(cfg.BudgetFile),
		cfg.Categories,
		app.WithBackups(opener),
	)
}

type cli struct {
	controller *app.Controller
	renderer   *view.Renderer
	stdin      *bufio.Reader
	stdout     io.Writer
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	note := fs.String("note", "", "case-insensitive note search")
	category := fs.String("category", "", "one of "+strings.Join(c.controller.Categories(), ", "))
	from := fs.String("from", "", "first date, YYYY-MM-DD")
	to := fs.String("to", "", "last date, YYYY-MM-DD")
	month := fs.String("month", "", "limit to one month, YYYY-MM")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filters := ledger.Filters{Note: *note, Category: *category}
	if *month != "" {
		year, m, err := util.ParseMonth(*month)
		if err != nil {
			return err
		}
		first, last := util.MonthBounds(year, m)
		start, end := domain.DateOf(first), domain.DateOf(last)
		filters.Start, filters.End = &start, &end
	}
	if *from != "" {
		d, err := domain.ParseDate(*from)
		if err != nil {
			return err
		}
		filters.Start = &d
	}
	if *to != "" {
		d, err := domain.ParseDate(*to)
		if err != nil {
			return err
		}
		filters.End = &d
	}

	fmt.Fprintln(c.stdout, c.renderer.ExpenseTable(c.controller.View(filters)))
	fmt.Fprintln(c.stdout)
	c.printOverview()
	return nil
}

func (c *cli) printOverview() {
	summary := c.controller.Summary()
	fmt.Fprintln(c.stdout, c.renderer.Summary(summary))
	if chart := c.renderer.CategoryChart(summary); chart != "" {
		fmt.Fprintln(c.stdout)
		fmt.Fprintln(c.stdout, chart)
	}
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, c.renderer.Budget(c.controller.BudgetStatus()))
}

// expenseFlags registers the editable fields on fs
type expenseFlags struct {
	amount    *string
	category  *string
	date      *string
	note      *string
	recurring *bool
}

func registerExpenseFlags(fs *flag.FlagSet, categories []string) expenseFlags {
	return expenseFlags{
		amount:    fs.String("amount", "", "amount spent"),
		category:  fs.String("category", "", "one of "+strings.Join(categories, ", ")),
		date:      fs.String("date", "", "date spent, YYYY-MM-DD (default today)"),
		note:      fs.String("note", "", "optional note"),
		recurring: fs.Bool("recurring", false, "mark as recurring"),
	}
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	f := registerExpenseFlags(fs, c.controller.Categories())
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(*f.amount))
	if err != nil {
		return domain.ErrInvalidAmount
	}
	input := app.ExpenseInput{
		Amount:    amount,
		Category:  *f.category,
		Note:      *f.note,
		Recurring: *f.recurring,
	}
	if *f.date != "" {
		if input.Date, err = domain.ParseDate(*f.date); err != nil {
			return domain.ErrDateRequired
		}
	}

	saved, err := c.controller.Add(ctx, input)
	if err != nil {
		return err
	}
	if saved == nil {
		fmt.Fprintln(c.stdout, "The expense could not be saved.")
		return nil
	}
	fmt.Fprintln(c.stdout, c.renderer.ExpenseTable([]domain.Expense{*saved}))
	fmt.Fprintln(c.stdout, c.renderer.Budget(c.controller.BudgetStatus()))
	return nil
}

func (c *cli) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	id := fs.String("id", "", "id of the expense to change")
	clearNote := fs.Bool("clear-note", false, "remove the note")
	f := registerExpenseFlags(fs, c.controller.Categories())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return domain.ErrIDRequired
	}

	var patch domain.ExpensePatch
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if set["amount"] {
		amount, err := decimal.NewFromString(strings.TrimSpace(*f.amount))
		if err != nil {
			return domain.ErrInvalidAmount
		}
		patch.Amount = &amount
	}
	if set["category"] {
		patch.Category = f.category
	}
	if set["date"] {
		d, err := domain.ParseDate(*f.date)
		if err != nil {
			return domain.ErrDateRequired
		}
		patch.Date = &d
	}
	if set["note"] {
		patch.Note = f.note
	} else if *clearNote {
		patch.ClearNote = true
	}
	if set["recurring"] {
		patch.Recurring = f.recurring
	}

	updated, err := c.controller.Edit(ctx, *id, patch)
	if err != nil {
		return err
	}
	if updated == nil {
		fmt.Fprintln(c.stdout, "The expense could not be updated.")
		return nil
	}
	fmt.Fprintln(c.stdout, c.renderer.ExpenseTable([]domain.Expense{*updated}))
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	id := fs.String("id", "", "id of the expense to delete")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return domain.ErrIDRequired
	}

	if !*yes {
		fmt.Fprint(c.stdout, "Delete this expense? [y/N] ")
		answer, _ := c.stdin.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			return nil
		}
	}

	ok, err := c.controller.Delete(ctx, *id)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(c.stdout, "Deleted.")
	}
	return nil
}

func (c *cli) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	month := fs.String("month", time.Now().Format(util.MonthLayout), "month to report, YYYY-MM")
	prev := fs.Bool("prev", false, "report the month before -month")
	if err := fs.Parse(args); err != nil {
		return err
	}

	year, m, err := util.ParseMonth(*month)
	if err != nil {
		return err
	}
	if *prev {
		year, m = util.PreviousMonth(year, m)
	}
	report, err := c.controller.Report(year, m)
	if err != nil {
		return err
	}
	fmt.Fprint(c.stdout, c.renderer.MonthlyReport(report))
	return nil
}

func (c *cli) budget(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("budget", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	set := fs.String("set", "", "new monthly budget, 0 disables the warning")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *set != "" {
		threshold, err := decimal.NewFromString(strings.TrimSpace(*set))
		if err != nil {
			return domain.ErrInvalidBudget
		}
		if err := c.controller.SetBudget(threshold); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "Monthly budget saved.")
	}
	fmt.Fprintln(c.stdout, c.renderer.Budget(c.controller.BudgetStatus()))
	return nil
}

func (c *cli) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	out := fs.String("o", "", "output file or s3://bucket/key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	written, err := c.controller.Export(ctx, *out)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Exported to %s\n", written)
	return nil
}

func (c *cli) importFile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	in := fs.String("i", "", "input file or s3://bucket/key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("import needs -i FILE")
	}

	if _, err := c.controller.Import(ctx, *in); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "Imported successfully!")
	fmt.Fprintln(c.stdout, view.Title("Imported expenses are shown for this session only; the server was not changed."))
	fmt.Fprintln(c.stdout, c.renderer.ExpenseTable(c.controller.View(ledger.Filters{})))
	fmt.Fprintln(c.stdout)
	c.printOverview()
	return nil
}

func (c *cli) watch(ctx context.Context, args []string) error {
	fmt.Fprintln(c.stdout, "Watching for changes, Ctrl+C to stop.")
	return c.controller.Watch(ctx, func(e websocket.Event) {
		fmt.Fprintf(c.stdout, "%s %s\n", e.Timestamp.Local().Format("15:04:05"), e.Type)
		fmt.Fprintln(c.stdout, c.renderer.Summary(c.controller.Summary()))
		fmt.Fprintln(c.stdout, c.renderer.Budget(c.controller.BudgetStatus()))
	})
}
