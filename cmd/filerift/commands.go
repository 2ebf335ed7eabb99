package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/filerift/internal/config"
	"github.com/JonMunkholm/filerift/internal/dialect"
	"github.com/JonMunkholm/filerift/internal/logging"
	"github.com/JonMunkholm/filerift/internal/metrics"
	"github.com/JonMunkholm/filerift/internal/pgload"
	"github.com/JonMunkholm/filerift/internal/reader"
	"github.com/JonMunkholm/filerift/internal/source"
	"github.com/JonMunkholm/filerift/internal/tokenize"
	"github.com/JonMunkholm/filerift/internal/typed"
	"github.com/JonMunkholm/filerift/internal/web"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

// app carries what every subcommand needs. connect is replaced in tests.
type app struct {
	cfg      *config.Config
	out      io.Writer
	errOut   io.Writer
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	connect  func(ctx context.Context, db config.DatabaseConfig) (pgload.Copier, func(), error)
}

const usage = `usage: filerift <command> [flags]

Commands:
  detect   print the delimiter and quote character of a file
  preview  print the first rows of a file as a table
  load     copy a file into a PostgreSQL table
  serve    start the HTTP server

Run "filerift <command> -h" for command flags.
`

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.errOut, usage)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "detect":
		err = a.detect(args[1:])
	case "preview":
		err = a.preview(args[1:])
	case "load":
		err = a.load(ctx, args[1:])
	case "serve":
		err = a.serve(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return exitOK
	default:
		fmt.Fprintf(a.errOut, "filerift: unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	default:
		fmt.Fprintf(a.errOut, "filerift %s: %v\n", args[0], err)
		return exitError
	}
}

func (a *app) flagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.Usage = func() {
		fmt.Fprintf(a.errOut, "usage: filerift %s [flags] %s\n\nFlags:\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parse reports flag errors as usage errors; the flag package has already
// printed the message.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// fileArg returns the single positional argument.
func fileArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		fs.Usage()
		return "", errUsage
	}
	return fs.Arg(0), nil
}

// readerFlags are shared by preview and load. Unset flags fall back to the
// FILERIFT_* configuration.
type readerFlags struct {
	cfg       config.ReaderConfig
	delimiter string
	quote     string
	widths    string
	header    bool
	trim      bool
	blankNull bool
}

func addReaderFlags(fs *flag.FlagSet, cfg config.ReaderConfig) *readerFlags {
	rf := &readerFlags{cfg: cfg}
	fs.StringVar(&rf.delimiter, "delimiter", "", `field delimiter, a character or "tab", "pipe", ... (default: detect)`)
	fs.StringVar(&rf.quote, "quote", "", `quote character or "none" (default: FILERIFT_QUOTE)`)
	fs.StringVar(&rf.widths, "widths", "", "comma-separated column widths; reads the file as fixed width")
	fs.BoolVar(&rf.header, "header", cfg.HasHeader, "first line is a header")
	fs.BoolVar(&rf.trim, "trim", cfg.Trim, "trim whitespace around cells")
	fs.BoolVar(&rf.blankNull, "blank-null", cfg.BlankToNull, "treat blank cells as null")
	return rf
}

func (rf *readerFlags) options() reader.Options {
	opts := rf.cfg.ReaderOptions()
	opts.HasHeader = rf.header
	opts.Trim = rf.trim
	opts.BlankToNull = rf.blankNull
	return opts
}

// open builds a row reader for path, detecting the dialect when neither a
// delimiter nor widths were given. mode labels the rows_read metric.
func (rf *readerFlags) open(path string, m *metrics.Metrics) (rd *reader.Reader, mode string, err error) {
	opts := rf.options()

	if rf.widths != "" {
		widths, err := parseWidths(rf.widths)
		if err != nil {
			return nil, "", err
		}
		cols := make([]tokenize.Column, len(widths))
		for i, n := range widths {
			cols[i] = tokenize.Column{Position: i, Length: n}
		}
		rd, err := reader.OpenFixedWidth(path, cols, opts)
		return rd, "fixed_width", err
	}

	d, err := rf.dialect(path, m)
	if err != nil {
		return nil, "", err
	}
	slog.Debug("reading delimited file", "file", path, "dialect", d)
	rd, err = reader.OpenDelimited(path, d, opts)
	return rd, "delimited", err
}

func (rf *readerFlags) dialect(path string, m *metrics.Metrics) (dialect.Dialect, error) {
	delim, err := dialect.ParseRune(rf.delimiter)
	if err != nil {
		return dialect.Dialect{}, fmt.Errorf("delimiter: %w", err)
	}
	quote := rf.cfg.Quote
	if rf.quote != "" {
		if quote, err = dialect.ParseRune(rf.quote); err != nil {
			return dialect.Dialect{}, fmt.Errorf("quote: %w", err)
		}
	}
	if delim == 0 {
		if d, ok := rf.cfg.Dialect(); ok {
			delim = d.Delimiter
		}
	}
	if delim != 0 {
		return dialect.Dialect{Delimiter: delim, Quote: quote}, nil
	}
	return detectPath(path, rf.cfg, rf.cfg.SampleSize, m)
}

func detectPath(path string, cfg config.ReaderConfig, sample int, m *metrics.Metrics) (dialect.Dialect, error) {
	in, err := source.Open(path)
	if err != nil {
		return dialect.Dialect{}, err
	}
	defer in.Close()

	rows, err := dialect.Sample(in, sample)
	if err != nil {
		return dialect.Dialect{}, err
	}
	d, err := cfg.Detector().Detect(rows)
	m.ObserveDetection(err)
	if err != nil {
		return dialect.Dialect{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func parseWidths(s string) ([]int, error) {
	var widths []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("widths: %q is not a positive width", part)
		}
		widths = append(widths, n)
	}
	return widths, nil
}

func (a *app) detect(args []string) error {
	fs := a.flagSet("detect", "FILE")
	sample := fs.Int("sample", a.cfg.Reader.SampleSize, "number of lines to sample")
	if err := parse(fs, args); err != nil {
		return err
	}
	path, err := fileArg(fs)
	if err != nil {
		return err
	}

	d, err := detectPath(path, a.cfg.Reader, *sample, a.metrics)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, d)
	return nil
}

func (a *app) preview(args []string) error {
	fs := a.flagSet("preview", "FILE")
	n := fs.Int("n", 10, "number of rows to print")
	rf := addReaderFlags(fs, a.cfg.Reader)
	if err := parse(fs, args); err != nil {
		return err
	}
	path, err := fileArg(fs)
	if err != nil {
		return err
	}
	if *n <= 0 {
		return fmt.Errorf("-n must be positive")
	}

	rd, mode, err := rf.open(path, a.metrics)
	if err != nil {
		return err
	}
	defer rd.Close()

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	if len(rd.Headers()) > 0 {
		fmt.Fprintln(tw, strings.Join(rd.Headers(), "\t"))
	}
	for rd.RowNumber() < *n && rd.Read() {
		fmt.Fprintln(tw, formatRow(rd.Row()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	a.metrics.RowsRead.WithLabelValues(mode).Add(float64(rd.RowNumber()))
	return rd.Err()
}

var cellEscaper = strings.NewReplacer("\t", `\t`, "\n", `\n`, "\r", `\r`)

// formatRow joins cells with tabs, printing NULL for null cells.
func formatRow(row []*string) string {
	cells := make([]string, len(row))
	for i, c := range row {
		if c == nil {
			cells[i] = "NULL"
			continue
		}
		cells[i] = cellEscaper.Replace(*c)
	}
	return strings.Join(cells, "\t")
}

func (a *app) load(ctx context.Context, args []string) error {
	fs := a.flagSet("load", "FILE")
	table := fs.String("table", "", "destination table, optionally schema-qualified")
	columns := fs.String("columns", "", `destination columns, e.g. "id:int,email,signed_up=signup:date"`)
	rf := addReaderFlags(fs, a.cfg.Reader)
	if err := parse(fs, args); err != nil {
		return err
	}
	path, err := fileArg(fs)
	if err != nil {
		return err
	}
	if *table == "" || *columns == "" {
		fs.Usage()
		return errUsage
	}
	if a.cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for load")
	}

	cols, err := pgload.ParseColumns(*columns)
	if err != nil {
		return err
	}

	connect := a.connect
	if connect == nil {
		connect = connectPool
	}
	db, closeDB, err := connect(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB()

	rd, mode, err := rf.open(path, a.metrics)
	if err != nil {
		return err
	}

	logger := logging.WithFields(ctx, "file", path, "table", *table)
	logger.Info("load started", "columns", len(cols))
	start := time.Now()

	n, err := pgload.Load(ctx, db, *table, cols, rd)
	a.metrics.RowsRead.WithLabelValues(mode).Add(float64(rd.RowNumber()))
	a.metrics.ReadSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		var rowErr *typed.RowError
		if errors.As(err, &rowErr) {
			a.metrics.RowErrors.WithLabelValues(typed.FailFast.String()).Inc()
		}
		return err
	}

	a.metrics.RowsLoaded.Add(float64(n))
	logger.Info("load completed", "rows", n, "duration_ms", time.Since(start).Milliseconds())
	fmt.Fprintf(a.out, "loaded %d rows into %s\n", n, *table)
	return nil
}

// connectPool opens a pgx pool with the configured limits.
func connectPool(ctx context.Context, db config.DatabaseConfig) (pgload.Copier, func(), error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(db.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, pool.Close, nil
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := a.flagSet("serve", "")
	addr := fs.String("addr", "", "listen address (default: SERVER_HOST:SERVER_PORT)")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg := *a.cfg
	if *addr != "" {
		host, port, err := splitAddr(*addr)
		if err != nil {
			return err
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}

	server := web.NewServer(&cfg, a.metrics, a.gatherer)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("addr %q: invalid port", addr)
	}
	return host, port, nil
}
