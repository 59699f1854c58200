package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/klinikhygiene/begehung/internal/adapters/refdata"
	"github.com/klinikhygiene/begehung/internal/adapters/report"
	"github.com/klinikhygiene/begehung/internal/adapters/storage/sqlite"
	"github.com/klinikhygiene/begehung/internal/app"
	"github.com/klinikhygiene/begehung/internal/config"
	"github.com/klinikhygiene/begehung/internal/domain"
	"github.com/klinikhygiene/begehung/internal/platform"
)

// version stores a package-level helper value.
var version = "dev"

const usage = `usage: begehung [flags] <command>

commands:
  new      create an audit session from a question catalogue
  list     list stored audit sessions
  show     preview the rendered report for one session
  export   write the report for one session to a file
  send     mail the report for one session
  delete   delete one session, or all with -all
  paths    print resolved config/data paths

flags:
  -config   path to config TOML
  -db       path to sqlite database
  -app      application name for config/data path resolution
  -dev      use dev mode paths (<app>-dev)
  -version  show version
`

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("begehung", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath string
		dbPath     string
		appName    string
		devMode    bool
		showVer    bool
	)
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("BEGEHUNG_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("BEGEHUNG_APP_NAME")); envApp != "" {
		appName = envApp
	} else {
		appName = "begehung"
	}
	fs.StringVar(&configPath, "config", "", "path to config TOML")
	fs.StringVar(&dbPath, "db", "", "path to sqlite database")
	fs.StringVar(&appName, "app", appName, "application name for config/data path resolution")
	fs.BoolVar(&devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	fs.BoolVar(&showVer, "version", false, "show version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVer {
		_, _ = fmt.Fprintf(stdout, "begehung %s\n", version)
		return nil
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: devMode,
	})
	if err != nil {
		return err
	}

	command := firstArg(fs.Args())
	switch command {
	case "paths":
		_, _ = fmt.Fprintf(stdout, "app: %s\n", appName)
		_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", devMode)
		_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
		_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
		_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
		return nil
	case "", "help":
		_, _ = fmt.Fprint(stdout, usage)
		return nil
	case "new", "list", "show", "export", "send", "delete":
		// Continue.
	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	dbOverridden := strings.TrimSpace(dbPath) != ""
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("BEGEHUNG_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("BEGEHUNG_DB_PATH")); envPath != "" {
			dbPath = envPath
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, closeLog, err := newLogger(stderr, appName, cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	defer func() {
		if closeErr := closeLog(); closeErr != nil {
			_, _ = fmt.Fprintf(stderr, "warning: close log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", appName, "dev_mode", devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)

	logger.Info("opening sqlite store", "db_path", cfg.Database.Path)
	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	}()

	var sender app.ReportSender
	if strings.TrimSpace(cfg.Report.SMTPHost) != "" {
		sender = report.NewSMTPSender(cfg.Report.SMTPHost, cfg.Report.SMTPPort, cfg.Report.From, nil)
	}
	svc := app.NewService(store, uuid.NewString, nil, app.ServiceConfig{
		Renderer: report.NewMarkdownRenderer(),
		Sender:   sender,
		Logger:   logger,
	})

	var directory *refdata.Client
	if base := strings.TrimSpace(cfg.Refdata.BaseURL); base != "" {
		directory = refdata.New(base)
		directory.APIKey = cfg.Refdata.APIKey
		if cfg.Refdata.TimeoutSeconds > 0 {
			directory.Timeout = time.Duration(cfg.Refdata.TimeoutSeconds) * time.Second
		}
	}

	logger.Info("command flow start", "command", command)
	switch command {
	case "new":
		err = runNew(ctx, svc, directory, fs.Args()[1:], stdout)
	case "list":
		err = runList(ctx, svc, fs.Args()[1:], stdout)
	case "show":
		err = runShow(ctx, svc, fs.Args()[1:], stdout)
	case "export":
		err = runExport(ctx, svc, fs.Args()[1:], stdout)
	case "send":
		err = runSend(ctx, svc, cfg.Report.DefaultRecipient, fs.Args()[1:], stdout)
	case "delete":
		err = runDelete(ctx, svc, fs.Args()[1:], stdout)
	}
	if err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	logger.Info("command flow complete", "command", command)
	return nil
}

// catalogueQuestion mirrors the question-catalogue JSON file shape. It is
// the same shape the reference-data backend serves.
type catalogueQuestion struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Critical    bool   `json:"critical"`
	Kind        string `json:"kind"`
	Subcategory struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"category"`
	} `json:"subcategory"`
}

// runNew runs the new subcommand flow.
func runNew(ctx context.Context, svc *app.Service, directory *refdata.Client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("begehung new", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		cataloguePath  string
		departmentID   string
		departmentName string
		location       string
		reviewer       string
		search         string
		exclude        string
	)
	fs.StringVar(&cataloguePath, "catalogue", "", "question catalogue JSON file (overrides refdata backend)")
	fs.StringVar(&departmentID, "department-id", "", "department id")
	fs.StringVar(&departmentName, "department", "", "department name")
	fs.StringVar(&location, "location", "", "audited location")
	fs.StringVar(&reviewer, "reviewer", "", "reviewer name")
	fs.StringVar(&search, "search", "", "catalogue search filter (refdata backend only)")
	fs.StringVar(&exclude, "exclude", "", "comma-separated question ids to exclude (refdata backend only)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse new flags: %w", err)
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected new arguments: %v", fs.Args())
	}

	questions, err := loadQuestions(ctx, directory, cataloguePath, departmentID, search, exclude)
	if err != nil {
		return err
	}

	department := domain.Department{ID: departmentID, Name: departmentName}
	if department.Name == "" && department.ID != "" && directory != nil {
		departments, err := directory.ListDepartments(ctx)
		if err != nil {
			return fmt.Errorf("resolve department: %w", err)
		}
		for _, d := range departments {
			if d.ID == department.ID {
				department.Name = d.Name
				break
			}
		}
	}

	session, err := svc.CreateSession(ctx, app.CreateSessionInput{
		Department: department,
		Location:   location,
		Reviewer:   reviewer,
		Questions:  questions,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "created session %s (%d items)\n", session.ID, len(session.Items))
	return nil
}

// loadQuestions reads the catalogue from a local file or the refdata backend.
func loadQuestions(ctx context.Context, directory *refdata.Client, cataloguePath, departmentID, search, exclude string) ([]domain.Question, error) {
	if cataloguePath != "" {
		content, err := os.ReadFile(cataloguePath)
		if err != nil {
			return nil, fmt.Errorf("read catalogue file: %w", err)
		}
		var docs []catalogueQuestion
		if err := json.Unmarshal(content, &docs); err != nil {
			return nil, fmt.Errorf("decode catalogue json: %w", err)
		}
		questions := make([]domain.Question, 0, len(docs))
		for _, doc := range docs {
			question, err := domain.NewQuestion(doc.ID, doc.Text, doc.Critical, domain.ObservationKind(doc.Kind), domain.Subcategory{
				ID:   doc.Subcategory.ID,
				Name: doc.Subcategory.Name,
				Category: domain.Category{
					ID:   doc.Subcategory.Category.ID,
					Name: doc.Subcategory.Category.Name,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("catalogue question %q: %w", doc.ID, err)
			}
			questions = append(questions, question)
		}
		return questions, nil
	}

	if directory == nil {
		return nil, fmt.Errorf("no catalogue source: pass -catalogue or configure refdata.base_url")
	}
	filter := app.QuestionFilter{
		DepartmentID: departmentID,
		SearchText:   search,
	}
	if exclude != "" {
		for _, id := range strings.Split(exclude, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.ExcludeIDs = append(filter.ExcludeIDs, id)
			}
		}
	}
	questions, err := directory.ListQuestions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch catalogue: %w", err)
	}
	return questions, nil
}

// runList runs the list subcommand flow.
func runList(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("begehung list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse list flags: %w", err)
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected list arguments: %v", fs.Args())
	}

	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(stdout)
	tw.AppendHeader(table.Row{"ID", "Department", "Location", "Date", "State", "Result"})
	for _, s := range sessions {
		tw.AppendRow(table.Row{
			s.ID,
			s.Department.Name,
			s.Location,
			s.CreatedAt.Format("2006-01-02"),
			string(s.Lifecycle),
			fmt.Sprintf("%s (%d%%)", s.Result.Color, s.Result.Percentage),
		})
	}
	tw.Render()
	return nil
}

// runShow runs the show subcommand flow.
func runShow(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("begehung show", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		raw   bool
		width int
	)
	fs.BoolVar(&raw, "raw", false, "print raw markdown without terminal styling")
	fs.IntVar(&width, "width", 100, "wrap width for styled output")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse show flags: %w", err)
	}
	sessionID := firstArg(fs.Args())
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	rendered, err := svc.RenderReport(ctx, sessionID)
	if err != nil {
		return err
	}
	if raw {
		_, _ = stdout.Write(rendered)
		return nil
	}
	_, _ = io.WriteString(stdout, styleMarkdown(string(rendered), width))
	return nil
}

// styleMarkdown converts markdown into ANSI-styled terminal text, falling
// back to the raw document when the renderer cannot be built.
func styleMarkdown(markdown string, width int) string {
	if width < 24 {
		width = 24
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	styled, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return styled
}

// runExport runs the export subcommand flow.
func runExport(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("begehung export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var outPath string
	fs.StringVar(&outPath, "out", "", "output file path ('-' for stdout, default derived from the session)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse export flags: %w", err)
	}
	sessionID := firstArg(fs.Args())
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	rendered, err := svc.RenderReport(ctx, sessionID)
	if err != nil {
		return err
	}
	if outPath == "-" {
		if _, err := stdout.Write(rendered); err != nil {
			return fmt.Errorf("write report to stdout: %w", err)
		}
		return nil
	}
	if outPath == "" {
		session, err := svc.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		outPath = app.ReportFilename(session)
	}
	if dir := filepath.Dir(outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export output dir: %w", err)
		}
	}
	if err := os.WriteFile(outPath, rendered, 0o644); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "wrote %s\n", outPath)
	return nil
}

// runSend runs the send subcommand flow.
func runSend(ctx context.Context, svc *app.Service, defaultRecipient string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("begehung send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var recipient string
	fs.StringVar(&recipient, "to", defaultRecipient, "recipient address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse send flags: %w", err)
	}
	sessionID := firstArg(fs.Args())
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	if err := svc.SendReport(ctx, sessionID, recipient); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "sent report for %s to %s\n", sessionID, recipient)
	return nil
}

// runDelete runs the delete subcommand flow.
func runDelete(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("begehung delete", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var all bool
	fs.BoolVar(&all, "all", false, "delete every stored session")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse delete flags: %w", err)
	}

	if all {
		if len(fs.Args()) > 0 {
			return fmt.Errorf("unexpected delete arguments with -all: %v", fs.Args())
		}
		if err := svc.DeleteAllSessions(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "deleted all sessions")
		return nil
	}

	sessionID := firstArg(fs.Args())
	if sessionID == "" {
		return fmt.Errorf("session id is required (or pass -all)")
	}
	if err := svc.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "deleted session %s\n", sessionID)
	return nil
}

// newLogger configures the runtime logger from config. File logging uses
// logfmt so the output stays parseable.
func newLogger(stderr io.Writer, appName string, cfg config.LoggingConfig) (*charmLog.Logger, func() error, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}

	noClose := func() error { return nil }
	if strings.TrimSpace(cfg.File) == "" {
		logger := charmLog.NewWithOptions(stderr, charmLog.Options{
			Level:           level,
			Prefix:          appName,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       charmLog.TextFormatter,
		})
		return logger, noClose, nil
	}

	if dir := filepath.Dir(cfg.File); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	logFile, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	return logger, logFile.Close, nil
}

// firstArg handles first arg.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
