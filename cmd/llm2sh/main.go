package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randombk/llm2sh/internal/config"
	"github.com/randombk/llm2sh/internal/dispatcher"
	"github.com/randombk/llm2sh/internal/executor"
	"github.com/randombk/llm2sh/internal/history"
	"github.com/randombk/llm2sh/internal/logging"
	"github.com/randombk/llm2sh/internal/models"
	"github.com/randombk/llm2sh/internal/provider"
	"github.com/randombk/llm2sh/internal/sysfacts"
	"github.com/randombk/llm2sh/internal/ui"
)

var (
	// set with -ldflags at build time
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// options holds the command line flags
type options struct {
	configPath  string
	dryRun      bool
	listModels  bool
	model       string
	temperature float64
	verbose     bool
	yolo        bool
	setup       bool
	history     int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		ui.ShowError(err.Error())
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}

	rootCmd := &cobra.Command{
		Use:           "llm2sh [flags] <request...>",
		Short:         "Turn a request into shell commands using an LLM",
		Long:          "llm2sh asks an LLM for the shell commands that fulfil a plain-language request,\nshows them, and runs them after confirmation.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, args)
		},
	}

	flags := rootCmd.Flags()
	// Everything after the first word of the request belongs to the request.
	flags.SetInterspersed(false)
	flags.StringVarP(&o.configPath, "config", "c", "", "config file (default ~/.config/llm2sh/llm2sh.json)")
	flags.BoolVarP(&o.dryRun, "dry-run", "d", false, "show the commands without running them")
	flags.BoolVarP(&o.listModels, "list-models", "l", false, "list available models")
	flags.StringVarP(&o.model, "model", "m", "", "model to use (default from config)")
	flags.Float64VarP(&o.temperature, "temperature", "t", config.DefaultTemperature, "sampling temperature (default from config)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "print the system prompt and raw model response")
	flags.BoolVarP(&o.yolo, "yolo", "f", false, "run the commands without confirmation")
	flags.BoolVar(&o.yolo, "force", false, "same as --yolo")
	flags.BoolVar(&o.setup, "setup", false, "interactively choose a model and API key")
	flags.IntVar(&o.history, "history", 0, "show the last N requests")

	return rootCmd
}

func run(cmd *cobra.Command, o *options, args []string) error {
	ctx := cmd.Context()

	configPath := o.configPath
	if configPath == "" {
		var err error
		if configPath, err = config.GetConfigPath(); err != nil {
			return err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	_, logCloser, logErr := logging.Init(cfg, o.verbose)
	defer logCloser.Close()
	if logErr != nil && o.verbose {
		ui.ShowWarning(fmt.Sprintf("Logging disabled: %v", logErr))
	}
	slog.Debug("start", "version", version, "config", configPath, "args", len(args))

	catalog, err := models.Default()
	if err != nil {
		return err
	}

	switch {
	case o.setup:
		return runSetup(cfg, catalog, configPath)
	case o.listModels:
		showModels(cfg, catalog, configPath)
		return nil
	case o.history > 0:
		return showHistory(ctx, historyPath(configPath), o.history)
	case len(args) == 0:
		return cmd.Help()
	}

	request := strings.Join(args, " ")
	modelName := o.model
	if modelName == "" {
		modelName = cfg.DefaultModel
	}

	resolved, err := catalog.Resolve(modelName, cfg)
	if err != nil {
		var cfgErr *models.ConfigurationError
		if errors.As(err, &cfgErr) {
			ui.ShowInfo(fmt.Sprintf("Configure %s, run 'llm2sh --setup', or use --list-models to see available models.", configPath))
		}
		return err
	}

	temperature := cfg.Temperature
	if cmd.Flags().Changed("temperature") {
		temperature = o.temperature
	}

	client, err := provider.New(ctx, resolved.Options(temperature, cfg.RequestTimeout()))
	if err != nil {
		return err
	}

	var dispOpts []dispatcher.Option
	if o.verbose {
		dispOpts = append(dispOpts, dispatcher.WithDiagnostics(ui.NewDiagnostics(nil)))
	}
	disp := dispatcher.New(client, sysfacts.NewHost(), dispOpts...)

	rec := openRecorder(cfg, historyPath(configPath), request, resolved.Name)
	defer rec.close()

	return interact(ctx, o, cfg, disp, rec, request)
}

// interact runs the dispatch, confirm and execute loop. Modifying the
// request starts a fresh dispatch.
func interact(ctx context.Context, o *options, cfg *config.Config, disp *dispatcher.Dispatcher, rec *recorder, request string) error {
	currentRequest := request

	for {
		ui.ShowProgress("Thinking...")
		commands, err := disp.Dispatch(ctx, currentRequest)
		if err != nil {
			rec.record(ctx, nil, history.OutcomeError, err)
			return err
		}

		if len(commands) == 0 {
			ui.ShowWarning("The model returned nothing to run.")
			rec.record(ctx, commands, history.OutcomeEmpty, nil)
			return nil
		}

		ui.ShowCommands(commands, o.dryRun)
		if o.dryRun {
			rec.record(ctx, commands, history.OutcomeDryRun, nil)
			return nil
		}

		if !o.yolo && !cfg.LiveDangerously {
			action, err := ui.ConfirmCommands()
			if err != nil {
				return err
			}

			switch action {
			case ui.ActionCancel:
				ui.ShowInfo("Request cancelled.")
				rec.record(ctx, commands, history.OutcomeCancelled, nil)
				return nil

			case ui.ActionCopy:
				if err := ui.CopyCommands(commands); err != nil {
					return err
				}
				ui.ShowSuccess("Commands copied to clipboard!")
				rec.record(ctx, commands, history.OutcomeCopied, nil)
				return nil

			case ui.ActionModify:
				modification, err := ui.PromptForModification()
				if err != nil {
					return fmt.Errorf("failed to get modification: %w", err)
				}
				slog.Debug("request_modified", "modification", modification)
				rec.modifications = append(rec.modifications, modification)
				currentRequest = refineRequest(request, commands, modification)
				continue
			}
		}

		if err := executor.New(os.Stdout).Run(ctx, commands); err != nil {
			rec.record(ctx, commands, history.OutcomeFailed, err)
			return err
		}
		rec.record(ctx, commands, history.OutcomeExecuted, nil)
		return nil
	}
}

// refineRequest folds the previous suggestion and the user's change into a
// new request.
func refineRequest(original string, previous []string, modification string) string {
	var sb strings.Builder
	sb.WriteString(original)
	sb.WriteString("\n\nYou previously suggested:\n")
	for _, command := range previous {
		sb.WriteString(command)
		sb.WriteString("\n")
	}
	sb.WriteString("\nChange it as follows: ")
	sb.WriteString(modification)
	return sb.String()
}

func showModels(cfg *config.Config, catalog *models.Catalog, configPath string) {
	statuses := catalog.List(cfg)
	rows := make([]ui.ModelRow, len(statuses))
	for i, s := range statuses {
		rows[i] = ui.ModelRow{Name: s.Name, Available: s.Available, Hint: s.Hint}
	}
	ui.ShowModels(configPath, rows)
}

// historyPath keeps the history database next to the config file in use.
func historyPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), history.HistoryFileName)
}

func showHistory(ctx context.Context, path string, n int) error {
	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	entries, err := store.List(ctx, n)
	if err != nil {
		return err
	}

	rows := make([]ui.HistoryRow, len(entries))
	for i, e := range entries {
		rows[i] = ui.HistoryRow{
			Timestamp: e.Timestamp,
			Request:   e.Request,
			Model:     e.Model,
			Outcome:   string(e.Outcome),
			Commands:  e.Commands,
		}
	}
	ui.ShowHistory(rows)
	return nil
}

// recorder appends the outcome of a request to the history store. History
// failures never fail the request.
type recorder struct {
	store         *history.Store
	request       string
	model         string
	modifications []string
}

func openRecorder(cfg *config.Config, path, request, model string) *recorder {
	rec := &recorder{request: request, model: model}
	if cfg.DisableHistory {
		return rec
	}

	store, err := history.Open(path)
	if err != nil {
		slog.Warn("history_open_failed", "error", err)
		ui.ShowWarning(fmt.Sprintf("History disabled: %v", err))
		return rec
	}
	rec.store = store
	return rec
}

func (r *recorder) record(ctx context.Context, commands []string, outcome history.Outcome, cause error) {
	if r.store == nil {
		return
	}

	entry := history.NewEntry(r.request, r.model, commands, outcome, r.modifications)
	if cause != nil {
		entry.Error = cause.Error()
	}
	// Record even when the request itself was interrupted.
	if err := r.store.Add(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("history_save_failed", "error", err)
		ui.ShowWarning(fmt.Sprintf("Failed to save history: %v", err))
	}
}

func (r *recorder) close() {
	if r.store != nil {
		r.store.Close()
	}
}
