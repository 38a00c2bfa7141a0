// Command aityping translates text in place from a global hotkey.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"markestedt/aityping/config"
	"markestedt/aityping/orchestrator"
	"markestedt/aityping/storage"
	"markestedt/aityping/systray"
)

var (
	configPath string
	verbose    bool

	runNoTray bool

	historyLimit  int
	historySearch string
	historyMode   string

	statsPeriod string
)

var logLevel = new(slog.LevelVar)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "aityping",
		Short:        "Translate selected text in place with a hotkey",
		SilenceUsage: true,
		RunE:         runAgentCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&runNoTray, "no-tray", false, "run without the system tray icon")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hotkey agent (default)",
		Args:  cobra.NoArgs,
		RunE:  runAgentCmd,
	}
	runCmd.Flags().BoolVar(&runNoTray, "no-tray", false, "run without the system tray icon")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newTranslateCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newLanguageCmd())
	rootCmd.AddCommand(newTestConnectionCmd())
	rootCmd.AddCommand(newSecretCmd())

	return rootCmd
}

func setupLogging(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	setLogLevel(level)
}

func setLogLevel(level string) {
	if verbose {
		logLevel.Set(slog.LevelDebug)
		return
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	logLevel.Set(l)
}

func loadConfig() (*config.Loader, *config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}

	// Log loading problems before the configured level is known
	setupLogging("info")

	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	setLogLevel(cfg.Log.Level)

	slog.Debug("Configuration loaded", "path", path)
	return loader, cfg, nil
}

func runAgentCmd(cmd *cobra.Command, _ []string) error {
	loader, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.APIKey() == "" {
		slog.Warn("No API key configured; set one with 'aityping secret set' or " + config.EnvAPIKey)
	}

	agent, err := NewAgent(loader)
	if err != nil {
		return err
	}
	defer agent.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if runNoTray {
		err := agent.Run(ctx)
		slog.Info("aityping stopped")
		return err
	}

	tray := systray.NewSystrayManager(loader, agent.DashboardURL())
	agent.OnConfigChange(tray.Refresh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- agent.Run(ctx)
		tray.Stop()
	}()
	go func() {
		select {
		case <-tray.WaitForQuit():
			cancel()
		case <-ctx.Done():
		}
	}()

	// The tray owns the main thread until it quits
	tray.Run()
	cancel()

	err = <-errCh
	slog.Info("aityping stopped")
	return err
}

func newTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text from the arguments or stdin and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, cfg, err := loadConfig()
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			translator, err := newLiveTranslator(cfg)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			orch := orchestrator.New(orchestrator.Deps{
				Translator: translator,
				Recorder:   db,
				Settings:   func() orchestrator.Settings { return settingsFrom(loader.Config()) },
			})

			run, err := orch.TranslateText(cmd.Context(), text)
			if err != nil {
				return err
			}
			if run == nil {
				return errors.New("nothing to translate")
			}

			fmt.Fprintln(cmd.OutOrStdout(), run.Translated)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent translations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			page, err := db.GetHistory(cmd.Context(), storage.HistoryQuery{
				PageSize: historyLimit,
				Search:   historySearch,
				Mode:     historyMode,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tMODE\tTARGET\tOK\tORIGINAL\tTRANSLATION")
			for _, t := range page.Records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\t%s\n",
					t.ID, t.Timestamp.Local().Format(time.DateTime), t.Mode, t.TargetLang, t.Success,
					abbreviate(t.OriginalText, 40), abbreviate(t.TranslatedText, 40))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(page.Records), page.Total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records")
	cmd.Flags().StringVar(&historySearch, "search", "", "only records containing this text")
	cmd.Flags().StringVar(&historyMode, "mode", "", "only records of this mode (selected, full, manual)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show performance statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			s, err := db.GetPerformanceStats(cmd.Context(), storage.Period(statsPeriod))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Period:        last %s\n", s.Period)
			fmt.Fprintf(out, "Translations:  %d (%d ok, %d failed, %.0f%% success)\n",
				s.Total, s.Successful, s.Failed, s.SuccessRate()*100)
			fmt.Fprintf(out, "Modes:         %d selected, %d full\n", s.SelectedCount, s.FullCount)
			fmt.Fprintf(out, "Duration:      avg %.0f ms, min %d ms, max %d ms\n", s.AvgDurationMs, s.MinDurationMs, s.MaxDurationMs)
			fmt.Fprintf(out, "Volume:        %d chars, %d tokens, %.1f tokens/s\n", s.TotalChars, s.TotalTokens, s.AvgTokensPerSecond)
			for _, e := range s.Errors {
				fmt.Fprintf(out, "Errors:        %s × %d\n", e.ErrorType, e.Count)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&statsPeriod, "period", string(storage.PeriodDay), "hour, day or week")
	return cmd
}

func newLanguageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "language [code]",
		Short: "Show favorite languages or switch the target language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				cfg = cfg.Clone()
				if err := cfg.SwitchLanguage(args[0]); err != nil {
					return err
				}
				if err := loader.Update(cfg); err != nil {
					return err
				}
			}

			for _, l := range cfg.Language.Favorites {
				marker := " "
				if l.Code == cfg.Language.CurrentTarget {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-6s %s\n", marker, l.Code, l.Name)
			}
			if cfg.LanguageName(cfg.Language.CurrentTarget) == cfg.Language.CurrentTarget {
				fmt.Fprintf(cmd.OutOrStdout(), "* %s\n", cfg.Language.CurrentTarget)
			}
			return nil
		},
	}
}

func newTestConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Send a short test translation to the configured LLM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			msg, err := client.TestConnection(cmd.Context(), cfg.Language.CurrentTarget)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK (%s): %s\n", cfg.LLM.Model, msg)
			return nil
		},
	}
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the LLM API key in the OS keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, _, err := loadConfig()
			if err != nil {
				return err
			}

			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("failed to read key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("API key is empty")
			}

			if err := loader.SetAPIKey(key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key stored in keyring")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the API key from the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := loader.DeleteAPIKey(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed from keyring")
			return nil
		},
	})

	return cmd
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
