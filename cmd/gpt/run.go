package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grid-link-inc/gpt-cli/pkg/assistant"
	"github.com/grid-link-inc/gpt-cli/pkg/config"
	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
	"github.com/grid-link-inc/gpt-cli/pkg/pricing"
	"github.com/grid-link-inc/gpt-cli/pkg/provider"
	"github.com/grid-link-inc/gpt-cli/pkg/render"
	"github.com/grid-link-inc/gpt-cli/pkg/session"
	"github.com/grid-link-inc/gpt-cli/pkg/shell"
	"github.com/grid-link-inc/gpt-cli/pkg/wrapper"
	"github.com/joho/godotenv"
	"github.com/peterh/liner"
)

const transcriptDir = "logs"

// settings is the config file with command line flags applied on top.
type settings struct {
	cfg       config.Config
	stream    bool
	showPrice bool
	markdown  bool
	logFile   string
	logLevel  string
}

func loadSettings(opts *cliOptions) (settings, error) {
	path := opts.configPath
	if path == "" {
		path = config.ChooseFile(config.DefaultPaths())
	}
	cfg, err := config.Load(path)
	if err != nil {
		return settings{}, err
	}

	s := settings{
		cfg:       cfg,
		stream:    !opts.noStream,
		showPrice: cfg.ShowPrice && !opts.noPrice,
		markdown:  cfg.Markdown && !opts.noMarkdown,
		logFile:   cfg.LogFile,
		logLevel:  cfg.LogLevel,
	}
	if opts.logFile != "" {
		s.logFile = opts.logFile
	}
	if opts.logLevel != "" {
		s.logLevel = opts.logLevel
	}
	if opts.wrapper == "" {
		opts.wrapper = cfg.DefaultWrapper
	}
	return s, nil
}

// newLogger writes to the configured log file, or warnings only to stderr
// when there is none. The returned closer releases the file.
func newLogger(s settings, stderr io.Writer, now time.Time) (loggerpkg.Logger, func() error, error) {
	if s.logFile == "" {
		l, err := loggerpkg.NewWriterLogger(stderr, "WARNING")
		return l, func() error { return nil }, err
	}
	f, err := loggerpkg.OpenFile(s.logFile, now)
	if err != nil {
		return nil, nil, err
	}
	l, err := loggerpkg.NewWriterLogger(f, s.logLevel)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return l, f.Close, nil
}

func run(ctx context.Context, opts *cliOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	_ = godotenv.Load()

	s, err := loadSettings(opts)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(s, stderr, time.Now())
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	loggerpkg.Info(logger, "Starting a new chat session", map[string]any{
		"wrapper":   opts.wrapper,
		"assistant": opts.assistant,
	})

	if opts.assistant != "" {
		return runAssistant(ctx, opts, s, stdin, stdout, logger)
	}

	wc, err := config.ResolveWrapper(opts.wrapper, s.cfg.Wrappers, opts.overrides())
	if err != nil {
		return err
	}
	registry := provider.NewRegistry(provider.CredentialsFromConfig(s.cfg), provider.WithLogger(logger))
	w := wrapper.New(opts.wrapper, wc, wrapper.WithFactory(registry), wrapper.WithLogger(logger))

	switch {
	case len(opts.prompts) > 0:
		prompt, err := readPrompt(opts.prompts, stdin)
		if err != nil {
			return err
		}
		return runPrompt(ctx, w, prompt, s.stream, stdout, logger)
	case opts.changed["execute"]:
		prompt, err := readPrompt([]string{opts.execute}, stdin)
		if err != nil {
			return err
		}
		return shell.Execute(ctx, w, prompt, shell.ExecOptions{
			Stdout: stdout,
			Stderr: stderr,
			Logger: logger,
		})
	case !interactive(s.cfg, stdin):
		prompt, err := readPrompt([]string{"-"}, stdin)
		if err != nil {
			return err
		}
		return runPrompt(ctx, w, prompt, s.stream, stdout, logger)
	}

	backend := &session.WrapperBackend{Wrapper: w, Stream: s.stream}
	listener, err := cliListeners(s, stdout, logger)
	if err != nil {
		return err
	}
	return runSession(ctx, backend, listener, stdin, stdout, logger)
}

func runPrompt(ctx context.Context, c shell.Completer, prompt string, stream bool, stdout io.Writer, logger loggerpkg.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := shell.SimpleResponse(ctx, c, prompt, stream, stdout, logger); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout)
	return nil
}

func runAssistant(ctx context.Context, opts *cliOptions, s settings, stdin io.Reader, stdout io.Writer, logger loggerpkg.Logger) error {
	key := s.cfg.OpenAIKey()
	if key == "" {
		return errors.New("no OpenAI API key found; set OPENAI_API_KEY or api_key in the config file")
	}
	ac, err := config.ResolveAssistant(opts.assistant, s.cfg.Assistants)
	if err != nil {
		return err
	}
	thread, err := assistant.New(ctx, assistant.NewOpenAIClient(key, s.cfg.OpenAIBaseURL), ac,
		assistant.WithPollInterval(s.cfg.AssistantPollInterval),
		assistant.WithMaxPolls(s.cfg.AssistantMaxPolls),
		assistant.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	persist, err := session.NewPersistListener(transcriptDir, thread, logger)
	if err != nil {
		return err
	}
	defer func() { _ = persist.Close() }()

	listener, err := cliListeners(s, stdout, logger)
	if err != nil {
		return err
	}
	listener = append(listener, persist)
	return runSession(ctx, &session.AssistantBackend{Thread: thread}, listener, stdin, stdout, logger)
}

// cliListeners returns the listeners every interactive session carries.
func cliListeners(s settings, stdout io.Writer, logger loggerpkg.Logger) (session.Composite, error) {
	renderer, err := render.New(s.markdown)
	if err != nil {
		return nil, err
	}
	listeners := session.Composite{
		session.NewCLIListener(stdout, renderer),
		session.NewLoggingListener(logger),
	}
	if s.showPrice {
		listeners = append(listeners, session.NewPriceListener(stdout, pricing.Default(), logger))
	}
	return listeners, nil
}

func runSession(ctx context.Context, backend session.Backend, listener session.Listener, stdin io.Reader, stdout io.Writer, logger loggerpkg.Logger) error {
	in, closeInput := lineReader(stdin, stdout, logger)
	defer closeInput()

	s := session.New(backend, listener,
		session.WithLogger(logger),
		session.WithTurnContext(func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		}),
	)
	return s.Loop(ctx, in)
}

// lineReader edits input with persistent history on a terminal and falls
// back to plain line reading otherwise.
func lineReader(stdin io.Reader, stdout io.Writer, logger loggerpkg.Logger) (session.LineReader, func()) {
	f, ok := stdin.(*os.File)
	path := config.HistoryPath()
	if !ok || path == "" || !render.IsTerminal(f) || !liner.TerminalSupported() {
		return session.NewScannerReader(stdin, stdout), func() {}
	}
	r := session.NewHistoryReader(path, logger)
	return r, func() {
		if err := r.Close(); err != nil {
			loggerpkg.Warn(logger, "save history", map[string]any{"error": err.Error()})
		}
	}
}

// interactive reports whether to start a chat session rather than answer
// a single prompt read from stdin.
func interactive(cfg config.Config, stdin io.Reader) bool {
	if cfg.Interactive != nil {
		return *cfg.Interactive
	}
	f, ok := stdin.(*os.File)
	return ok && render.IsTerminal(f)
}
