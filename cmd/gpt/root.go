package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cliOptions holds the parsed command line.
type cliOptions struct {
	wrapper    string
	configPath string

	model       string
	temperature float64
	topP        float64

	prompts    []string
	execute    string
	noStream   bool
	noPrice    bool
	noMarkdown bool

	logFile  string
	logLevel string

	assistant string

	// changed records which flags were set explicitly.
	changed map[string]bool
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "gpt [wrapper]",
		Short: "Chat with LLMs from the terminal",
		Long: "Chat with OpenAI, Anthropic, Google and local models from the terminal.\n" +
			"The optional wrapper argument selects a persona from the config file or\n" +
			"one of the builtin ones (dev, general, bash).",
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.wrapper = args[0]
			}
			opts.changed = map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				opts.changed[f.Name] = true
			})
			if err := opts.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts, stdin, stdout, stderr)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to the config file (default ~/.config/gpt-cli/gpt.yml or ~/.gptrc)")
	flags.StringVar(&opts.model, "model", "", "Model to use, optionally tagged as provider:model")
	flags.Float64Var(&opts.temperature, "temperature", 0, "Sampling temperature")
	flags.Float64Var(&opts.topP, "top_p", 0, "Nucleus sampling top_p")
	flags.StringArrayVarP(&opts.prompts, "prompt", "p", nil, "Prompt to send non-interactively; repeat to add lines, '-' reads stdin")
	flags.StringVarP(&opts.execute, "execute", "e", "", "Ask for a shell command, edit it and run it; '-' reads stdin")
	flags.BoolVar(&opts.noStream, "no_stream", false, "Wait for the whole reply instead of streaming it")
	flags.BoolVar(&opts.noPrice, "no_price", false, "Disable price logging")
	flags.BoolVar(&opts.noMarkdown, "no_markdown", false, "Print replies as plain text")
	flags.StringVar(&opts.logFile, "log_file", "", "Log file; strftime codes such as %Y-%m-%d are expanded")
	flags.StringVar(&opts.logLevel, "log_level", "", "Log level: DEBUG, INFO, WARNING, ERROR or CRITICAL")
	flags.StringVarP(&opts.assistant, "assistant", "a", "", "Chat with the named remote assistant instead of a wrapper")
	return cmd
}

func (o *cliOptions) validate() error {
	if len(o.prompts) > 0 && o.changed["execute"] {
		return errors.New("the --prompt and --execute options are mutually exclusive. Please specify only one of them")
	}
	if o.assistant != "" && (len(o.prompts) > 0 || o.changed["execute"]) {
		return errors.New("--assistant starts an interactive session and cannot be combined with --prompt or --execute")
	}
	if o.assistant != "" && o.wrapper != "" {
		return errors.New("--assistant cannot be combined with a wrapper name")
	}
	return nil
}

// overrides returns the model parameters set on the command line.
func (o *cliOptions) overrides() chat.Overrides {
	var out chat.Overrides
	if o.changed["model"] {
		model := o.model
		out.Model = &model
	}
	if o.changed["temperature"] {
		t := o.temperature
		out.Temperature = &t
	}
	if o.changed["top_p"] {
		p := o.topP
		out.TopP = &p
	}
	return out
}

// readPrompt joins the --prompt values, substituting stdin for "-".
func readPrompt(prompts []string, stdin io.Reader) (string, error) {
	parts := make([]string, len(prompts))
	var stdinText *string
	for i, p := range prompts {
		if p != "-" {
			parts[i] = p
			continue
		}
		if stdinText == nil {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return "", fmt.Errorf("read stdin: %w", err)
			}
			s := string(data)
			stdinText = &s
		}
		parts[i] = *stdinText
	}
	return strings.Join(parts, "\n"), nil
}
