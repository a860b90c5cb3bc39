// Package shell implements the one-shot modes: print a single reply, or turn
// a reply into a shell command the user can edit before it runs.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
	"github.com/grid-link-inc/gpt-cli/pkg/provider"
)

const (
	defaultEditor = "nano"
	defaultShell  = "/bin/bash"

	editHeader = "# Edit the command to execute below. Save and exit to execute it.\n" +
		"# Delete the contents to cancel.\n"
)

// Completer produces a reply for a conversation.
type Completer interface {
	InitMessages() []chat.Message
	CompleteChat(ctx context.Context, messages []chat.Message, overrides chat.Overrides, stream bool) (iter.Seq2[provider.Chunk, error], error)
}

// SimpleResponse sends prompt after the seed messages and copies the reply to
// out. Cancelling ctx stops output without an error.
func SimpleResponse(ctx context.Context, c Completer, prompt string, stream bool, out io.Writer, logger loggerpkg.Logger) error {
	messages := append(c.InitMessages(), chat.UserMessage(prompt))
	loggerpkg.Info(logger, "User: "+prompt, nil)

	seq, err := c.CompleteChat(ctx, messages, chat.Overrides{}, stream)
	if err != nil {
		return err
	}

	var result strings.Builder
	defer func() {
		loggerpkg.Info(logger, "Wrapper: "+result.String(), nil)
	}()
	for chunk, err := range seq {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		result.WriteString(chunk.Text)
		if _, err := io.WriteString(out, chunk.Text); err != nil {
			return err
		}
	}
	return nil
}

// ExecOptions configures Execute. Zero values fall back to $EDITOR, $SHELL
// and the process's standard streams.
type ExecOptions struct {
	Editor string
	Shell  string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger loggerpkg.Logger
}

func (o ExecOptions) withDefaults() ExecOptions {
	if o.Editor == "" {
		o.Editor = envOr("EDITOR", defaultEditor)
	}
	if o.Shell == "" {
		o.Shell = envOr("SHELL", defaultShell)
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Execute asks for a shell command, opens it in an editor for review and runs
// what remains once comment lines are removed.
func Execute(ctx context.Context, c Completer, prompt string, opts ExecOptions) error {
	opts = opts.withDefaults()
	messages := append(c.InitMessages(), chat.UserMessage(prompt))
	loggerpkg.Info(opts.Logger, "User: "+prompt, nil)

	seq, err := c.CompleteChat(ctx, messages, chat.Overrides{}, false)
	if err != nil {
		return err
	}
	suggestion, _, err := provider.Collect(seq)
	if err != nil {
		return err
	}
	loggerpkg.Info(opts.Logger, "Wrapper: "+suggestion, nil)

	f, err := os.CreateTemp("", "gptcli-*")
	if err != nil {
		return fmt.Errorf("create command file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := io.WriteString(f, editHeader+suggestion); err != nil {
		f.Close()
		return fmt.Errorf("write command file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write command file: %w", err)
	}

	if err := runCommand(ctx, opts.Editor, []string{path}, opts); err != nil {
		return fmt.Errorf("editor %s: %w", opts.Editor, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read command file: %w", err)
	}
	command := StripComments(string(raw))
	if command == "" {
		_, err := fmt.Fprintln(opts.Stdout, "No command to execute.")
		return err
	}

	loggerpkg.Info(opts.Logger, "Executing: "+command, nil)
	if _, err := fmt.Fprintf(opts.Stdout, "Executing:\n%s\n", command); err != nil {
		return err
	}
	if err := runCommand(ctx, opts.Shell, []string{path}, opts); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		return fmt.Errorf("run command: %w", err)
	}
	return nil
}

// StripComments drops lines starting with '#' and trims the rest.
func StripComments(script string) string {
	var kept []string
	for _, line := range strings.SplitAfter(script, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, ""))
}
