// Package cli drives a form-filling conversation from the terminal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formchat/internal/session"
)

// Commands understood by the chat loop. Anything else is sent as a turn.
const (
	CommandQuit   = "/quit"
	CommandForm   = "/form"
	CommandReset  = "/reset"
	CommandSubmit = "/submit"
	CommandHelp   = "/help"
)

const helpText = `Commands:
  /form    show the collected form data
  /reset   start over
  /submit  validate and store the form
  /quit    leave the conversation`

// Chat is an interactive session bound to a single session id.
type Chat struct {
	sessions  *session.Service
	prompter  Prompter
	out       io.Writer
	sessionID string
	userID    string
}

// ChatOption customises a Chat.
type ChatOption func(*Chat)

// WithOutput redirects the transcript. Defaults to stdout.
func WithOutput(w io.Writer) ChatOption {
	return func(c *Chat) {
		if w != nil {
			c.out = w
		}
	}
}

// WithSessionID resumes an existing session instead of starting a new one.
func WithSessionID(id string) ChatOption {
	return func(c *Chat) {
		if id = strings.TrimSpace(id); id != "" {
			c.sessionID = id
		}
	}
}

// WithUserID tags submissions with the given user.
func WithUserID(id string) ChatOption {
	return func(c *Chat) {
		c.userID = strings.TrimSpace(id)
	}
}

// NewChat prepares a conversation against sessions.
func NewChat(sessions *session.Service, prompter Prompter, opts ...ChatOption) *Chat {
	c := &Chat{
		sessions:  sessions,
		prompter:  prompter,
		out:       os.Stdout,
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SessionID reports the id the conversation runs under.
func (c *Chat) SessionID() string {
	return c.sessionID
}

// Run reads messages until the user quits, aborts or ctx ends. Quitting and
// aborting are not errors.
func (c *Chat) Run(ctx context.Context) error {
	if c.sessions == nil || c.prompter == nil {
		return errors.New("cli: chat requires a session service and a prompter")
	}
	if form := c.sessions.Form(); form != nil {
		c.printf("Filling %q (%s). Type %s for commands.\n", form.Title, form.ID(), CommandHelp)
	}

	for {
		line, err := c.prompter.Input(ctx, InputConfig{Message: "You:", Help: helpText})
		if errors.Is(err, ErrAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		done, err := c.handle(ctx, line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (c *Chat) handle(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case CommandQuit, "/exit":
		return true, nil
	case CommandHelp:
		c.printf("%s\n", helpText)
		return false, nil
	case CommandForm:
		return false, c.showForm(ctx)
	case CommandReset:
		if err := c.sessions.Reset(ctx, c.sessionID); err != nil {
			return false, err
		}
		c.printf("Form cleared.\n")
		return false, nil
	case CommandSubmit:
		return c.submit(ctx)
	}

	reply, err := c.sessions.Turn(ctx, session.Request{SessionID: c.sessionID, Message: line})
	if err != nil {
		return false, err
	}
	c.printf("Assistant: %s\n", reply.Response)
	if len(reply.Touched) > 0 {
		c.printf("  updated: %s (confidence %.2f)\n", strings.Join(reply.Touched, ", "), reply.Confidence)
	}
	return false, nil
}

func (c *Chat) showForm(ctx context.Context) error {
	snap, err := c.sessions.Snapshot(ctx, c.sessionID)
	if err != nil || len(snap.Document) == 0 {
		c.printf("Nothing collected yet.\n")
		return nil
	}
	out, err := yaml.Marshal(snap.Document)
	if err != nil {
		return fmt.Errorf("cli: render form: %w", err)
	}
	c.printf("%s", out)
	return nil
}

func (c *Chat) submit(ctx context.Context) (bool, error) {
	ok, err := c.prompter.Confirm(ctx, ConfirmConfig{Message: "Submit the form?", Default: true})
	if errors.Is(err, ErrAborted) || (err == nil && !ok) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	sub, err := c.sessions.Submit(ctx, session.SubmitRequest{SessionID: c.sessionID, UserID: c.userID})
	var invalid *session.SubmitError
	switch {
	case errors.As(err, &invalid):
		c.printf("The form is not complete yet:\n")
		for _, fe := range invalid.Errors {
			c.printf("  - %s: %s\n", fe.Field, fe.Reason)
		}
		return false, nil
	case err != nil:
		c.printf("Submission failed: %v\n", err)
		return false, nil
	}
	c.printf("Submitted as %s.\n", sub.ID)
	return true, nil
}

func (c *Chat) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
