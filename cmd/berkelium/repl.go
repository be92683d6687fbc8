package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BerkeliumLabs/berkelium/internal/agent"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

const promptPrefix = "berkelium> "

// runInteractive reads prompts until exit, EOF or interrupt.
func runInteractive(ctx context.Context) error {
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.output.Header("Berkelium")
	a.output.ModelInfo(a.router.Agent().ModelName())
	if path := a.cfg.ConfigPath(); path != "" {
		a.output.Info("Config: " + path)
	}
	a.output.Info("Type /help for commands, exit to quit.")
	a.output.TextLn("")

	sess := &agent.Session{ThreadID: agent.NewThreadID()}
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := a.input.ReadInput(promptPrefix)
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.output.TextLn("")
				return nil
			}
			return err
		}

		action, prompt := a.handler.Handle(ctx, line, sess, a.output)
		// a command chosen from the picker may itself be handled locally
		if action == agent.ActionRoute && prompt != strings.TrimSpace(line) {
			action, prompt = a.handler.Handle(ctx, prompt, sess, a.output)
		}

		switch action {
		case agent.ActionExit:
			return nil
		case agent.ActionHandled:
			continue
		}

		a.logger.Debug("routing prompt", logging.ThreadID(sess.ThreadID), logging.Query(prompt))
		reply := a.router.Route(ctx, prompt, sess.ThreadID, a.output)
		switch {
		case reply.Err != nil && reply.Text == "":
			a.output.Error(reply.Err)
		case reply.Err != nil:
			a.output.ErrorStr(reply.Text)
		default:
			a.output.Answer(reply.Text)
		}
		a.showStatus(sess)
	}
}

// showStatus prints the token usage of the last turn.
func (a *app) showStatus(sess *agent.Session) {
	usage, ok := a.router.Agent().LastUsage(sess.ThreadID)
	if !ok {
		return
	}
	a.output.Status(fmt.Sprintf("tokens: %d in / %d out / %d total",
		usage.InputTokens, usage.OutputTokens, usage.TotalTokens))
}
