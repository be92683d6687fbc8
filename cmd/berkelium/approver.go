package main

import (
	"context"
	"errors"
	"os"

	"github.com/BerkeliumLabs/berkelium/internal/commands"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
	"github.com/BerkeliumLabs/berkelium/internal/permissions"
	"github.com/BerkeliumLabs/berkelium/internal/tui"
)

// startApprover answers gate requests until ctx ends or Close is called.
// Interactive terminals get the Bubble Tea prompt, anything else a line prompt.
func (a *app) startApprover(ctx context.Context, interactive bool) {
	ctx, cancel := context.WithCancel(ctx)
	a.stopApprover = cancel
	a.approverDone = make(chan struct{})

	go func() {
		defer close(a.approverDone)
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-a.gate.Requests():
				a.approve(ctx, req, interactive)
			}
		}
	}()
}

func (a *app) approve(ctx context.Context, req *permissions.Request, interactive bool) {
	log := a.logger.With(logging.ThreadID(req.ThreadID), logging.ToolName(req.Call.Name))

	var decision permissions.Decision
	if interactive {
		d, err := tui.Ask(ctx, req, os.Stdin, os.Stdout)
		switch {
		case errors.Is(err, tui.ErrRequestExpired):
			a.output.Warning("Permission request for " + req.Call.Name + " timed out")
			return
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			log.Warn("approval prompt failed, falling back to line mode", logging.Error(err))
			d = a.askLine(req)
		}
		decision = d
	} else {
		decision = a.askLine(req)
	}

	if !req.Respond(decision) {
		a.output.Warning("Permission request for " + req.Call.Name + " expired before a decision was made")
		log.Debug("late approval ignored", logging.Decision(string(decision)))
		return
	}
	log.Debug("approval delivered", logging.Decision(string(decision)))
}

// askLine is the line-mode fallback. Read errors deny.
func (a *app) askLine(req *permissions.Request) permissions.Decision {
	a.output.PermissionPrompt(req)
	d, err := a.input.Approve("Allow this action?")
	if err != nil {
		a.logger.Debug("approval input closed", logging.ToolName(req.Call.Name), logging.Error(err))
	}
	return d
}

func pickCommand(ctx context.Context, options []commands.Option) (string, bool, error) {
	return tui.PickCommand(ctx, options, os.Stdin, os.Stdout)
}
