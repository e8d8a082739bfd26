package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harun/telsh/internal/shell"
	"github.com/harun/telsh/internal/telegram"
)

// registerHandlers wires the Telegram surface to the shell session
// manager: slash commands, bare text (which IS a shell command), and
// incoming files.
func (d *Daemon) registerHandlers() {
	d.commands = telegram.NewCommands(d.bot)
	d.handler = telegram.NewHandler(d.bot)
	d.media = telegram.NewMedia(d.bot)

	d.commands.Register("start", "open a shell session", d.cmdStart)
	d.commands.Register("end", "close the shell session", d.cmdEnd)
	d.commands.Register("controlc", "interrupt the running command", d.cmdControlC)
	d.commands.Register("type", "type raw text into the shell", d.cmdType)
	d.commands.Register("download", "send host files to this chat", d.cmdDownload)
	d.commands.Register("rc", "run a remote copy with progress", d.cmdTransfer)
	d.commands.Register("rccancel", "cancel a running remote copy", d.cmdTransferCancel)
	d.commands.Register("history", "show recent commands", d.cmdHistory)
	d.commands.Register("status", "show session and daemon status", d.cmdStatus)

	d.handler.SetOnMessage(d.onShellCommand)

	d.media.SetDestDir(func(userID int64) string {
		if cwd, ok := d.shellMgr.Cwd(userID); ok {
			return cwd
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		return home
	})
	d.media.SetOnFileSaved(func(chatID, userID int64, path string) error {
		return d.messenger.SendText(chatID, fmt.Sprintf("saved %s", path))
	})

	d.bot.SetCommandHandler(d.commands)
	d.bot.SetMessageHandler(d.handler)
	d.bot.SetMediaHandler(d.media)
}

func (d *Daemon) cmdStart(ctx telegram.CommandContext) error {
	err := d.shellMgr.Start(ctx.UserID, ctx.ChatID)
	switch {
	case errors.Is(err, shell.ErrSessionExists):
		return d.commands.SendResponse(ctx, "a session is already open, /end it first")
	case err != nil:
		d.logger.Error().Err(err).Int64("user_id", ctx.UserID).Msg("Session start failed")
		return d.commands.SendResponse(ctx, "could not start a shell session")
	}
	return nil
}

func (d *Daemon) cmdEnd(ctx telegram.CommandContext) error {
	ended, err := d.shellMgr.End(ctx.UserID)
	if err != nil {
		return err
	}
	if !ended {
		return d.commands.SendResponse(ctx, "no session to end")
	}
	return d.commands.SendResponse(ctx, "session ended")
}

func (d *Daemon) cmdControlC(ctx telegram.CommandContext) error {
	err := d.shellMgr.Interrupt(ctx.UserID)
	switch {
	case errors.Is(err, shell.ErrNoSession):
		return d.commands.SendResponse(ctx, "no active session, /start one first")
	case errors.Is(err, shell.ErrProcessGone):
		return d.commands.SendResponse(ctx, "shell process is already gone, /end and /start again")
	case err != nil:
		return err
	}
	return nil
}

func (d *Daemon) cmdType(ctx telegram.CommandContext) error {
	if ctx.RawArgs == "" {
		return d.commands.SendResponse(ctx, "usage: /type <text>")
	}

	err := d.shellMgr.TypeText(ctx.UserID, ctx.RawArgs)
	if errors.Is(err, shell.ErrNoSession) {
		return d.commands.SendResponse(ctx, "no active session, /start one first")
	}
	if err != nil {
		return err
	}

	d.recordHistory(ctx.UserID, ctx.RawArgs, "raw")
	return d.commands.SendResponse(ctx, "typed: "+ctx.RawArgs)
}

func (d *Daemon) cmdDownload(ctx telegram.CommandContext) error {
	if len(ctx.Args) == 0 {
		return d.commands.SendResponse(ctx, "usage: /download <path> [path ...]")
	}

	cwd, _ := d.shellMgr.Cwd(ctx.UserID)

	for _, arg := range ctx.Args {
		path := arg
		if !filepath.IsAbs(path) && cwd != "" {
			path = filepath.Join(cwd, path)
		}
		if err := d.media.UploadFile(ctx.ChatID, path, ""); err != nil {
			d.logger.Warn().Err(err).Str("path", path).Msg("Download failed")
			if err := d.commands.SendResponse(ctx, fmt.Sprintf("%s: %v", arg, err)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Daemon) cmdTransfer(ctx telegram.CommandContext) error {
	if ctx.RawArgs == "" {
		return d.commands.SendResponse(ctx, "usage: /rc <rclone arguments>")
	}

	if _, err := d.transfers.Start(ctx.ChatID, ctx.RawArgs); err != nil {
		return d.commands.SendResponse(ctx, fmt.Sprintf("transfer failed to start: %v", err))
	}
	return nil
}

func (d *Daemon) cmdTransferCancel(ctx telegram.CommandContext) error {
	if len(ctx.Args) != 1 {
		active := d.transfers.Active()
		if len(active) == 0 {
			return d.commands.SendResponse(ctx, "usage: /rccancel <job id> (no jobs running)")
		}
		return d.commands.SendResponse(ctx,
			fmt.Sprintf("usage: /rccancel <job id>\nrunning: %s", strings.Join(active, ", ")))
	}

	if !d.transfers.Cancel(ctx.Args[0]) {
		return d.commands.SendResponse(ctx, fmt.Sprintf("no transfer %s", ctx.Args[0]))
	}
	return nil
}

func (d *Daemon) cmdHistory(ctx telegram.CommandContext) error {
	if d.historyDB == nil {
		return d.commands.SendResponse(ctx, "command history is disabled")
	}

	limit := 20
	if len(ctx.Args) > 0 {
		if n, err := strconv.Atoi(ctx.Args[0]); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := d.historyDB.Recent(ctx.UserID, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return d.commands.SendResponse(ctx, "no commands recorded yet")
	}

	var b strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(&b, "%s  %s\n", e.DispatchedAt.Format("01-02 15:04"), e.Command)
	}
	_, err = d.messenger.SendCode(ctx.ChatID, b.String())
	return err
}

func (d *Daemon) cmdStatus(ctx telegram.CommandContext) error {
	var b strings.Builder

	daemonStatus := d.Status()
	fmt.Fprintf(&b, "daemon up %s\n", daemonStatus.Uptime.Round(time.Second))

	if st, ok := d.shellMgr.Status(ctx.UserID); ok {
		state := "idle"
		if st.Busy {
			state = "busy"
		}
		if !st.Alive {
			state = "dead (use /end then /start)"
		}
		fmt.Fprintf(&b, "session pid %d, %s\ncwd %s\nstarted %s",
			st.Pid, state, st.Cwd, st.StartedAt.Format("15:04:05"))
	} else {
		b.WriteString("no active session")
	}

	if active := d.transfers.Active(); len(active) > 0 {
		fmt.Fprintf(&b, "\ntransfers: %s", strings.Join(active, ", "))
	}

	_, err := d.messenger.SendCode(ctx.ChatID, b.String())
	return err
}

// onShellCommand runs a bare text message as a shell command.
func (d *Daemon) onShellCommand(ctx telegram.MessageContext) error {
	err := d.shellMgr.Dispatch(ctx.UserID, ctx.Text)
	switch {
	case errors.Is(err, shell.ErrNoSession):
		return d.handler.SendResponse(ctx, "no active session, /start one first")
	case errors.Is(err, shell.ErrBusy):
		return d.handler.SendResponse(ctx, "a command is still running, /controlc to interrupt it")
	case errors.Is(err, shell.ErrShellDead):
		return d.handler.SendResponse(ctx, "the shell has exited, /end and /start again")
	case err != nil:
		d.logger.Error().Err(err).Int64("user_id", ctx.UserID).Msg("Dispatch failed")
		return d.handler.SendResponse(ctx, "could not run that command")
	}

	kind := "plain"
	if shell.IsChdir(ctx.Text) {
		kind = "chdir"
	}
	d.recordHistory(ctx.UserID, ctx.Text, kind)
	return nil
}

func (d *Daemon) recordHistory(userID int64, command, kind string) {
	if d.historyDB == nil {
		return
	}
	if err := d.historyDB.Record(userID, command, kind, uuid.NewString()); err != nil {
		d.logger.Warn().Err(err).Msg("History record failed")
	}
}
