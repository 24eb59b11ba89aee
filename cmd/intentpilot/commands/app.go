package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MEKXH/intentpilot/internal/advisory"
	"github.com/MEKXH/intentpilot/internal/command"
	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/engine"
	"github.com/MEKXH/intentpilot/internal/evidence"
	"github.com/MEKXH/intentpilot/internal/history"
	"github.com/MEKXH/intentpilot/internal/metrics"
	"github.com/MEKXH/intentpilot/internal/orchestrator"
	"github.com/MEKXH/intentpilot/internal/provider"
	"github.com/MEKXH/intentpilot/internal/session"
	"github.com/MEKXH/intentpilot/internal/voice"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

// app is one wired runtime: engines, sessions, history, evidence and the
// voice agent over them.
type app struct {
	cfg      *config.Config
	out      io.Writer
	metrics  *metrics.RuntimeMetrics
	journal  *evidence.Journal
	emitter  *evidence.Emitter
	archive  *history.Archiver
	workflow *orchestrator.Orchestrator
	voice    *voice.Orchestrator
	commands *command.Registry
}

// newApp wires a runtime from cfg. Replies and rendered sessions go to out.
func newApp(ctx context.Context, cfg *config.Config, collaborators *engine.Collaborators, out io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		out:      out,
		metrics:  metrics.NewRuntimeMetrics(cfg.WorkspacePath()),
		journal:  evidence.NewJournal(cfg.WorkspacePath()),
		commands: command.Defaults(),
	}

	client := engine.NewClient(engine.RoutesFromConfig(cfg.Engines), cfg.EngineTimeout(), a.metrics)
	engines := engine.ForClient(client)
	if collaborators != nil {
		engines = *collaborators
	}

	if cfg.Evidence.Enabled {
		var sinks []evidence.Sink
		if cfg.Evidence.Journal {
			sinks = append(sinks, a.journal)
		}
		if collaborators == nil && (strings.TrimSpace(cfg.Engines.Evidence) != "" || strings.TrimSpace(cfg.Engines.UnifiedURL) != "") {
			sinks = append(sinks, client)
		}
		a.emitter = evidence.NewEmitter(evidence.Options{
			RatePerSecond: cfg.Evidence.RatePerSecond,
			Burst:         cfg.Evidence.Burst,
			QueueSize:     cfg.Evidence.QueueSize,
			SendTimeout:   cfg.EngineTimeout(),
		}, sinks...)
	}

	store, err := history.OpenStore(cfg.History.Backend, cfg.HistoryPath())
	if err != nil {
		a.closeEmitter()
		return nil, fmt.Errorf("open history: %w", err)
	}
	a.archive = history.NewArchiver(store, cfg.History.MaxEntries)

	policy := workflow.UnlockOnConfirmed
	if cfg.Workflow.UnlockOnSelected {
		policy = workflow.UnlockOnSelected
	}
	sessions := session.NewManager(policy)
	sessions.Observe(a.archive.Observe)

	var advisor orchestrator.Advisor
	if cfg.Advisory.Enabled {
		model, err := provider.NewChatModel(ctx, cfg.Advisory)
		if err != nil {
			slog.Warn("advisory disabled", "error", err)
		} else {
			advisor = advisory.New(model, a.emitter, 0)
		}
	}

	a.workflow = orchestrator.New(engines, sessions, advisor, orchestrator.Options{
		TenantID: cfg.Workflow.TenantID,
		ActorID:  cfg.Workflow.ActorID,
		Industry: cfg.Workflow.Industry,
	})

	a.voice = voice.New(a.workflow, sessions, &voice.TextSpeaker{W: out}, voice.Options{
		Continuous:          cfg.Voice.Continuous,
		ConfirmationTimeout: cfg.ConfirmationTimeout(),
		SelectConfirms:      cfg.Voice.SelectConfirmsDecision,
		RescheduleAfter:     cfg.RescheduleAfter(),
		ActorID:             cfg.Workflow.ActorID,
		TenantID:            cfg.Workflow.TenantID,
		Intents:             a.submit,
		Emitter:             a.emitter,
		Metrics:             a.metrics,
	})
	return a, nil
}

// env is what slash commands act on.
func (a *app) env() command.Env {
	return command.Env{
		Workflow:     a.workflow,
		History:      a.archive,
		Journal:      a.journal,
		Config:       a.cfg,
		Metrics:      a.metrics,
		ListCommands: a.commands.List,
	}
}

// submit turns text into intents and prints each resulting session.
func (a *app) submit(ctx context.Context, text string) error {
	sessions, err := a.workflow.Submit(ctx, text)
	for _, s := range sessions {
		fmt.Fprintln(a.out, command.FormatSession(s, a.workflow.Sessions().Policy()))
	}
	return err
}

// handle routes one line of input: slash commands to the registry, anything
// the voice parser understands (or anything while a confirmation is open) to
// the voice agent, the rest to intent submission.
func (a *app) handle(ctx context.Context, input string) {
	if cmd, args, ok := a.commands.Lookup(input); ok {
		fmt.Fprintln(a.out, cmd.Execute(ctx, args, a.env()).Content)
		return
	}
	if strings.HasPrefix(input, "/") {
		fmt.Fprintf(a.out, "Unknown command %s. Type /help for the list.\n", strings.Fields(input)[0])
		return
	}

	_, _, pending := a.voice.Pending()
	if pending || voice.Parse(input, voice.Context{}).Kind != voice.KindUnknown {
		res, err := a.voice.Handle(ctx, input)
		if err != nil {
			if res.Command.Kind == voice.KindUnknown {
				fmt.Fprintf(a.out, "Error: %v\n", err)
			}
			slog.Debug("voice command failed", "input", input, "error", err)
			return
		}
		if res.Command.Kind == voice.KindConfirm {
			if s, ok := a.workflow.Sessions().Active(); ok {
				fmt.Fprintln(a.out, command.FormatSession(s, a.workflow.Sessions().Policy()))
			}
		}
		return
	}

	if err := a.submit(ctx, input); err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
}

// close flushes every tracked session to history within the flush timeout
// and stops evidence delivery.
func (a *app) close() {
	a.voice.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.FlushTimeout())
	defer cancel()
	if err := a.archive.Flush(ctx, a.workflow.Sessions().List()); err != nil {
		slog.Warn("history flush incomplete", "error", err)
	}
	if err := a.archive.Close(); err != nil {
		slog.Warn("close history failed", "error", err)
	}
	a.closeEmitter()
}

func (a *app) closeEmitter() {
	if a.emitter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.FlushTimeout())
	defer cancel()
	if err := a.emitter.Close(ctx); err != nil {
		slog.Warn("evidence not fully delivered", "error", err, "dropped", a.emitter.Dropped())
	}
}
