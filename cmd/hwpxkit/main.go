// Command hwpxkit segments HWPX documents into numbered units and rebuilds
// or merges documents from a selection of them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/FocuswithJustin/hwpxkit/core/engine"
	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/internal/config"
	"github.com/FocuswithJustin/hwpxkit/internal/journal"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
	"github.com/FocuswithJustin/hwpxkit/internal/metrics"
	"github.com/FocuswithJustin/hwpxkit/internal/session"
)

const version = "0.4.0"

// CLI defines the command-line interface.
type CLI struct {
	Config      string `short:"c" help:"Config file (default: ./hwpxkit.toml, then ~/.config/hwpxkit/config.toml)" type:"path"`
	LogLevel    string `name:"log-level" help:"Override logging.level (debug, info, warn, error)"`
	LogFormat   string `name:"log-format" help:"Override logging.format (auto, json, text)"`
	Output      string `short:"o" enum:"table,json,yaml" default:"table" help:"Output format (table, json, yaml)"`
	KeepSession bool   `name:"keep-session" help:"Keep the session workspace after the command"`

	Parse   ParseCmd   `cmd:"" help:"List the numbered units of a document"`
	Build   BuildCmd   `cmd:"" help:"Write a document holding only the selected units"`
	Merge   MergeCmd   `cmd:"" help:"Merge units of several documents into a template"`
	Inspect InspectCmd `cmd:"" help:"Show members, sections and resources of a document"`
	Render  RenderCmd  `cmd:"" help:"Render the equations of selected units to PNG"`
	Journal JournalCmd `cmd:"" help:"Build journal operations"`
	Bundle  BundleCmd  `cmd:"" help:"Diagnostics bundle operations"`
	Conf    ConfigCmd  `cmd:"" name:"config" help:"Configuration file operations"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// app holds what a command needs. The engine, journal and session are
// created on first use.
type app struct {
	cli      *CLI
	cfg      *config.Config
	cfgPath  string
	stdout   io.Writer
	eng      *engine.Engine
	reg      *session.Registry
	sess     *session.Session
	journal  *journal.Journal
	recorder *metrics.PrometheusRecorder
}

func newApp(cli *CLI, stdout io.Writer) (*app, error) {
	cfg, path, _, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(cli.LogLevel)
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = strings.ToLower(cli.LogFormat)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(level, format)
	if path != "" {
		logging.Debug("config loaded", "path", path)
	}
	return &app{cli: cli, cfg: cfg, cfgPath: path, stdout: stdout}, nil
}

func (a *app) openJournal() (*journal.Journal, error) {
	if a.journal != nil || !a.cfg.Journal.Enabled {
		return a.journal, nil
	}
	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	a.journal = j
	return j, nil
}

// session returns the engine and the session of this invocation.
func (a *app) session(ctx context.Context) (*engine.Engine, *session.Session, error) {
	if a.sess != nil {
		return a.eng, a.sess, nil
	}
	j, err := a.openJournal()
	if err != nil {
		return nil, nil, err
	}
	opts := engine.Options{Config: a.cfg, Journal: j}
	if a.cfg.Metrics.Enabled {
		a.recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
		opts.Metrics = a.recorder
	}
	if a.eng, err = engine.New(opts); err != nil {
		return nil, nil, err
	}
	a.reg, err = session.NewRegistry(session.Options{
		Root:         a.cfg.Session.Root,
		IdleTimeout:  a.cfg.SessionIdleTimeout(),
		ReapInterval: a.cfg.SessionReapInterval(),
		OnClose:      a.eng.Forget,
	})
	if err != nil {
		return nil, nil, err
	}
	if a.sess, err = a.reg.Open(ctx); err != nil {
		return nil, nil, err
	}
	return a.eng, a.sess, nil
}

func (a *app) close() {
	if a.sess != nil {
		if a.cli.KeepSession {
			logging.Info("session kept", "session", a.sess.ID, "dir", a.sess.Dir)
		} else if err := a.reg.Shutdown(); err != nil {
			logging.Warn("session not removed", "session", a.sess.ID, "error", err.Error())
		}
	}
	if a.eng != nil {
		a.eng.Close()
	}
	if a.journal != nil {
		a.journal.Close()
	}
	if a.recorder != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.recorder.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			logging.Warn("metrics textfile not written", "path", a.cfg.Metrics.Textfile, "error", err.Error())
		}
	}
}

// run parses args, executes the selected command and returns the process
// exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("hwpxkit"),
		kong.Description("HWPX unit segmentation and recombination"),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "hwpxkit: %v\n", err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "hwpxkit: %v\n", err)
		return 1
	}

	a, err := newApp(&cli, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "hwpxkit: %v\n", err)
		return errors.ExitCode(err)
	}
	err = kctx.Run(a)
	a.close()
	if err != nil {
		fmt.Fprintf(stderr, "hwpxkit: %v\n", err)
		return errors.ExitCode(err)
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
