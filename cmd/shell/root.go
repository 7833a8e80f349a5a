package shell

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ValentinKolb/hKV/cmd/util"
	"github.com/ValentinKolb/hKV/lib/common"
	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/ValentinKolb/hKV/lib/facade"
	"github.com/ValentinKolb/hKV/lib/handle"
	"github.com/ValentinKolb/hKV/lib/lifecycle"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var Logger = logger.GetLogger(common.LoggerShell)

var (
	// ShellCmd runs scripts, one worker per script file
	ShellCmd = &cobra.Command{
		Use:   "shell [SCRIPT...]",
		Short: "Run hKV scripts or read commands from stdin",
		Long: `Run each SCRIPT on its own worker with its own set of handles. Handles
of one script are never visible to another. Everything a script leaves
open is closed when it ends. Without SCRIPT arguments commands are read
from stdin; on a terminal the result of every command is printed.

See the facade package documentation for the command language.`,
		RunE: run,
	}
)

func init() {
	key := "exit-on-error"
	ShellCmd.Flags().Bool(key, false, util.WrapString("Stop a script at its first failing command"))
	key = "metrics"
	ShellCmd.Flags().Bool(key, false, util.WrapString("Print handle and engine call metrics when all scripts are done"))
}

func run(cmd *cobra.Command, args []string) error {
	config := util.GetConfig()
	Logger.Debugf("configuration:%s", config.String())

	r := &runner{
		engine:  util.NewEngine(config),
		pool:    handle.NewPool(util.ContextOptions(config)),
		out:     &syncWriter{w: cmd.OutOrStdout()},
		errOut:  &syncWriter{w: cmd.ErrOrStderr()},
		options: facade.RunOptions{ExitOnError: config.ExitOnError},
	}

	var err error
	if len(args) == 0 {
		err = r.stdin(cmd.InOrStdin())
	} else {
		err = r.scripts(args)
	}
	err = multierr.Append(err, r.pool.Close())

	if config.PrintMetrics {
		r.writeMetrics()
	}
	return err
}

// --------------------------------------------------------------------------
// Runner
// --------------------------------------------------------------------------

// runner executes scripts on workers of a shared context pool
type runner struct {
	engine  db.Engine
	pool    *handle.Pool
	out     io.Writer
	errOut  io.Writer
	options facade.RunOptions

	mu          sync.Mutex
	controllers []*lifecycle.Controller
}

// worker evaluates one script inside a fresh context, the context is torn
// down when the script ends
func (r *runner) worker(name string, script io.Reader, opts facade.RunOptions) error {
	err := r.pool.Run(func(ctx *handle.Context) error {
		ctrl := lifecycle.New(ctx, r.engine)
		r.mu.Lock()
		r.controllers = append(r.controllers, ctrl)
		r.mu.Unlock()

		Logger.Infof("running %s in context %s", name, ctx.ID())
		opts.Errors = &prefixWriter{prefix: name + ": ", w: r.errOut}
		return facade.New(ctrl, r.out).Run(script, opts)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// scripts runs every script file concurrently and waits for all of them
func (r *runner) scripts(paths []string) error {
	var g errgroup.Group
	for _, path := range paths {
		path := path
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			return r.worker(path, f, r.options)
		})
	}
	return g.Wait()
}

// stdin runs commands read from in, echoing results on a terminal
func (r *runner) stdin(in io.Reader) error {
	opts := r.options
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		opts.Echo = true
	}
	return r.worker("stdin", in, opts)
}

func (r *runner) writeMetrics() {
	handle.WriteMetrics(r.out)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ctrl := range r.controllers {
		fmt.Fprintf(r.out, "# context %s\n", ctrl.Context().ID())
		ctrl.WriteMetrics(r.out)
	}
}

// --------------------------------------------------------------------------
// Writers
// --------------------------------------------------------------------------

// syncWriter serializes writes of concurrent workers
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// prefixWriter prepends the script name to each error line
type prefixWriter struct {
	prefix string
	w      io.Writer
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	if _, err := p.w.Write(append([]byte(p.prefix), b...)); err != nil {
		return 0, err
	}
	return len(b), nil
}
