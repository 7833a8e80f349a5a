package facade

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ValentinKolb/hKV/lib/common"
	"github.com/ValentinKolb/hKV/lib/handle"
	"github.com/ValentinKolb/hKV/lib/lifecycle"
	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger(common.LoggerFacade)

// maxScriptLine bounds a single line of script input
const maxScriptLine = 16 << 20

// command is a bound command name, args excludes the name itself
type command func(args []string) (string, error)

// Interp evaluates scripts against the resources of one lifecycle.Controller.
//
// The built-in commands are hkv, set and puts. Every handle created through
// the interpreter is bound as an additional command until it is closed.
// An Interp is not safe for concurrent use, each worker owns its own.
type Interp struct {
	ctrl     *lifecycle.Controller
	out      io.Writer
	vars     map[string]string
	commands map[string]command
}

// New creates an interpreter. puts writes to out.
func New(ctrl *lifecycle.Controller, out io.Writer) *Interp {
	in := &Interp{
		ctrl:     ctrl,
		out:      out,
		vars:     make(map[string]string),
		commands: make(map[string]command),
	}
	in.commands["hkv"] = in.hkvCommand
	in.commands["set"] = in.setCommand
	in.commands["puts"] = in.putsCommand
	return in
}

// Controller returns the controller the interpreter dispatches to
func (in *Interp) Controller() *lifecycle.Controller {
	return in.ctrl
}

// Commands returns the sorted names of all currently defined commands
func (in *Interp) Commands() []string {
	names := make([]string, 0, len(in.commands))
	for name := range in.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Eval evaluates a script and returns the result of its last command
func (in *Interp) Eval(script string) (string, error) {
	return in.eval(script)
}

func (in *Interp) eval(script string) (string, error) {
	p := &parser{src: script, interp: in}
	var result string
	for {
		words, err := p.parseCommand()
		if err != nil {
			return "", err
		}
		if words == nil {
			if p.eof() {
				return result, nil
			}
			continue
		}
		if result, err = in.invoke(words); err != nil {
			return "", err
		}
	}
}

// invoke runs a single parsed command
func (in *Interp) invoke(words []string) (string, error) {
	cmd, ok := in.commands[words[0]]
	if !ok {
		// names that look like handles refer to closed or foreign resources
		if _, _, isHandle := handle.ParseHandle(words[0]); isHandle {
			return "", handle.Errorf(handle.RetCInvalidHandle, "invalid handle %s", words[0])
		}
		return "", handle.Errorf(handle.RetCInvalidArgument, "invalid command name %q", words[0])
	}
	return cmd(words[1:])
}

func (in *Interp) variable(name string) (string, error) {
	value, ok := in.vars[name]
	if !ok {
		return "", handle.Errorf(handle.RetCInvalidArgument, "can't read %q: no such variable", name)
	}
	return value, nil
}

// --------------------------------------------------------------------------
// Handle Binding
// --------------------------------------------------------------------------

// bind makes h available as a command
func (in *Interp) bind(h handle.Handle, cmd command) handle.Handle {
	in.commands[h.String()] = cmd
	return h
}

// unbindIfGone drops the command of h once the handle is no longer registered
func (in *Interp) unbindIfGone(h handle.Handle) {
	if _, err := in.ctrl.Context().Lookup(h); err != nil {
		delete(in.commands, h.String())
	}
}

// Close tears down every resource created through the interpreter
func (in *Interp) Close() error {
	for name := range in.commands {
		if _, _, isHandle := handle.ParseHandle(name); isHandle {
			delete(in.commands, name)
		}
	}
	return in.ctrl.Teardown()
}

// --------------------------------------------------------------------------
// Script Execution
// --------------------------------------------------------------------------

// RunOptions control Run
type RunOptions struct {
	// Echo prints the non-empty result of every command
	Echo bool
	// ExitOnError stops at the first failing command
	ExitOnError bool
	// Errors receives one line per failed command, nil discards them
	Errors io.Writer
}

// Run reads commands from r and evaluates each as soon as it is complete.
// Commands may span lines inside braces, quotes and brackets.
// The returned error combines all command failures.
func (in *Interp) Run(r io.Reader, opts RunOptions) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScriptLine)

	var (
		errs    error
		pending strings.Builder
		line    int
		start   int
	)
	for scanner.Scan() {
		line++
		if pending.Len() == 0 {
			start = line
		}
		pending.WriteString(scanner.Text())
		pending.WriteByte('\n')
		if !complete(pending.String()) {
			continue
		}

		script := pending.String()
		pending.Reset()

		result, err := in.eval(script)
		if err != nil {
			err = fmt.Errorf("line %d: %w", start, err)
			Logger.Debugf("command failed: %v", err)
			if opts.Errors != nil {
				fmt.Fprintf(opts.Errors, "error: %v\n", err)
			}
			errs = multierr.Append(errs, err)
			if opts.ExitOnError {
				return errs
			}
			continue
		}
		if opts.Echo && result != "" {
			fmt.Fprintln(in.out, result)
		}
	}
	if err := scanner.Err(); err != nil {
		return multierr.Append(errs, err)
	}
	if pending.Len() > 0 {
		errs = multierr.Append(errs, fmt.Errorf("line %d: incomplete command at end of input", start))
	}
	return errs
}

// --------------------------------------------------------------------------
// Built-in Commands
// --------------------------------------------------------------------------

// setCommand reads or assigns a variable
func (in *Interp) setCommand(args []string) (string, error) {
	switch len(args) {
	case 1:
		return in.variable(args[0])
	case 2:
		in.vars[args[0]] = args[1]
		return args[1], nil
	default:
		return "", wrongArgs("set", "NAME ?VALUE?")
	}
}

// putsCommand writes its arguments separated by spaces
func (in *Interp) putsCommand(args []string) (string, error) {
	if _, err := fmt.Fprintln(in.out, strings.Join(args, " ")); err != nil {
		return "", err
	}
	return "", nil
}
