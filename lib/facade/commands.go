package facade

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/hKV/lib/db"
	"github.com/ValentinKolb/hKV/lib/handle"
	"github.com/ValentinKolb/hKV/lib/lifecycle"
)

// okResult is the result of commands that only report success
const okResult = "0"

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func wrongArgs(name, usage string) error {
	if usage == "" {
		return handle.Errorf(handle.RetCInvalidArgument, "wrong # args: should be %q", name)
	}
	return handle.Errorf(handle.RetCInvalidArgument, "wrong # args: should be %q", name+" "+usage)
}

func boolResult(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// subcommand is one entry of a command ensemble
type subcommand func(h handle.Handle, args []string) (string, error)

// ensemble dispatches the first argument to one of subs
func ensemble(name string, h handle.Handle, subs map[string]subcommand) command {
	return func(args []string) (string, error) {
		if len(args) == 0 {
			return "", wrongArgs(name, "SUBCOMMAND ...")
		}
		sub, found := subs[args[0]]
		if !found {
			names := make([]string, 0, len(subs))
			for n := range subs {
				names = append(names, n)
			}
			sort.Strings(names)
			return "", handle.Errorf(handle.RetCInvalidArgument, "bad subcommand %q: must be %s", args[0], strings.Join(names, ", "))
		}
		return sub(h, args[1:])
	}
}

// flagArgs splits args into exactly n positional words followed by
// "-name value" pairs. Only the names in allowed are accepted.
func flagArgs(name, usage string, args []string, n int, allowed ...string) ([]string, map[string]string, error) {
	if len(args) < n || (len(args)-n)%2 != 0 {
		return nil, nil, wrongArgs(name, usage)
	}
	flags := make(map[string]string, (len(args)-n)/2)
	for i := n; i < len(args); i += 2 {
		flag, found := strings.CutPrefix(args[i], "-")
		if !found {
			return nil, nil, wrongArgs(name, usage)
		}
		known := false
		for _, a := range allowed {
			if a == flag {
				known = true
				break
			}
		}
		if !known {
			return nil, nil, handle.Errorf(handle.RetCInvalidArgument, "bad option %q: must be -%s", args[i], strings.Join(allowed, ", -"))
		}
		flags[flag] = args[i+1]
	}
	return args[:n], flags, nil
}

// boolFlag parses an optional boolean flag
func boolFlag(flags map[string]string, name string) (bool, error) {
	value, found := flags[name]
	if !found {
		return false, nil
	}
	b, err := db.ParseBool(value)
	if err != nil {
		return false, handle.WrapError(handle.RetCInvalidArgument, err, "-"+name)
	}
	return b, nil
}

// --------------------------------------------------------------------------
// hkv Command
// --------------------------------------------------------------------------

// hkvCommand implements the process-wide operations
func (in *Interp) hkvCommand(args []string) (string, error) {
	subs := map[string]subcommand{
		"open": in.hkvOpen,
		"repair": func(_ handle.Handle, args []string) (string, error) {
			if len(args) != 1 {
				return "", wrongArgs("hkv repair", "PATH")
			}
			return okResult, in.ctrl.Repair(args[0])
		},
		"destroy": func(_ handle.Handle, args []string) (string, error) {
			if len(args) != 1 {
				return "", wrongArgs("hkv destroy", "PATH")
			}
			return okResult, in.ctrl.Destroy(args[0])
		},
		"version": func(_ handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs("hkv version", "")
			}
			v := in.ctrl.Version()
			return fmt.Sprintf("%d %d %d", v.Major, v.Minor, v.Patch), nil
		},
		"batch": func(_ handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs("hkv batch", "")
			}
			return in.newBatch()
		},
		"handles": func(_ handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs("hkv handles", "")
			}
			handles := in.ctrl.Context().Handles()
			words := make([]string, len(handles))
			for i, h := range handles {
				words[i] = h.String()
			}
			return strings.Join(words, " "), nil
		},
	}
	return ensemble("hkv", handle.NoHandle, subs)(args)
}

// hkvOpen parses the open options. Every option of db.Options is accepted
// as a flag of the same name.
func (in *Interp) hkvOpen(_ handle.Handle, args []string) (string, error) {
	if len(args) < 2 || len(args)%2 != 0 {
		return "", wrongArgs("hkv open", "-path PATH ?-OPTION VALUE ...?")
	}

	var (
		path string
		opts db.Options
	)
	for i := 0; i < len(args); i += 2 {
		name, found := strings.CutPrefix(args[i], "-")
		if !found {
			return "", wrongArgs("hkv open", "-path PATH ?-OPTION VALUE ...?")
		}
		if name == "path" {
			path = args[i+1]
			continue
		}
		if err := opts.Set(name, args[i+1]); err != nil {
			return "", handle.WrapError(handle.RetCInvalidArgument, err, "open")
		}
	}
	if path == "" {
		return "", handle.NewError(handle.RetCInvalidArgument, "open requires -path")
	}

	h, err := in.ctrl.Open(path, opts)
	if err != nil {
		return "", err
	}
	return in.bind(h, ensemble(h.String(), h, in.databaseCommands())).String(), nil
}

func (in *Interp) newBatch() (string, error) {
	h, err := in.ctrl.NewBatch()
	if err != nil {
		return "", err
	}
	return in.bind(h, ensemble(h.String(), h, in.batchCommands())).String(), nil
}

// closeCommand closes h and unbinds its command
func (in *Interp) closeCommand(h handle.Handle, args []string) (string, error) {
	if len(args) != 0 {
		return "", wrongArgs(h.String()+" close", "")
	}
	err := in.ctrl.Close(h)
	in.unbindIfGone(h)
	if err != nil {
		return "", err
	}
	return okResult, nil
}

// --------------------------------------------------------------------------
// Database Commands
// --------------------------------------------------------------------------

func (in *Interp) databaseCommands() map[string]subcommand {
	return map[string]subcommand{
		"get": in.dbGet,
		"put": in.dbPut,
		"delete": in.dbDelete,
		"exists": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 1 {
				return "", wrongArgs(h.String()+" exists", "KEY")
			}
			found, err := in.ctrl.KeyMayExist(h, []byte(args[0]))
			if err != nil {
				return "", err
			}
			return boolResult(found), nil
		},
		"write": in.dbWrite,
		"batch": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs(h.String()+" batch", "")
			}
			return in.newBatch()
		},
		"iterator": in.dbIterator,
		"snapshot": in.dbSnapshot,
		"getApproximateSizes": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 2 {
				return "", wrongArgs(h.String()+" getApproximateSizes", "START LIMIT")
			}
			size, err := in.ctrl.ApproximateSize(h, []byte(args[0]), []byte(args[1]))
			if err != nil {
				return "", err
			}
			return strconv.FormatUint(size, 10), nil
		},
		"getName": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs(h.String()+" getName", "")
			}
			return in.ctrl.Name(h)
		},
		"getProperty": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 1 {
				return "", wrongArgs(h.String()+" getProperty", "NAME")
			}
			return in.ctrl.Property(h, args[0])
		},
		"close": in.closeCommand,
	}
}

func (in *Interp) dbGet(h handle.Handle, args []string) (string, error) {
	pos, flags, err := flagArgs(h.String()+" get", "KEY ?-fillCache BOOLEAN? ?-snapshot HANDLE?", args, 1, "fillCache", "snapshot")
	if err != nil {
		return "", err
	}
	opts := lifecycle.ReadOptions{Snapshot: handle.Handle(flags["snapshot"])}
	if opts.FillCache, err = boolFlag(flags, "fillCache"); err != nil {
		return "", err
	}
	value, err := in.ctrl.Get(h, []byte(pos[0]), opts)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (in *Interp) dbPut(h handle.Handle, args []string) (string, error) {
	pos, flags, err := flagArgs(h.String()+" put", "KEY DATA ?-sync BOOLEAN?", args, 2, "sync")
	if err != nil {
		return "", err
	}
	var opts db.WriteOptions
	if opts.Sync, err = boolFlag(flags, "sync"); err != nil {
		return "", err
	}
	return okResult, in.ctrl.Put(h, []byte(pos[0]), []byte(pos[1]), opts)
}

func (in *Interp) dbDelete(h handle.Handle, args []string) (string, error) {
	pos, flags, err := flagArgs(h.String()+" delete", "KEY ?-sync BOOLEAN?", args, 1, "sync")
	if err != nil {
		return "", err
	}
	var opts db.WriteOptions
	if opts.Sync, err = boolFlag(flags, "sync"); err != nil {
		return "", err
	}
	return okResult, in.ctrl.Delete(h, []byte(pos[0]), opts)
}

func (in *Interp) dbWrite(h handle.Handle, args []string) (string, error) {
	pos, flags, err := flagArgs(h.String()+" write", "BATCH ?-sync BOOLEAN?", args, 1, "sync")
	if err != nil {
		return "", err
	}
	var opts db.WriteOptions
	if opts.Sync, err = boolFlag(flags, "sync"); err != nil {
		return "", err
	}
	return okResult, in.ctrl.Write(h, handle.Handle(pos[0]), opts)
}

func (in *Interp) dbIterator(h handle.Handle, args []string) (string, error) {
	_, flags, err := flagArgs(h.String()+" iterator", "?-snapshot HANDLE?", args, 0, "snapshot")
	if err != nil {
		return "", err
	}
	itr, err := in.ctrl.NewIterator(h, lifecycle.IteratorOptions{Snapshot: handle.Handle(flags["snapshot"])})
	if err != nil {
		return "", err
	}
	return in.bind(itr, ensemble(itr.String(), itr, in.iteratorCommands())).String(), nil
}

func (in *Interp) dbSnapshot(h handle.Handle, args []string) (string, error) {
	if len(args) != 0 {
		return "", wrongArgs(h.String()+" snapshot", "")
	}
	snap, err := in.ctrl.NewSnapshot(h)
	if err != nil {
		return "", err
	}
	return in.bind(snap, ensemble(snap.String(), snap, in.snapshotCommands())).String(), nil
}

// --------------------------------------------------------------------------
// Iterator, Batch and Snapshot Commands
// --------------------------------------------------------------------------

func (in *Interp) iteratorCommands() map[string]subcommand {
	// noArgs adapts an iterator step without arguments
	noArgs := func(name string, fn func(handle.Handle) error) subcommand {
		return func(h handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs(h.String()+" "+name, "")
			}
			return okResult, fn(h)
		}
	}
	// read adapts an iterator accessor
	read := func(name string, fn func(handle.Handle) ([]byte, error)) subcommand {
		return func(h handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs(h.String()+" "+name, "")
			}
			b, err := fn(h)
			return string(b), err
		}
	}

	return map[string]subcommand{
		"seektofirst": noArgs("seektofirst", in.ctrl.SeekToFirst),
		"seektolast":  noArgs("seektolast", in.ctrl.SeekToLast),
		"next":        noArgs("next", in.ctrl.Next),
		"prev":        noArgs("prev", in.ctrl.Prev),
		"key":         read("key", in.ctrl.Key),
		"value":       read("value", in.ctrl.Value),
		"seek": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 1 {
				return "", wrongArgs(h.String()+" seek", "KEY")
			}
			return okResult, in.ctrl.Seek(h, []byte(args[0]))
		},
		"valid": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs(h.String()+" valid", "")
			}
			valid, err := in.ctrl.Valid(h)
			if err != nil {
				return "", err
			}
			return boolResult(valid), nil
		},
		"close": in.closeCommand,
	}
}

func (in *Interp) batchCommands() map[string]subcommand {
	return map[string]subcommand{
		"put": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 2 {
				return "", wrongArgs(h.String()+" put", "KEY DATA")
			}
			return okResult, in.ctrl.BatchPut(h, []byte(args[0]), []byte(args[1]))
		},
		"delete": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 1 {
				return "", wrongArgs(h.String()+" delete", "KEY")
			}
			return okResult, in.ctrl.BatchDelete(h, []byte(args[0]))
		},
		"count": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs(h.String()+" count", "")
			}
			n, err := in.ctrl.BatchCount(h)
			if err != nil {
				return "", err
			}
			return strconv.Itoa(n), nil
		},
		"clear": func(h handle.Handle, args []string) (string, error) {
			if len(args) != 0 {
				return "", wrongArgs(h.String()+" clear", "")
			}
			return okResult, in.ctrl.BatchClear(h)
		},
		"close": in.closeCommand,
	}
}

func (in *Interp) snapshotCommands() map[string]subcommand {
	return map[string]subcommand{
		"close": func(h handle.Handle, args []string) (string, error) {
			_, flags, err := flagArgs(h.String()+" close", "-db HANDLE", args, 0, "db")
			if err != nil {
				return "", err
			}
			dbh, found := flags["db"]
			if !found {
				return "", wrongArgs(h.String()+" close", "-db HANDLE")
			}
			err = in.ctrl.CloseSnapshot(h, handle.Handle(dbh))
			in.unbindIfGone(h)
			if err != nil {
				return "", err
			}
			return okResult, nil
		},
	}
}
