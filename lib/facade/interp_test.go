package facade

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ValentinKolb/hKV/lib/db/engines/pebble"
	"github.com/ValentinKolb/hKV/lib/handle"
	"github.com/ValentinKolb/hKV/lib/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var engine = pebble.NewEngine(nil)

func newInterp(t *testing.T, opts *handle.ContextOptions) (*Interp, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	in := New(lifecycle.New(handle.NewContext(opts), engine), &out)
	t.Cleanup(func() {
		assert.NoError(t, in.Close())
	})
	return in, &out
}

// mustEval evaluates script and fails the test on error
func mustEval(t *testing.T, in *Interp, script string) string {
	t.Helper()
	result, err := in.Eval(script)
	require.NoError(t, err, "script: %s", script)
	return result
}

func requireCode(t *testing.T, code handle.RetCode, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, handle.CodeOf(err), "unexpected error %v", err)
}

// openScript returns a command opening a fresh database
func openScript(t *testing.T) string {
	return fmt.Sprintf("hkv open -path {%s} -create_if_missing yes", filepath.Join(t.TempDir(), "db"))
}

func TestSyntax(t *testing.T) {
	in, _ := newInterp(t, nil)

	tests := []struct {
		script string
		want   string
	}{
		{"set a 1", "1"},
		{"set a 1; set a", "1"},
		{"set b {x y}; set b", "x y"},
		{"set a 1; set b 2; set c \"$a [set b]\"", "1 2"},
		{"set n {a {b} c}", "a {b} c"},
		{"set n {no $subst [here]}", "no $subst [here]"},
		{"set v 3; set w ${v}4", "34"},
		{"set e \"tab\\tnewline\\n\"", "tab\tnewline\n"},
		{"set d $", "$"},
		{"# comment\nset a ok", "ok"},
		{"set a [set b [set c deep]]", "deep"},
		{"", ""},
		{"set a x\n\n  \nset a", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, in, tt.script))
		})
	}
}

func TestSyntaxErrors(t *testing.T) {
	in, _ := newInterp(t, nil)

	for _, script := range []string{"set a {open", "set a \"open", "set a [set b"} {
		_, err := in.Eval(script)
		var incomplete *errIncomplete
		assert.ErrorAs(t, err, &incomplete, script)
	}

	_, err := in.Eval("set a {x}y")
	assert.ErrorContains(t, err, "extra characters after close-brace")

	_, err = in.Eval("set a $missing")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval("frobnicate")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval("db7 get k")
	requireCode(t, handle.RetCInvalidHandle, err)
}

func TestComplete(t *testing.T) {
	tests := []struct {
		script string
		want   bool
	}{
		{"set a b", true},
		{"set a {b", false},
		{"set a {b}", true},
		{"set a {{b}", false},
		{"set a \"b", false},
		{"set a \"{\"", true},
		{"set a [x", false},
		{"set a [x]", true},
		{"set a \\{", true},
		{"# it's {\nset a b", true},
		{"set a b; # {", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, complete(tt.script), tt.script)
	}
}

func TestDatabaseCommands(t *testing.T) {
	in, _ := newInterp(t, nil)

	dbh := mustEval(t, in, openScript(t))
	assert.Equal(t, "db0", dbh)

	assert.Equal(t, "0", mustEval(t, in, "db0 put greeting {hello world}"))
	assert.Equal(t, "hello world", mustEval(t, in, "db0 get greeting"))
	assert.Equal(t, "hello world", mustEval(t, in, "db0 get greeting -fillCache false"))
	assert.Equal(t, "1", mustEval(t, in, "db0 exists greeting"))
	assert.Equal(t, "0", mustEval(t, in, "db0 delete greeting -sync on"))
	assert.Equal(t, "0", mustEval(t, in, "db0 exists greeting"))

	_, err := in.Eval("db0 get greeting")
	requireCode(t, handle.RetCEngineError, err)

	_, err = in.Eval("db0 put {} value")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval("db0 put k v -sync maybe")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval("db0 put k v -fillCache 1")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval("db0 put k")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval("db0 frobnicate")
	requireCode(t, handle.RetCInvalidArgument, err)

	assert.True(t, strings.HasSuffix(mustEval(t, in, "db0 getName"), "db"))
	mustEval(t, in, "db0 put a 1; db0 put b 2")
	mustEval(t, in, "db0 getApproximateSizes a z")
	assert.NotEmpty(t, mustEval(t, in, "db0 getProperty pebble.stats"))

	_, err = in.Eval("db0 getProperty nope")
	requireCode(t, handle.RetCUnknownProperty, err)
}

func TestHandleBinding(t *testing.T) {
	in, _ := newInterp(t, nil)

	mustEval(t, in, "set db ["+openScript(t)+"]")
	assert.Contains(t, in.Commands(), "db0")

	assert.Equal(t, "0", mustEval(t, in, "$db close"))
	assert.NotContains(t, in.Commands(), "db0")

	_, err := in.Eval("$db get k")
	requireCode(t, handle.RetCInvalidHandle, err)

	// counters are never reused
	assert.Equal(t, "db1", mustEval(t, in, openScript(t)))
}

func TestOpenOptions(t *testing.T) {
	in, _ := newInterp(t, nil)
	path := filepath.Join(t.TempDir(), "db")

	_, err := in.Eval(fmt.Sprintf("hkv open -path {%s}", path))
	requireCode(t, handle.RetCEngineError, err)

	_, err = in.Eval("hkv open")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval("hkv open -create_if_missing 1 -compression snappy")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval(fmt.Sprintf("hkv open -path {%s} -compression brotli", path))
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval(fmt.Sprintf("hkv open -path {%s} -bogus 1", path))
	requireCode(t, handle.RetCInvalidArgument, err)

	script := fmt.Sprintf("hkv open -path {%s} -create_if_missing true -compression lz4 "+
		"-write_buffer_size 4194304 -max_write_buffer_number 3 -target_file_size_base 2097152 "+
		"-max_open_files 100 -paranoid_checks 1 -use_fsync 0", path)
	assert.Equal(t, "db0", mustEval(t, in, script))
	mustEval(t, in, "db0 close")

	assert.Equal(t, "db1", mustEval(t, in, fmt.Sprintf("hkv open -path {%s} -readonly 1", path)))
	_, err = in.Eval("db1 put k v")
	requireCode(t, handle.RetCEngineError, err)
}

func TestIteratorCommands(t *testing.T) {
	in, _ := newInterp(t, nil)

	mustEval(t, in, openScript(t))
	mustEval(t, in, "db0 put a 1; db0 put b 2; db0 put c 3")

	itr := mustEval(t, in, "db0 iterator")
	assert.Equal(t, "itr0", itr)

	_, err := in.Eval("itr0 key")
	requireCode(t, handle.RetCInvalidArgument, err)

	mustEval(t, in, "itr0 seektofirst")
	var keys []string
	for mustEval(t, in, "itr0 valid") == "1" {
		keys = append(keys, mustEval(t, in, "itr0 key")+"="+mustEval(t, in, "itr0 value"))
		mustEval(t, in, "itr0 next")
	}
	assert.Equal(t, []string{"a=1", "b=2", "c=3"}, keys)

	mustEval(t, in, "itr0 seektolast")
	assert.Equal(t, "c", mustEval(t, in, "itr0 key"))
	mustEval(t, in, "itr0 prev")
	assert.Equal(t, "b", mustEval(t, in, "itr0 key"))
	mustEval(t, in, "itr0 seek bb")
	assert.Equal(t, "c", mustEval(t, in, "itr0 key"))

	_, err = in.Eval("db0 close")
	requireCode(t, handle.RetCDependentsOpen, err)
	assert.Contains(t, in.Commands(), "db0")

	mustEval(t, in, "itr0 close")
	mustEval(t, in, "db0 close")
}

func TestBatchCommands(t *testing.T) {
	in, _ := newInterp(t, nil)

	mustEval(t, in, openScript(t))
	mustEval(t, in, "db0 put gone x")

	assert.Equal(t, "bat0", mustEval(t, in, "hkv batch"))
	assert.Equal(t, "bat1", mustEval(t, in, "db0 batch"))

	mustEval(t, in, "bat0 put a 1; bat0 put b 2; bat0 delete gone")
	_, err := in.Eval("bat0 put {} 1")
	requireCode(t, handle.RetCInvalidArgument, err)
	assert.Equal(t, "3", mustEval(t, in, "bat0 count"))

	mustEval(t, in, "bat1 put c 3")
	assert.Equal(t, "0", mustEval(t, in, "bat1 clear"))
	assert.Equal(t, "0", mustEval(t, in, "bat1 count"))
	_, err = in.Eval("bat1 count extra")
	requireCode(t, handle.RetCInvalidArgument, err)

	assert.Equal(t, "0", mustEval(t, in, "db0 write bat0 -sync 1"))
	assert.Equal(t, "1", mustEval(t, in, "db0 get a"))
	assert.Equal(t, "0", mustEval(t, in, "db0 exists gone"))

	_, err = in.Eval("db0 write db0")
	requireCode(t, handle.RetCInvalidHandle, err)

	mustEval(t, in, "bat0 close; bat1 close")
	_, err = in.Eval("db0 write bat0")
	requireCode(t, handle.RetCInvalidHandle, err)
}

func TestSnapshotCommands(t *testing.T) {
	in, _ := newInterp(t, nil)

	mustEval(t, in, openScript(t))
	mustEval(t, in, openScript(t))
	mustEval(t, in, "db0 put k before")

	assert.Equal(t, "snap0", mustEval(t, in, "db0 snapshot"))
	mustEval(t, in, "db0 put k after")

	assert.Equal(t, "before", mustEval(t, in, "db0 get k -snapshot snap0"))
	assert.Equal(t, "after", mustEval(t, in, "db0 get k"))

	_, err := in.Eval("db1 get k -snapshot snap0")
	requireCode(t, handle.RetCInvalidArgument, err)

	itr := mustEval(t, in, "db0 iterator -snapshot snap0")
	mustEval(t, in, itr+" seektofirst")
	assert.Equal(t, "before", mustEval(t, in, itr+" value"))
	mustEval(t, in, itr+" close")

	_, err = in.Eval("snap0 close")
	requireCode(t, handle.RetCInvalidArgument, err)

	_, err = in.Eval("db0 close")
	requireCode(t, handle.RetCDependentsOpen, err)

	_, err = in.Eval("snap0 close -db db1")
	requireCode(t, handle.RetCInvalidArgument, err)
	assert.Contains(t, in.Commands(), "snap0")

	assert.Equal(t, "0", mustEval(t, in, "snap0 close -db db0"))
	assert.NotContains(t, in.Commands(), "snap0")
	mustEval(t, in, "db0 close")
}

func TestProcessCommands(t *testing.T) {
	in, _ := newInterp(t, nil)

	assert.Regexp(t, regexp.MustCompile(`^\d+ \d+ \d+$`), mustEval(t, in, "hkv version"))

	path := filepath.Join(t.TempDir(), "db")
	mustEval(t, in, fmt.Sprintf("hkv open -path {%s} -create_if_missing 1", path))

	_, err := in.Eval(fmt.Sprintf("hkv destroy {%s}", path))
	requireCode(t, handle.RetCEngineError, err)

	mustEval(t, in, "db0 close")
	assert.Equal(t, "0", mustEval(t, in, fmt.Sprintf("hkv repair {%s}", path)))
	assert.Equal(t, "0", mustEval(t, in, fmt.Sprintf("hkv destroy {%s}", path)))

	_, err = in.Eval("hkv repair")
	requireCode(t, handle.RetCInvalidArgument, err)

	mustEval(t, in, openScript(t))
	mustEval(t, in, "db0 snapshot; hkv batch")
	assert.Equal(t, "snap0 bat0 db1", mustEval(t, in, "hkv handles"))
}

func TestAllowOrphans(t *testing.T) {
	in, _ := newInterp(t, &handle.ContextOptions{AllowOrphans: true})

	mustEval(t, in, openScript(t))
	mustEval(t, in, "db0 iterator")
	mustEval(t, in, "db0 close")

	for _, script := range []string{"itr0 valid", "itr0 seektofirst", "itr0 seek k", "itr0 next", "itr0 key"} {
		_, err := in.Eval(script)
		requireCode(t, handle.RetCEngineError, err)
	}
	assert.Equal(t, "0", mustEval(t, in, "itr0 close"))
}

func TestRun(t *testing.T) {
	in, out := newInterp(t, nil)

	script := fmt.Sprintf(`
# store and read back
set db [%s]
$db put k {multi
line}
puts [$db get k]
$db get missing
puts "done $db"
`, openScript(t))

	var errs bytes.Buffer
	err := in.Run(strings.NewReader(script), RunOptions{Errors: &errs})
	requireCode(t, handle.RetCEngineError, err)
	assert.Contains(t, err.Error(), "line 7")
	assert.Equal(t, "multi\nline\ndone db0\n", out.String())
	assert.Contains(t, errs.String(), "error: line 7")
}

func TestRunExitOnError(t *testing.T) {
	in, out := newInterp(t, nil)

	err := in.Run(strings.NewReader("puts a\nbogus\nputs b\n"), RunOptions{ExitOnError: true})
	requireCode(t, handle.RetCInvalidArgument, err)
	assert.Equal(t, "a\n", out.String())
}

func TestRunEcho(t *testing.T) {
	in, out := newInterp(t, nil)

	require.NoError(t, in.Run(strings.NewReader("set a 1\nset b {}\n"), RunOptions{Echo: true}))
	assert.Equal(t, "1\n", out.String())

	err := in.Run(strings.NewReader("set a {unterminated\n"), RunOptions{})
	assert.ErrorContains(t, err, "incomplete command")
}

func TestCloseTearsDown(t *testing.T) {
	var out bytes.Buffer
	ctx := handle.NewContext(nil)
	in := New(lifecycle.New(ctx, engine), &out)

	mustEval(t, in, openScript(t))
	mustEval(t, in, "db0 iterator; db0 snapshot; hkv batch")
	require.Equal(t, 4, ctx.Len())

	require.NoError(t, in.Close())
	assert.Equal(t, 0, ctx.Len())
	assert.Equal(t, []string{"hkv", "puts", "set"}, in.Commands())
}
