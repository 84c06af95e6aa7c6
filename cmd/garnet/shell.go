package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/marshal"
)

const (
	historyFile = ".garnet_history"
	prompt      = "garnet> "
)

const shellHelp = `Commands:
  ancestors MOD            ancestors of a class or module
  methods MOD [all]        public and protected instance methods (all: inherited too)
  constants MOD            constants visible in MOD
  send RECV NAME ARGS...   call NAME on RECV; _ is the last result
  dump VALUE               Marshal.dump VALUE and show the bytes
  stats                    method cache counters
  help                     this text
  quit                     leave the shell
Values: nil true false 42 1.5 "text" :sym Const::Path _`

// shell runs introspection commands against one runtime.
type shell struct {
	rt   *vm.Runtime
	th   *vm.Thread
	out  io.Writer
	last vm.Value
}

func newShell(rt *vm.Runtime, out io.Writer) *shell {
	return &shell{rt: rt, th: rt.NewThread(), out: out, last: rt.Nil()}
}

// runShell reads commands from in until EOF or quit. A terminal gets line
// editing and history.
func runShell(rt *vm.Runtime, in *os.File, out io.Writer) {
	sh := newShell(rt, out)
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		sh.runLiner()
		return
	}
	sh.runPlain(in)
}

func (s *shell) runLiner() {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(s.complete)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Fprintln(s.out, "garnet shell. Type help for commands.")
	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(s.out)
			return
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if s.execLine(line) {
			return
		}
	}
}

func (s *shell) runPlain(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if s.execLine(sc.Text()) {
			return
		}
	}
}

// execLine runs one line and prints its result or error. It reports
// whether the shell should exit.
func (s *shell) execLine(line string) bool {
	quit, err := s.exec(line)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return quit
}

var commands = []string{"ancestors", "methods", "constants", "send", "dump", "stats", "help", "quit"}

func (s *shell) complete(line string) []string {
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (s *shell) exec(line string) (bool, error) {
	args, err := tokenize(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "ancestors":
		m, err := s.moduleArg(rest)
		if err != nil {
			return false, err
		}
		var names []string
		for _, a := range m.Ancestors() {
			names = append(names, a.Name())
		}
		fmt.Fprintln(s.out, strings.Join(names, " < "))
	case "methods":
		m, err := s.moduleArg(rest)
		if err != nil {
			return false, err
		}
		inherited := len(rest) > 1 && rest[1] == "all"
		names := m.InstanceMethodNames(func(v vm.Visibility) bool {
			return v == vm.Public || v == vm.Protected
		}, inherited)
		fmt.Fprintln(s.out, strings.Join(names, " "))
	case "constants":
		m, err := s.moduleArg(rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, strings.Join(m.Constants(), " "))
	case "send":
		return false, s.send(rest)
	case "dump":
		if len(rest) != 1 {
			return false, fmt.Errorf("usage: dump VALUE")
		}
		v, err := s.value(rest[0])
		if err != nil {
			return false, err
		}
		data, err := marshal.Dump(s.th, v)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "%d bytes: %s\n", len(data), hex.EncodeToString(data))
	case "stats":
		st := s.rt.Cache().Stats()
		fmt.Fprintf(s.out, "serial=%d names=%d holders=%d adds=%d removes=%d evictions=%d includes=%d include-evicts=%d flushes=%d\n",
			s.rt.Cache().Serial(), st.Names, st.Holders, st.Adds, st.Removes, st.Evictions,
			st.ModuleIncludes, st.IncludeEvicts, st.Flushes)
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return false, nil
}

func (s *shell) send(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: send RECV NAME ARGS...")
	}
	recv, err := s.value(args[0])
	if err != nil {
		return err
	}
	vals := make([]vm.Value, 0, len(args)-2)
	for _, a := range args[2:] {
		v, err := s.value(a)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	res, err := s.th.Call(recv, args[1], vals...)
	if err != nil {
		return err
	}
	s.last = res
	fmt.Fprintf(s.out, "=> %s\n", s.rt.Inspect(s.th, res))
	return nil
}

func (s *shell) moduleArg(args []string) (*vm.Module, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("module name required")
	}
	return s.rt.ClassFromPath(args[0])
}

// value parses a literal, constant path or _.
func (s *shell) value(tok string) (vm.Value, error) {
	switch tok {
	case "nil":
		return s.rt.Nil(), nil
	case "true":
		return s.rt.True(), nil
	case "false":
		return s.rt.False(), nil
	case "_":
		return s.last, nil
	}
	switch {
	case strings.HasPrefix(tok, `"`):
		str, err := strconv.Unquote(tok)
		if err != nil {
			return nil, fmt.Errorf("bad string %s", tok)
		}
		return s.rt.String(str), nil
	case strings.HasPrefix(tok, ":") && len(tok) > 1:
		return s.rt.Symbol(tok[1:]), nil
	case vm.IsConstantName(strings.SplitN(tok, "::", 2)[0]):
		return s.constant(tok)
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return s.rt.Int(n), nil
	}
	if b, ok := new(big.Int).SetString(tok, 10); ok {
		return s.rt.BigInt(b), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return s.rt.NewFloat(f), nil
	}
	return nil, fmt.Errorf("cannot parse %q", tok)
}

func (s *shell) constant(path string) (vm.Value, error) {
	var cur vm.Value = s.rt.ObjectClass
	for _, part := range strings.Split(path, "::") {
		mod, ok := cur.(*vm.Module)
		if !ok {
			return nil, fmt.Errorf("%s is not a class/module", s.rt.Inspect(s.th, cur))
		}
		v, err := mod.ConstGet(s.th, part)
		if err != nil {
			return nil, err
		}
		cur = v
	}
	return cur, nil
}

// tokenize splits on spaces, keeping double-quoted strings (with Go
// escapes) together.
func tokenize(line string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			j := i + 1
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(line) {
				return nil, fmt.Errorf("unterminated string")
			}
			toks = append(toks, line[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' {
				j++
			}
			toks = append(toks, line[i:j])
			i = j
		}
	}
	return toks, nil
}
