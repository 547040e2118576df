// Package replshell is an interactive expression shell over bound
// container variables, adapted from the teacher's internal/repl/repl.go
// Start() loop: same bare bufio.Scanner prompt loop, swapped from
// compiling statements into a VM chunk to parsing and evaluating one
// arithmetic expression against already-bound containers.
package replshell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"iarray/internal/codec"
	"iarray/internal/container"
	"iarray/internal/evaluator"
	"iarray/internal/parser"
)

// Shell holds the variables bound for the lifetime of the session, the
// way the teacher's REPL held one long-lived VM instance across lines.
type Shell struct {
	vars     map[string]evaluator.Binding
	reg      *evaluator.Registry
	strategy evaluator.Strategy
	params   codec.Params
	storage  codec.Storage
	out      io.Writer
}

// New creates a shell over an initial variable binding. vars/reg may be
// nil/empty and populated later via Bind/BindScalar.
func New(vars map[string]evaluator.Binding, reg *evaluator.Registry, strategy evaluator.Strategy, params codec.Params, storage codec.Storage, out io.Writer) *Shell {
	if vars == nil {
		vars = make(map[string]evaluator.Binding)
	}
	return &Shell{vars: vars, reg: reg, strategy: strategy, params: params, storage: storage, out: out}
}

// Bind attaches a container under name for subsequent expressions.
func (s *Shell) Bind(name string, c *container.Container) { s.vars[name] = evaluator.ContainerBinding(c) }

// BindScalar attaches a broadcast scalar under name for subsequent
// expressions, per spec §4.5.
func (s *Shell) BindScalar(name string, v float64) { s.vars[name] = evaluator.ScalarBinding(v) }

// Run reads expressions from in, one per line, evaluating each against
// the bound variables and printing a short summary, until EOF or a line
// reading "exit" — mirroring the teacher's `if line == "exit" { break }`.
func (s *Shell) Run(in io.Reader) {
	fmt.Fprintln(s.out, "iarray expression shell | type 'exit' to quit")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, ">>> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			break
		}
		s.evalLine(line)
	}
}

func (s *Shell) evalLine(line string) {
	p, err := parser.New(line)
	if err != nil {
		fmt.Fprintf(s.out, "parse error: %v\n", err)
		return
	}
	tree, err := p.Parse()
	if err != nil {
		fmt.Fprintf(s.out, "parse error: %v\n", err)
		return
	}
	compiled, err := evaluator.Compile(tree, s.vars, s.reg)
	if err != nil {
		fmt.Fprintf(s.out, "compile error: %v\n", err)
		return
	}
	out, err := compiled.Eval(s.strategy, s.params, s.storage)
	if err != nil {
		fmt.Fprintf(s.out, "eval error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, out.Describe())
}
