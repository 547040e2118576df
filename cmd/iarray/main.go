// cmd/iarray is the engine's CLI, grounded on cmd/sentra/main.go's
// hand-rolled command dispatch table (no cobra/pflag anywhere in the
// pack for this teacher).
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

var commands = map[string]func(args []string) error{
	"eval":    evalCommand,
	"repl":    replCommand,
	"inspect": inspectCommand,
	"matmul":  matmulCommand,
	"catalog": catalogCommand,
}

var commandAliases = map[string]string{
	"e": "eval",
	"i": "repl",
	"m": "matmul",
	"c": "catalog",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("iarray version", version)
		return
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "iarray: unknown command %q\n", args[0])
		showUsage()
		os.Exit(1)
	}
	if err := fn(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "iarray: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`iarray: chunked, compressed n-dimensional array engine

Usage:
  iarray <command> [arguments]

Commands:
  eval     parse, bind, and evaluate an expression against file-backed containers
  repl     interactive expression shell over bound variables
  inspect  print a container's shape and codec metadata
  matmul   run the matmul pipeline against two file-backed containers
  catalog  list, register, or forget persisted containers

Aliases: e=eval, i=repl, m=matmul, c=catalog`)
}
