package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	a := &app{out: os.Stdout}
	for _, c := range commands(a) {
		commander.Register(c, "ledger")
	}

	flag.Parse()
	status := commander.Execute(context.Background())
	a.close()
	os.Exit(int(status))
}
