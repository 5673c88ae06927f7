// Command piri is the companion daemon's entrypoint: `piri daemon` runs the
// long-lived process; every other subcommand is a thin client issuing a
// single request over the control socket (spec §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/daemon"
	"github.com/piri-wm/piri/internal/ipc"
	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("piri", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath(), "path to piri.toml")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	logging.SetDebug(*debug)
	if os.Getenv("PIRI_DAEMON") != "" {
		logging.SetOutput(os.Stderr, false)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "usage: piri <daemon|scratchpads|singleton|window-order|stop|completion> ...")
		return 1
	}

	switch rest[0] {
	case "daemon":
		return runDaemon(*configPath)
	case "scratchpads":
		return runScratchpads(rest[1:])
	case "singleton":
		return runSingleton(rest[1:])
	case "window-order":
		return runWindowOrder(rest[1:])
	case "stop":
		return runStop()
	case "completion":
		return runCompletion(rest[1:])
	default:
		fmt.Fprintf(os.Stderr, "piri: unknown subcommand %q\n", rest[0])
		return 1
	}
}

func runDaemon(configPath string) int {
	path := config.ExpandPath(configPath)
	f, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "piri: load config: %s\n", err)
		return 1
	}
	d := daemon.New(path, f)
	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "piri: %s\n", err)
		return 1
	}
	return 0
}

func runScratchpads(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: piri scratchpads <name> <toggle|add <direction>>")
		return 1
	}
	name, verb := args[0], args[1]
	var req ipcproto.Request
	switch verb {
	case "toggle":
		req = ipcproto.Request{Kind: ipcproto.ScratchpadToggle, Name: name}
	case "add":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: piri scratchpads <name> add <direction>")
			return 1
		}
		if _, ok := compositor.ParseDirection(args[2]); !ok {
			fmt.Fprintf(os.Stderr, "piri: invalid direction %q\n", args[2])
			return 1
		}
		req = ipcproto.Request{Kind: ipcproto.ScratchpadAdd, Name: name, Direction: args[2]}
	default:
		fmt.Fprintf(os.Stderr, "piri: unknown scratchpads verb %q\n", verb)
		return 1
	}
	return sendAndReport(req)
}

func runSingleton(args []string) int {
	if len(args) < 2 || args[1] != "toggle" {
		fmt.Fprintln(os.Stderr, "usage: piri singleton <name> toggle")
		return 1
	}
	return sendAndReport(ipcproto.Request{Kind: ipcproto.SingletonToggle, Name: args[0]})
}

func runWindowOrder(args []string) int {
	if len(args) < 1 || args[0] != "toggle" {
		fmt.Fprintln(os.Stderr, "usage: piri window-order toggle")
		return 1
	}
	return sendAndReport(ipcproto.Request{Kind: ipcproto.WindowOrderToggle})
}

func runStop() int {
	return sendAndReport(ipcproto.Request{Kind: ipcproto.Shutdown})
}

func runCompletion(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: piri completion <bash|zsh|fish>")
		return 1
	}
	script, ok := shellCompletions[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "piri: unsupported shell %q\n", args[0])
		return 1
	}
	fmt.Println(script)
	return 0
}

func sendAndReport(req ipcproto.Request) int {
	resp, err := ipc.Send(config.ClientSocketPath(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "piri: %s\n", err)
		return 1
	}
	if !resp.IsOK() {
		fmt.Fprintf(os.Stderr, "piri: %s\n", resp.Error)
		return 1
	}
	return 0
}
