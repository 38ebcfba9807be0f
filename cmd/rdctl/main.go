// Command rdctl sends control commands to a running simulation started with
// -control-addr and prints its status.
//
//	rdctl -addr 127.0.0.1:7070 status
//	rdctl set-feed 0.055 set-kill 0.062 reset
//	rdctl pause
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"RDS/internal/control"
)

var (
	addrFlag    = flag.String("addr", "127.0.0.1:7070", "address of the simulation's control service")
	timeoutFlag = flag.Duration("timeout", 5*time.Second, "request timeout")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "rdctl"})

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	if err := run(flag.Args()); err != nil {
		logger.Error("request failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	client, err := control.Dial(*addrFlag)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	if len(args) == 1 && args[0] == "status" {
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	}

	cmds, err := parseCommands(args)
	if err != nil {
		return err
	}
	n, err := client.Apply(ctx, cmds...)
	if err != nil {
		return fmt.Errorf("%d of %d commands queued: %w", n, len(cmds), err)
	}
	fmt.Printf("queued %d command(s)\n", n)
	return nil
}

// parseCommands reads "name [value]" pairs; reset, start and pause take no
// value.
func parseCommands(args []string) ([]control.Command, error) {
	var cmds []control.Command
	for i := 0; i < len(args); i++ {
		name := args[i]
		arg := ""
		switch name {
		case "reset", "start", "pause":
		default:
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s needs a value", name)
			}
			i++
			arg = args[i]
		}
		cmd, err := control.Parse(name, arg)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func printStatus(st control.Status) {
	state := "running"
	if st.Paused {
		state = "paused"
	}
	fmt.Printf("step %d (gen%d), %s, %d steps/frame, %d queued\n",
		st.StepNumber, st.Generation, state, st.StepsPerFrame, st.QueuedCmds)
	fmt.Printf("grid %dx%d  dt=%g  Da=%g  Db=%g  feed=%g  kill=%g\n",
		st.Width, st.Height, st.Timestep, st.DiffusionA, st.DiffusionB, st.Feed, st.Kill)
}

func usage() {
	names := []string{"set-diffusion-a V", "set-diffusion-b V", "set-feed V", "set-kill V",
		"set-timestep V", "set-steps-per-frame N", "reset", "start", "pause"}
	fmt.Fprintf(flag.CommandLine.Output(), "usage: rdctl [flags] status\n       rdctl [flags] command...\n\ncommands:\n  %s\n\nflags:\n",
		strings.Join(names, "\n  "))
	flag.PrintDefaults()
}
