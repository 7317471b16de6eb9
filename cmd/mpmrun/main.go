// Command mpmrun is the process launcher: it opens the full pipe mesh a
// group of workers needs, spawns one child per rank
// with the right descriptors pre-opened via os/exec.Cmd.ExtraFiles, and
// waits for all of them to exit.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/fatih/color"
	"github.com/prometheus/common/log"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "mpmrun"
	app.Usage = "launch a group of MPM workers"
	app.UsageText = "mpmrun [options] <n> <program> [program args...]"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "deadlock, d",
			Usage: "enable pairwise deadlock detection for every worker",
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "log launcher activity to stderr",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("mpmrun: %v", err))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return cli.NewExitError("usage: mpmrun [options] <n> <program> [program args...]", 2)
	}

	world, err := parseWorldSize(args.Get(0))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("mpmrun: %v", err), 2)
	}

	verbose := c.Bool("verbose")
	deadlock := c.Bool("deadlock")
	program := args.Get(1)
	programArgs := []string(args)[2:]

	topo, err := buildTopology(world)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("mpmrun: %v", err), 1)
	}

	cmds := make([]*exec.Cmd, world)
	for rank := 0; rank < world; rank++ {
		cmd := exec.Command(program, programArgs...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.ExtraFiles = topo.childFiles(rank)
		cmd.Env = append(os.Environ(),
			fmt.Sprintf("MPM_WORLD_SIZE=%d", world),
			fmt.Sprintf("MPM_RANK=%d", rank),
		)
		if deadlock {
			cmd.Env = append(cmd.Env, "MPM_DEADLOCK=1")
		}
		cmds[rank] = cmd

		if err := cmd.Start(); err != nil {
			topo.closeParentCopies()
			return cli.NewExitError(fmt.Sprintf("mpmrun: starting rank %d: %v", rank, err), 1)
		}
		if verbose {
			log.Infof("mpmrun: started rank %d (pid %d)", rank, cmd.Process.Pid)
		}
	}

	// Every descriptor is now dup'd into some child; the launcher's own
	// copies only keep the pipes alive artificially (a worker would never
	// see EOF on a peer that has exited, since the launcher still held a
	// write end).
	topo.closeParentCopies()

	return waitAll(cmds, verbose)
}

func parseWorldSize(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid process count %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("process count must be at least 1, got %d", n)
	}
	if n > MaxWorldSize {
		return 0, fmt.Errorf("process count %d exceeds the maximum of %d", n, MaxWorldSize)
	}
	return n, nil
}

// waitAll joins every child, reporting a per-rank failure the moment it
// is known, and exits non-zero iff any child exited non-zero.
func waitAll(cmds []*exec.Cmd, verbose bool) error {
	var wg sync.WaitGroup
	failures := make([]error, len(cmds))

	for rank, cmd := range cmds {
		wg.Add(1)
		go func(rank int, cmd *exec.Cmd) {
			defer wg.Done()
			err := cmd.Wait()
			failures[rank] = err
			if err != nil {
				fmt.Fprintln(os.Stderr, color.YellowString("mpmrun: rank %d: %v", rank, err))
			} else if verbose {
				log.Infof("mpmrun: rank %d exited 0", rank)
			}
		}(rank, cmd)
	}
	wg.Wait()

	for _, err := range failures {
		if err != nil {
			return cli.NewExitError(color.RedString("mpmrun: one or more workers failed"), 1)
		}
	}
	return nil
}
