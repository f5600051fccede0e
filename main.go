package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/temirov/forksync/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the forksync command-line application. SIGINT and SIGTERM
// cancel the run; repositories already syncing finish their current step.
func main() {
	executionContext, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	executionError := cli.Execute(executionContext)
	stop()
	if executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
