/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/aurora/engine"
	"github.com/spaghettifunk/aurora/testbed"
)

func main() {
	tb := testbed.NewTestGame()

	engine, err := engine.New(tb)
	if err != nil {
		panic(err)
	}

	if err := engine.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the frame loop on the first signal
	go func() {
		<-sigCh
		engine.Stop()
	}()

	// run engine
	if err := engine.Run(); err != nil {
		panic(err)
	}

	if err := engine.Shutdown(); err != nil {
		panic(err)
	}
}
