//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals are the signals hermesd treats as a graceful-stop
// request: SIGTERM from process managers (systemd, kubernetes), plus
// SIGINT for interactive use.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
