//go:build windows

package main

import (
	"os"
)

// terminationSignals: Windows only delivers os.Interrupt (Ctrl+C) to Go
// programs, so that's the only graceful-stop trigger available here.
var terminationSignals = []os.Signal{os.Interrupt}
