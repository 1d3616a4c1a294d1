//go:build windows

package lifecycle

import "os"

var defaultSignals = []os.Signal{os.Interrupt}
