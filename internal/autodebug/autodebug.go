// Package autodebug implements the server's out-of-band debug-attach
// handshake: a best-effort, opt-in check performed once at startup so a
// developer can attach a debugger before the server starts serving
// requests. It is a no-op unless CPP_DEBUG is set.
package autodebug

import (
	"log"
	"os"
)

// Check inspects CPP_DEBUG and AUTODEBUG_IPC_HANDLE and logs accordingly.
// It never blocks and never returns an error; the handshake over the IPC
// handle itself is not performed.
func Check(logger *log.Logger) {
	if os.Getenv("CPP_DEBUG") != "1" {
		return
	}
	handle := os.Getenv("AUTODEBUG_IPC_HANDLE")
	if handle == "" {
		logger.Printf("autodebug: CPP_DEBUG=1 but AUTODEBUG_IPC_HANDLE is unset, skipping debug-attach handshake")
		return
	}
	logger.Printf("autodebug: debug-attach handshake requested via handle %q (no-op)", handle)
}
