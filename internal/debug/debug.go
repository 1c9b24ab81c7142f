// Package debug provides env-gated diagnostic logging.
// Set ST_DEBUG=1 to enable.
package debug

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	once    sync.Once
	enabled bool
)

// Enabled reports whether debug logging is on.
func Enabled() bool {
	once.Do(func() {
		v := os.Getenv("ST_DEBUG")
		enabled = v == "1" || v == "true"
	})
	return enabled
}

// Logf writes a timestamped line to stderr when ST_DEBUG is set.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	fmt.Fprintf(os.Stderr, "[st %s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
}
