// Package progress defines the reporting sink shared by long-running
// operations. The CLI renders it as a spinner; the HTTP facade relays it
// over the real-time event channel.
package progress

import "log"

// Reporter receives (operation, current, total) updates. total may be 0
// when the extent is unknown.
type Reporter interface {
	Report(operation string, current, total int)
}

// Func adapts a plain function to Reporter.
type Func func(operation string, current, total int)

func (f Func) Report(operation string, current, total int) { f(operation, current, total) }

// Noop discards all updates.
var Noop Reporter = Func(func(string, int, int) {})

// Log writes updates through the standard logger, for batch contexts with
// no interactive surface.
var Log Reporter = Func(func(operation string, current, total int) {
	if total > 0 {
		log.Printf("[PROGRESS] %s: %d/%d", operation, current, total)
		return
	}
	log.Printf("[PROGRESS] %s: %d", operation, current)
})
