package testutil

import (
	"go.uber.org/goleak"
)

// GoLeakIgnores lists the background goroutines of cache engines and the
// file watcher, which outlive a test until their owner is closed.
func GoLeakIgnores() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreAnyFunction("github.com/Yiling-J/theine-go/internal.(*Store[...]).maintance"),
		goleak.IgnoreAnyFunction("github.com/Yiling-J/theine-go/internal.(*Store[...]).maintance.func1"),
		goleak.IgnoreTopFunction("github.com/outcaste-io/ristretto.(*lfuPolicy).processItems"),
		goleak.IgnoreTopFunction("github.com/outcaste-io/ristretto.(*Cache).processItems"),
		goleak.IgnoreAnyFunction("github.com/maypok86/otter/v2/internal/clock.(*Real).Start.func1"),
		goleak.IgnoreAnyFunction("github.com/maypok86/otter/v2.(*cache[...]).periodicCleanUp"),
		goleak.IgnoreTopFunction("github.com/fsnotify/fsnotify.(*inotify).readEvents"),
	}
}
