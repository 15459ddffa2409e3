// Package closer collects cleanup functions to run together.
package closer

import (
	"io"

	"go.uber.org/multierr"
)

// Stack runs cleanup functions in reverse order of registration, the same
// order deferred calls would run in.
type Stack struct {
	closers []func() error
}

func (c *Stack) AddWithError(closer func() error) {
	c.closers = append(c.closers, closer)
}

func (c *Stack) AddCloser(closer io.Closer) {
	if closer != nil {
		c.closers = append(c.closers, closer.Close)
	}
}

func (c *Stack) AddWithoutError(closer func()) {
	c.closers = append(c.closers, func() error {
		closer()
		return nil
	})
}

// Close runs every registered function, even when some fail, and returns
// their combined errors. The stack is empty afterwards.
func (c *Stack) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if closerErr := c.closers[i](); closerErr != nil {
			err = multierr.Append(err, closerErr)
		}
	}
	c.closers = nil
	return err
}
