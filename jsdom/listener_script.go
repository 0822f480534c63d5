package jsdom

import (
	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/sonirico/libevents"
)

// scriptListener turns a script function into a Listener. Throwing Object.DROP_LISTENER drops
// it, returning false fails the pass, and anything else thrown is a listener failure.
func (r *Runtime) scriptListener(fn goja.Callable) *libevents.Listener {
	return libevents.NewListener(func(this any, args []any) (bool, error) {
		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = r.vm.ToValue(a)
		}

		v, err := fn(r.vm.ToValue(this), jsArgs...)
		if err != nil {
			var exc *goja.Exception
			if errors.As(err, &exc) && exc.Value() != nil && exc.Value().StrictEquals(r.drop) {
				return true, libevents.ErrDropListener
			}
			return true, err
		}
		return !isFalse(r.vm, v), nil
	})
}
