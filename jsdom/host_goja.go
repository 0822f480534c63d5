package jsdom

import (
	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/sonirico/libevents"
)

// gojaHost owns the on<event> properties of a script object. The script runtime calls whatever
// sits in such a property when it delivers the event, so that property is the native slot.
// after runs once each delivery is over.
type gojaHost struct {
	vm    *goja.Runtime
	obj   *goja.Object
	after func()
}

func newGojaHost(vm *goja.Runtime, obj *goja.Object, after func()) *gojaHost {
	if after == nil {
		after = func() {}
	}
	return &gojaHost{vm: vm, obj: obj, after: after}
}

func (h *gojaHost) Install(event string, dispatch libevents.DispatchFunc) error {
	return h.obj.Set(libevents.SlotName(event), func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a
		}
		ok, err := dispatch(args)
		h.after()
		if err != nil {
			throw(h.vm, err)
		}
		return h.vm.ToValue(ok)
	})
}

func (h *gojaHost) Remove(event string) error {
	return h.obj.Set(libevents.SlotName(event), goja.Null())
}

// throw raises err inside the script. A script exception travelling through Go is rethrown as
// the value the script threw.
func throw(vm *goja.Runtime, err error) {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		panic(exc.Value())
	}
	panic(vm.NewGoError(err))
}
