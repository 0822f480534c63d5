package jsdom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/sonirico/libevents"
)

// Element is the script-side face of an HTML node together with its event Target.
type Element struct {
	rt     *Runtime
	Node   *html.Node
	Object *goja.Object

	events *libevents.Target
	// handles keeps one Listener per script function so removal works by function identity.
	// An entry is pruned once its function is no longer queued for any event.
	handles map[*goja.Object]*libevents.Listener
}

func newElement(rt *Runtime, node *html.Node) *Element {
	el := &Element{
		rt:      rt,
		Node:    node,
		Object:  rt.vm.NewObject(),
		handles: make(map[*goja.Object]*libevents.Listener),
	}
	el.events = libevents.NewTarget(
		rt.logger.WithField("node", node.Data),
		el.Object,
		newGojaHost(rt.vm, el.Object, el.prune),
	)
	el.bind()
	return el
}

// Events returns the element's Target, for listeners written in Go.
func (el *Element) Events() *libevents.Target {
	return el.events
}

func (el *Element) bind() {
	vm := el.rt.vm
	methods := map[string]func(goja.FunctionCall) goja.Value{
		"on":            el.jsOn,
		"emit":          el.jsEmit,
		"dropListener":  el.jsDropListener,
		"dropEvent":     el.jsDropEvent,
		"dropAllEvents": el.jsDropAllEvents,
	}
	for name, fn := range methods {
		_ = el.Object.DefineDataProperty(name, vm.ToValue(fn), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	}

	el.defineGetter("tagName", func() goja.Value {
		return vm.ToValue(strings.ToUpper(el.Node.Data))
	})
	el.defineGetter("id", func() goja.Value {
		return vm.ToValue(attr(el.Node, "id"))
	})
	el.defineGetter("textContent", func() goja.Value {
		return vm.ToValue(htmlquery.InnerText(el.Node))
	})
}

func (el *Element) defineGetter(name string, getter func() goja.Value) {
	fn := el.rt.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return getter()
	})
	_ = el.Object.DefineAccessorProperty(name, fn, goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// el.on(event, fn[, thisarg])
func (el *Element) jsOn(call goja.FunctionCall) goja.Value {
	vm := el.rt.vm
	event := el.eventName(call)
	listener, ok := el.listenerFor(call.Argument(1))
	if !ok {
		throw(vm, errors.Wrapf(libevents.ErrInvalidArgument, "listener for %q is not a function", event))
	}

	var receiver []any
	if len(call.Arguments) > 2 {
		receiver = append(receiver, call.Arguments[2])
	}
	if err := el.events.AddListener(event, listener, receiver...); err != nil {
		el.prune()
		throw(vm, err)
	}
	return el.Object
}

// el.emit(event, ...args) returns false when some listener returned false.
func (el *Element) jsEmit(call goja.FunctionCall) goja.Value {
	event := el.eventName(call)
	args := make([]any, 0, len(call.Arguments))
	for _, a := range call.Arguments[min(1, len(call.Arguments)):] {
		args = append(args, a)
	}
	ok, err := el.events.Dispatch(event, args)
	el.prune()
	if err != nil {
		throw(el.rt.vm, err)
	}
	return el.rt.vm.ToValue(ok)
}

// el.dropListener(event, fn)
func (el *Element) jsDropListener(call goja.FunctionCall) goja.Value {
	event := el.eventName(call)
	fn, ok := call.Argument(1).(*goja.Object)
	if !ok {
		return el.Object
	}
	if listener, known := el.handles[fn]; known {
		el.events.DropListener(event, listener)
		el.prune()
	}
	return el.Object
}

func (el *Element) jsDropEvent(call goja.FunctionCall) goja.Value {
	el.events.DropEvent(el.eventName(call))
	el.prune()
	return el.Object
}

func (el *Element) jsDropAllEvents(goja.FunctionCall) goja.Value {
	el.events.DropAllEvents()
	el.prune()
	return el.Object
}

// listenerFor returns the Listener handle of a script function, creating it on first use.
func (el *Element) listenerFor(v goja.Value) (*libevents.Listener, bool) {
	fn, callable := goja.AssertFunction(v)
	if !callable {
		return nil, false
	}
	obj := v.(*goja.Object)
	if l, ok := el.handles[obj]; ok {
		return l, true
	}
	l := el.rt.scriptListener(fn)
	el.handles[obj] = l
	return l, true
}

// eventName reads the event argument of an element method and throws when it is missing.
func (el *Element) eventName(call goja.FunctionCall) string {
	event := call.Argument(0)
	if goja.IsUndefined(event) || goja.IsNull(event) {
		throw(el.rt.vm, errors.Wrap(libevents.ErrInvalidArgument, "missing event name"))
	}
	return event.String()
}

func (el *Element) prune() {
	for fn, l := range el.handles {
		if !el.events.Queued(l) {
			delete(el.handles, fn)
		}
	}
}

// HandleCount returns how many script functions are currently registered on the element.
func (el *Element) HandleCount() int {
	return len(el.handles)
}
