package jsdom

import (
	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/sonirico/libevents"
)

// DropListenerName is the property of the global Object constructor holding the value a script
// listener throws to drop itself.
const DropListenerName = "DROP_LISTENER"

// Runtime runs scripts against a Document. Every element handed to a script carries an event
// Target whose host slots are the element's on<event> properties.
//
// A Runtime is bound to a single goroutine, like the goja runtime underneath.
type Runtime struct {
	vm       *goja.Runtime
	logger   libevents.Logger
	doc      *Document
	drop     *goja.Object
	elements map[*html.Node]*Element
	document *goja.Object
}

// NewRuntime prepares a script runtime exposing doc as the global document.
func NewRuntime(logger libevents.Logger, doc *Document) (*Runtime, error) {
	if logger == nil {
		logger = libevents.NewNopLogger()
	}

	r := &Runtime{
		vm:       goja.New(),
		logger:   logger.WithField("type", "jsdom"),
		doc:      doc,
		elements: make(map[*html.Node]*Element),
	}

	if err := r.defineDropSignal(); err != nil {
		return nil, err
	}
	if err := r.defineConsole(); err != nil {
		return nil, err
	}
	if err := r.defineDocument(); err != nil {
		return nil, err
	}
	return r, nil
}

// VM exposes the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

func (r *Runtime) Document() *Document {
	return r.doc
}

// DropSignal is the single value scripts throw to leave a listener queue.
func (r *Runtime) DropSignal() goja.Value {
	return r.drop
}

// Run evaluates src. name shows up in script stack traces.
func (r *Runtime) Run(name, src string) (goja.Value, error) {
	v, err := r.vm.RunScript(name, src)
	if err != nil {
		return nil, errors.Wrapf(err, "script %s failed", name)
	}
	return v, nil
}

// Element returns the one Element wrapping node.
func (r *Runtime) Element(node *html.Node) *Element {
	if el, ok := r.elements[node]; ok {
		return el
	}
	el := newElement(r, node)
	r.elements[node] = el
	return el
}

// Fire delivers event to el the way a browser would: by calling whatever the element holds in
// its on<event> property. The result is false only when that handler returned false.
func (r *Runtime) Fire(el *Element, event string, args ...any) (ok bool, err error) {
	slot := el.Object.Get(libevents.SlotName(event))
	fn, callable := goja.AssertFunction(slot)
	if !callable {
		return true, nil
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = r.vm.ToValue(a)
	}

	v, err := fn(el.Object, jsArgs...)
	if err != nil {
		return false, err
	}
	return !isFalse(r.vm, v), nil
}

func (r *Runtime) defineDropSignal() error {
	r.drop = r.vm.NewObject()
	object := r.vm.GlobalObject().Get("Object").ToObject(r.vm)
	// Read-only and hidden from enumeration, like any other built-in constant.
	return errors.Wrap(
		object.DefineDataProperty(DropListenerName, r.drop, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE),
		"cannot define drop signal",
	)
}

func (r *Runtime) defineConsole() error {
	console := r.vm.NewObject()
	logger := r.logger.WithField("source", "script")
	if err := console.Set("log", func(call goja.FunctionCall) goja.Value {
		logger.Infoln(exportAll(call.Arguments)...)
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := console.Set("error", func(call goja.FunctionCall) goja.Value {
		logger.Errorln(exportAll(call.Arguments)...)
		return goja.Undefined()
	}); err != nil {
		return err
	}
	return r.vm.Set("console", console)
}

func (r *Runtime) defineDocument() error {
	if r.doc == nil {
		return nil
	}

	r.document = r.vm.NewObject()
	if err := r.document.Set("query", r.jsQuery); err != nil {
		return err
	}
	if err := r.document.Set("queryAll", r.jsQueryAll); err != nil {
		return err
	}
	if err := r.document.Set("getElementById", r.jsGetElementByID); err != nil {
		return err
	}
	return r.vm.Set("document", r.document)
}

func (r *Runtime) jsQuery(call goja.FunctionCall) goja.Value {
	node, err := r.doc.Query(call.Argument(0).String())
	if err != nil {
		throw(r.vm, err)
	}
	if node == nil {
		return goja.Null()
	}
	return r.Element(node).Object
}

func (r *Runtime) jsQueryAll(call goja.FunctionCall) goja.Value {
	nodes, err := r.doc.QueryAll(call.Argument(0).String())
	if err != nil {
		throw(r.vm, err)
	}
	items := make([]any, len(nodes))
	for i, n := range nodes {
		items[i] = r.Element(n).Object
	}
	return r.vm.NewArray(items...)
}

func (r *Runtime) jsGetElementByID(call goja.FunctionCall) goja.Value {
	node := r.doc.ElementByID(call.Argument(0).String())
	if node == nil {
		return goja.Null()
	}
	return r.Element(node).Object
}

func isFalse(vm *goja.Runtime, v goja.Value) bool {
	return v != nil && v.StrictEquals(vm.ToValue(false))
}

func exportAll(values []goja.Value) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v.Export()
	}
	return out
}
