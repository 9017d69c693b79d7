package sandbox

import (
	"errors"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/bus"
	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// injectDocument installs a document object scoped to the element the getter
// resolves at call time. Before mount that is usually nil and queries come
// back empty; after mount they hit the application's subtree.
func (c *vmCore) injectDocument() {
	vm := c.vm

	scope := func() *dom.Element {
		if c.elementGetter == nil {
			return nil
		}
		return c.elementGetter()
	}

	doc := vm.NewObject()

	doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		root := scope()
		if root == nil {
			return goja.Null()
		}
		id := call.Argument(0).String()
		if el := root.Find("#" + id); el != nil {
			return c.elementProxy(el)
		}
		return goja.Null()
	})

	doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		root := scope()
		if root == nil {
			return goja.Null()
		}
		if el := root.Find(call.Argument(0).String()); el != nil {
			return c.elementProxy(el)
		}
		return goja.Null()
	})

	doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		root := scope()
		if root == nil {
			return vm.NewArray()
		}
		els := root.FindAll(call.Argument(0).String())
		out := make([]interface{}, 0, len(els))
		for _, el := range els {
			out = append(out, c.elementProxy(el))
		}
		return vm.ToValue(out)
	})

	doc.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		root := scope()
		if root == nil {
			return vm.NewArray()
		}
		els := root.FindAll("." + call.Argument(0).String())
		out := make([]interface{}, 0, len(els))
		for _, el := range els {
			out = append(out, c.elementProxy(el))
		}
		return vm.ToValue(out)
	})

	doc.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		root := scope()
		if root == nil {
			return vm.NewArray()
		}
		els := root.FindAll(call.Argument(0).String())
		out := make([]interface{}, 0, len(els))
		for _, el := range els {
			out = append(out, c.elementProxy(el))
		}
		return vm.ToValue(out)
	})

	doc.Set("createElement", func(call goja.FunctionCall) goja.Value {
		root := scope()
		if root == nil {
			return goja.Null()
		}
		el := root.Document().CreateElement(call.Argument(0).String())
		return c.elementProxy(el)
	})

	vm.Set("document", doc)
}

// elementProxy wraps a host element for script access. Identity fields are
// captured at wrap time; content accessors stay live.
func (c *vmCore) elementProxy(el *dom.Element) goja.Value {
	vm := c.vm
	obj := vm.NewObject()

	className, _ := el.Attr("class")
	obj.Set("tagName", strings.ToUpper(el.Tag()))
	obj.Set("id", el.ID())
	obj.Set("className", className)
	obj.Set("__el", el)

	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if v, ok := el.Attr(call.Argument(0).String()); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		el.SetAttr(call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("getText", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(el.Text())
	})
	obj.Set("getHTML", func(call goja.FunctionCall) goja.Value {
		h, err := el.InnerHTML()
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(h)
	})
	obj.Set("setHTML", func(call goja.FunctionCall) goja.Value {
		if err := el.SetInnerHTML(call.Argument(0).String()); err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return goja.Undefined()
	})
	obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		if found := el.Find(call.Argument(0).String()); found != nil {
			return c.elementProxy(found)
		}
		return goja.Null()
	})
	obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		els := el.FindAll(call.Argument(0).String())
		out := make([]interface{}, 0, len(els))
		for _, found := range els {
			out = append(out, c.elementProxy(found))
		}
		return vm.ToValue(out)
	})
	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := proxyElement(call.Argument(0))
		if child == nil {
			panic(vm.ToValue("appendChild expects an element"))
		}
		el.AppendChild(child)
		return call.Argument(0)
	})
	obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		el.Detach()
		return goja.Undefined()
	})

	return obj
}

// proxyElement recovers the host element behind a script-side proxy.
func proxyElement(v goja.Value) *dom.Element {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	raw := obj.Get("__el")
	if raw == nil {
		return nil
	}
	el, _ := raw.Export().(*dom.Element)
	return el
}

// mountProps builds the argument object for a mount or unmount invocation:
// the application name, the configured props, the live container, and the
// instance's slice of the state bus. Runs under the VM lock.
func (c *vmCore) mountProps(appName string, mc types.MountContext) goja.Value {
	vm := c.vm
	obj := vm.NewObject()

	obj.Set("name", appName)
	for k, v := range mc.Props {
		obj.Set(k, v)
	}

	if mc.Container != nil {
		if el := mc.Container(); el != nil {
			obj.Set("container", c.elementProxy(el))
		} else {
			obj.Set("container", goja.Null())
		}
	} else {
		obj.Set("container", goja.Null())
	}

	actions := mc.Bus
	obj.Set("onGlobalStateChange", func(call goja.FunctionCall) goja.Value {
		if actions == nil {
			return goja.Undefined()
		}
		cb, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			c.log.Warn("onGlobalStateChange called without a function",
				zap.String("sandbox", c.name))
			return goja.Undefined()
		}
		fire := call.Argument(1).ToBoolean()
		actions.OnGlobalStateChange(func(state, prev map[string]interface{}) {
			c.dispatchListener(cb, state, prev)
		}, fire)
		return goja.Undefined()
	})
	obj.Set("setGlobalState", func(call goja.FunctionCall) goja.Value {
		if actions == nil {
			return vm.ToValue(false)
		}
		state, ok := call.Argument(0).Export().(map[string]interface{})
		if !ok {
			c.log.Warn("setGlobalState called without an object",
				zap.String("sandbox", c.name))
			return vm.ToValue(false)
		}
		if err := actions.SetGlobalState(state); err != nil {
			if !errors.Is(err, bus.ErrNoChange) {
				c.log.Warn("setGlobalState failed",
					zap.String("sandbox", c.name),
					zap.Error(err))
			}
			return vm.ToValue(false)
		}
		return vm.ToValue(true)
	})
	obj.Set("offGlobalStateChange", func(call goja.FunctionCall) goja.Value {
		if actions != nil {
			actions.OffGlobalStateChange()
		}
		return goja.Undefined()
	})

	return obj
}
