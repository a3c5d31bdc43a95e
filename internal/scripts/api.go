package scripts

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/vrsandeep/pagesum-go/internal/extract"
)

// pageObject exposes the parsed page to a script. Query failures
// interrupt the script, which surfaces as a ScriptError.
func (s *Script) pageObject(doc *extract.Document) goja.Value {
	vm := s.vm
	page := vm.NewObject()
	page.Set("url", doc.URL)
	page.Set("title", doc.Title())
	page.Set("html", doc.HTML())
	page.Set("rendered", doc.Rendered)

	page.Set("select", func(call goja.FunctionCall) goja.Value {
		selector := call.Argument(0).String()
		texts, err := doc.SelectText(selector)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("select error: %w", err)))
		}
		return stringsToJS(vm, texts)
	})

	page.Set("xpath", func(call goja.FunctionCall) goja.Value {
		expr := call.Argument(0).String()
		texts, err := doc.SelectText(extract.XPathPrefix + expr)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("xpath error: %w", err)))
		}
		return stringsToJS(vm, texts)
	})

	page.Set("description", func() string { return doc.Description() })
	return page
}

func stringsToJS(vm *goja.Runtime, items []string) goja.Value {
	arr := make([]interface{}, len(items))
	for i, it := range items {
		arr[i] = it
	}
	return vm.NewArray(arr...)
}

// injectConsole routes console.log and friends to the structured logger.
func (s *Script) injectConsole() {
	console := s.vm.NewObject()
	logFn := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "error":
				s.log.Error().Msg(msg)
			case "warn":
				s.log.Warn().Msg(msg)
			case "debug":
				s.log.Debug().Msg(msg)
			default:
				s.log.Info().Msg(msg)
			}
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, logFn(level))
	}
	s.vm.Set("console", console)
}
