// Package scripts runs user-supplied JavaScript extractors for sites the
// generic cascade handles poorly.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/extract"
)

const DefaultTimeout = 5 * time.Second

// Script is one loaded extractor. A goja VM is not safe for concurrent
// use, so calls are serialized.
type Script struct {
	name    string
	path    string
	timeout time.Duration

	mu  sync.Mutex
	vm  *goja.Runtime
	log zerolog.Logger
}

// Load compiles a script file. The file assigns to `exports`:
//
//	exports.name = "example";
//	exports.matches = function (url) { return url.indexOf("example.com") >= 0; };
//	exports.extract = function (page) { return page.select(".story p").join("\n"); };
func Load(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Compile(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), path, string(src))
}

// Compile builds a script from source. name is used when the script does
// not export one.
func Compile(name, path, src string) (*Script, error) {
	vm := goja.New()
	s := &Script{name: name, path: path, timeout: DefaultTimeout, vm: vm}
	s.log = log.With().Str("component", "scripts").Str("script", name).Logger()
	s.injectConsole()

	exports := vm.NewObject()
	vm.Set("exports", exports)

	// CommonJS-like wrapper
	wrapped := fmt.Sprintf("(function(exports) {\n%s\n})(exports);", src)
	if _, err := vm.RunString(wrapped); err != nil {
		return nil, &ScriptError{Script: name, Function: "<load>", Message: "failed to execute script", Cause: err}
	}

	for _, exp := range []string{"matches", "extract"} {
		if _, ok := goja.AssertFunction(exports.Get(exp)); !ok {
			return nil, &ScriptError{Script: name, Function: exp, Message: "missing required export"}
		}
	}
	if v := exports.Get("name"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) && v.String() != "" {
		s.name = v.String()
		s.log = log.With().Str("component", "scripts").Str("script", s.name).Logger()
	}
	return s, nil
}

func (s *Script) Name() string { return s.name }
func (s *Script) Path() string { return s.path }

// SetTimeout bounds every call into the script.
func (s *Script) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Matches calls exports.matches(url).
func (s *Script) Matches(ctx context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.call(ctx, "matches", s.vm.ToValue(url))
	if err != nil {
		return false, err
	}
	return v.ToBoolean(), nil
}

// Extract calls exports.extract(page). A null or empty result yields
// extract.ErrNoText. Arrays are joined as paragraphs.
func (s *Script) Extract(ctx context.Context, doc *extract.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.call(ctx, "extract", s.pageObject(doc))
	if err != nil {
		return "", err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", extract.ErrNoText
	}
	var text string
	switch exported := v.Export().(type) {
	case string:
		text = exported
	case []interface{}:
		parts := make([]string, 0, len(exported))
		for _, p := range exported {
			if p != nil {
				parts = append(parts, fmt.Sprint(p))
			}
		}
		text = strings.Join(parts, "\n\n")
	default:
		text = v.String()
	}
	if strings.TrimSpace(text) == "" {
		return "", extract.ErrNoText
	}
	return text, nil
}

// call runs an export with the timeout applied. s.mu must be held.
func (s *Script) call(ctx context.Context, function string, args ...goja.Value) (goja.Value, error) {
	exports := s.vm.Get("exports").ToObject(s.vm)
	callable, ok := goja.AssertFunction(exports.Get(function))
	if !ok {
		return nil, &ScriptError{Script: s.name, Function: function, Message: "not callable"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		val goja.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: &ScriptError{Script: s.name, Function: function, Message: fmt.Sprintf("panic: %v", p), IsPanic: true}}
			}
		}()
		val, err := callable(goja.Undefined(), args...)
		done <- result{val: val, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		s.vm.Interrupt("timeout")
		<-done
		s.vm.ClearInterrupt()
		return nil, &ScriptError{Script: s.name, Function: function, Message: "timeout", IsTimeout: true, Cause: ctx.Err()}
	}
	if r.err != nil {
		var se *ScriptError
		if errors.As(r.err, &se) {
			return nil, se
		}
		return nil, &ScriptError{Script: s.name, Function: function, Message: "call failed", Cause: r.err}
	}
	return r.val, nil
}
