package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"unsafe"

	"github.com/jamesits/goinvoke"
	"go.uber.org/zap"
)

// Handle identifies a native object living inside a plugin.
type Handle uint64

// pluginFuncs holds the exported functions of a c-shared native library.
//
//	char* CapsuleSymbols(void);
//	char* CapsuleInvoke(char* request);
type pluginFuncs struct {
	Symbols *goinvoke.Proc `func:"CapsuleSymbols"`
	Invoke  *goinvoke.Proc `func:"CapsuleInvoke"`
}

// Plugin is a Library backed by a c-shared library. Calls cross the
// boundary as JSON: objects travel as {"handle": n} and the error-message
// out-parameter of fallible operations as {"out": true}.
type Plugin struct {
	path    string
	funcs   *pluginFuncs
	symbols map[string]bool
	mu      sync.Mutex
}

type pluginRequest struct {
	Symbol string `json:"symbol"`
	Args   []any  `json:"args"`
}

type pluginResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Errmsg string          `json:"errmsg,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type handleJSON struct {
	Handle *uint64 `json:"handle"`
}

type outJSON struct {
	Out bool `json:"out"`
}

// OpenPlugin loads the library at path and reads its symbol list.
func OpenPlugin(path string) (*Plugin, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("plugin not found: %w", err)
	}

	funcs := &pluginFuncs{}
	if err := goinvoke.Unmarshal(path, funcs); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if funcs.Symbols == nil || funcs.Invoke == nil {
		return nil, fmt.Errorf("plugin %s does not export CapsuleSymbols and CapsuleInvoke", path)
	}

	ret, _, _ := funcs.Symbols.Call()
	var names []string
	if err := json.Unmarshal([]byte(gostring(unsafe.Pointer(ret))), &names); err != nil {
		return nil, fmt.Errorf("plugin %s: reading symbols: %w", path, err)
	}

	p := &Plugin{path: path, funcs: funcs, symbols: make(map[string]bool, len(names))}
	for _, n := range names {
		p.symbols[n] = true
	}
	Logger().Info("loaded plugin", zap.String("path", path), zap.Int("symbols", len(names)))
	return p, nil
}

// Lookup implements Library.
func (p *Plugin) Lookup(symbol string) (NativeFunc, bool) {
	if !p.symbols[symbol] {
		return nil, false
	}
	return func(args []any) (any, error) {
		return p.invoke(symbol, args)
	}, true
}

func (p *Plugin) invoke(symbol string, args []any) (any, error) {
	var errmsg *string
	wire := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case Handle:
			n := uint64(v)
			wire[i] = handleJSON{Handle: &n}
		case *string:
			errmsg = v
			wire[i] = outJSON{Out: true}
		default:
			wire[i] = a
		}
	}
	req, err := json.Marshal(pluginRequest{Symbol: symbol, Args: wire})
	if err != nil {
		return nil, fmt.Errorf("encoding call: %w", err)
	}

	p.mu.Lock()
	ret, _, _ := p.funcs.Invoke.Call(uintptr(cstring(string(req))))
	out := gostring(unsafe.Pointer(ret))
	p.mu.Unlock()

	var resp pluginResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return nil, fmt.Errorf("decoding result of %s: %w", symbol, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	if errmsg != nil {
		*errmsg = resp.Errmsg
	}
	return decodeValue(resp.Result)
}

// decodeValue turns a JSON result into a native value: handles become
// Handle, integral numbers int64 and other numbers float64.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '{' {
		var h handleJSON
		if err := json.Unmarshal(raw, &h); err == nil && h.Handle != nil {
			return Handle(*h.Handle), nil
		}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	}
	return v
}

// cstring converts a Go string to a null-terminated byte buffer.
func cstring(s string) unsafe.Pointer {
	b := append([]byte(s), 0)
	return unsafe.Pointer(&b[0])
}

// gostring copies a null-terminated C string.
func gostring(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	var length int
	for *(*byte)(unsafe.Add(p, length)) != 0 {
		length++
	}
	return string(unsafe.Slice((*byte)(p), length))
}
