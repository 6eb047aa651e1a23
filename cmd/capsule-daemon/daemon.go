package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/chazu/capsulegen/pkg/binding"
	"github.com/chazu/capsulegen/pkg/capsule"
	berrors "github.com/chazu/capsulegen/pkg/errors"
	"github.com/chazu/capsulegen/pkg/runtime"
)

// Request is one call from the client.
//
// Op selects the call form:
//
//	new       construct Class with Args
//	static    call Class.Method with Args
//	call      call Method on Object with Args
//	function  call Namespace::Method with Args
//	delete    destroy Object if it still owns its native object
//	drop      forget Object without destroying it
//
// Objects appear in Args and results as {"object": id, "class": name}.
type Request struct {
	Op        string            `json:"op"`
	Class     string            `json:"class,omitempty"`
	Namespace string            `json:"namespace,omitempty"`
	Object    string            `json:"object,omitempty"`
	Method    string            `json:"method,omitempty"`
	Args      []json.RawMessage `json:"args,omitempty"`
}

// Response is the reply to one Request.
type Response struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// objectRef is the wire form of a wrapper.
type objectRef struct {
	Object string `json:"object"`
	Class  string `json:"class,omitempty"`
}

// Daemon dispatches requests to a host and keeps the objects it handed out.
type Daemon struct {
	reg     *binding.Registry
	host    *runtime.Host
	objects map[string]any // capsule id -> wrapper
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewDaemon creates a daemon serving host.
func NewDaemon(reg *binding.Registry, host *runtime.Host) *Daemon {
	return &Daemon{
		reg:     reg,
		host:    host,
		objects: make(map[string]any),
		logger:  zap.NewNop(),
	}
}

// Run processes JSON requests from r, one per line, until r is exhausted.
func (d *Daemon) Run(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, len(buf))
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := enc.Encode(Response{Error: "invalid JSON: " + err.Error()}); err != nil {
				return err
			}
			continue
		}

		d.logger.Debug("request", zap.String("op", req.Op), zap.String("class", req.Class), zap.String("method", req.Method))
		if err := enc.Encode(d.Handle(req)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Handle processes a single request.
func (d *Daemon) Handle(req Request) Response {
	res, err := d.dispatch(req)
	if err != nil {
		resp := Response{Error: err.Error()}
		var be *berrors.Error
		if errors.As(err, &be) {
			resp.Kind = string(be.Kind)
		}
		return resp
	}
	return Response{Result: d.encode(res)}
}

func (d *Daemon) dispatch(req Request) (any, error) {
	switch req.Op {
	case "new", "static":
		cls, ok := d.reg.FindClass(req.Class)
		if !ok {
			return nil, fmt.Errorf("unknown class %q", req.Class)
		}
		args, err := d.decodeArgs(req.Args)
		if err != nil {
			return nil, err
		}
		if req.Op == "new" {
			return d.host.Construct(cls, args...)
		}
		return d.host.CallStatic(cls, req.Method, args...)

	case "call":
		obj, err := d.object(req.Object)
		if err != nil {
			return nil, err
		}
		args, err := d.decodeArgs(req.Args)
		if err != nil {
			return nil, err
		}
		return d.host.Invoke(obj, req.Method, args...)

	case "function":
		ns, ok := d.reg.Lookup(req.Namespace)
		if !ok {
			return nil, fmt.Errorf("unknown namespace %q", req.Namespace)
		}
		args, err := d.decodeArgs(req.Args)
		if err != nil {
			return nil, err
		}
		return d.host.CallFunction(ns, req.Method, args...)

	case "delete":
		obj, err := d.object(req.Object)
		if err != nil {
			return nil, err
		}
		deleted, err := d.host.Delete(obj)
		if err != nil {
			return nil, err
		}
		d.forget(req.Object)
		return deleted, nil

	case "drop":
		if _, err := d.object(req.Object); err != nil {
			return nil, err
		}
		d.forget(req.Object)
		return true, nil

	default:
		return nil, fmt.Errorf("unknown op %q", req.Op)
	}
}

func (d *Daemon) object(id string) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := d.objects[id]
	if !ok {
		return nil, fmt.Errorf("unknown object %q", id)
	}
	return obj, nil
}

func (d *Daemon) forget(id string) {
	d.mu.Lock()
	delete(d.objects, id)
	d.mu.Unlock()
}

func (d *Daemon) decodeArgs(raw []json.RawMessage) ([]any, error) {
	args := make([]any, len(raw))
	for i, r := range raw {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		a, err := d.decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = a
	}
	return args, nil
}

// decodeValue turns wire values into host values: object references into
// their wrappers and integral numbers into int64.
func (d *Daemon) decodeValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		return x.Float64()
	case map[string]any:
		id, ok := x["object"].(string)
		if !ok {
			return nil, fmt.Errorf("objects are passed as {\"object\": id}")
		}
		return d.object(id)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			a, err := d.decodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = a
		}
		return out, nil
	}
	return v, nil
}

// encode turns host results into wire values, remembering wrappers so later
// requests can refer to them.
func (d *Daemon) encode(v any) any {
	switch x := v.(type) {
	case capsule.Wrapper:
		c := x.Capsule()
		if c == nil {
			return nil
		}
		id := c.ID.String()
		d.mu.Lock()
		d.objects[id] = x
		d.mu.Unlock()
		return objectRef{Object: id, Class: c.ClassName}
	case runtime.Outcome:
		return map[string]any{"ok": x.OK, "message": x.Message}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = d.encode(e)
		}
		return out
	}
	return v
}
