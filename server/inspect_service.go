package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"

	garnetv1 "github.com/chazu/garnet/api/garnetv1"
	"github.com/chazu/garnet/vm"
)

// InspectService implements garnet.v1.InspectionService.
type InspectService struct {
	rt      *vm.Runtime
	handles *HandleStore
}

// NewInspectService creates an InspectService.
func NewInspectService(rt *vm.Runtime, handles *HandleStore) *InspectService {
	return &InspectService{rt: rt, handles: handles}
}

// module resolves a qualified module name, mapping runtime errors to
// Connect codes.
func (s *InspectService) module(name string) (*vm.Module, error) {
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("module is required"))
	}
	m, err := s.rt.ClassFromPath(name)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return m, nil
}

// Ancestors returns the ancestor names of a module, the module first.
func (s *InspectService) Ancestors(
	ctx context.Context,
	req *connect.Request[garnetv1.AncestorsRequest],
) (*connect.Response[garnetv1.AncestorsResponse], error) {
	m, err := s.module(req.Msg.Module)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, a := range m.Ancestors() {
		names = append(names, a.Name())
	}
	return connect.NewResponse(&garnetv1.AncestorsResponse{Names: names}), nil
}

// InstanceMethods lists the method names instances of a module respond to.
func (s *InspectService) InstanceMethods(
	ctx context.Context,
	req *connect.Request[garnetv1.InstanceMethodsRequest],
) (*connect.Response[garnetv1.InstanceMethodsResponse], error) {
	m, err := s.module(req.Msg.Module)
	if err != nil {
		return nil, err
	}

	var filter func(vm.Visibility) bool
	switch req.Msg.Visibility {
	case "":
		filter = func(v vm.Visibility) bool { return v == vm.Public || v == vm.Protected }
	case "public":
		filter = func(v vm.Visibility) bool { return v == vm.Public }
	case "protected":
		filter = func(v vm.Visibility) bool { return v == vm.Protected }
	case "private":
		filter = vm.Visibility.IsPrivate
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown visibility %q", req.Msg.Visibility))
	}

	names := m.InstanceMethodNames(filter, req.Msg.Inherited)
	return connect.NewResponse(&garnetv1.InstanceMethodsResponse{Names: names}), nil
}

// Constants lists the constants of a module and its ancestors.
func (s *InspectService) Constants(
	ctx context.Context,
	req *connect.Request[garnetv1.ConstantsRequest],
) (*connect.Response[garnetv1.ConstantsResponse], error) {
	m, err := s.module(req.Msg.Module)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&garnetv1.ConstantsResponse{Names: m.Constants()}), nil
}

// Send performs a method call. Exceptions come back in the response, not
// as RPC errors.
func (s *InspectService) Send(
	ctx context.Context,
	req *connect.Request[garnetv1.SendRequest],
) (*connect.Response[garnetv1.SendResponse], error) {
	if req.Msg.Method == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("method is required"))
	}
	recv, err := s.resolve(req.Msg.Receiver)
	if err != nil {
		return nil, err
	}
	args := make([]vm.Value, 0, len(req.Msg.Args))
	for i, r := range req.Msg.Args {
		a, err := s.resolve(r)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, a)
	}

	t := s.rt.NewThread()
	var res vm.Value
	if req.Msg.Private {
		res, err = t.Send(recv, req.Msg.Method, args...)
	} else {
		res, err = t.Call(recv, req.Msg.Method, args...)
	}
	if err != nil {
		var re *vm.RaiseError
		if !errors.As(err, &re) {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		ex := s.describe(t, re.Exception)
		return connect.NewResponse(&garnetv1.SendResponse{Raised: &garnetv1.Raised{
			Class:     re.Class().Name(),
			Message:   re.Exception.Message(),
			Backtrace: re.Exception.Backtrace(),
			Exception: &ex,
		}}), nil
	}
	out := s.describe(t, res)
	return connect.NewResponse(&garnetv1.SendResponse{Result: &out}), nil
}

// Inspect describes the value behind a handle.
func (s *InspectService) Inspect(
	ctx context.Context,
	req *connect.Request[garnetv1.InspectRequest],
) (*connect.Response[garnetv1.InspectResponse], error) {
	if req.Msg.Handle == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("handle is required"))
	}
	v, ok := s.handles.Lookup(req.Msg.Handle)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("handle %q not found", req.Msg.Handle))
	}

	t := s.rt.NewThread()
	h := vm.Header(v)
	resp := &garnetv1.InspectResponse{
		Value: garnetv1.Value{
			Handle:  req.Msg.Handle,
			Class:   vm.RealClassOf(v).Name(),
			Inspect: s.rt.Inspect(t, v),
		},
		SingletonMethods: s.rt.SingletonMethodNames(v, false),
		Frozen:           h.IsFrozen(),
		Tainted:          h.IsTainted(),
		ObjectID:         s.rt.ObjectID(v),
	}
	for _, name := range s.rt.InstanceVariableNames(v) {
		iv, _ := s.rt.InstanceVariable(v, name)
		resp.InstanceVars = append(resp.InstanceVars, garnetv1.Field{Name: name, Value: s.describe(t, iv)})
	}
	return connect.NewResponse(resp), nil
}

// Release drops a handle.
func (s *InspectService) Release(
	ctx context.Context,
	req *connect.Request[garnetv1.ReleaseRequest],
) (*connect.Response[garnetv1.ReleaseResponse], error) {
	return connect.NewResponse(&garnetv1.ReleaseResponse{Released: s.handles.Release(req.Msg.Handle)}), nil
}

// CacheStats reports method cache counters.
func (s *InspectService) CacheStats(
	ctx context.Context,
	req *connect.Request[garnetv1.CacheStatsRequest],
) (*connect.Response[garnetv1.CacheStatsResponse], error) {
	c := s.rt.Cache()
	st := c.Stats()
	return connect.NewResponse(&garnetv1.CacheStatsResponse{
		Adds:           st.Adds,
		Removes:        st.Removes,
		Evictions:      st.Evictions,
		ModuleIncludes: st.ModuleIncludes,
		IncludeEvicts:  st.IncludeEvicts,
		Flushes:        st.Flushes,
		Names:          int64(st.Names),
		Holders:        int64(st.Holders),
		Serial:         c.Serial(),
		Handles:        int64(s.handles.Len()),
	}), nil
}

// ---------------------------------------------------------------------------
// Value conversion
// ---------------------------------------------------------------------------

// describe registers v as a handle and returns its description.
func (s *InspectService) describe(t *vm.Thread, v vm.Value) garnetv1.Value {
	return garnetv1.Value{
		Handle:  s.handles.Create(v),
		Class:   vm.RealClassOf(v).Name(),
		Inspect: s.rt.Inspect(t, v),
	}
}

// resolve turns a request Ref into a runtime value.
func (s *InspectService) resolve(r garnetv1.Ref) (vm.Value, error) {
	switch r.Kind {
	case garnetv1.RefNil:
		return s.rt.Nil(), nil
	case garnetv1.RefTrue:
		return s.rt.True(), nil
	case garnetv1.RefFalse:
		return s.rt.False(), nil
	case garnetv1.RefInt:
		return s.rt.Int(r.Int), nil
	case garnetv1.RefString:
		return s.rt.String(r.String), nil
	case garnetv1.RefSymbol:
		if r.String == "" {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("empty symbol"))
		}
		return s.rt.Symbol(r.String), nil
	case garnetv1.RefConst:
		return s.constant(r.String)
	case garnetv1.RefHandle:
		v, ok := s.handles.Lookup(r.Handle)
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("handle %q not found", r.Handle))
		}
		return v, nil
	}
	return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown ref kind %d", r.Kind))
}

// constant looks up a qualified constant path. Only the last segment may
// name something other than a module.
func (s *InspectService) constant(path string) (vm.Value, error) {
	if path == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("constant path is required"))
	}
	parts := strings.Split(path, "::")
	var cur vm.Value = s.rt.ObjectClass
	for i, part := range parts {
		mod, ok := cur.(*vm.Module)
		if !ok {
			return nil, connect.NewError(connect.CodeInvalidArgument,
				fmt.Errorf("%s is not a class/module", strings.Join(parts[:i], "::")))
		}
		v, found := mod.ConstGetAt(part)
		if !found {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("uninitialized constant %s", path))
		}
		cur = v
	}
	return cur, nil
}
