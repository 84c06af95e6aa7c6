package server

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	garnetv1 "github.com/chazu/garnet/api/garnetv1"
	"github.com/chazu/garnet/vm"
)

// newTestService creates an InspectService over a fresh runtime with a
// Widget class: public size, protected weight, private secret.
func newTestService(t *testing.T) (*vm.Runtime, *InspectService) {
	t.Helper()
	rt := vm.NewRuntime(vm.DefaultOptions())
	w, err := rt.DefineClass(nil, "Widget", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	body := func(s string) vm.BodyFunc {
		return func(t *vm.Thread, _ vm.Value, _ []vm.Value, _ *vm.Proc) (vm.Value, error) {
			return t.Runtime().String(s), nil
		}
	}
	for _, m := range []struct {
		name string
		vis  vm.Visibility
	}{
		{"size", vm.Public},
		{"weight", vm.Protected},
		{"secret", vm.Private},
	} {
		if err := w.DefineMethod(m.name, vm.NewBodyMethod(body(m.name), vm.FixedArity(0), m.vis)); err != nil {
			t.Fatal(err)
		}
	}
	return rt, NewInspectService(rt, NewHandleStore())
}

func req[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

// mustSend performs a Send that must not fail at the RPC level.
func mustSend(t *testing.T, svc *InspectService, msg *garnetv1.SendRequest) *garnetv1.SendResponse {
	t.Helper()
	resp, err := svc.Send(context.Background(), req(msg))
	if err != nil {
		t.Fatalf("Send %s: %v", msg.Method, err)
	}
	return resp.Msg
}

// mustResult is mustSend plus a check that nothing was raised.
func mustResult(t *testing.T, svc *InspectService, msg *garnetv1.SendRequest) *garnetv1.Value {
	t.Helper()
	out := mustSend(t, svc, msg)
	if out.Raised != nil {
		t.Fatalf("Send %s raised %s: %s", msg.Method, out.Raised.Class, out.Raised.Message)
	}
	return out.Result
}

func expectCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got no error", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Fatalf("code = %v, want %v (%v)", got, code, err)
	}
}

func constRef(path string) garnetv1.Ref {
	return garnetv1.Ref{Kind: garnetv1.RefConst, String: path}
}

func handleRef(id string) garnetv1.Ref {
	return garnetv1.Ref{Kind: garnetv1.RefHandle, Handle: id}
}
