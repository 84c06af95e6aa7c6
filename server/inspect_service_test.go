package server

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"connectrpc.com/connect"

	garnetv1 "github.com/chazu/garnet/api/garnetv1"
)

func TestAncestors(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Ancestors(ctx, req(&garnetv1.AncestorsRequest{Module: "Widget"}))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Widget", "Object", "Kernel", "BasicObject"}
	if !reflect.DeepEqual(resp.Msg.Names, want) {
		t.Errorf("ancestors = %v, want %v", resp.Msg.Names, want)
	}

	_, err = svc.Ancestors(ctx, req(&garnetv1.AncestorsRequest{Module: "Nope"}))
	expectCode(t, err, connect.CodeNotFound)
	_, err = svc.Ancestors(ctx, req(&garnetv1.AncestorsRequest{}))
	expectCode(t, err, connect.CodeInvalidArgument)
}

func TestInstanceMethods(t *testing.T) {
	_, svc := newTestService(t)
	tests := []struct {
		vis  string
		want []string
	}{
		{"", []string{"size", "weight"}},
		{"public", []string{"size"}},
		{"protected", []string{"weight"}},
		{"private", []string{"secret"}},
	}
	for _, tt := range tests {
		resp, err := svc.InstanceMethods(context.Background(), req(&garnetv1.InstanceMethodsRequest{
			Module: "Widget", Visibility: tt.vis,
		}))
		if err != nil {
			t.Fatalf("visibility %q: %v", tt.vis, err)
		}
		if !reflect.DeepEqual(resp.Msg.Names, tt.want) {
			t.Errorf("visibility %q = %v, want %v", tt.vis, resp.Msg.Names, tt.want)
		}
	}

	resp, err := svc.InstanceMethods(context.Background(), req(&garnetv1.InstanceMethodsRequest{
		Module: "Widget", Inherited: true,
	}))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, n := range resp.Msg.Names {
		if n == "respond_to?" {
			found = true
		}
	}
	if !found {
		t.Error("inherited listing should include Kernel#respond_to?")
	}

	_, err = svc.InstanceMethods(context.Background(), req(&garnetv1.InstanceMethodsRequest{
		Module: "Widget", Visibility: "secretive",
	}))
	expectCode(t, err, connect.CodeInvalidArgument)
}

func TestConstants(t *testing.T) {
	rt, svc := newTestService(t)
	outer, err := rt.DefineModule("Outer", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.DefineClass(nil, "Inner", nil, outer); err != nil {
		t.Fatal(err)
	}
	outer.ConstSet("LIMIT", rt.Int(10))

	resp, err := svc.Constants(context.Background(), req(&garnetv1.ConstantsRequest{Module: "Outer"}))
	if err != nil {
		t.Fatal(err)
	}
	names := append([]string(nil), resp.Msg.Names...)
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"Inner", "LIMIT"}) {
		t.Errorf("constants = %v", resp.Msg.Names)
	}
}

func TestSendAndInspect(t *testing.T) {
	_, svc := newTestService(t)

	w := mustResult(t, svc, &garnetv1.SendRequest{Receiver: constRef("Widget"), Method: "new"})
	if w.Class != "Widget" || w.Handle == "" {
		t.Fatalf("Widget.new = %+v", w)
	}

	mustResult(t, svc, &garnetv1.SendRequest{
		Receiver: handleRef(w.Handle),
		Method:   "instance_variable_set",
		Args: []garnetv1.Ref{
			{Kind: garnetv1.RefSymbol, String: "@size"},
			{Kind: garnetv1.RefInt, Int: 3},
		},
	})
	size := mustResult(t, svc, &garnetv1.SendRequest{Receiver: handleRef(w.Handle), Method: "size"})
	if size.Inspect != `"size"` || size.Class != "String" {
		t.Errorf("size = %+v", size)
	}

	resp, err := svc.Inspect(context.Background(), req(&garnetv1.InspectRequest{Handle: w.Handle}))
	if err != nil {
		t.Fatal(err)
	}
	got := resp.Msg
	if got.Value.Class != "Widget" || got.Frozen || got.ObjectID == 0 {
		t.Errorf("inspect = %+v", got)
	}
	if len(got.InstanceVars) != 1 || got.InstanceVars[0].Name != "@size" || got.InstanceVars[0].Value.Inspect != "3" {
		t.Errorf("instance vars = %+v", got.InstanceVars)
	}

	mustResult(t, svc, &garnetv1.SendRequest{Receiver: handleRef(w.Handle), Method: "freeze"})
	resp, err = svc.Inspect(context.Background(), req(&garnetv1.InspectRequest{Handle: w.Handle}))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Msg.Frozen {
		t.Error("frozen = false after freeze")
	}
}

func TestSendRaises(t *testing.T) {
	_, svc := newTestService(t)

	out := mustSend(t, svc, &garnetv1.SendRequest{
		Receiver: garnetv1.Ref{Kind: garnetv1.RefInt, Int: 1},
		Method:   "+",
		Args:     []garnetv1.Ref{{Kind: garnetv1.RefString, String: "x"}},
	})
	if out.Raised == nil || out.Raised.Class != "TypeError" {
		t.Fatalf("1 + \"x\" = %+v, want TypeError", out)
	}
	if out.Raised.Message != "String can't be coerced into Fixnum" {
		t.Errorf("message = %q", out.Raised.Message)
	}
	if out.Raised.Exception == nil || out.Raised.Exception.Class != "TypeError" {
		t.Errorf("exception value = %+v", out.Raised.Exception)
	}

	w := mustResult(t, svc, &garnetv1.SendRequest{Receiver: constRef("Widget"), Method: "new"})
	out = mustSend(t, svc, &garnetv1.SendRequest{Receiver: handleRef(w.Handle), Method: "secret"})
	if out.Raised == nil || out.Raised.Class != "NoMethodError" {
		t.Fatalf("private call = %+v, want NoMethodError", out)
	}
	secret := mustResult(t, svc, &garnetv1.SendRequest{Receiver: handleRef(w.Handle), Method: "secret", Private: true})
	if secret.Inspect != `"secret"` {
		t.Errorf("send(:secret) = %+v", secret)
	}

	out = mustSend(t, svc, &garnetv1.SendRequest{Receiver: handleRef(w.Handle), Method: "weight"})
	if out.Raised == nil || out.Raised.Class != "NoMethodError" {
		t.Fatalf("protected call = %+v, want NoMethodError", out)
	}
	weight := mustResult(t, svc, &garnetv1.SendRequest{Receiver: handleRef(w.Handle), Method: "weight", Private: true})
	if weight.Inspect != `"weight"` {
		t.Errorf("send(:weight) = %+v", weight)
	}
}

func TestSendBadRefs(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()
	tests := []struct {
		name string
		msg  *garnetv1.SendRequest
		code connect.Code
	}{
		{"no method", &garnetv1.SendRequest{Receiver: constRef("Widget")}, connect.CodeInvalidArgument},
		{"unknown constant", &garnetv1.SendRequest{Receiver: constRef("Gadget"), Method: "new"}, connect.CodeNotFound},
		{"constant in non-module", &garnetv1.SendRequest{Receiver: constRef("Widget::X::Y"), Method: "new"}, connect.CodeNotFound},
		{"unknown handle", &garnetv1.SendRequest{Receiver: handleRef("0c5ad3f4-3a43-4d8e-9d1a-5f1c0d2b9e77"), Method: "x"}, connect.CodeNotFound},
		{"malformed handle", &garnetv1.SendRequest{Receiver: handleRef("h-1"), Method: "x"}, connect.CodeNotFound},
		{"empty symbol", &garnetv1.SendRequest{
			Receiver: constRef("Widget"), Method: "send",
			Args: []garnetv1.Ref{{Kind: garnetv1.RefSymbol}},
		}, connect.CodeInvalidArgument},
		{"bad kind", &garnetv1.SendRequest{Receiver: garnetv1.Ref{Kind: 99}, Method: "x"}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		_, err := svc.Send(ctx, req(tt.msg))
		if connect.CodeOf(err) != tt.code {
			t.Errorf("%s: code = %v, want %v (%v)", tt.name, connect.CodeOf(err), tt.code, err)
		}
	}
}

func TestConstantRefToNonModule(t *testing.T) {
	rt, svc := newTestService(t)
	if _, err := rt.ObjectClass.ConstSet("ANSWER", rt.Int(42)); err != nil {
		t.Fatal(err)
	}
	v := mustResult(t, svc, &garnetv1.SendRequest{Receiver: constRef("ANSWER"), Method: "to_s"})
	if v.Inspect != `"42"` {
		t.Errorf("ANSWER.to_s = %+v", v)
	}
	_, err := svc.Send(context.Background(), req(&garnetv1.SendRequest{Receiver: constRef("ANSWER::X"), Method: "to_s"}))
	expectCode(t, err, connect.CodeInvalidArgument)
}

func TestReleaseAndCacheStats(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	w := mustResult(t, svc, &garnetv1.SendRequest{Receiver: constRef("Widget"), Method: "new"})
	mustResult(t, svc, &garnetv1.SendRequest{Receiver: handleRef(w.Handle), Method: "size"})

	stats, err := svc.CacheStats(ctx, req(&garnetv1.CacheStatsRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Msg.Handles != 2 {
		t.Errorf("handles = %d, want 2", stats.Msg.Handles)
	}
	if stats.Msg.Adds == 0 || stats.Msg.Holders == 0 {
		t.Errorf("cache stats = %+v, want cached resolutions", stats.Msg)
	}

	rel, err := svc.Release(ctx, req(&garnetv1.ReleaseRequest{Handle: w.Handle}))
	if err != nil || !rel.Msg.Released {
		t.Fatalf("Release = %+v, %v", rel, err)
	}
	rel, _ = svc.Release(ctx, req(&garnetv1.ReleaseRequest{Handle: w.Handle}))
	if rel.Msg.Released {
		t.Error("second Release should report false")
	}
	_, err = svc.Inspect(ctx, req(&garnetv1.InspectRequest{Handle: w.Handle}))
	expectCode(t, err, connect.CodeNotFound)
}
