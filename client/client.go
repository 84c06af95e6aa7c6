// Package client is a gRPC client for the garnet.v1 inspection service.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	garnetv1 "github.com/chazu/garnet/api/garnetv1"
)

// Client calls an inspection server over gRPC with the CBOR codec.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target ("host:port"). The connection is cleartext
// unless opts supply transport credentials.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(garnetv1.Codec{})),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return fmt.Errorf("client: %s: %w", method, err)
	}
	return nil
}

// Ancestors returns the ancestor names of module.
func (c *Client) Ancestors(ctx context.Context, module string) ([]string, error) {
	var resp garnetv1.AncestorsResponse
	err := c.invoke(ctx, garnetv1.AncestorsProcedure, &garnetv1.AncestorsRequest{Module: module}, &resp)
	return resp.Names, err
}

// InstanceMethods lists the instance methods of module.
func (c *Client) InstanceMethods(ctx context.Context, req *garnetv1.InstanceMethodsRequest) ([]string, error) {
	var resp garnetv1.InstanceMethodsResponse
	err := c.invoke(ctx, garnetv1.InstanceMethodsProcedure, req, &resp)
	return resp.Names, err
}

// Constants lists the constants defined in module.
func (c *Client) Constants(ctx context.Context, module string) ([]string, error) {
	var resp garnetv1.ConstantsResponse
	err := c.invoke(ctx, garnetv1.ConstantsProcedure, &garnetv1.ConstantsRequest{Module: module}, &resp)
	return resp.Names, err
}

// Send performs a remote call.
func (c *Client) Send(ctx context.Context, req *garnetv1.SendRequest) (*garnetv1.SendResponse, error) {
	var resp garnetv1.SendResponse
	if err := c.invoke(ctx, garnetv1.SendProcedure, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Inspect describes the value behind handle.
func (c *Client) Inspect(ctx context.Context, handle string) (*garnetv1.InspectResponse, error) {
	var resp garnetv1.InspectResponse
	if err := c.invoke(ctx, garnetv1.InspectProcedure, &garnetv1.InspectRequest{Handle: handle}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Release drops handle on the server.
func (c *Client) Release(ctx context.Context, handle string) (bool, error) {
	var resp garnetv1.ReleaseResponse
	err := c.invoke(ctx, garnetv1.ReleaseProcedure, &garnetv1.ReleaseRequest{Handle: handle}, &resp)
	return resp.Released, err
}

// CacheStats returns the server's method cache counters.
func (c *Client) CacheStats(ctx context.Context) (*garnetv1.CacheStatsResponse, error) {
	var resp garnetv1.CacheStatsResponse
	if err := c.invoke(ctx, garnetv1.CacheStatsProcedure, &garnetv1.CacheStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Const is a Ref naming a constant path.
func Const(path string) garnetv1.Ref {
	return garnetv1.Ref{Kind: garnetv1.RefConst, String: path}
}

// Handle is a Ref to an earlier result.
func Handle(id string) garnetv1.Ref {
	return garnetv1.Ref{Kind: garnetv1.RefHandle, Handle: id}
}

// Int is an Integer Ref.
func Int(n int64) garnetv1.Ref {
	return garnetv1.Ref{Kind: garnetv1.RefInt, Int: n}
}

// String is a String Ref.
func String(s string) garnetv1.Ref {
	return garnetv1.Ref{Kind: garnetv1.RefString, String: s}
}

// Symbol is a Symbol Ref.
func Symbol(name string) garnetv1.Ref {
	return garnetv1.Ref{Kind: garnetv1.RefSymbol, String: name}
}
