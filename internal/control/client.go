package control

import (
	"context"
	"errors"
	"fmt"
	"net/rpc"
)

// Client talks to a remote control Service.
type Client struct {
	c *rpc.Client
}

func Dial(addr string) (*Client, error) {
	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing control server %s: %w", addr, err)
	}
	return &Client{c: c}, nil
}

// Send applies a single command. It makes Client a Sender.
func (c *Client) Send(ctx context.Context, cmd Command) error {
	_, err := c.Apply(ctx, cmd)
	return err
}

// ErrPartialApply reports that the host queued only some of a batch.
var ErrPartialApply = errors.New("commands partially applied")

// Apply sends cmds in one request and returns how many were queued. When
// the host stops early the count is still valid and the error wraps
// ErrPartialApply.
func (c *Client) Apply(ctx context.Context, cmds ...Command) (int, error) {
	var res ApplyResponse
	if err := c.call(ctx, ApplyHandler, ApplyRequest{Commands: cmds}, &res); err != nil {
		return 0, err
	}
	if res.Err != "" {
		return res.Accepted, fmt.Errorf("%w: %s", ErrPartialApply, res.Err)
	}
	return res.Accepted, nil
}

// Status fetches the host's latest published status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var res StatusResponse
	if err := c.call(ctx, StatusHandler, StatusRequest{Client: "rdctl"}, &res); err != nil {
		return Status{}, err
	}
	return res.Status, nil
}

func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	call := c.c.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		if call.Error != nil {
			return fmt.Errorf("%s: %w", method, call.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Close() error { return c.c.Close() }
