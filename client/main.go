package client

import (
	"context"
	"encoding/json"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/sormlabs/sorm/protocol"
)

type Client struct {
	url  string
	cli  *jrpc2.Client
	opts *jrpc2.ClientOptions
}

func NewClient(url string, opts *jrpc2.ClientOptions) *Client {
	c := &Client{url: url, opts: opts}
	c.refreshClient()
	return c
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) refreshClient() {
	if c.cli != nil {
		c.cli.Close()
	}
	ch := jhttp.NewChannel(c.url, nil)
	c.cli = jrpc2.NewClient(ch, c.opts)
}

func (c *Client) callResult(ctx context.Context, method string, params, result any) error {
	err := c.cli.CallResult(ctx, method, params, result)
	if err != nil {
		// This is needed because of https://github.com/creachadair/jrpc2/issues/118
		c.refreshClient()
	}
	return err
}

func (c *Client) GetHealth(ctx context.Context) (*protocol.GetHealthResponse, error) {
	var result protocol.GetHealthResponse
	if err := c.callResult(ctx, protocol.GetHealthMethodName, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetVersionInfo(ctx context.Context) (*protocol.GetVersionInfoResponse, error) {
	var result protocol.GetVersionInfoResponse
	if err := c.callResult(ctx, protocol.GetVersionInfoMethodName, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetCacheStats(ctx context.Context,
	request protocol.GetCacheStatsRequest,
) (*protocol.GetCacheStatsResponse, error) {
	var result protocol.GetCacheStatsResponse
	if err := c.callResult(ctx, protocol.GetCacheStatsMethodName, request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRow looks a row up by its primary key values, in primary key order.
func (c *Client) GetRow(ctx context.Context, table string, key ...any) (*protocol.GetRowResponse, error) {
	rawKey, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}
	var result protocol.GetRowResponse
	request := protocol.GetRowRequest{Table: table, Key: rawKey}
	if err := c.callResult(ctx, protocol.GetRowMethodName, request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) InsertRow(ctx context.Context, table string, row map[string]any) (*protocol.WriteRowResponse, error) {
	return c.writeRow(ctx, protocol.InsertRowMethodName, table, row)
}

func (c *Client) UpdateRow(ctx context.Context, table string, row map[string]any) (*protocol.WriteRowResponse, error) {
	return c.writeRow(ctx, protocol.UpdateRowMethodName, table, row)
}

func (c *Client) SaveRow(ctx context.Context, table string, row map[string]any) (*protocol.WriteRowResponse, error) {
	return c.writeRow(ctx, protocol.SaveRowMethodName, table, row)
}

// DeleteRow deletes the row whose primary key columns are set in row.
func (c *Client) DeleteRow(ctx context.Context, table string, row map[string]any) (*protocol.WriteRowResponse, error) {
	return c.writeRow(ctx, protocol.DeleteRowMethodName, table, row)
}

func (c *Client) writeRow(ctx context.Context, method, table string, row map[string]any) (*protocol.WriteRowResponse, error) {
	rawRow, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var result protocol.WriteRowResponse
	request := protocol.WriteRowRequest{Table: table, Row: rawRow}
	if err := c.callResult(ctx, method, request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
