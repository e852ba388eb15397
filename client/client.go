// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/ava-labs/anchorvm/asm"
	"github.com/ava-labs/anchorvm/mmr"
)

// Client defines anchor state machine client operations.
type Client interface {
	// GetStatus fetches the current anchor and its state
	GetStatus(ctx context.Context) (*asm.GetStatusReply, error)

	// GetLogs fetches the logs of the current anchor
	GetLogs(ctx context.Context) ([]asm.LogEntry, error)

	// GetAccumulator fetches the compact manifest accumulator
	GetAccumulator(ctx context.Context) (*mmr.CompactMmr, error)
}

// New creates a new client object for the service served at [uri].
func New(uri string) Client {
	return &client{
		uri:  uri,
		http: http.DefaultClient,
	}
}

type client struct {
	uri  string
	http *http.Client
}

func (cli *client) GetStatus(ctx context.Context) (*asm.GetStatusReply, error) {
	resp := new(asm.GetStatusReply)
	if err := cli.sendRequest(ctx, "getStatus", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetLogs(ctx context.Context) ([]asm.LogEntry, error) {
	resp := new(asm.GetLogsReply)
	if err := cli.sendRequest(ctx, "getLogs", resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

func (cli *client) GetAccumulator(ctx context.Context) (*mmr.CompactMmr, error) {
	resp := new(asm.GetAccumulatorReply)
	if err := cli.sendRequest(ctx, "getAccumulator", resp); err != nil {
		return nil, err
	}
	b, err := formatting.Decode(formatting.Hex, resp.CBOR)
	if err != nil {
		return nil, err
	}
	return mmr.UnmarshalCompact(b)
}

func (cli *client) sendRequest(ctx context.Context, method string, reply interface{}) error {
	body, err := json2.EncodeClientRequest(asm.ServiceName+"."+method, &asm.EmptyArgs{})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cli.uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cli.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to issue %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}
	return json2.DecodeClientResponse(resp.Body, reply)
}
