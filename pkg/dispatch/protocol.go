package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/lineparser"
	"github.com/vmihailenco/msgpack/v5"
)

// Request asks the worker to parse Code. ID correlates the response.
type Request struct {
	ID   uint64 `msgpack:"id"`
	Code string `msgpack:"code"`
}

// Response answers the request with the same ID. Error is set instead of Result
// when the worker could not parse the text.
type Response struct {
	ID     uint64              `msgpack:"id"`
	Result *domain.ParseResult `msgpack:"result,omitempty"`
	Error  string              `msgpack:"error,omitempty"`
}

// ServeWorker answers requests read from r until r is exhausted or ctx ends.
// It is the body of every worker context.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer) error {
	dec := msgpack.NewDecoder(r)
	enc := msgpack.NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("failed to decode request: %w", err)
		}

		resp := handleRequest(req)
		if err := enc.Encode(&resp); err != nil {
			return fmt.Errorf("failed to encode response %d: %w", req.ID, err)
		}
	}
}

func handleRequest(req Request) (resp Response) {
	resp.ID = req.ID
	defer func() {
		if r := recover(); r != nil {
			resp.Result = nil
			resp.Error = fmt.Sprintf("parse panic: %v", r)
		}
	}()
	res := lineparser.Parse(req.Code)
	resp.Result = &res
	return resp
}
