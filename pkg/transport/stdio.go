package transport

import (
	"bufio"
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/oakmont/parcelscout/pkg/logging"
	"github.com/oakmont/parcelscout/pkg/protocol"
)

// stdio request lines can carry inline page content; allow generous frames.
const maxFrameSize = 10 * 1024 * 1024

// Stdio serves the protocol over newline-delimited JSON on an input/output
// pair, normally stdin and stdout. Stdout carries only protocol frames; all
// logging goes elsewhere.
type Stdio struct {
	in      io.Reader
	out     io.Writer
	handler Handler
	logger  *logging.Logger

	writeMu sync.Mutex
}

// NewStdio creates a stdio transport over the given reader and writer.
func NewStdio(in io.Reader, out io.Writer, handler Handler, logger *logging.Logger) *Stdio {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stdio{in: in, out: out, handler: handler, logger: logger}
}

// Run reads frames until the input closes or ctx ends. Each request is
// handled on its own goroutine so a slow operation never blocks the read
// loop; responses therefore interleave in completion order.
func (t *Stdio) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			// A cancelled context is orderly shutdown, not a channel fault.
			t.logger.Info("stdio transport stopping")
			return nil
		default:
		}

		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		req, err := protocol.DecodeRequest(line)
		if err != nil {
			// A bad frame gets an error response on whatever id could be
			// recovered; the channel stays open.
			id := ""
			if req != nil {
				id = req.ID
			}
			t.write(protocol.NewErrorResponse(id, err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			t.write(t.handler(ctx, req))
		}()
	}

	if err := scanner.Err(); err != nil {
		t.logger.Error("stdio channel failed", zap.Error(err))
		return err
	}
	t.logger.Info("stdio input closed")
	return nil
}

func (t *Stdio) write(resp *protocol.Response) {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		t.logger.Error("response encoding failed",
			zap.String("id", resp.ID), zap.Error(err))
		return
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.out.Write(append(data, '\n')); err != nil {
		t.logger.Error("stdio write failed",
			zap.String("id", resp.ID), zap.Error(err))
	}
}
