package proxy

import (
	"context"
	"errors"
	"io"

	"github.com/papercomputeco/chatrelay/pkg/upstream"
)

type outcome string

const (
	// outcomeCompleted: the provider signalled the end of the reply.
	outcomeCompleted outcome = "completed"

	// outcomeInterrupted: the provider stream failed after it had started.
	outcomeInterrupted outcome = "interrupted"

	// outcomeCancelled: the client stopped reading.
	outcomeCancelled outcome = "cancelled"
)

var errClientGone = errors.New("response body closed before the reply finished")

type relayResult struct {
	outcome   outcome
	fragments int
	bytes     int
	err       error
}

// relayBody is the response body of a streaming reply. fasthttp reads it
// chunk by chunk and flushes every chunk to the connection before the next
// Read, so each Read pulls at most one fragment and a slow client slows the
// upstream read.
//
// A completed stream ends with io.EOF and fasthttp writes the terminating
// chunk. Any other stream error is returned from Read as is, which makes
// fasthttp drop the connection without that terminator: the client sees
// the delivered bytes followed by an unexpected EOF.
type relayBody struct {
	ctx    context.Context
	stream upstream.Stream

	// onFragment runs once per fragment handed to the transport.
	onFragment func()
	// onFinish runs exactly once, when the outcome is known.
	onFinish func(relayResult)
	// release frees the upstream call. It runs on Close.
	release func()

	pending []byte
	res     relayResult
	done    bool
	closed  bool
}

// Read implements io.Reader.
func (b *relayBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, errClientGone
	}

	for len(b.pending) == 0 {
		if b.done {
			if b.res.err != nil {
				return 0, b.res.err
			}
			return 0, io.EOF
		}

		frag, err := b.stream.Next(b.ctx)
		if errors.Is(err, io.EOF) {
			b.finish(outcomeCompleted, nil)
			return 0, io.EOF
		}
		if err != nil {
			o := outcomeInterrupted
			if b.ctx.Err() != nil {
				o = outcomeCancelled
			}
			b.finish(o, err)
			return 0, err
		}
		if frag == "" {
			continue
		}

		b.pending = []byte(frag)
		b.res.fragments++
		b.res.bytes += len(frag)
		if b.onFragment != nil {
			b.onFragment()
		}
	}

	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

// Close implements io.Closer. fasthttp calls it once the response is written
// or has failed; a close before the outcome is known means the client left.
func (b *relayBody) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if !b.done {
		b.finish(outcomeCancelled, errClientGone)
	}
	b.pending = nil

	if b.release != nil {
		b.release()
	}
	return nil
}

func (b *relayBody) finish(o outcome, err error) {
	b.done = true
	b.res.outcome = o
	b.res.err = err

	if b.onFinish != nil {
		b.onFinish(b.res)
	}
}
