package proxy

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
)

// callLog records the order in which collaborators were called.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// fakeValidator accepts the tokens it knows.
type fakeValidator struct {
	log        *callLog
	principals map[string]*auth.Principal
	calls      atomic.Int32
}

func (v *fakeValidator) Validate(_ context.Context, header string) (*auth.Principal, error) {
	v.calls.Add(1)
	v.log.add("validate")

	token, err := auth.ParseBearer(header)
	if err != nil {
		return nil, err
	}

	p, ok := v.principals[token]
	if !ok {
		return nil, llm.Unauthenticated(errors.New("unknown token"))
	}
	return &auth.Principal{ID: p.ID, Email: p.Email}, nil
}

// script is what a fake stream yields: fragments, then err (io.EOF when nil).
type script struct {
	fragments []string
	err       error
}

// fakeStream replays a script.
type fakeStream struct {
	script script
	pos    int
	pulls  atomic.Int32
	closed atomic.Bool
}

func (s *fakeStream) Next(ctx context.Context) (string, error) {
	s.pulls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", llm.StreamInterrupted(err)
	}
	if s.pos < len(s.script.fragments) {
		frag := s.script.fragments[s.pos]
		s.pos++
		return frag, nil
	}
	if s.script.err != nil {
		return "", s.script.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

// fakeProvider hands out scripted streams keyed by principal id.
type fakeProvider struct {
	log      *callLog
	openErr  error
	scripts  map[string]script
	fallback script
	calls    atomic.Int32

	mu       sync.Mutex
	requests []*llm.CompletionRequest
	streams  []*fakeStream

	// requestIDs holds the request id visible through each call's context.
	requestIDs []any
}

func (p *fakeProvider) Stream(ctx context.Context, req *llm.CompletionRequest) (upstream.Stream, error) {
	p.calls.Add(1)
	p.log.add("stream")

	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	p.requestIDs = append(p.requestIDs, ctx.Value(requestIDKey))

	if p.openErr != nil {
		return nil, p.openErr
	}

	sc, ok := p.scripts[req.User]
	if !ok {
		sc = p.fallback
	}
	s := &fakeStream{script: sc}
	p.streams = append(p.streams, s)
	return s, nil
}

func (p *fakeProvider) lastRequest() *llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

func (p *fakeProvider) lastStream() *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return nil
	}
	return p.streams[len(p.streams)-1]
}

func (p *fakeProvider) lastRequestID() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requestIDs) == 0 {
		return nil
	}
	return p.requestIDs[len(p.requestIDs)-1]
}
