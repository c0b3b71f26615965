package proxy

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/prompt"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
)

const (
	routeChatStream = "chat-stream"
	routeChat       = "chat"
)

// openedStream is everything a request holds once the upstream call started.
type openedStream struct {
	principal *auth.Principal
	stream    upstream.Stream
	ctx       context.Context
	cancel    context.CancelFunc
	turns     int
}

// release stops the upstream call and frees its connection.
func (o *openedStream) release() {
	o.cancel()
	o.stream.Close()
}

// open authenticates, decodes and assembles the conversation, then issues the
// single upstream call under a context derived from parent. Every failure here
// happens before the response starts.
func (p *Proxy) open(parent context.Context, c *fiber.Ctx, log *zap.Logger) (*openedStream, error) {
	principal, err := p.authenticate(c)
	if err != nil {
		return nil, err
	}

	req, err := llm.DecodeChatRequest(c.Body())
	if err != nil {
		return nil, err
	}

	turns := req.Turns()
	messages := prompt.Assemble(turns)

	log.Debug("relaying conversation",
		zap.String("user_id", principal.ID),
		zap.Int("turn_count", len(turns)),
		zap.String("last_turn_preview", lastTurnPreview(turns)),
	)

	ctx, cancel := context.WithCancel(parent)
	stream, err := p.provider.Stream(ctx, &llm.CompletionRequest{
		Messages: messages,
		User:     principal.ID,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	return &openedStream{
		principal: principal,
		stream:    stream,
		ctx:       ctx,
		cancel:    cancel,
		turns:     len(turns),
	}, nil
}

// handleChatStream relays a conversation and streams the reply as raw text.
// Once the headers are out, status and headers are final: a later upstream
// failure drops the connection without the terminating chunk, and there is
// no in-band marker.
func (p *Proxy) handleChatStream(c *fiber.Ctx) error {
	setCORSHeaders(c, corsAllowMethods)

	switch c.Method() {
	case fiber.MethodOptions:
		return preflight(c)
	case fiber.MethodPost:
	default:
		return methodNotAllowed(c, corsAllowMethods)
	}

	log := p.requestLogger(c)

	// The body is read after the handler returns, so the upstream call
	// cannot hang off the request context.
	opened, err := p.open(context.Background(), c, log)
	if err != nil {
		return p.fail(c, routeChatStream, log, err)
	}
	log = log.With(zap.String("user_id", opened.principal.ID))

	c.Status(fiber.StatusOK)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	startTime := time.Now()

	body := &relayBody{
		ctx:        opened.ctx,
		stream:     opened.stream,
		onFragment: p.metrics.Fragment,
		release:    opened.release,
		onFinish: func(result relayResult) {
			p.metrics.StreamFinished(string(result.outcome), time.Since(startTime))
			p.metrics.Request(routeChatStream, string(result.outcome))

			fields := []zap.Field{
				zap.String("outcome", string(result.outcome)),
				zap.Int("fragments", result.fragments),
				zap.Int("bytes", result.bytes),
				zap.Duration("duration", time.Since(startTime)),
			}
			switch result.outcome {
			case outcomeCompleted:
				log.Info("stream completed", fields...)
			case outcomeCancelled:
				log.Info("client went away, stream cancelled", append(fields, zap.Error(result.err))...)
			default:
				log.Error("stream interrupted after partial delivery, dropping connection", append(fields, zap.Error(result.err))...)
			}
		},
	}

	// Headers go out before the first fragment so that even an empty
	// interrupted reply reaches the client as a 200 that ends abruptly.
	c.Context().Response.ImmediateHeaderFlush = true
	c.Context().SetBodyStream(body, -1)

	return nil
}

// handleChat relays a conversation and replies with the complete message.
// Nothing is sent until the stream ends, so mid-stream failures still get a
// proper error status here.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	setCORSHeaders(c, corsAllowMethods)

	switch c.Method() {
	case fiber.MethodOptions:
		return preflight(c)
	case fiber.MethodPost:
	default:
		return methodNotAllowed(c, corsAllowMethods)
	}

	log := p.requestLogger(c)

	// The reply is complete before the handler returns, so the upstream call
	// ends with the request.
	opened, err := p.open(c.Context(), c, log)
	if err != nil {
		return p.fail(c, routeChat, log, err)
	}
	defer opened.release()

	var message strings.Builder
	for {
		frag, err := opened.stream.Next(opened.ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.fail(c, routeChat, log, err)
		}
		message.WriteString(frag)
	}

	p.metrics.Request(routeChat, string(outcomeCompleted))
	log.Info("chat completed",
		zap.String("user_id", opened.principal.ID),
		zap.Int("bytes", message.Len()),
	)

	return c.JSON(llm.ChatResponse{
		Message: message.String(),
		User: llm.UserInfo{
			ID:    opened.principal.ID,
			Email: opened.principal.Email,
		},
	})
}

func lastTurnPreview(turns []llm.Message) string {
	if len(turns) == 0 {
		return ""
	}
	return truncate(turns[len(turns)-1].Content, 50)
}

// truncate shortens s to maxLen cells without splitting a character.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return ansi.Truncate(s, maxLen, "...")
}
