package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jsmonitor/livesync/internal/errors"
	"github.com/jsmonitor/livesync/pkg/eventloop"
	"github.com/jsmonitor/livesync/pkg/protocol"
	"github.com/jsmonitor/livesync/pkg/telemetry"
	"github.com/jsmonitor/livesync/pkg/transport"
)

// Session is one interactive console connection.
//
// All fields below the options are owned by the event loop.
type Session struct {
	target   int64
	title    string
	endpoint transport.Endpoint

	exec      eventloop.Executor
	ownLoop   *eventloop.Loop
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
	onLine    func(LogLine)
	onState   func(State)
	errorSink func(string)

	state     State
	lines     []LogLine
	input     string
	transport transport.Transport
	span      telemetry.Span
}

// Open creates a session for target and starts connecting immediately.
func Open(dialer transport.Dialer, endpoint transport.Endpoint, target int64, opts ...Option) (*Session, error) {
	if dialer == nil {
		return nil, errors.New("E200")
	}
	if target <= 0 {
		return nil, errors.New("E204").WithDetailf("server id %d", target)
	}
	if err := endpoint.Validate(); err != nil {
		return nil, errors.New("E201").
			WithDetailf("console endpoint %q", endpoint.Redacted()).
			Wrap(err)
	}

	s := &Session{
		target:   target,
		title:    fmt.Sprintf("server %d", target),
		endpoint: endpoint,
		logger:   slog.Default().With("component", "console"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("server_id", target)
	if s.exec == nil {
		s.ownLoop = eventloop.New(eventloop.WithLogger(s.logger))
		s.exec = s.ownLoop
	}

	s.exec.Do(func() { s.start(dialer) })
	return s, nil
}

// OpenWithProvider resolves the credential from provider, then opens the
// session.
func OpenWithProvider(ctx context.Context, dialer transport.Dialer, endpoint transport.Endpoint, provider CredentialProvider, target int64, opts ...Option) (*Session, error) {
	if provider == nil {
		return nil, errors.New("E205").WithDetail("no credential provider configured")
	}
	credential, err := provider.Credential(ctx)
	if err != nil {
		return nil, errors.New("E205").
			WithSuggestion("Pass --key or set LIVESYNC_API_KEY.").
			Wrap(err)
	}
	endpoint.Credential = credential
	return Open(dialer, endpoint, target, opts...)
}

// Target returns the server id this session controls.
func (s *Session) Target() int64 {
	return s.target
}

// State returns the current state.
func (s *Session) State() State {
	var st State
	s.exec.Do(func() { st = s.state })
	return st
}

// Lines returns a copy of the transcript.
func (s *Session) Lines() []LogLine {
	var out []LogLine
	s.exec.Do(func() {
		out = make([]LogLine, len(s.lines))
		copy(out, s.lines)
	})
	return out
}

// SetInput replaces the pending input buffer.
func (s *Session) SetInput(text string) {
	s.exec.Do(func() { s.input = text })
}

// Input returns the pending input buffer.
func (s *Session) Input() string {
	var in string
	s.exec.Do(func() { in = s.input })
	return in
}

// Submit sends command if the session is Connected and the command is not
// blank. The Input line is in the transcript when Submit returns.
func (s *Session) Submit(command string) {
	s.exec.Do(func() { s.submit(command) })
}

// SubmitInput submits the pending input buffer.
func (s *Session) SubmitInput() {
	s.exec.Do(func() { s.submit(s.input) })
}

// Close closes the transport and moves the session to Closed. Idempotent.
func (s *Session) Close() {
	s.exec.Do(func() {
		if s.state == Closed {
			return
		}
		s.transport.Close()
		s.handleClose()
	})
	if s.ownLoop != nil {
		s.ownLoop.Stop()
	}
}

func (s *Session) start(dialer transport.Dialer) {
	s.state = Connecting
	s.metrics.ConsoleOpened()
	s.span = s.tracer.Start(telemetry.SpanConsoleSession,
		telemetry.AttrServerID.Int64(s.target),
		telemetry.AttrEndpoint.String(s.endpoint.Redacted()),
	)
	s.notifyState()
	s.appendLine(System, fmt.Sprintf("Connecting to %s…", s.title))

	s.transport = dialer.Dial(s.endpoint, transport.Handler{
		OnOpen: func() {
			s.exec.Post(s.handleOpen)
		},
		OnMessage: func(payload []byte) {
			s.exec.Post(func() { s.handleMessage(payload) })
		},
		OnError: func(err error) {
			s.exec.Post(func() { s.handleError(err) })
		},
		OnClose: func() {
			s.exec.Post(s.handleClose)
		},
	})
	s.logger.Debug("console connecting", "endpoint", s.endpoint.Redacted())
	s.transport.Open()
}

func (s *Session) handleOpen() {
	if s.state != Connecting {
		return
	}
	if err := s.transport.Send(protocol.EncodeHandshake(s.target)); err != nil {
		s.logger.Warn("handshake not sent", "error", err)
		s.reportError(fmt.Sprintf("Connection error: %v", err))
		return
	}
	s.span.Event("handshake")
}

func (s *Session) handleMessage(payload []byte) {
	if s.state == Closed {
		return
	}

	reply, err := protocol.DecodeReply(payload)
	if err != nil {
		s.appendLine(Output, string(payload))
		return
	}

	switch reply.Kind() {
	case protocol.ReplyConnected:
		if s.state == Connecting {
			s.state = Connected
			s.notifyState()
		}
		s.span.Event("connected")
		s.logger.Info("console connected", "server", reply.Server)
		s.appendLine(System, "Connected to "+reply.Server)
	case protocol.ReplyOutput:
		s.appendLine(Output, reply.Output)
	case protocol.ReplyError:
		s.span.Event("server_error")
		s.reportError("Error: " + reply.Error)
	default:
		s.logger.Debug("console reply ignored", "payload", string(payload))
	}
}

func (s *Session) handleError(err error) {
	if s.state == Closed {
		return
	}
	s.logger.Warn("console transport error", "error", err)
	s.reportError(fmt.Sprintf("Connection error: %v", err))
}

func (s *Session) handleClose() {
	if s.state == Closed {
		return
	}
	s.state = Closed
	s.notifyState()
	s.appendLine(System, "Connection closed.")
	s.metrics.ConsoleClosed()
	s.span.End(nil)
	s.span = telemetry.Span{}
	s.logger.Info("console closed")
}

func (s *Session) submit(command string) {
	cmd := strings.TrimSpace(command)
	if s.state != Connected || cmd == "" {
		return
	}
	if err := s.transport.Send(protocol.EncodeCommand(cmd)); err != nil {
		s.logger.Warn("command not sent", "error", err)
		s.reportError(fmt.Sprintf("Error: command not sent: %v", err))
		return
	}
	s.appendLine(Input, "> "+cmd)
	s.input = ""
	s.metrics.RecordCommand()
	s.span.Event("command")
}

// reportError appends a System line and forwards it to the error sink.
func (s *Session) reportError(text string) {
	s.appendLine(System, text)
	if s.errorSink != nil {
		s.errorSink(text)
	}
}

func (s *Session) appendLine(kind Kind, text string) {
	line := LogLine{Kind: kind, Text: text}
	s.lines = append(s.lines, line)
	s.metrics.RecordLine(kind.String())
	if s.onLine != nil {
		s.onLine(line)
	}
}

func (s *Session) notifyState() {
	if s.onState != nil {
		s.onState(s.state)
	}
}
