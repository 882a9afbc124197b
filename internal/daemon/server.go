package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// requestTimeout bounds one IPC request end to end.
const requestTimeout = 5 * time.Second

// Request is one IPC command: newline-delimited JSON over the local
// socket.
type Request struct {
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response is the reply to one Request.
type Response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Handler executes one command. Returned errors become structured error
// responses; the connection stays open for subsequent commands.
type Handler func(ctx context.Context, req Request) (interface{}, error)

// Server is the daemon's IPC endpoint: a local stream socket speaking
// newline-delimited JSON, one goroutine per accepted connection.
type Server struct {
	socketPath string
	handlers   map[string]Handler
	log        zerolog.Logger
}

// NewServer creates a server for the given socket path.
func NewServer(socketPath string, log zerolog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]Handler),
		log:        log,
	}
}

// Handle registers the handler for one command name.
func (s *Server) Handle(cmd string, handler Handler) {
	s.handlers[cmd] = handler
}

// Run listens on the socket until the context is cancelled. A leftover
// socket file from a previous run is replaced.
func (s *Server) Run(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "failed to remove existing socket: %s", s.socketPath)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return eris.Wrapf(err, "failed to bind socket: %s", s.socketPath)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.log.Info().Str("socket", s.socketPath).Msg("IPC server listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return eris.Wrap(err, "accept failed")
			}
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			// Unrecoverable framing: answer once and drop the connection.
			_ = encoder.Encode(Response{OK: false, Error: "malformed request: " + err.Error()})
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(requestTimeout))
		if err := encoder.Encode(s.dispatch(ctx, req)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	handler, ok := s.handlers[req.Cmd]
	if !ok {
		return Response{OK: false, Error: "unknown command: " + req.Cmd}
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	data, err := handler(reqCtx, req)
	if err != nil {
		s.log.Warn().Err(err).Str("cmd", req.Cmd).Msg("IPC command failed")
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Data: data}
}

// Send connects to a running daemon, issues one request, and returns the
// response. Used by the CLI and the git hooks.
func Send(socketPath string, req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, requestTimeout)
	if err != nil {
		return nil, eris.Wrapf(err, "daemon not reachable at %s", socketPath)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(requestTimeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, eris.Wrap(err, "failed to send request")
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrap(err, "failed to read response")
		}
		return nil, eris.New("daemon closed the connection without responding")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, eris.Wrap(err, "malformed response from daemon")
	}
	return &resp, nil
}
