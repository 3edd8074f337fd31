package corehttp

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/tcplisten"
)

// Spawn runs f, typically on a new goroutine. It is the injected
// "new_thread" collaborator of spec.md §6: the default spawns a bare
// goroutine; PooledSpawner offers a bounded alternative adapted from the
// teacher's workerPool.
type Spawn func(f func())

func goSpawn(f func()) { go f() }

// Option configures a Server built by NewServer.
type Option func(*Server)

// WithAddr sets the address Run binds to (default "").
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithPort sets the port Run binds to (default 8080).
func WithPort(port int) Option {
	return func(s *Server) { s.port = port }
}

// WithBufSize sets the per-connection I/O buffer size (default
// DefaultBufferSize).
func WithBufSize(n int) Option {
	return func(s *Server) { s.bufSize = n }
}

// WithMaxKeepAlive bounds a single connection's lifetime once it becomes
// idle-eligible for reuse. Negative means unbounded (the default).
func WithMaxKeepAlive(seconds int) Option {
	return func(s *Server) { s.maxKeepAliveSeconds = seconds }
}

// WithReadTimeout sets the per-request socket read deadline (default: no
// deadline).
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithWriteTimeout sets the per-response socket write deadline (default:
// no deadline).
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithSpawn overrides how the accept loop dispatches a new connection to a
// worker (default: a bare goroutine per connection).
func WithSpawn(spawn Spawn) Option {
	return func(s *Server) { s.spawn = spawn }
}

// WithLogger overrides the Logger used for recoverable errors (default:
// the standard library's log.Default(), wrapped).
func WithLogger(l Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock overrides the server's notion of the current time, for
// deterministic tests of timeout and keep-alive behavior.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithListenConfig binds the listening socket through cfg (e.g. for
// SO_REUSEPORT) instead of a plain net.Listen, when Run builds its own
// listener.
func WithListenConfig(cfg *tcplisten.Config) Option {
	return func(s *Server) { s.listenConfig = cfg }
}

// WithRequestIDFunc overrides how each accepted connection is tagged for
// logging (default: uuid.New).
func WithRequestIDFunc(f func() uuid.UUID) Option {
	return func(s *Server) { s.requestIDFunc = f }
}

// WithMaskSigpipe controls whether Run masks SIGPIPE for the process
// (default: true). See masksigpipe_unix.go.
func WithMaskSigpipe(mask bool) Option {
	return func(s *Server) { s.maskSigpipe = mask }
}

// WithListener adopts an already-bound listener instead of having Run
// create one, e.g. for systemd socket activation or tests binding an
// ephemeral port ahead of time.
func WithListener(ln net.Listener) Option {
	return func(s *Server) { s.listener = ln }
}

// ConfigError is returned by Run when the listening socket cannot be
// created.
type ConfigError struct {
	Addr string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("corehttp: cannot listen on %s: %v", e.Addr, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Server is the HTTP/1.1 server lifecycle: binds (or adopts) a listener,
// accepts connections, and dispatches each to serveConn via Spawn.
// Grounded in the teacher's Server/ServeConn (server.go), generalized
// around the Router and middleware Chain instead of a single raw
// RequestHandler.
type Server struct {
	addr    string
	port    int
	bufSize int

	maxKeepAliveSeconds int
	readTimeout         time.Duration
	writeTimeout        time.Duration

	router *Router
	chain  *Chain

	spawn         Spawn
	logger        Logger
	now           func() time.Time
	listenConfig  *tcplisten.Config
	requestIDFunc func() uuid.UUID
	maskSigpipe   bool

	listener net.Listener
	stopping chan struct{}
}

// NewServer builds a Server with the given options applied over sensible
// defaults: buffer size DefaultBufferSize, unbounded keep-alive lifetime,
// no read/write deadlines, a goroutine-per-connection spawner, and SIGPIPE
// masking enabled.
func NewServer(opts ...Option) *Server {
	s := &Server{
		port:                8080,
		bufSize:             DefaultBufferSize,
		maxKeepAliveSeconds: -1,
		router:              NewRouter(),
		chain:               &Chain{},
		spawn:               goSpawn,
		logger:              defaultLogger(),
		now:                 time.Now,
		requestIDFunc:       uuid.New,
		maskSigpipe:         true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPathHandler registers a route against the server's router. See
// Router.AddPathHandler.
func (s *Server) AddPathHandler(pattern string, method *Method, accept AcceptPredicate, handler Handler) {
	s.router.AddPathHandler(pattern, method, accept, handler)
}

// SetTopHandler replaces the fallback invoked when no route matches. See
// Router.SetTopHandler.
func (s *Server) SetTopHandler(h TopHandler) {
	s.router.SetTopHandler(h)
}

// AddDecodeRequestCB appends a request-decode middleware callback.
func (s *Server) AddDecodeRequestCB(f DecodeRequestFunc) {
	s.chain.AddDecodeRequestCB(f)
}

// AddEncodeResponseCB appends a response-encode middleware callback.
func (s *Server) AddEncodeResponseCB(f EncodeResponseFunc) {
	s.chain.AddEncodeResponseCB(f)
}

// Addr returns the address Run is listening on, valid only after Run has
// successfully bound (or adopted) a listener.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run binds (or adopts) the listening socket and serves connections until
// Stop is called or the listener otherwise fails. It blocks until the
// accept loop exits, and always returns a non-nil error except when Stop
// caused the exit.
func (s *Server) Run() error {
	if s.maskSigpipe {
		maskSIGPIPE()
	}

	if s.listener == nil {
		ln, err := s.bind()
		if err != nil {
			return &ConfigError{Addr: s.bindAddr(), Err: err}
		}
		s.listener = ln
	}
	s.stopping = make(chan struct{})

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopping:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Printf("accept error: %v", err)
			continue
		}
		reqID := s.requestIDFunc().String()
		s.spawn(func() { s.serveConn(conn, reqID) })
	}
}

func (s *Server) bindAddr() string {
	return fmt.Sprintf("%s:%d", s.addr, s.port)
}

func (s *Server) bind() (net.Listener, error) {
	addr := s.bindAddr()
	if s.listenConfig != nil {
		return s.listenConfig.NewListener("tcp4", addr)
	}
	return net.Listen("tcp", addr)
}

// Stop closes the listener, causing Run's accept loop to exit. It does
// not wait for in-flight connections to finish; callers that need a
// graceful drain should track those themselves (spec.md scopes connection
// draining out of the server's own responsibilities).
func (s *Server) Stop() {
	if s.stopping != nil {
		select {
		case <-s.stopping:
		default:
			close(s.stopping)
		}
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
