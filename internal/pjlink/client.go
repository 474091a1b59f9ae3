package pjlink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Default connection settings.
const (
	// DefaultPort is the IANA-assigned PJLink port.
	DefaultPort = 4352

	// defaultTimeout bounds dialling and each command exchange.
	defaultTimeout = 5 * time.Second

	// requestQueueSize is the buffer size of the request queue.
	requestQueueSize = 32

	// maxLineLength caps a reply line; PJLink limits replies to 136 bytes.
	maxLineLength = 256
)

// Options configures a Client.
type Options struct {
	// Host is the projector hostname or IP address.
	Host string

	// Port is the PJLink TCP port. Default: 4352.
	Port int

	// Password is used when the projector requests authentication.
	Password string

	// Timeout bounds the dial and every request/reply exchange.
	// Default: 5 seconds.
	Timeout time.Duration
}

// Stats holds operational statistics.
type Stats struct {
	RequestsTotal uint64    `json:"requests_total"`
	ErrorsTotal   uint64    `json:"errors_total"`
	ConnectsTotal uint64    `json:"connects_total"`
	LastActivity  time.Time `json:"last_activity"`
	Connected     bool      `json:"connected"`
}

// ReplyFunc receives the outcome of one request. It is called exactly once
// per request, from the client's worker goroutine or, for requests rejected
// up front, from a short-lived goroutine. value is nil for confirmation-only
// replies and whenever err is non-nil.
type ReplyFunc func(value any, err error)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DialFunc opens the transport connection. Tests replace it with net.Pipe.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// exchange is one command line and the decoder for its reply.
type exchange struct {
	mnemonic string
	param    string
	decode   func(string) (any, error)
}

type request struct {
	cmd       Command
	exchanges []exchange
	reply     ReplyFunc
}

// Client talks to one projector.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Requests are executed one at a time in submission order.
type Client struct {
	opts Options
	dial DialFunc

	queue  chan *request
	done   chan struct{}
	mu     sync.Mutex // guards closed against submit
	closed bool
	wg     sync.WaitGroup

	// Owned by the worker goroutine.
	conn   net.Conn
	reader *bufio.Reader
	digest string

	connected atomic.Bool

	logger   Logger
	loggerMu sync.RWMutex

	requestsTotal atomic.Uint64
	errorsTotal   atomic.Uint64
	connectsTotal atomic.Uint64
	lastActivity  atomic.Int64
}

// New creates a client and starts its worker. No connection is made until
// the first request.
func New(opts Options) *Client {
	return newClient(opts, (&net.Dialer{}).DialContext)
}

func newClient(opts Options, dial DialFunc) *Client {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	c := &Client{
		opts:  opts,
		dial:  dial,
		queue: make(chan *request, requestQueueSize),
		done:  make(chan struct{}),
	}

	c.wg.Add(1)
	go c.worker()
	return c
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	defer c.loggerMu.Unlock()
	c.logger = logger
}

// Address returns the host:port the client dials.
func (c *Client) Address() string {
	return net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
}

// IsConnected reports whether a socket is currently open.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		RequestsTotal: c.requestsTotal.Load(),
		ErrorsTotal:   c.errorsTotal.Load(),
		ConnectsTotal: c.connectsTotal.Load(),
		LastActivity:  time.Unix(c.lastActivity.Load(), 0),
		Connected:     c.connected.Load(),
	}
}

// Close stops the worker, fails any queued requests with ErrClosed and
// closes the socket. An exchange already on the wire finishes (or times
// out) first. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
	return c.closeConn()
}

// GetPowerState queries POWR. The reply value is a PowerState.
func (c *Client) GetPowerState(reply ReplyFunc) {
	c.query(CmdGetPowerState, mnemonicPower, decodePower, reply)
}

// GetInput queries INPT. The reply value is an Input.
func (c *Client) GetInput(reply ReplyFunc) {
	c.query(CmdGetInput, mnemonicInput, decodeInput, reply)
}

// GetMute queries AVMT. The reply value is a Mute.
func (c *Client) GetMute(reply ReplyFunc) {
	c.query(CmdGetMute, mnemonicMute, decodeMute, reply)
}

// GetErrors queries ERST. The reply value is an ErrorReport.
func (c *Client) GetErrors(reply ReplyFunc) {
	c.query(CmdGetErrors, mnemonicErrors, decodeErrors, reply)
}

// GetLamps queries LAMP. The reply value is a []Lamp.
func (c *Client) GetLamps(reply ReplyFunc) {
	c.query(CmdGetLamps, mnemonicLamp, decodeLamps, reply)
}

// GetInputs queries INST. The reply value is a []Input.
func (c *Client) GetInputs(reply ReplyFunc) {
	c.query(CmdGetInputs, mnemonicInputs, decodeInputs, reply)
}

// GetName queries NAME. The reply value is a string.
func (c *Client) GetName(reply ReplyFunc) {
	c.query(CmdGetName, mnemonicName, decodeText, reply)
}

// GetManufacturer queries INF1. The reply value is a string.
func (c *Client) GetManufacturer(reply ReplyFunc) {
	c.query(CmdGetManufacturer, mnemonicManuf, decodeText, reply)
}

// GetModel queries INF2. The reply value is a string.
func (c *Client) GetModel(reply ReplyFunc) {
	c.query(CmdGetModel, mnemonicModel, decodeText, reply)
}

// GetInfo queries INFO. The reply value is a string.
func (c *Client) GetInfo(reply ReplyFunc) {
	c.query(CmdGetInfo, mnemonicInfo, decodeText, reply)
}

// GetClass queries CLSS. The reply value is an int.
func (c *Client) GetClass(reply ReplyFunc) {
	c.query(CmdGetClass, mnemonicClass, decodeClass, reply)
}

// PowerOn sends POWR 1.
func (c *Client) PowerOn(reply ReplyFunc) {
	c.submit(&request{
		cmd:       CmdPowerOn,
		exchanges: []exchange{{mnemonic: mnemonicPower, param: "1", decode: decodeOK}},
		reply:     reply,
	})
}

// PowerOff sends POWR 0.
func (c *Client) PowerOff(reply ReplyFunc) {
	c.submit(&request{
		cmd:       CmdPowerOff,
		exchanges: []exchange{{mnemonic: mnemonicPower, param: "0", decode: decodeOK}},
		reply:     reply,
	})
}

// SetInput selects an input by its two-character code.
// Codes that are not well formed fail with ErrInvalidParameter without
// touching the socket.
func (c *Client) SetInput(code string, reply ReplyFunc) {
	if err := validateInputCode(code); err != nil {
		c.errorsTotal.Add(1)
		go reply(nil, err)
		return
	}
	c.submit(&request{
		cmd:       CmdSetInput,
		exchanges: []exchange{{mnemonic: mnemonicInput, param: code, decode: decodeOK}},
		reply:     reply,
	})
}

// SetMute sets both AV mute channels.
func (c *Client) SetMute(m Mute, reply ReplyFunc) {
	params := encodeMute(m)
	exchanges := make([]exchange, 0, len(params))
	for _, p := range params {
		exchanges = append(exchanges, exchange{mnemonic: mnemonicMute, param: p, decode: decodeOK})
	}
	c.submit(&request{cmd: CmdSetMute, exchanges: exchanges, reply: reply})
}

func (c *Client) query(cmd Command, mnemonic string, decode func(string) (any, error), reply ReplyFunc) {
	c.submit(&request{
		cmd:       cmd,
		exchanges: []exchange{{mnemonic: mnemonic, param: queryParam, decode: decode}},
		reply:     reply,
	})
}

// submit queues a request without blocking. Rejected requests are answered
// on a fresh goroutine so callers never re-enter their own reply handling.
func (c *Client) submit(req *request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		go req.reply(nil, ErrClosed)
		return
	}

	select {
	case c.queue <- req:
	default:
		c.errorsTotal.Add(1)
		c.logWarn("request queue full, rejecting", "command", string(req.cmd))
		go req.reply(nil, ErrQueueFull)
	}
}

// worker executes queued requests one at a time.
func (c *Client) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			c.drain()
			return
		case req := <-c.queue:
			c.execute(req)
		}
	}
}

// drain fails everything still queued at shutdown.
func (c *Client) drain() {
	for {
		select {
		case req := <-c.queue:
			c.deliver(req, nil, ErrClosed)
		default:
			return
		}
	}
}

func (c *Client) execute(req *request) {
	c.requestsTotal.Add(1)

	value, err := c.roundTrip(req)
	if err != nil {
		c.errorsTotal.Add(1)
		c.logDebug("request failed", "command", string(req.cmd), "error", err)
	}
	c.deliver(req, value, err)
}

// roundTrip runs every exchange of a request and returns the decoded value
// of the last one.
func (c *Client) roundTrip(req *request) (any, error) {
	reused := c.conn != nil
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	var value any
	for i, ex := range req.exchanges {
		line, err := c.send(encodeCommand(ex.mnemonic, ex.param))
		if err != nil && i == 0 && reused && errors.Is(err, errNoReply) {
			// Projectors close idle sessions; redial once and resend.
			c.logDebug("connection closed by projector, redialling", "command", string(req.cmd))
			_ = c.closeConn()
			if err := c.ensureConnected(); err != nil {
				return nil, err
			}
			line, err = c.send(encodeCommand(ex.mnemonic, ex.param))
		}
		if err != nil {
			_ = c.closeConn()
			return nil, err
		}

		param, err := parseReply(ex.mnemonic, line)
		if err != nil {
			if errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrMalformedReply) {
				_ = c.closeConn()
			}
			return nil, err
		}

		value, err = ex.decode(param)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}

// deliver invokes the reply handler, containing panics so one bad handler
// cannot kill the worker.
func (c *Client) deliver(req *request, value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("reply handler panicked", "command", string(req.cmd), "panic", fmt.Sprint(r))
		}
	}()
	req.reply(value, err)
}

// ensureConnected dials and completes the greeting if no socket is open.
func (c *Client) ensureConnected() error {
	if c.conn != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()

	conn, err := c.dial(ctx, "tcp", c.Address())
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, c.Address(), err)
	}

	reader := bufio.NewReaderSize(conn, maxLineLength)
	if err := conn.SetReadDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("%w: set deadline: %w", ErrConnectionFailed, err)
	}
	greeting, err := readLine(reader)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: read greeting: %w", ErrConnectionFailed, err)
	}

	seed, auth, err := parseGreeting(greeting)
	if err != nil {
		conn.Close()
		return err
	}

	digest := ""
	if auth {
		if c.opts.Password == "" {
			conn.Close()
			return ErrPasswordRequired
		}
		digest = authDigest(seed, c.opts.Password)
	}

	c.conn = conn
	c.reader = reader
	c.digest = digest
	c.connected.Store(true)
	c.connectsTotal.Add(1)
	c.touch()
	c.logDebug("connected", "address", c.Address(), "auth", auth)
	return nil
}

// send writes one command line and reads one reply line.
func (c *Client) send(line string) (string, error) {
	if err := c.conn.SetDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := c.conn.Write([]byte(c.digest + line)); err != nil {
		return "", fmt.Errorf("%w: write: %w", errNoReply, err)
	}
	// The digest is only required on the first command of a session.
	c.digest = ""

	reply, err := readLine(c.reader)
	if err != nil {
		var netErr net.Error
		timedOut := errors.As(err, &netErr) && netErr.Timeout()
		if reply == "" && !timedOut {
			return "", fmt.Errorf("%w: read: %w", errNoReply, err)
		}
		return "", fmt.Errorf("read: %w", err)
	}
	c.touch()
	return reply, nil
}

func (c *Client) closeConn() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	c.digest = ""
	c.connected.Store(false)
	return err
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().Unix())
}

// readLine reads up to the carriage return and strips it. A trailing LF
// left over from a CRLF-terminated previous line is skipped. On error the
// partial line read so far is returned with it.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString(lineTerminator)
	if err != nil {
		return line, err
	}
	if len(line) > maxLineLength {
		return line, fmt.Errorf("%w: line too long", ErrMalformedReply)
	}
	line = line[:len(line)-1]
	if len(line) > 0 && line[0] == '\n' {
		line = line[1:]
	}
	return line, nil
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
