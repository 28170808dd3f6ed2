package tcp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/mavkit/mavconn/mavlink"
	"github.com/mavkit/mavconn/transport"
	"github.com/mavkit/mavconn/transport/base"
	"github.com/mavkit/mavconn/transport/common"
)

var Logger = logger.GetLogger("transport/tcp")

const rxBufSize = 4096

// ClientChannel carries the wire protocol over one TCP connection. It exists
// in two variants:
//
//   - client mode (NewClientChannel): resolves and connects to a server,
//     owns a dedicated reactor goroutine for its socket completions;
//
//   - server-accepted mode: wraps a connection accepted by a ServerChannel
//     and schedules all completions on the server's reactor instead of
//     owning one.
//
// All public methods are callable from any goroutine; they only enqueue work
// or flip mutex-guarded state. Socket reads and writes happen exclusively in
// completions running on the owning reactor.
type ClientChannel struct {
	channelID uint8
	conf      common.ChannelConfig

	conn        net.Conn
	peer        *base.Endpoint
	reactor     *base.Reactor
	ownsReactor bool

	// transmit queue, guarded by mu
	mu           sync.Mutex
	txq          []base.TxBuffer
	txInProgress bool

	open      atomic.Bool
	closeOnce sync.Once

	parser *mavlink.Parser
	rxBuf  [rxBufSize]byte

	msgReceived *base.Signal[transport.MessageEvent]
	portClosed  *base.Signal[struct{}]
}

var _ transport.IChannel = (*ClientChannel)(nil)

// --------------------------------------------------------------------------
// Construction
// --------------------------------------------------------------------------

// NewClientChannel resolves host:port, connects and starts the channel's
// reactor with an initial receive scheduled. Any resolution or socket
// failure is returned as a *transport.DeviceError naming the operation.
func NewClientChannel(conf common.ChannelConfig, host string, port uint16) (*ClientChannel, error) {
	ep, err := base.ResolveEndpoint(host, port)
	if err != nil {
		return nil, transport.NewDeviceError("tcp: resolve", err)
	}

	channelID, err := base.AllocateChannel()
	if err != nil {
		return nil, transport.NewDeviceError("tcp: channel", err)
	}

	conn, err := net.DialTCP("tcp", nil, ep.TCPAddr())
	if err != nil {
		base.ReleaseChannel(channelID)
		return nil, transport.NewDeviceError("tcp: connect", err)
	}

	if err := applySocketConf(conn, &conf); err != nil {
		conn.Close()
		base.ReleaseChannel(channelID)
		return nil, transport.NewDeviceError("tcp: setsockopt", err)
	}

	c := newChannel(conf, channelID, conn, ep)
	c.reactor = base.NewReactor(fmt.Sprintf("tcp%d", channelID))
	c.ownsReactor = true

	Logger.Infof("tcp%d: server address: %s", channelID, ep)

	c.scheduleRecv()
	return c, nil
}

// newAcceptedChannel wraps an already-connected socket handed over by a
// server's accept loop. No resolution or connect step happens here, and no
// reactor is created: completions run on the owning server's reactor so one
// goroutine services the server and all its clients.
func newAcceptedChannel(conf common.ChannelConfig, serverReactor *base.Reactor, serverChannelID uint8, conn *net.TCPConn, peer *base.Endpoint) (*ClientChannel, error) {
	channelID, err := base.AllocateChannel()
	if err != nil {
		return nil, err
	}

	if err := applySocketConf(conn, &conf); err != nil {
		base.ReleaseChannel(channelID)
		return nil, err
	}

	c := newChannel(conf, channelID, conn, peer)
	c.reactor = serverReactor

	Logger.Infof("tcp-l%d: got client, channel: %d, address: %s", serverChannelID, channelID, peer)

	c.scheduleRecv()
	return c, nil
}

func newChannel(conf common.ChannelConfig, channelID uint8, conn net.Conn, peer *base.Endpoint) *ClientChannel {
	c := &ClientChannel{
		channelID:   channelID,
		conf:        conf,
		conn:        conn,
		peer:        peer,
		parser:      mavlink.ParserForChannel(channelID),
		msgReceived: base.NewSignal[transport.MessageEvent](),
		portClosed:  base.NewSignal[struct{}](),
	}
	c.open.Store(true)
	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IChannel)
// --------------------------------------------------------------------------

func (c *ClientChannel) ChannelID() uint8 {
	return c.channelID
}

func (c *ClientChannel) SystemID() uint8 {
	return c.conf.SystemID
}

func (c *ClientChannel) ComponentID() uint8 {
	return c.conf.ComponentID
}

func (c *ClientChannel) IsOpen() bool {
	return c.open.Load()
}

// PeerEndpoint returns the remote endpoint the channel is connected to.
func (c *ClientChannel) PeerEndpoint() *base.Endpoint {
	return c.peer
}

func (c *ClientChannel) SendBytes(b []byte) {
	if !c.IsOpen() {
		panic(fmt.Sprintf("tcp%d: send on closed channel", c.channelID))
	}
	c.enqueue(base.NewTxBuffer(b))
}

func (c *ClientChannel) SendMessage(msg *mavlink.Message, sysID, compID uint8) {
	if !c.IsOpen() {
		panic(fmt.Sprintf("tcp%d: send on closed channel", c.channelID))
	}

	// if the embedded identity does not match we need an explicit finalize,
	// else the message's own wire bytes are reused
	var wire []byte
	if msg.SysID != sysID || msg.CompID != compID {
		wire = mavlink.Finalize(msg, sysID, compID)
	} else {
		wire = msg.Bytes()
	}

	Logger.Debugf("tcp%d:send: Message-ID: %d [%d bytes] Sys-Id: %d Comp-Id: %d",
		c.channelID, msg.MsgID, msg.Len(), sysID, compID)

	c.enqueue(base.OwnTxBuffer(wire))
}

func (c *ClientChannel) OnMessage(h func(transport.MessageEvent)) transport.ISubscription {
	return c.msgReceived.Connect(h)
}

func (c *ClientChannel) OnClosed(h func()) transport.ISubscription {
	return c.portClosed.Connect(func(struct{}) { h() })
}

// Close is idempotent: the first call tears the channel down and emits the
// closed signal, later calls are no-ops. When the channel owns its reactor,
// Close also waits for the reactor loop to terminate; for this reason Close
// must not be called from inside one of the channel's own event handlers
// (the internal error paths use the non-joining variant).
func (c *ClientChannel) Close() {
	c.shutdown()
	if c.ownsReactor {
		c.reactor.Join()
	}
}

// --------------------------------------------------------------------------
// Send path
// --------------------------------------------------------------------------

// enqueue appends to the transmit queue and schedules a drain that respects
// an in-flight write. Silently drops when the channel closed concurrently
// (used by server fan-out, where a racing disconnect must not abort delivery
// to the remaining clients).
func (c *ClientChannel) enqueue(buf base.TxBuffer) {
	c.mu.Lock()
	c.txq = append(c.txq, buf)
	c.mu.Unlock()

	c.reactor.Post(func() { c.doSend(true) })
}

// doSend starts one asynchronous write from the front buffer's cursor. With
// respectInProgress set (entry from enqueue) it yields to an outstanding
// write; the completion path re-enters unconditionally to drain the queue.
// Runs on the reactor.
func (c *ClientChannel) doSend(respectInProgress bool) {
	if !c.IsOpen() {
		return
	}

	c.mu.Lock()
	if respectInProgress && c.txInProgress {
		c.mu.Unlock()
		return
	}
	if len(c.txq) == 0 {
		c.mu.Unlock()
		return
	}
	c.txInProgress = true
	pending := c.txq[0].Pending()
	c.mu.Unlock()

	conn := c.conn
	go func() {
		n, err := conn.Write(pending)
		c.reactor.Post(func() { c.sendComplete(n, err) })
	}()
}

// sendComplete advances the front buffer by the bytes actually written, pops
// it when fully consumed and immediately starts the next write if the queue
// is non-empty. A write error closes the channel. Runs on the reactor.
func (c *ClientChannel) sendComplete(n int, err error) {
	if err != nil {
		if c.IsOpen() {
			Logger.Errorf("tcp%d:sendto: %v", c.channelID, err)
		}
		c.closeFromLoop()
		return
	}

	base.TxBytesAdd("tcp", n)

	c.mu.Lock()
	c.txInProgress = false
	if len(c.txq) > 0 {
		c.txq[0].Advance(n)
		if c.txq[0].Consumed() {
			c.txq = c.txq[1:]
		}
	}
	again := len(c.txq) > 0
	c.mu.Unlock()

	if again {
		c.doSend(false)
	}
}

// --------------------------------------------------------------------------
// Receive path
// --------------------------------------------------------------------------

func (c *ClientChannel) scheduleRecv() {
	c.reactor.Post(c.doRecv)
}

// doRecv issues one asynchronous read into the scratch buffer. Only one read
// is outstanding at a time; the completion feeds the codec and re-issues the
// next read. Runs on the reactor.
func (c *ClientChannel) doRecv() {
	if !c.IsOpen() {
		return
	}

	conn := c.conn
	go func() {
		n, err := conn.Read(c.rxBuf[:])
		c.reactor.Post(func() { c.recvComplete(n, err) })
	}()
}

// recvComplete feeds every received byte to the codec and emits a message
// event per completed frame, then immediately continues receiving. A read
// error (including peer close) terminates the loop and closes the channel.
// Runs on the reactor.
func (c *ClientChannel) recvComplete(n int, err error) {
	if err != nil {
		if c.IsOpen() {
			Logger.Errorf("tcp%d:receive: %v", c.channelID, err)
		}
		c.closeFromLoop()
		return
	}

	base.RxBytesAdd("tcp", n)

	for i := 0; i < n; i++ {
		if msg := c.parser.Feed(c.rxBuf[i]); msg != nil {
			Logger.Debugf("tcp%d:recv: Message-ID: %d [%d bytes] Sys-Id: %d Comp-Id: %d",
				c.channelID, msg.MsgID, msg.Len(), msg.SysID, msg.CompID)

			base.RxFramesInc("tcp")
			c.msgReceived.Emit(transport.MessageEvent{
				Message: msg,
				SysID:   msg.SysID,
				CompID:  msg.CompID,
			})
		}
	}

	c.doRecv()
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// closeFromLoop is the teardown entry for completion callbacks running on
// the reactor itself; it must not join the reactor it runs on.
func (c *ClientChannel) closeFromLoop() {
	c.shutdown()
}

// shutdown performs the actual close exactly once: mark closed, close the
// socket (which unblocks any outstanding read/write), discard queued
// transmit buffers without flushing, stop an owned reactor, release the
// channel id and emit the closed signal last, outside any lock.
func (c *ClientChannel) shutdown() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.conn.Close()

		c.mu.Lock()
		c.txq = nil
		c.txInProgress = false
		c.mu.Unlock()

		if c.ownsReactor {
			c.reactor.Stop()
		}
		base.ReleaseChannel(c.channelID)

		c.portClosed.Emit(struct{}{})
	})
}

// --------------------------------------------------------------------------
// Socket tuning
// --------------------------------------------------------------------------

// applySocketConf applies TCP and buffer settings from the channel config to
// an established connection.
func applySocketConf(conn *net.TCPConn, conf *common.ChannelConfig) error {
	if err := conn.SetNoDelay(conf.TCP.TCPNoDelay); err != nil {
		return err
	}

	if conf.Socket.WriteBufferSize > 0 {
		if err := conn.SetWriteBuffer(conf.Socket.WriteBufferSize); err != nil {
			return err
		}
	}

	if conf.Socket.ReadBufferSize > 0 {
		if err := conn.SetReadBuffer(conf.Socket.ReadBufferSize); err != nil {
			return err
		}
	}

	if conf.TCP.TCPKeepAliveSec > 0 {
		if err := conn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := conn.SetKeepAlivePeriod(time.Duration(conf.TCP.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if conf.TCP.TCPLingerSec >= 0 {
		if err := conn.SetLinger(conf.TCP.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}
