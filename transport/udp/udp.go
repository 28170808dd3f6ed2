package udp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/mavkit/mavconn/mavlink"
	"github.com/mavkit/mavconn/transport"
	"github.com/mavkit/mavconn/transport/base"
	"github.com/mavkit/mavconn/transport/common"
)

var Logger = logger.GetLogger("transport/udp")

const rxBufSize = 65535

// UDPChannel carries the wire protocol over one UDP socket. Unlike the TCP
// variants there is no connection state: the channel binds locally and sends
// to a remote endpoint that is either fixed at construction or learned from
// inbound traffic. Each transmit buffer is sent as one datagram.
type UDPChannel struct {
	channelID uint8
	conf      common.ChannelConfig

	conn    *net.UDPConn
	reactor *base.Reactor

	// transmit queue and remote endpoint, guarded by mu; the remote moves
	// when autodetect is active and a datagram arrives from a new sender
	mu           sync.Mutex
	txq          []base.TxBuffer
	txInProgress bool
	remote       *net.UDPAddr
	autodetect   bool

	open      atomic.Bool
	closeOnce sync.Once

	parser *mavlink.Parser
	rxBuf  [rxBufSize]byte

	msgReceived *base.Signal[transport.MessageEvent]
	portClosed  *base.Signal[struct{}]
}

var _ transport.IChannel = (*UDPChannel)(nil)

// --------------------------------------------------------------------------
// Construction
// --------------------------------------------------------------------------

// NewUDPChannel binds bindHost:bindPort and starts the channel's reactor with
// an initial receive scheduled. With remoteHost empty the channel starts in
// autodetect mode: outbound frames are dropped (with a log message) until the
// first datagram reveals the peer.
func NewUDPChannel(conf common.ChannelConfig, bindHost string, bindPort uint16, remoteHost string, remotePort uint16) (*UDPChannel, error) {
	bindEP, err := base.ResolveEndpoint(bindHost, bindPort)
	if err != nil {
		return nil, transport.NewDeviceError("udp: resolve", err)
	}

	var remote *net.UDPAddr
	if remoteHost != "" {
		remoteEP, err := base.ResolveEndpoint(remoteHost, remotePort)
		if err != nil {
			return nil, transport.NewDeviceError("udp: resolve", err)
		}
		remote = remoteEP.UDPAddr()
	}

	channelID, err := base.AllocateChannel()
	if err != nil {
		return nil, transport.NewDeviceError("udp: channel", err)
	}

	conn, err := net.ListenUDP("udp", bindEP.UDPAddr())
	if err != nil {
		base.ReleaseChannel(channelID)
		return nil, transport.NewDeviceError("udp: bind", err)
	}

	if conf.Socket.WriteBufferSize > 0 {
		if err := conn.SetWriteBuffer(conf.Socket.WriteBufferSize); err != nil {
			conn.Close()
			base.ReleaseChannel(channelID)
			return nil, transport.NewDeviceError("udp: setsockopt", err)
		}
	}
	if conf.Socket.ReadBufferSize > 0 {
		if err := conn.SetReadBuffer(conf.Socket.ReadBufferSize); err != nil {
			conn.Close()
			base.ReleaseChannel(channelID)
			return nil, transport.NewDeviceError("udp: setsockopt", err)
		}
	}

	c := &UDPChannel{
		channelID:   channelID,
		conf:        conf,
		conn:        conn,
		reactor:     base.NewReactor(fmt.Sprintf("udp%d", channelID)),
		remote:      remote,
		autodetect:  remote == nil,
		parser:      mavlink.ParserForChannel(channelID),
		msgReceived: base.NewSignal[transport.MessageEvent](),
		portClosed:  base.NewSignal[struct{}](),
	}
	c.open.Store(true)

	if remote != nil {
		Logger.Infof("udp%d: remote address: %s", channelID, remote)
	} else {
		Logger.Infof("udp%d: bind address: %s, waiting for remote", channelID, bindEP)
	}

	c.reactor.Post(c.doRecv)
	return c, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IChannel)
// --------------------------------------------------------------------------

func (c *UDPChannel) ChannelID() uint8 {
	return c.channelID
}

func (c *UDPChannel) SystemID() uint8 {
	return c.conf.SystemID
}

func (c *UDPChannel) ComponentID() uint8 {
	return c.conf.ComponentID
}

func (c *UDPChannel) IsOpen() bool {
	return c.open.Load()
}

// BoundAddr returns the local address the socket is bound to.
func (c *UDPChannel) BoundAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// RemoteAddr returns the current remote endpoint, or nil while autodetect has
// not seen a sender yet.
func (c *UDPChannel) RemoteAddr() *net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *UDPChannel) SendBytes(b []byte) {
	if !c.IsOpen() {
		panic(fmt.Sprintf("udp%d: send on closed channel", c.channelID))
	}
	c.enqueue(base.NewTxBuffer(b))
}

func (c *UDPChannel) SendMessage(msg *mavlink.Message, sysID, compID uint8) {
	if !c.IsOpen() {
		panic(fmt.Sprintf("udp%d: send on closed channel", c.channelID))
	}

	var wire []byte
	if msg.SysID != sysID || msg.CompID != compID {
		wire = mavlink.Finalize(msg, sysID, compID)
	} else {
		wire = msg.Bytes()
	}

	Logger.Debugf("udp%d:send: Message-ID: %d [%d bytes] Sys-Id: %d Comp-Id: %d",
		c.channelID, msg.MsgID, msg.Len(), sysID, compID)

	c.enqueue(base.OwnTxBuffer(wire))
}

func (c *UDPChannel) OnMessage(h func(transport.MessageEvent)) transport.ISubscription {
	return c.msgReceived.Connect(h)
}

func (c *UDPChannel) OnClosed(h func()) transport.ISubscription {
	return c.portClosed.Connect(func(struct{}) { h() })
}

// Close is idempotent and joins the channel's reactor; it must not be called
// from inside one of the channel's own event handlers.
func (c *UDPChannel) Close() {
	c.shutdown()
	c.reactor.Join()
}

// --------------------------------------------------------------------------
// Send path
// --------------------------------------------------------------------------

func (c *UDPChannel) enqueue(buf base.TxBuffer) {
	c.mu.Lock()
	c.txq = append(c.txq, buf)
	c.mu.Unlock()

	c.reactor.Post(func() { c.doSend(true) })
}

// doSend transmits the front buffer as one datagram. Without a remote yet
// (autodetect pending) the frame is dropped rather than queued forever.
// Runs on the reactor.
func (c *UDPChannel) doSend(respectInProgress bool) {
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
	if c.remote == nil {
		c.txq = nil
		c.mu.Unlock()
		Logger.Warningf("udp%d:sendto: no remote endpoint yet, drop", c.channelID)
		return
	}
	c.txInProgress = true
	datagram := c.txq[0].Pending()
	remote := c.remote
	c.mu.Unlock()

	conn := c.conn
	go func() {
		n, err := conn.WriteToUDP(datagram, remote)
		c.reactor.Post(func() { c.sendComplete(n, err) })
	}()
}

// sendComplete pops the sent buffer and starts the next datagram if any.
// Datagram sockets never write partially, so the buffer is always consumed
// in one step. Runs on the reactor.
func (c *UDPChannel) sendComplete(n int, err error) {
	if err != nil {
		if c.IsOpen() {
			Logger.Errorf("udp%d:sendto: %v", c.channelID, err)
		}
		c.closeFromLoop()
		return
	}

	base.TxBytesAdd("udp", n)

	c.mu.Lock()
	c.txInProgress = false
	if len(c.txq) > 0 {
		c.txq = c.txq[1:]
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

func (c *UDPChannel) doRecv() {
	if !c.IsOpen() {
		return
	}

	conn := c.conn
	go func() {
		n, sender, err := conn.ReadFromUDP(c.rxBuf[:])
		c.reactor.Post(func() { c.recvComplete(n, sender, err) })
	}()
}

// recvComplete updates the autodetected remote, feeds the codec and emits a
// message event per completed frame. Runs on the reactor.
func (c *UDPChannel) recvComplete(n int, sender *net.UDPAddr, err error) {
	if err != nil {
		if c.IsOpen() {
			Logger.Errorf("udp%d:receive: %v", c.channelID, err)
		}
		c.closeFromLoop()
		return
	}

	if c.autodetect && sender != nil {
		c.mu.Lock()
		if c.remote == nil || !c.remote.IP.Equal(sender.IP) || c.remote.Port != sender.Port {
			Logger.Infof("udp%d: remote address: %s", c.channelID, sender)
			c.remote = sender
		}
		c.mu.Unlock()
	}

	base.RxBytesAdd("udp", n)

	for i := 0; i < n; i++ {
		if msg := c.parser.Feed(c.rxBuf[i]); msg != nil {
			Logger.Debugf("udp%d:recv: Message-ID: %d [%d bytes] Sys-Id: %d Comp-Id: %d",
				c.channelID, msg.MsgID, msg.Len(), msg.SysID, msg.CompID)

			base.RxFramesInc("udp")
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

func (c *UDPChannel) closeFromLoop() {
	c.shutdown()
}

func (c *UDPChannel) shutdown() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.conn.Close()

		c.mu.Lock()
		c.txq = nil
		c.txInProgress = false
		c.mu.Unlock()

		c.reactor.Stop()
		base.ReleaseChannel(c.channelID)

		c.portClosed.Emit(struct{}{})
	})
}
