package tcp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mavkit/mavconn/mavlink"
	"github.com/mavkit/mavconn/transport"
	"github.com/mavkit/mavconn/transport/base"
	"github.com/mavkit/mavconn/transport/common"
)

// clientEntry pairs a registered client channel with the server's
// subscriptions on its signals, so they can be detached before the client is
// disposed.
type clientEntry struct {
	ch       *ClientChannel
	msgSub   transport.ISubscription
	closeSub transport.ISubscription
}

func (e *clientEntry) detach() {
	e.msgSub.Disconnect()
	e.closeSub.Disconnect()
}

// ServerChannel owns a listening TCP socket and multiplexes N remote
// clients behind the uniform channel surface: outbound sends fan out to
// every registered client, inbound frames from all clients aggregate into
// one message signal. The server and all its accepted clients share one
// reactor goroutine, so a client's I/O completions and its deregistration
// run on the same execution context and need no extra locking between them.
type ServerChannel struct {
	channelID uint8
	conf      common.ChannelConfig

	listener *net.TCPListener
	bindEP   *base.Endpoint
	reactor  *base.Reactor

	clients *xsync.MapOf[uint8, *clientEntry]

	open      atomic.Bool
	closeOnce sync.Once

	msgReceived *base.Signal[transport.MessageEvent]
	portClosed  *base.Signal[struct{}]
}

var _ transport.IChannel = (*ServerChannel)(nil)

// --------------------------------------------------------------------------
// Construction
// --------------------------------------------------------------------------

// NewServerChannel resolves the bind endpoint, starts listening and begins
// accepting on a fresh reactor. Any resolution or socket failure is returned
// as a *transport.DeviceError naming the operation.
//
// Note: Go's TCP listeners set SO_REUSEADDR themselves and take the kernel's
// listen backlog; channel capacity is enforced per accepted connection.
func NewServerChannel(conf common.ChannelConfig, host string, port uint16) (*ServerChannel, error) {
	ep, err := base.ResolveEndpoint(host, port)
	if err != nil {
		return nil, transport.NewDeviceError("tcp-l: resolve", err)
	}

	channelID, err := base.AllocateChannel()
	if err != nil {
		return nil, transport.NewDeviceError("tcp-l: channel", err)
	}

	listener, err := net.ListenTCP("tcp", ep.TCPAddr())
	if err != nil {
		base.ReleaseChannel(channelID)
		return nil, transport.NewDeviceError("tcp-l: listen", err)
	}

	s := &ServerChannel{
		channelID:   channelID,
		conf:        conf,
		listener:    listener,
		bindEP:      ep,
		reactor:     base.NewReactor(fmt.Sprintf("tcp-l%d", channelID)),
		clients:     xsync.NewMapOf[uint8, *clientEntry](),
		msgReceived: base.NewSignal[transport.MessageEvent](),
		portClosed:  base.NewSignal[struct{}](),
	}
	s.open.Store(true)

	Logger.Infof("tcp-l%d: bind address: %s", channelID, ep)

	s.reactor.Post(s.doAccept)
	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IChannel)
// --------------------------------------------------------------------------

func (s *ServerChannel) ChannelID() uint8 {
	return s.channelID
}

func (s *ServerChannel) SystemID() uint8 {
	return s.conf.SystemID
}

func (s *ServerChannel) ComponentID() uint8 {
	return s.conf.ComponentID
}

func (s *ServerChannel) IsOpen() bool {
	return s.open.Load()
}

// BoundEndpoint returns the endpoint the listener is bound to. When the
// requested port was 0, the port reflects the one the kernel picked.
func (s *ServerChannel) BoundEndpoint() *base.Endpoint {
	addr := s.listener.Addr().(*net.TCPAddr)
	return &base.Endpoint{IP: addr.IP, Port: addr.Port, Zone: addr.Zone}
}

// ClientCount returns the number of currently registered clients.
func (s *ServerChannel) ClientCount() int {
	return s.clients.Size()
}

// SendBytes fans the payload out to every currently registered client. A
// failing client closes itself through its own error path; delivery to the
// others is unaffected.
func (s *ServerChannel) SendBytes(b []byte) {
	if !s.IsOpen() {
		panic(fmt.Sprintf("tcp-l%d: send on closed channel", s.channelID))
	}
	s.clients.Range(func(_ uint8, e *clientEntry) bool {
		e.ch.enqueue(base.NewTxBuffer(b))
		return true
	})
}

// SendMessage serializes the message once, re-finalizing when the embedded
// identity differs, and fans the wire bytes out to every registered client.
func (s *ServerChannel) SendMessage(msg *mavlink.Message, sysID, compID uint8) {
	if !s.IsOpen() {
		panic(fmt.Sprintf("tcp-l%d: send on closed channel", s.channelID))
	}

	// serialize once; every client transmits the same wire bytes
	var wire []byte
	if msg.SysID != sysID || msg.CompID != compID {
		wire = mavlink.Finalize(msg, sysID, compID)
	} else {
		wire = msg.Bytes()
	}

	s.clients.Range(func(_ uint8, e *clientEntry) bool {
		e.ch.enqueue(base.NewTxBuffer(wire))
		return true
	})
}

func (s *ServerChannel) OnMessage(h func(transport.MessageEvent)) transport.ISubscription {
	return s.msgReceived.Connect(h)
}

func (s *ServerChannel) OnClosed(h func()) transport.ISubscription {
	return s.portClosed.Connect(func(struct{}) { h() })
}

// Close tears down every registered client first (detaching the server's
// subscriptions before disposal), then the listener and the reactor. Emits
// the closed signal exactly once. Idempotent; must not be called from the
// server's own event handlers.
func (s *ServerChannel) Close() {
	s.shutdown()
	s.reactor.Join()
}

// --------------------------------------------------------------------------
// Accept loop
// --------------------------------------------------------------------------

// doAccept issues one asynchronous accept. One accept is outstanding at a
// time; the completion registers the client and re-issues the next accept.
// Runs on the reactor.
func (s *ServerChannel) doAccept() {
	if !s.IsOpen() {
		return
	}

	listener := s.listener
	go func() {
		conn, err := listener.AcceptTCP()
		s.reactor.Post(func() { s.acceptComplete(conn, err) })
	}()
}

// acceptComplete handles one accepted connection: an accept error terminates
// the server; capacity exhaustion rejects just the new socket; otherwise the
// connection is wrapped into a server-accepted client channel, its signals
// subscribed and the registry updated. Runs on the reactor.
func (s *ServerChannel) acceptComplete(conn *net.TCPConn, err error) {
	if err != nil {
		if s.IsOpen() {
			Logger.Errorf("tcp-l%d:accept error: %v", s.channelID, err)
		}
		s.closeFromLoop()
		return
	}

	if base.ChannelsAvailable() <= 0 {
		Logger.Errorf("tcp-l%d:accept: all channels in use, drop connection", s.channelID)
		base.ConnRejectedInc("tcp")
		conn.Close()
		s.doAccept()
		return
	}

	addr := conn.RemoteAddr().(*net.TCPAddr)
	peer := &base.Endpoint{IP: addr.IP, Port: addr.Port, Zone: addr.Zone}

	client, err := newAcceptedChannel(s.conf, s.reactor, s.channelID, conn, peer)
	if err != nil {
		// lost the race for the last channel slot, or socket tuning failed
		Logger.Errorf("tcp-l%d:accept: cannot wrap client: %v", s.channelID, err)
		base.ConnRejectedInc("tcp")
		conn.Close()
		s.doAccept()
		return
	}

	entry := &clientEntry{ch: client}
	entry.msgSub = client.OnMessage(func(ev transport.MessageEvent) {
		// re-publish upward unchanged
		s.msgReceived.Emit(ev)
	})
	entry.closeSub = client.OnClosed(func() {
		s.clientClosed(client)
	})

	s.clients.Store(client.ChannelID(), entry)
	base.ConnAcceptedInc("tcp")

	s.doAccept()
}

// clientClosed deregisters a client whose connection ended. It fires from
// the client's closed signal, which for accepted clients is emitted on the
// server's own reactor, so it cannot race that client's I/O completions.
func (s *ServerChannel) clientClosed(client *ClientChannel) {
	if entry, ok := s.clients.LoadAndDelete(client.ChannelID()); ok {
		Logger.Infof("tcp-l%d: client connection closed, channel: %d, address: %s",
			s.channelID, client.ChannelID(), client.PeerEndpoint())
		entry.detach()
	}
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// closeFromLoop is the teardown entry for the accept loop's error path; it
// must not join the reactor it runs on.
func (s *ServerChannel) closeFromLoop() {
	s.shutdown()
}

// shutdown closes every registered client first, with the server's
// subscriptions detached so the disposal does not re-enter the registry
// mutation path, then stops I/O and emits the closed signal.
func (s *ServerChannel) shutdown() {
	s.closeOnce.Do(func() {
		s.open.Store(false)

		Logger.Infof("tcp-l%d: terminating server, all connections will be closed", s.channelID)

		var entries []*clientEntry
		s.clients.Range(func(_ uint8, e *clientEntry) bool {
			entries = append(entries, e)
			return true
		})
		s.clients.Clear()

		for _, e := range entries {
			Logger.Debugf("tcp-l%d: close client %s, channel %d",
				s.channelID, e.ch.PeerEndpoint(), e.ch.ChannelID())
			e.detach()
			e.ch.shutdown()
		}

		s.listener.Close()
		s.reactor.Stop()
		base.ReleaseChannel(s.channelID)

		s.portClosed.Emit(struct{}{})
	})
}
