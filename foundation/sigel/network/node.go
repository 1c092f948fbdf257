package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/peer"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru"
)

// recentlySeen bounds the relay suppression cache.
const recentlySeen = 1024

// EventHandler defines a function that is called when events occur in the
// processing of network messages.
type EventHandler func(v string, args ...any)

// Backend is the node state the network layer reads and feeds. Implemented
// by the state package.
type Backend interface {
	Host() string
	ChainID() uint16
	ChainHeight() uint64
	TipHash() string
	KnownPeers(exceptHost string) []peer.Peer
	AddKnownPeer(host string) bool
	QueryBlocksFrom(from uint64) []ledger.BlockData
	QueryIdentities() []identity.Record
	ProcessPeerBlock(blockData ledger.BlockData) error
	ProcessCandidateChain(blocks []ledger.BlockData) (bool, error)
	ProcessPeerTransfer(st transfer.SignedTransfer) (bool, error)
	ProcessPeerIdentity(rec identity.Record) (bool, error)
}

// Config represents the configuration required to construct a node.
type Config struct {
	Backend          Backend
	EvHandler        EventHandler
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// Node owns every live peer session and the gossip relay between them.
type Node struct {
	backend          Backend
	evHandler        EventHandler
	readTimeout      time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	upgrader         websocket.Upgrader
	seen             *lru.Cache

	mu       sync.RWMutex
	sessions map[string]*Session

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// New constructs a node ready to accept and initiate peer sessions.
func New(cfg Config) (*Node, error) {
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 60 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}
	handshakeTimeout := cfg.HandshakeTimeout
	if handshakeTimeout == 0 {
		handshakeTimeout = 10 * time.Second
	}

	seen, err := lru.New(recentlySeen)
	if err != nil {
		return nil, err
	}

	n := Node{
		backend:          cfg.Backend,
		evHandler:        ev,
		readTimeout:      readTimeout,
		writeTimeout:     writeTimeout,
		handshakeTimeout: handshakeTimeout,
		upgrader:         websocket.Upgrader{HandshakeTimeout: handshakeTimeout},
		seen:             seen,
		sessions:         make(map[string]*Session),
		shutdown:         make(chan struct{}),
	}

	return &n, nil
}

// Shutdown tears down every session and waits for the read loops to drain.
func (n *Node) Shutdown() {
	close(n.shutdown)

	n.mu.Lock()
	for _, s := range n.sessions {
		s.close()
	}
	n.sessions = make(map[string]*Session)
	n.mu.Unlock()

	n.wg.Wait()
}

// Sessions returns a snapshot of the live sessions.
func (n *Node) Sessions() []*Session {
	n.mu.RLock()
	defer n.mu.RUnlock()

	sessions := make([]*Session, 0, len(n.sessions))
	for _, s := range n.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Connect dials the peer's websocket endpoint, runs the handshake and starts
// the session. Connecting to ourselves or an already connected host is a
// no-op.
func (n *Node) Connect(ctx context.Context, host string) error {
	if host == n.backend.Host() {
		return nil
	}

	n.mu.RLock()
	_, exists := n.sessions[host]
	n.mu.RUnlock()
	if exists {
		return nil
	}

	n.evHandler("network: connecting to %s", host)

	dialer := websocket.Dialer{HandshakeTimeout: n.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, fmt.Sprintf("ws://%s/v1/node/peer", host), nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", host, err)
	}

	s := newSession(host, conn, true, n.writeTimeout)

	if err := n.sendHello(s); err != nil {
		s.close()
		return err
	}
	hello, err := n.readHello(s)
	if err != nil {
		s.close()
		return err
	}
	if hello.Host != host {
		s.close()
		return fmt.Errorf("peer at %s identifies as %s", host, hello.Host)
	}
	s.setPeerHeight(hello.ChainHeight)

	return n.startSession(s)
}

// AcceptUpgrade turns an inbound HTTP request into a peer session. It is
// called from the private web service's peer handler.
func (n *Node) AcceptUpgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrading peer connection: %w", err)
	}

	s := newSession("", conn, false, n.writeTimeout)

	hello, err := n.readHello(s)
	if err != nil {
		s.close()
		return err
	}
	s.host = hello.Host
	s.setPeerHeight(hello.ChainHeight)

	if err := n.sendHello(s); err != nil {
		s.close()
		return err
	}

	return n.startSession(s)
}

// Sync runs a status exchange with every live session and adopts any heavier
// chain found. The sync worker calls this on a ticker.
func (n *Node) Sync(ctx context.Context) {
	for _, s := range n.Sessions() {
		if err := n.syncSession(ctx, s); err != nil {
			n.evHandler("network: sync with %s failed: %s", s.Host(), err)
		}
	}
}

// BroadcastBlock announces a locally committed block to every session.
func (n *Node) BroadcastBlock(block ledger.Block) {
	blockData := ledger.NewBlockData(block)
	n.seen.Add("b:"+blockData.Hash, true)
	n.broadcast(TypeBlockAnnounce, BlockAnnounce{Block: blockData}, "")
}

// BroadcastTransfer announces a locally submitted transfer to every session.
func (n *Node) BroadcastTransfer(st transfer.SignedTransfer) {
	n.seen.Add("t:"+st.ContentID(), true)
	n.broadcast(TypeTransferAnnounce, TransferAnnounce{Transfer: st}, "")
}

// BroadcastIdentity announces an identity record to every session.
func (n *Node) BroadcastIdentity(rec identity.Record) {
	n.seen.Add(identityKey(rec), true)
	n.broadcast(TypeIdentityAnnounce, IdentityAnnounce{Record: rec}, "")
}

// =============================================================================

func (n *Node) sendHello(s *Session) error {
	env, err := NewEnvelope(TypeHello, Hello{
		Version:     ProtocolVersion,
		ChainID:     n.backend.ChainID(),
		Host:        n.backend.Host(),
		ChainHeight: n.backend.ChainHeight(),
	})
	if err != nil {
		return err
	}
	return s.send(env)
}

func (n *Node) readHello(s *Session) (Hello, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(n.handshakeTimeout)); err != nil {
		return Hello{}, err
	}

	var env Envelope
	if err := s.conn.ReadJSON(&env); err != nil {
		return Hello{}, fmt.Errorf("reading hello: %w", err)
	}
	if env.Type != TypeHello {
		return Hello{}, fmt.Errorf("expected hello, got %s", env.Type)
	}

	var hello Hello
	if err := env.Decode(&hello); err != nil {
		return Hello{}, err
	}
	if hello.Version != ProtocolVersion {
		return Hello{}, fmt.Errorf("peer speaks protocol %d, need %d", hello.Version, ProtocolVersion)
	}
	if hello.ChainID != n.backend.ChainID() {
		return Hello{}, fmt.Errorf("peer is on chain %d, ours is %d", hello.ChainID, n.backend.ChainID())
	}
	if hello.Host == "" {
		return Hello{}, errors.New("peer did not identify a host")
	}

	return hello, nil
}

// startSession registers the session and spins up its read loop. The first
// sync runs in the background so handshakes stay fast.
func (n *Node) startSession(s *Session) error {
	n.mu.Lock()
	if _, exists := n.sessions[s.host]; exists {
		n.mu.Unlock()
		s.close()
		return nil
	}
	n.sessions[s.host] = s
	n.mu.Unlock()

	n.backend.AddKnownPeer(s.host)
	s.setState(StateSynced)
	n.evHandler("network: session with %s established at height %d", s.host, s.PeerHeight())

	n.wg.Add(2)

	go func() {
		defer n.wg.Done()
		n.readLoop(s)
	}()

	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.readTimeout)
		defer cancel()
		if err := n.syncSession(ctx, s); err != nil {
			n.evHandler("network: initial sync with %s failed: %s", s.host, err)
		}
	}()

	return nil
}

func (n *Node) dropSession(s *Session) {
	s.close()

	n.mu.Lock()
	if cur, exists := n.sessions[s.host]; exists && cur == s {
		delete(n.sessions, s.host)
	}
	n.mu.Unlock()

	n.evHandler("network: session with %s closed", s.host)
}

// readLoop pulls envelopes off the wire until the session dies. Responses
// are routed to waiting requests, everything else is handled inline.
func (n *Node) readLoop(s *Session) {
	defer n.dropSession(s)

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(n.readTimeout))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go n.pingLoop(s, pingDone)

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(n.readTimeout)); err != nil {
			return
		}

		var env Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			select {
			case <-n.shutdown:
			default:
				n.evHandler("network: read from %s failed: %s", s.host, err)
			}
			return
		}

		if env.Version != ProtocolVersion {
			n.evHandler("network: %s sent protocol %d frame, dropping session", s.host, env.Version)
			return
		}

		if s.resolve(env) {
			continue
		}

		if err := n.handleMessage(s, env); err != nil {
			n.evHandler("network: handling %s from %s failed: %s", env.Type, s.host, err)
			return
		}
	}
}

func (n *Node) pingLoop(s *Session, done chan struct{}) {
	ticker := time.NewTicker(n.readTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(n.writeTimeout))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		case <-n.shutdown:
			return
		}
	}
}

// handleMessage processes one inbound envelope. A returned error is a
// protocol violation and tears the session down; semantic rejections are
// logged and the session lives on.
func (n *Node) handleMessage(s *Session, env Envelope) error {
	switch env.Type {
	case TypeStatusRequest:
		resp, err := respond(env, TypeStatusResponse, StatusResponse{
			ChainHeight: n.backend.ChainHeight(),
			TipHash:     n.backend.TipHash(),
			KnownPeers:  n.backend.KnownPeers(s.host),
		})
		if err != nil {
			return err
		}
		return s.send(resp)

	case TypeChainRequest:
		var req ChainRequest
		if err := env.Decode(&req); err != nil {
			return err
		}
		resp, err := respond(env, TypeChainResponse, ChainResponse{
			Blocks: n.backend.QueryBlocksFrom(req.FromNumber),
		})
		if err != nil {
			return err
		}
		return s.send(resp)

	case TypeIdentityRequest:
		resp, err := respond(env, TypeIdentityResponse, IdentityResponse{
			Records: n.backend.QueryIdentities(),
		})
		if err != nil {
			return err
		}
		return s.send(resp)

	case TypeBlockAnnounce:
		var ba BlockAnnounce
		if err := env.Decode(&ba); err != nil {
			return err
		}
		n.handlePeerBlock(s, ba.Block)
		return nil

	case TypeTransferAnnounce:
		var ta TransferAnnounce
		if err := env.Decode(&ta); err != nil {
			return err
		}
		n.handlePeerTransfer(s, ta.Transfer)
		return nil

	case TypeIdentityAnnounce:
		var ia IdentityAnnounce
		if err := env.Decode(&ia); err != nil {
			return err
		}
		n.handlePeerIdentity(s, ia.Record)
		return nil

	case TypeStatusResponse, TypeChainResponse, TypeIdentityResponse:
		// A response nobody is waiting on, its request already timed out.
		return nil

	default:
		return fmt.Errorf("unknown message type %s", env.Type)
	}
}

func (n *Node) handlePeerBlock(s *Session, blockData ledger.BlockData) {
	if found, _ := n.seen.ContainsOrAdd("b:"+blockData.Hash, true); found {
		return
	}

	s.setState(StateRelaying)

	err := n.backend.ProcessPeerBlock(blockData)
	switch {
	case err == nil:
		n.evHandler("network: accepted block %d from %s", blockData.Header.Number, s.host)
		n.broadcast(TypeBlockAnnounce, BlockAnnounce{Block: blockData}, s.host)

	case errors.Is(err, ledger.ErrStaleIndex), errors.Is(err, ledger.ErrHashMismatch):
		// The peer may be on a heavier fork or further ahead. Pull its
		// whole chain and let fork choice decide.
		n.evHandler("network: block %d from %s does not extend our tip, syncing", blockData.Header.Number, s.host)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), n.readTimeout)
			defer cancel()
			if err := n.requestChain(ctx, s); err != nil {
				n.evHandler("network: chain pull from %s failed: %s", s.host, err)
			}
		}()

	default:
		n.evHandler("network: rejected block %d from %s: %s", blockData.Header.Number, s.host, err)
	}
}

func (n *Node) handlePeerTransfer(s *Session, st transfer.SignedTransfer) {
	if found, _ := n.seen.ContainsOrAdd("t:"+st.ContentID(), true); found {
		return
	}

	s.setState(StateRelaying)

	accepted, err := n.backend.ProcessPeerTransfer(st)
	if err != nil {
		n.evHandler("network: rejected transfer from %s: %s", s.host, err)
		return
	}
	if accepted {
		n.broadcast(TypeTransferAnnounce, TransferAnnounce{Transfer: st}, s.host)
	}
}

func (n *Node) handlePeerIdentity(s *Session, rec identity.Record) {
	if found, _ := n.seen.ContainsOrAdd(identityKey(rec), true); found {
		return
	}

	applied, err := n.backend.ProcessPeerIdentity(rec)
	if err != nil {
		n.evHandler("network: rejected identity %s from %s: %s", rec.ID, s.host, err)
		return
	}
	if applied {
		n.broadcast(TypeIdentityAnnounce, IdentityAnnounce{Record: rec}, s.host)
	}
}

// syncSession exchanges status with one peer, converges identity registries
// and adopts the peer's chain when it carries more work.
func (n *Node) syncSession(ctx context.Context, s *Session) error {
	req, err := NewEnvelope(TypeStatusRequest, struct{}{})
	if err != nil {
		return err
	}
	resp, err := s.request(ctx, req)
	if err != nil {
		return err
	}
	if resp.Type != TypeStatusResponse {
		return fmt.Errorf("expected status response, got %s", resp.Type)
	}

	var status StatusResponse
	if err := resp.Decode(&status); err != nil {
		return err
	}
	s.setPeerHeight(status.ChainHeight)

	for _, p := range status.KnownPeers {
		if n.backend.AddKnownPeer(p.Host) {
			go func(host string) {
				ctx, cancel := context.WithTimeout(context.Background(), n.handshakeTimeout)
				defer cancel()
				if err := n.Connect(ctx, host); err != nil {
					n.evHandler("network: connect to discovered peer %s failed: %s", host, err)
				}
			}(p.Host)
		}
	}

	if err := n.syncIdentities(ctx, s); err != nil {
		return err
	}

	if status.ChainHeight > n.backend.ChainHeight() || (status.ChainHeight == n.backend.ChainHeight() && status.TipHash != n.backend.TipHash()) {
		if err := n.requestChain(ctx, s); err != nil {
			return err
		}
	}

	s.setState(StateSynced)

	return nil
}

// syncIdentities pulls the peer's registry before any chain pull. Blocks
// cannot validate against identities we have never seen.
func (n *Node) syncIdentities(ctx context.Context, s *Session) error {
	req, err := NewEnvelope(TypeIdentityRequest, struct{}{})
	if err != nil {
		return err
	}
	resp, err := s.request(ctx, req)
	if err != nil {
		return err
	}
	if resp.Type != TypeIdentityResponse {
		return fmt.Errorf("expected identity response, got %s", resp.Type)
	}

	var identities IdentityResponse
	if err := resp.Decode(&identities); err != nil {
		return err
	}

	for _, rec := range identities.Records {
		if _, err := n.backend.ProcessPeerIdentity(rec); err != nil {
			n.evHandler("network: identity %s from %s rejected: %s", rec.ID, s.host, err)
		}
	}

	return nil
}

// requestChain pulls the peer's full chain and runs fork choice over it.
func (n *Node) requestChain(ctx context.Context, s *Session) error {
	req, err := NewEnvelope(TypeChainRequest, ChainRequest{FromNumber: 0})
	if err != nil {
		return err
	}
	resp, err := s.request(ctx, req)
	if err != nil {
		return err
	}
	if resp.Type != TypeChainResponse {
		return fmt.Errorf("expected chain response, got %s", resp.Type)
	}

	var chain ChainResponse
	if err := resp.Decode(&chain); err != nil {
		return err
	}

	adopted, err := n.backend.ProcessCandidateChain(chain.Blocks)
	if err != nil {
		return fmt.Errorf("candidate chain from %s: %w", s.host, err)
	}
	if adopted {
		n.evHandler("network: adopted chain of %d blocks from %s", len(chain.Blocks), s.host)
	}

	return nil
}

// broadcast sends one payload to every live session except the named host.
func (n *Node) broadcast(msgType MsgType, payload any, exceptHost string) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		n.evHandler("network: encoding %s broadcast failed: %s", msgType, err)
		return
	}

	for _, s := range n.Sessions() {
		if s.Host() == exceptHost {
			continue
		}
		if err := s.send(env); err != nil {
			n.evHandler("network: broadcast %s to %s failed: %s", msgType, s.Host(), err)
		}
	}
}

func identityKey(rec identity.Record) string {
	return fmt.Sprintf("i:%s:%d", rec.ID, rec.TrainingIterations)
}
