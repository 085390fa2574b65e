package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
	"github.com/dj-oyu/smart-posture/posture-server/internal/publish"
)

const (
	// ChannelLabel is the data channel carrying payload JSON.
	ChannelLabel = "posture"
	// ChannelID is the pre-negotiated stream id; the browser creates the
	// channel with {negotiated: true, id: 0} so its offer carries SCTP.
	ChannelID uint16 = 0

	clientQueue      = 4
	gatheringTimeout = 5 * time.Second
)

// ErrTooManyClients is returned when the client limit is reached.
var ErrTooManyClients = errors.New("maximum clients reached")

// Client represents a connected WebRTC client
type Client struct {
	id          string
	peerConn    *webrtc.PeerConnection
	channel     *webrtc.DataChannel
	sendChan    chan []byte
	closeChan   chan struct{}
	payloadSent atomic.Uint64
	dropped     atomic.Uint64
}

// Server manages WebRTC connections
type Server struct {
	clients    map[string]*Client
	clientsMu  sync.RWMutex
	config     webrtc.Configuration
	maxClients int
	api        *webrtc.API
	metrics    *metrics.Metrics
}

// NewServer creates a new WebRTC server
func NewServer(stunServers []string, maxClients int, m *metrics.Metrics) *Server {
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs: []string{url},
		})
	}

	settingsEngine := webrtc.SettingEngine{}
	settingsEngine.SetDTLSRetransmissionInterval(time.Second * 2)
	settingsEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})

	// Data channels only; no media codecs are registered.
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingsEngine))

	return &Server{
		clients: make(map[string]*Client),
		config: webrtc.Configuration{
			ICEServers: iceServers,
		},
		maxClients: maxClients,
		api:        api,
		metrics:    m,
	}
}

// HandleOffer handles a WebRTC offer and returns an answer
func (s *Server) HandleOffer(ctx context.Context, offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("failed to parse offer: %w", err)
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return nil, fmt.Errorf("failed to parse offer: expected type offer with sdp")
	}

	if n := s.GetClientCount(); n >= s.maxClients {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyClients, s.maxClients)
	}

	peerConn, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	negotiated := true
	id := ChannelID
	ordered := false
	var maxRetransmits uint16
	channel, err := peerConn.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{
		Negotiated:     &negotiated,
		ID:             &id,
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}

	client := &Client{
		id:        uuid.NewString(),
		peerConn:  peerConn,
		channel:   channel,
		sendChan:  make(chan []byte, clientQueue),
		closeChan: make(chan struct{}),
	}

	// Registered before negotiation so a state callback during gathering
	// finds the client and frees its slot.
	if err := s.addClient(client); err != nil {
		peerConn.Close()
		return nil, err
	}

	channel.OnOpen(func() {
		logger.Debug("WebRTC", "Client %s data channel open", client.id)
		go s.sendPayloads(client)
	})

	peerConn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		logger.Debug("WebRTC", "Client %s ICE state: %s", client.id, state.String())
		if state == webrtc.ICEConnectionStateDisconnected ||
			state == webrtc.ICEConnectionStateFailed ||
			state == webrtc.ICEConnectionStateClosed {
			logger.Info("WebRTC", "Client %s connection lost (ICE: %s), removing...", client.id, state.String())
			s.RemoveClient(client.id)
		}
	})

	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.handlePeerState(client.id, state)
	})

	if err := peerConn.SetRemoteDescription(offer); err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConn)

	if err := peerConn.SetLocalDescription(answer); err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	gatherCtx, cancel := context.WithTimeout(ctx, gatheringTimeout)
	defer cancel()
	select {
	case <-gatherComplete:
		logger.Debug("WebRTC", "ICE gathering complete for client %s", client.id)
	case <-gatherCtx.Done():
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("ICE gathering: %w", gatherCtx.Err())
	}

	// A failure callback may have run while gathering.
	if !s.hasClient(client.id) {
		return nil, fmt.Errorf("client %s connection failed during negotiation", client.id)
	}

	logger.Info("WebRTC", "Client %s connected", client.id)

	localDesc := peerConn.LocalDescription()
	if localDesc == nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("no local description available")
	}

	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}

	return answerJSON, nil
}

// addClient registers client unless the limit is reached.
func (s *Server) addClient(client *Client) error {
	s.clientsMu.Lock()
	if len(s.clients) >= s.maxClients {
		s.clientsMu.Unlock()
		return fmt.Errorf("%w (%d)", ErrTooManyClients, s.maxClients)
	}
	s.clients[client.id] = client
	s.clientsMu.Unlock()

	if s.metrics != nil {
		s.metrics.ClientConnected()
	}
	return nil
}

func (s *Server) hasClient(clientID string) bool {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	_, ok := s.clients[clientID]
	return ok
}

func (s *Server) handlePeerState(clientID string, state webrtc.PeerConnectionState) {
	logger.Debug("WebRTC", "Client %s connection state: %s", clientID, state.String())
	if state == webrtc.PeerConnectionStateDisconnected ||
		state == webrtc.PeerConnectionStateFailed ||
		state == webrtc.PeerConnectionStateClosed {
		logger.Info("WebRTC", "Client %s connection lost (Peer: %s), removing...", clientID, state.String())
		s.RemoveClient(clientID)
	}
}

// Name implements publish.Sink.
func (s *Server) Name() string {
	return "webrtc"
}

// Publish queues the payload JSON for every client without blocking.
func (s *Server) Publish(_ context.Context, ev *publish.Event) error {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		select {
		case client.sendChan <- ev.JSON:
		default:
			client.dropped.Add(1)
		}
	}
	return nil
}

func (s *Server) sendPayloads(client *Client) {
	for {
		select {
		case <-client.closeChan:
			return
		case data := <-client.sendChan:
			if err := client.channel.SendText(string(data)); err != nil {
				logger.Warn("WebRTC", "Error sending to client %s: %v", client.id, err)
				s.RemoveClient(client.id)
				return
			}
			client.payloadSent.Add(1)
		}
	}
}

// RemoveClient removes a client by ID
func (s *Server) RemoveClient(clientID string) {
	s.clientsMu.Lock()
	client, exists := s.clients[clientID]
	if exists {
		delete(s.clients, clientID)
	}
	s.clientsMu.Unlock()

	if !exists {
		return
	}

	close(client.closeChan)
	_ = client.peerConn.Close()
	if s.metrics != nil {
		s.metrics.ClientDisconnected()
	}

	logger.Info("WebRTC", "Client %s disconnected (sent: %d, dropped: %d)",
		clientID, client.payloadSent.Load(), client.dropped.Load())
}

// GetClientCount returns the number of connected clients
func (s *Server) GetClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// GetClientStats returns stats for all clients
func (s *Server) GetClientStats() map[string]map[string]uint64 {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	stats := make(map[string]map[string]uint64)
	for id, client := range s.clients {
		stats[id] = map[string]uint64{
			"payloads_sent":    client.payloadSent.Load(),
			"payloads_dropped": client.dropped.Load(),
		}
	}
	return stats
}

// Close closes all client connections
func (s *Server) Close() error {
	s.clientsMu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.clientsMu.RUnlock()

	for _, id := range ids {
		s.RemoveClient(id)
	}
	return nil
}
