package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pushbridge/pushbridge/internal/domain/events"
	"github.com/pushbridge/pushbridge/pkg/stream"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 15 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 90 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Send buffer size per client.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local tooling surface; origin checks are the deployment's job.
		return true
	},
}

// Server accepts WebSocket connections and subscribes each one to the
// event stream.
type Server struct {
	addr   string
	server *http.Server
	events stream.Stream[events.Event]

	mu      sync.RWMutex
	clients map[string]*Client
	subs    map[string]*stream.Subscription[events.Event]
}

// NewServer creates a WebSocket fan-out server over the given stream view.
func NewServer(host string, port int, st stream.Stream[events.Event]) *Server {
	addr := fmt.Sprintf("%s:%d", host, port)
	s := &Server{
		addr:    addr,
		events:  st,
		clients: make(map[string]*Client),
		subs:    make(map[string]*stream.Subscription[events.Event]),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
		// No ReadTimeout/WriteTimeout: those would cut long-lived
		// WebSocket connections; the pumps manage their own deadlines.
	}

	return s
}

// Start starts the listener in the background.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("websocket server starting")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("websocket server error")
		}
	}()

	return nil
}

// Stop cancels all subscriptions, closes all clients and shuts the listener
// down.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("websocket server stopping")

	s.mu.Lock()
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.subs = make(map[string]*stream.Subscription[events.Event])
	for _, client := range s.clients {
		client.Close()
	}
	s.clients = make(map[string]*Client)
	s.mu.Unlock()

	return s.server.Shutdown(ctx)
}

// handleWebSocket upgrades the connection and wires it to the stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, func(id string) {
		s.dropClient(id)
	})

	s.mu.Lock()
	s.clients[client.ID()] = client
	s.mu.Unlock()

	// A terminated stream delivers its terminal frame synchronously here;
	// the write pump flushes it once Start runs.
	sub := s.events.Subscribe(
		func(e events.Event) {
			data, err := e.ToJSON()
			if err != nil {
				log.Error().Err(err).Str("event_type", string(e.Type())).Msg("failed to encode event")
				return
			}
			client.Send(data)
		},
		func(err error) {
			if data, jerr := events.NewStreamFailedEvent(err).ToJSON(); jerr == nil {
				client.Send(data)
			}
			client.Close()
		},
		func() {
			if data, jerr := events.NewStreamCompletedEvent().ToJSON(); jerr == nil {
				client.Send(data)
			}
			client.Close()
		},
	)

	s.mu.Lock()
	s.subs[client.ID()] = sub
	s.mu.Unlock()

	log.Info().
		Str("client_id", client.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("client connected")

	client.Start()
}

// dropClient cancels the client's subscription and forgets it.
func (s *Server) dropClient(id string) {
	s.mu.Lock()
	if sub, ok := s.subs[id]; ok {
		sub.Cancel()
		delete(s.subs, id)
	}
	delete(s.clients, id)
	s.mu.Unlock()

	log.Info().Str("client_id", id).Msg("client disconnected")
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
