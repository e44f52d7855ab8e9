// Package sse provides Server-Sent Events client management for real-time communication.
package sse

import "sync"

// Client is one open event stream. Topic scopes which broadcasts it
// receives: "session:<id>" for wizard save events, "memorial:<id>" for
// published page reloads.
type Client struct {
	Msg   chan string
	Topic string
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	close(client.Msg)
}

// Broadcast delivers msg to every client on the topic. Slow clients are
// skipped rather than blocked on.
func (s *SSEClients) Broadcast(topic, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.Topic == topic {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}
