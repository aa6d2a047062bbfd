// Package console implements a websocket-based Transport for local smoke
// runs and tests without a Telegram bot token. Every client message names
// its chat thread in a client-chosen thread_id, and one connection may
// carry messages for several threads.
package console

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/takopi-bot/takopi/internal/transport"
)

// outMessage is the wire shape for everything the server sends.
type outMessage struct {
	Type      string `json:"type"`
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text,omitempty"`
	HTML      bool   `json:"html,omitempty"`
}

// inMessage is the wire shape for everything a client sends.
type inMessage struct {
	Type      string `json:"type"`
	ThreadID  string `json:"thread_id"`
	Text      string `json:"text"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	ReplyText string `json:"reply_text,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(ctx context.Context, msg outMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsjson.Write(ctx, c.conn, msg)
}

// Transport implements transport.Transport over one or more concurrent
// websocket connections, each scoped to threads the client declares.
type Transport struct {
	addr string

	mu        sync.Mutex
	clients   map[string]*client // thread_id -> client
	inboundCh chan transport.Inbound
	srv       *http.Server
}

func New(addr string) *Transport {
	return &Transport{
		addr:      addr,
		clients:   make(map[string]*client),
		inboundCh: make(chan transport.Inbound, 64),
	}
}

// ListenAndServe blocks, accepting websocket connections until ctx is
// cancelled.
func (t *Transport) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", t.handleWS)
	t.srv = &http.Server{Addr: t.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- t.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		_ = t.srv.Close()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (t *Transport) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var in inMessage
		if err := wsjson.Read(r.Context(), conn, &in); err != nil {
			return
		}
		if in.ThreadID == "" {
			continue
		}
		t.mu.Lock()
		t.clients[in.ThreadID] = c
		t.mu.Unlock()

		inbound := transport.Inbound{ThreadID: in.ThreadID, Text: in.Text, ReplyText: in.ReplyText}
		if in.ReplyToID != "" {
			inbound.ReplyTo = &transport.MessageRef{ThreadID: in.ThreadID, MessageID: in.ReplyToID}
		}
		select {
		case t.inboundCh <- inbound:
		case <-r.Context().Done():
			return
		}
	}
}

// Poll returns the channel of normalized inbound messages across every
// connected client.
func (t *Transport) Poll(ctx context.Context) (<-chan transport.Inbound, error) {
	return t.inboundCh, nil
}

func (t *Transport) Send(ctx context.Context, threadID string, msg transport.RenderedMessage) (transport.MessageRef, error) {
	c := t.clientFor(threadID)
	if c == nil {
		return transport.MessageRef{}, fmt.Errorf("console: no connected client for thread %s", threadID)
	}
	id := uuid.NewString()
	if err := c.send(ctx, outMessage{Type: "send", ThreadID: threadID, MessageID: id, Text: msg.Text, HTML: msg.HTML}); err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ThreadID: threadID, MessageID: id}, nil
}

func (t *Transport) Edit(ctx context.Context, ref transport.MessageRef, msg transport.RenderedMessage) error {
	c := t.clientFor(ref.ThreadID)
	if c == nil {
		return fmt.Errorf("console: no connected client for thread %s", ref.ThreadID)
	}
	return c.send(ctx, outMessage{Type: "edit", ThreadID: ref.ThreadID, MessageID: ref.MessageID, Text: msg.Text, HTML: msg.HTML})
}

func (t *Transport) Delete(ctx context.Context, ref transport.MessageRef) error {
	c := t.clientFor(ref.ThreadID)
	if c == nil {
		return nil
	}
	return c.send(ctx, outMessage{Type: "delete", ThreadID: ref.ThreadID, MessageID: ref.MessageID})
}

func (t *Transport) clientFor(threadID string) *client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clients[threadID]
}
