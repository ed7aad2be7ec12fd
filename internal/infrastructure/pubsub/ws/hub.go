// Package ws implements the push channel of the matching server as a hub of
// websocket connections keyed by master key id.
package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The channel is addressed by master key id, not by origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// party is one registered connection. Writes are serialized by a dedicated
// mutex since gorilla connections support a single concurrent writer.
type party struct {
	conn     *websocket.Conn
	writeMtx sync.Mutex
}

func (p *party) send(message interface{}) error {
	p.writeMtx.Lock()
	defer p.writeMtx.Unlock()
	return p.conn.WriteJSON(message)
}

type hub struct {
	lock    sync.RWMutex
	parties map[string]*party
}

// NewHub returns an empty connection hub implementing ports.Notifier.
func NewHub() *hub {
	return &hub{
		parties: make(map[string]*party),
	}
}

// Upgrade turns the incoming request into a websocket connection registered
// under masterKeyID. A reconnecting party replaces its previous connection.
func (h *hub) Upgrade(
	w http.ResponseWriter, r *http.Request, masterKeyID string,
) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	registered := &party{conn: conn}

	h.lock.Lock()
	if prev, ok := h.parties[masterKeyID]; ok {
		prev.conn.Close()
	}
	h.parties[masterKeyID] = registered
	h.lock.Unlock()

	log.WithField("masterKeyId", masterKeyID).Debug("party connected")

	// Drain the connection so close frames are processed. Parties never send
	// application data over the socket, everything inbound goes through REST.
	go func() {
		defer h.remove(masterKeyID, registered)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Notify pushes one message to the identified party. Delivery is best-effort:
// a disconnected or failing recipient just loses the message.
func (h *hub) Notify(masterKeyID string, message interface{}) {
	h.lock.RLock()
	registered, ok := h.parties[masterKeyID]
	h.lock.RUnlock()
	if !ok {
		log.WithField("masterKeyId", masterKeyID).
			Warn("dropping push message for disconnected party")
		return
	}

	if err := registered.send(message); err != nil {
		log.WithError(err).WithField("masterKeyId", masterKeyID).
			Warn("failed to push message")
	}
}

func (h *hub) remove(masterKeyID string, registered *party) {
	registered.conn.Close()

	h.lock.Lock()
	defer h.lock.Unlock()
	// Only forget the mapping if it still points to this connection: the
	// party may have reconnected in the meantime.
	if h.parties[masterKeyID] == registered {
		delete(h.parties, masterKeyID)
		log.WithField("masterKeyId", masterKeyID).Debug("party disconnected")
	}
}

var _ ports.Notifier = (*hub)(nil)
