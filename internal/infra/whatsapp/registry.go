// Package whatsapp implementa o ciclo de vida das conexões WhatsApp deste
// servidor: o supervisor de dispositivos, o gerenciador de conexão por
// dispositivo e o fluxo de pareamento.
package whatsapp

import (
	"sync"

	"github.com/google/uuid"
)

// Registry mantém as conexões vivas deste servidor, indexadas por
// dispositivo. Somente o supervisor insere e remove entradas.
type Registry struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection
}

// NewRegistry cria um registro vazio
func NewRegistry() *Registry {
	return &Registry{connections: make(map[uuid.UUID]*Connection)}
}

// Put registra a conexão de um dispositivo
func (r *Registry) Put(deviceID uuid.UUID, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[deviceID] = conn
}

// Get retorna a conexão de um dispositivo, se existir
func (r *Registry) Get(deviceID uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[deviceID]
	return conn, ok
}

// Remove retira a conexão do registro e a retorna
func (r *Registry) Remove(deviceID uuid.UUID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.connections[deviceID]
	if ok {
		delete(r.connections, deviceID)
	}
	return conn, ok
}

// Len retorna a quantidade de conexões registradas
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// ActiveCount conta conexões com websocket aberto
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, conn := range r.connections {
		if conn.IsOpen() {
			n++
		}
	}
	return n
}

// Each executa fn para cada conexão registrada
func (r *Registry) Each(fn func(deviceID uuid.UUID, conn *Connection)) {
	r.mu.RLock()
	snapshot := make(map[uuid.UUID]*Connection, len(r.connections))
	for id, conn := range r.connections {
		snapshot[id] = conn
	}
	r.mu.RUnlock()

	for id, conn := range snapshot {
		fn(id, conn)
	}
}
