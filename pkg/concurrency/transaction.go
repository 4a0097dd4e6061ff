// Package concurrency defines the transaction handle threaded through index
// operations. The storage core treats it as opaque.
package concurrency

import (
	"sync"

	"github.com/google/uuid"
)

// Each client has at most one transaction running at a given time, so the
// clientId is a unique identifier for both the Transaction and its client.
type Transaction struct {
	clientId uuid.UUID
	mtx      sync.RWMutex
}

// NewTransaction returns a transaction handle with a fresh client id.
func NewTransaction() *Transaction {
	return &Transaction{clientId: uuid.New()}
}

func (t *Transaction) WLock() {
	t.mtx.Lock()
}

func (t *Transaction) WUnlock() {
	t.mtx.Unlock()
}

func (t *Transaction) RLock() {
	t.mtx.RLock()
}

func (t *Transaction) RUnlock() {
	t.mtx.RUnlock()
}

func (t *Transaction) GetClientID() (clientId uuid.UUID) {
	return t.clientId
}
