package memory_test

import (
	"testing"

	"github.com/pichlex/debitor/pkg/adapters/memory"
	"github.com/pichlex/debitor/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunCheckpointStoreContract(t, store)
}
