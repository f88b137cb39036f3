package badger

import "errors"

// Stores bundles the Badger-backed stores sharing one backend.
type Stores struct {
	Backend   *Backend
	Graph     *GraphStore
	Vectors   *VectorStore
	Documents *DocumentStore
}

// NewStores creates every store on top of an open backend.
func NewStores(backend *Backend) *Stores {
	return &Stores{
		Backend:   backend,
		Graph:     NewGraphStore(backend),
		Vectors:   NewVectorStore(backend),
		Documents: NewDocumentStore(backend),
	}
}

// OpenStores opens (or creates) a database at path and builds every store on it.
func OpenStores(path string) (*Stores, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return NewStores(backend), nil
}

// NewMemoryStores creates in-memory stores for testing.
// Caller must close the returned Stores when done.
func NewMemoryStores() (*Stores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewStores(backend), nil
}

// Close closes every store and then the backend.
func (s *Stores) Close() error {
	return errors.Join(
		s.Graph.Close(),
		s.Vectors.Close(),
		s.Documents.Close(),
		s.Backend.Close(),
	)
}
