package object

import (
	"fmt"
	"sort"
	"sync"

	"github.com/odvcencio/kbgit/pkg/failure"
)

// Store is an in-memory, append-only, content-addressed object store.
// Every write is insert-if-absent: writing an object whose hash is already
// present keeps the existing copy and stores nothing new.
//
// Durability is not the store's concern; see Records and Load for moving its
// contents in and out.
type Store struct {
	mu      sync.RWMutex
	objects map[Hash]stored
}

type stored struct {
	objType ObjectType
	data    []byte
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{objects: make(map[Hash]stored)}
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[h]
	return ok
}

// Write stores an object and returns its content hash.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h, _, err := s.write(objType, data)
	return h, err
}

// write reports whether the object was newly inserted.
func (s *Store) write(objType ObjectType, data []byte) (Hash, bool, error) {
	switch objType {
	case TypeBlob, TypeTree, TypeCommit:
	default:
		return "", false, failure.Errorf(failure.Validation, "object write: unsupported type %q", objType)
	}
	h := HashObject(objType, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[h]; ok {
		return h, false, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[h] = stored{objType: objType, data: buf}
	return h, true, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	s.mu.RLock()
	obj, ok := s.objects[h]
	s.mu.RUnlock()
	if !ok {
		return "", nil, failure.Errorf(failure.NotFound, "object %s not found", h)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return obj.objType, out, nil
}

// TypeOf returns the type of the object named by h.
func (s *Store) TypeOf(h Hash) (ObjectType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[h]
	if !ok {
		return "", failure.Errorf(failure.NotFound, "object %s not found", h)
	}
	return obj.objType, nil
}

// Delete removes h from the store. Deleting an absent object is a no-op.
func (s *Store) Delete(h Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, h)
}

// Count returns the number of stored objects of the given type.
func (s *Store) Count(objType ObjectType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, obj := range s.objects {
		if obj.objType == objType {
			n++
		}
	}
	return n
}

// Hashes returns the sorted hashes of all stored objects of the given type.
func (s *Store) Hashes(objType ObjectType) []Hash {
	s.mu.RLock()
	out := make([]Hash, 0, len(s.objects))
	for h, obj := range s.objects {
		if obj.objType == objType {
			out = append(out, h)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Records returns every stored object sorted by hash.
func (s *Store) Records() []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.objects))
	for h, obj := range s.objects {
		data := make([]byte, len(obj.data))
		copy(data, obj.data)
		out = append(out, Record{Hash: h, Type: obj.objType, Data: data})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}

// WriteRecord verifies that rec.Data hashes to rec.Hash and stores it. It
// reports whether the object was new.
func (s *Store) WriteRecord(rec Record) (bool, error) {
	computed := HashObject(rec.Type, rec.Data)
	if rec.Hash != "" && computed != rec.Hash {
		return false, failure.Errorf(failure.Corrupt, "object hash mismatch: expected %s, got %s", rec.Hash, computed)
	}
	_, inserted, err := s.write(rec.Type, rec.Data)
	return inserted, err
}

// Load inserts every record, verifying hashes.
func (s *Store) Load(records []Record) error {
	for _, rec := range records {
		if _, err := s.WriteRecord(rec); err != nil {
			return fmt.Errorf("load object %s: %w", rec.Hash, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree validates, serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	if err := ValidateTree(tr); err != nil {
		return "", err
	}
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit validates, serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	if err := ValidateCommit(c); err != nil {
		return "", err
	}
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		if failure.Is(err, failure.NotFound) {
			return nil, failure.Errorf(failure.NotFound, "%s %s not found", want, h)
		}
		return nil, err
	}
	if objType != want {
		return nil, failure.Errorf(failure.NotFound, "object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}
