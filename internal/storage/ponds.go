package storage

import (
	"path/filepath"
	"sync"
	"time"
)

// Pond status values reported to clients.
const (
	PondStatusActive      = "active"
	PondStatusMaintenance = "maintenance"
	PondStatusInactive    = "inactive"
)

type Pond struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PondStore struct {
	mu   sync.Mutex
	path string
}

func NewPondStore(dir string) *PondStore {
	return &PondStore{path: filepath.Join(dir, "ponds.json")}
}

func (s *PondStore) Create(ownerID int64, name, location string) (Pond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ponds, err := readCollection[Pond](s.path)
	if err != nil {
		return Pond{}, err
	}

	var nextID int64 = 1
	for _, p := range ponds {
		if p.ID >= nextID {
			nextID = p.ID + 1
		}
	}

	now := time.Now().UTC()
	pond := Pond{
		ID:        nextID,
		OwnerID:   ownerID,
		Name:      name,
		Location:  location,
		Status:    PondStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ponds = append(ponds, pond)
	if err := writeCollection(s.path, ponds); err != nil {
		return Pond{}, err
	}
	return pond, nil
}

func (s *PondStore) GetByID(id int64) (Pond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ponds, err := readCollection[Pond](s.path)
	if err != nil {
		return Pond{}, err
	}
	for _, p := range ponds {
		if p.ID == id {
			return p, nil
		}
	}
	return Pond{}, ErrNotFound
}

// List returns every pond when ownerID is nil, otherwise only the ponds
// owned by *ownerID.
func (s *PondStore) List(ownerID *int64) ([]Pond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ponds, err := readCollection[Pond](s.path)
	if err != nil {
		return nil, err
	}
	if ownerID == nil {
		return ponds, nil
	}
	owned := make([]Pond, 0, len(ponds))
	for _, p := range ponds {
		if p.OwnerID == *ownerID {
			owned = append(owned, p)
		}
	}
	return owned, nil
}

func (s *PondStore) Update(pond Pond) (Pond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ponds, err := readCollection[Pond](s.path)
	if err != nil {
		return Pond{}, err
	}
	for i, p := range ponds {
		if p.ID == pond.ID {
			pond.CreatedAt = p.CreatedAt
			pond.UpdatedAt = time.Now().UTC()
			ponds[i] = pond
			if err := writeCollection(s.path, ponds); err != nil {
				return Pond{}, err
			}
			return pond, nil
		}
	}
	return Pond{}, ErrNotFound
}

func (s *PondStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ponds, err := readCollection[Pond](s.path)
	if err != nil {
		return err
	}
	for i, p := range ponds {
		if p.ID == id {
			ponds = append(ponds[:i], ponds[i+1:]...)
			return writeCollection(s.path, ponds)
		}
	}
	return ErrNotFound
}

func (s *PondStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ponds, err := readCollection[Pond](s.path)
	if err != nil {
		return 0, err
	}
	return len(ponds), nil
}
