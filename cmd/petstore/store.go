package main

import (
	"context"
	"sort"
	"sync"

	enforcerlambda "github.com/Gi60s/openapi-enforcer-lambda"
	"github.com/pkg/errors"
)

// Pet is the wire shape served by the store.
type Pet struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag,omitempty"`
}

// Store is an in-memory pet table backing the example controllers.
type Store struct {
	mu     sync.Mutex
	pets   map[int]Pet
	nextID int
}

// NewStore returns a store seeded with a couple of pets so the example has
// something to serve.
func NewStore() *Store {
	_inst := &Store{pets: map[int]Pet{}, nextID: 1}
	_inst.insert("Rex", "dog")
	_inst.insert("Mittens", "cat")
	return _inst
}

// Controllers exposes the store as the controller table the document's
// x-controller metadata points at.
func (s *Store) Controllers() enforcerlambda.Controllers {
	return enforcerlambda.Controllers{
		"pets": {
			"listPets":  s.list,
			"createPet": s.create,
			"getPet":    s.get,
			"deletePet": s.remove,
		},
	}
}

func (s *Store) insert(name, tag string) Pet {
	s.mu.Lock()
	defer s.mu.Unlock()
	pet := Pet{ID: s.nextID, Name: name, Tag: tag}
	s.nextID++
	s.pets[pet.ID] = pet
	return pet
}

func (s *Store) list(_ context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
	tag, filtered := req.Query["tag"].(string)
	limit, limited := req.Query["limit"].(int)

	s.mu.Lock()
	pets := make([]Pet, 0, len(s.pets))
	for _, pet := range s.pets {
		if filtered && pet.Tag != tag {
			continue
		}
		pets = append(pets, pet)
	}
	s.mu.Unlock()

	sort.Slice(pets, func(i, j int) bool { return pets[i].ID < pets[j].ID })
	if limited && limit >= 0 && limit < len(pets) {
		pets = pets[:limit]
	}

	res.Set("content-type", "application/json").Send(pets)
	return nil
}

func (s *Store) create(_ context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
	fields, ok := req.Body.(map[string]any)
	if !ok {
		return errors.Errorf("unexpected request body shape %T", req.Body)
	}
	name, _ := fields["name"].(string)
	tag, _ := fields["tag"].(string)

	pet := s.insert(name, tag)
	res.Status(201).Set("content-type", "application/json").Send(pet)
	return nil
}

func (s *Store) get(_ context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
	id, _ := req.PathParams["petId"].(int)

	s.mu.Lock()
	pet, ok := s.pets[id]
	s.mu.Unlock()

	if !ok {
		res.Status(404).Set("content-type", "text/plain").Send("pet not found")
		return nil
	}
	res.Set("content-type", "application/json").Send(pet)
	return nil
}

func (s *Store) remove(_ context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
	id, _ := req.PathParams["petId"].(int)

	s.mu.Lock()
	delete(s.pets, id)
	s.mu.Unlock()

	res.Status(204).Send()
	return nil
}
