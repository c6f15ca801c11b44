// Package store is an in-memory stand-in for a real conversation/artifact
// persistence layer — explicitly a Non-goal collaborator (spec §1/§9):
// it exists so the HTTP surface is runnable end-to-end without a
// database, and carries no migration tooling or durability guarantees.
//
// Grounded on the teacher's internal/plan.PlanStore: a sync.RWMutex-guarded
// map keyed by an opaque session/conversation id, defensive copies on
// both read and write so callers can never mutate stored state through a
// returned slice.
package store

import (
	"sync"

	"github.com/seqthink/engine/internal/artifact"
	"github.com/seqthink/engine/internal/conversation"
)

// Conversation is the persisted state for one conversation_id: its
// message history and the artifacts produced so far.
type Conversation struct {
	History   []conversation.Message
	Artifacts []artifact.Artifact
}

// Store holds per-conversation state in memory. Thread-safe via
// sync.RWMutex, matching PlanStore's locking discipline exactly.
type Store struct {
	mu   sync.RWMutex
	byID map[string]Conversation
}

// New returns an empty Store.
func New() *Store {
	return &Store{byID: make(map[string]Conversation)}
}

// Get returns a defensive copy of the conversation state for id, and
// false if no state has ever been recorded for it.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return Conversation{}, false
	}
	return copyConversation(c), true
}

// Append adds newMessages to id's history and newArtifacts to its
// artifact list, creating the conversation if it does not yet exist.
func (s *Store) Append(id string, newMessages []conversation.Message, newArtifacts []artifact.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byID[id]
	c.History = append(append([]conversation.Message{}, c.History...), newMessages...)
	c.Artifacts = append(append([]artifact.Artifact{}, c.Artifacts...), newArtifacts...)
	s.byID[id] = c
}

// Delete removes all state for id. Safe to call on an id with no state.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func copyConversation(c Conversation) Conversation {
	out := Conversation{
		History:   make([]conversation.Message, len(c.History)),
		Artifacts: make([]artifact.Artifact, len(c.Artifacts)),
	}
	copy(out.History, c.History)
	copy(out.Artifacts, c.Artifacts)
	return out
}
