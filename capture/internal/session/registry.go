// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.

package internal_session

import (
	"sync"
	"time"

	internal_engine "github.com/capturekit/capture/internal/engine"
	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
)

// Registry is the completion registry: the single piece of shared mutable
// state between the controller's synchronous call flow and the engine's
// asynchronous completion signals.
//
// Chunk completions arrive out of band from the mark/finalize call sequence —
// they can be delayed past the finalize's settle window, or land while a later
// mark/finalize cycle for a different identifier is already in flight. Each
// finalize therefore registers a pending ticket keyed by identifier (or by
// sequence when the chunk is unnamed) BEFORE the command is issued, and every
// completion is matched against that recorded key, never against "whatever is
// open right now". An entry stays readable after its finalize returned absent,
// so a late completion still makes the chunk retrievable.
type Registry struct {
	logger commons.Logger

	mu    sync.Mutex
	byID  map[string]*entry
	bySeq map[uint64]*entry
	// completed holds entries in completion order; the LIFO fallback for
	// identifier-less retrieval reads it from the back.
	completed []*entry

	// evictOnRetrieve drops an entry once it has been handed out; platforms
	// without it retain entries until superseded by a same-identifier finalize.
	evictOnRetrieve bool
}

type entryState int

const (
	entryPending entryState = iota
	entryCompleted
)

// entry is a single chunk's resolution record, created at finalize time.
type entry struct {
	identifier  *string
	sequence    uint64
	state       entryState
	file        *internal_type.RecordingFile
	completedAt time.Time
}

// Ticket is the pending-request handle a finalize call holds. Resolve only
// honors a ticket whose recorded sequence still matches its entry, so an
// overlapping cycle that superseded the key cannot have its completion stolen.
type Ticket struct {
	entry    *entry
	sequence uint64
}

func NewRegistry(logger commons.Logger, evictOnRetrieve bool) *Registry {
	return &Registry{
		logger:          logger,
		byID:            make(map[string]*entry),
		bySeq:           make(map[uint64]*entry),
		evictOnRetrieve: evictOnRetrieve,
	}
}

// Expect registers the (identifier, sequence) pair a finalize call is about to
// wait on. A previous entry under the same identifier is superseded: single
// writer per key.
func (r *Registry) Expect(identifier *string, sequence uint64) *Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &entry{
		identifier: identifier,
		sequence:   sequence,
		state:      entryPending,
	}

	if identifier != nil {
		if old, ok := r.byID[*identifier]; ok {
			r.logger.Debugf("superseding registry entry %q (seq %d) with seq %d",
				*identifier, old.sequence, sequence)
			r.remove(old)
		}
		r.byID[*identifier] = e
	}
	r.bySeq[sequence] = e

	return &Ticket{entry: e, sequence: sequence}
}

// Admit merges an asynchronous completion signal into the registry. Signals
// with an identifier resolve against the identifier key; unnamed signals
// resolve against the controller-assigned sequence. Signals with no matching
// pending entry belong to discarded or superseded chunks and are dropped.
func (r *Registry) Admit(c internal_engine.ChunkCompletion) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var e *entry
	if c.Identifier != nil {
		e = r.byID[*c.Identifier]
		// The engine echoes the controller-assigned (identifier, sequence)
		// pair, so a sequence mismatch means the completion belongs to a
		// superseded chunk under a reused identifier. Admitting it would fill
		// the fresh ticket with the stale chunk's file and shadow the real
		// completion as a duplicate.
		if e != nil && e.sequence != c.Sequence {
			r.logger.Warnf("dropping stale completion for %q: carries seq %d, current is %d",
				*c.Identifier, c.Sequence, e.sequence)
			return
		}
	} else {
		e = r.bySeq[c.Sequence]
	}

	if e == nil {
		r.logger.Debugf("dropping completion for discarded or unknown chunk (seq %d)", c.Sequence)
		return
	}
	if e.state == entryCompleted {
		r.logger.Warnf("duplicate completion for seq %d ignored", e.sequence)
		return
	}

	file := c.File
	e.file = &file
	e.state = entryCompleted
	e.completedAt = c.ReportedAt
	if e.completedAt.IsZero() {
		e.completedAt = time.Now()
	}
	r.completed = append(r.completed, e)
}

// Resolve is the finalize-side, non-blocking read of a ticket after the settle
// wait. Returns nil when the completion has not arrived (the chunk stays
// retrievable later if it eventually does).
func (r *Registry) Resolve(t *Ticket) *internal_type.RecordingFile {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t == nil || t.entry == nil {
		return nil
	}
	// A superseded entry was unlinked but the ticket still points at it; its
	// state can never advance, and a reused sequence must not leak across.
	if t.entry.sequence != t.sequence || t.entry.state != entryCompleted {
		return nil
	}
	file := *t.entry.file
	return &file
}

// Lookup is the retrieval-side read. With an identifier it returns that exact
// chunk's file or nil — never a file from a differently-identified chunk, even
// if a newer unrelated chunk completed afterwards. Without an identifier it
// returns the most recently completed chunk (LIFO).
func (r *Registry) Lookup(identifier *string) *internal_type.RecordingFile {
	r.mu.Lock()
	defer r.mu.Unlock()

	var e *entry
	if identifier != nil {
		candidate, ok := r.byID[*identifier]
		if !ok || candidate.state != entryCompleted {
			return nil
		}
		e = candidate
	} else {
		if len(r.completed) == 0 {
			return nil
		}
		e = r.completed[len(r.completed)-1]
	}

	file := *e.file
	if r.evictOnRetrieve {
		r.remove(e)
	}
	return &file
}

// remove unlinks an entry from every index. Caller holds r.mu.
func (r *Registry) remove(e *entry) {
	if e.identifier != nil {
		if cur, ok := r.byID[*e.identifier]; ok && cur == e {
			delete(r.byID, *e.identifier)
		}
	}
	if cur, ok := r.bySeq[e.sequence]; ok && cur == e {
		delete(r.bySeq, e.sequence)
	}
	for i, candidate := range r.completed {
		if candidate == e {
			r.completed = append(r.completed[:i], r.completed[i+1:]...)
			break
		}
	}
}
