// Package chatctx maintains a bounded per-chat buffer of recently seen
// identifiers, backed by a JetStream key-value bucket.
package chatctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket is the key-value bucket holding per-chat context sequences.
const Bucket = "chat_context"

// promoteRetries bounds the optimistic-write loop under heavy contention
// on a single chat before giving up with ErrContended.
const promoteRetries = 5

// ErrContended is returned when a promote loses the revision race too many
// times in a row. The operation is safe to retry wholesale.
var ErrContended = errors.New("chatctx: too many concurrent updates")

// KV is the subset of jetstream.KeyValue the buffer needs.
type KV interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
}

// Buffer is a bounded, order-preserving recency buffer. The stored sequence
// keeps most-recently-promoted identifiers at the front and never exceeds
// the configured size.
type Buffer struct {
	kv   KV
	size int
}

// New creates a buffer over the given key-value store, keeping at most
// size identifiers per chat.
func New(kv KV, size int) *Buffer {
	return &Buffer{kv: kv, size: size}
}

// Peek returns the current sequence for the chat in randomized order.
// A chat with no recorded context yields an empty slice.
func (b *Buffer) Peek(ctx context.Context, chatID int64) ([]int64, error) {
	current, _, err := b.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(current), func(i, j int) {
		current[i], current[j] = current[j], current[i]
	})
	return current, nil
}

// Promote merges newly seen identifiers to the front of the chat's sequence,
// dropping any older occurrence of the same identifiers, and persists the
// first size entries as one whole-value write. It returns the merged
// sequence before truncation. An empty input behaves like Peek and writes
// nothing.
func (b *Buffer) Promote(ctx context.Context, chatID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return b.Peek(ctx, chatID)
	}

	incoming := dedupe(ids)
	member := make(map[int64]struct{}, len(incoming))
	for _, id := range incoming {
		member[id] = struct{}{}
	}

	for attempt := 0; attempt < promoteRetries; attempt++ {
		current, revision, err := b.load(ctx, chatID)
		if err != nil {
			return nil, err
		}

		merged := make([]int64, 0, len(incoming)+len(current))
		merged = append(merged, incoming...)
		for _, id := range current {
			if _, seen := member[id]; !seen {
				merged = append(merged, id)
			}
		}

		kept := merged
		if len(kept) > b.size {
			kept = kept[:b.size]
		}

		data, err := json.Marshal(kept)
		if err != nil {
			return nil, fmt.Errorf("marshal context %d: %w", chatID, err)
		}

		if revision == 0 {
			_, err = b.kv.Create(ctx, key(chatID), data)
		} else {
			_, err = b.kv.Update(ctx, key(chatID), data, revision)
		}
		if err == nil {
			return merged, nil
		}
		if !isConflict(err) {
			return nil, fmt.Errorf("write context %d: %w", chatID, err)
		}
		// lost the revision race to a concurrent promoter, re-read and retry
	}

	return nil, ErrContended
}

// load reads the stored sequence and its revision. A missing key yields an
// empty sequence with revision zero.
func (b *Buffer) load(ctx context.Context, chatID int64) ([]int64, uint64, error) {
	entry, err := b.kv.Get(ctx, key(chatID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read context %d: %w", chatID, err)
	}

	var current []int64
	if err := json.Unmarshal(entry.Value(), &current); err != nil {
		return nil, 0, fmt.Errorf("decode context %d: %w", chatID, err)
	}
	return current, entry.Revision(), nil
}

func key(chatID int64) string {
	return fmt.Sprintf("chat_context/%d", chatID)
}

// dedupe keeps the first occurrence of each identifier, preserving order.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// isConflict reports whether the write failed because another writer got
// there first: the key appeared between Get and Create, or the revision
// moved between Get and Update.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
