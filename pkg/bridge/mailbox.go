// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import "sync"

// Mailbox holds at most one pending outbound payload.
//
// Put is called from the bus delivery goroutine and Take from the bridge
// loop. A Put before the previous value was taken replaces it.
type Mailbox struct {
	mu    sync.Mutex
	value string
	full  bool
}

// Put stores text, replacing any value not yet taken. It reports whether a
// value was replaced.
func (m *Mailbox) Put(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := m.full
	m.value = text
	m.full = true
	return replaced
}

// Take returns the pending value and clears the slot.
func (m *Mailbox) Take() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.full {
		return "", false
	}
	text := m.value
	m.value = ""
	m.full = false
	return text, true
}
