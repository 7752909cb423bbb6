// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMailbox_Empty(t *testing.T) {
	var m Mailbox
	if _, ok := m.Take(); ok {
		t.Error("empty mailbox returned a value")
	}
}

func TestMailbox_PutTake(t *testing.T) {
	var m Mailbox
	if m.Put("a") {
		t.Error("first Put reported a replacement")
	}
	got, ok := m.Take()
	if !ok || got != "a" {
		t.Errorf("Take() = %q, %v", got, ok)
	}
	if _, ok := m.Take(); ok {
		t.Error("Take() after Take() returned a value")
	}
}

func TestMailbox_LastWriteWins(t *testing.T) {
	var m Mailbox
	m.Put("one")
	if !m.Put("two") {
		t.Error("second Put did not report a replacement")
	}
	if !m.Put("three") {
		t.Error("third Put did not report a replacement")
	}

	got, _ := m.Take()
	if got != "three" {
		t.Errorf("Take() = %q, want three", got)
	}
}

func TestMailbox_EmptyStringIsAValue(t *testing.T) {
	var m Mailbox
	m.Put("")
	if _, ok := m.Take(); !ok {
		t.Error("empty payload was not delivered")
	}
}

func TestMailbox_Concurrent(t *testing.T) {
	var m Mailbox
	var wg sync.WaitGroup
	var taken int
	var replaced atomic.Uint64

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if v, ok := m.Take(); ok {
				if !strings.HasPrefix(v, "msg") {
					t.Errorf("torn value %q", v)
				}
				taken++
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if m.Put("msg") {
					replaced.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	time.Sleep(5 * time.Millisecond)
	close(stop)
	<-done

	if _, ok := m.Take(); ok {
		taken++
	}
	if uint64(taken)+replaced.Load() != 1600 {
		t.Errorf("taken %d + replaced %d != 1600", taken, replaced.Load())
	}
}
