package connector

import (
	"slices"
	"sync"
	"testing"
	"time"
)

func TestChatQueue_OrderPerChat(t *testing.T) {
	q := NewChatQueue()
	var mu sync.Mutex
	var got []int

	for i := range 50 {
		q.Submit("42", func() {
			if i == 0 {
				time.Sleep(20 * time.Millisecond)
			}
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.Wait()

	if len(got) != 50 || !slices.IsSorted(got) {
		t.Errorf("expected 0..49 in order, got %v", got)
	}
}

func TestChatQueue_ChatsRunConcurrently(t *testing.T) {
	q := NewChatQueue()
	release := make(chan struct{})
	done := make(chan struct{})

	q.Submit("slow", func() { <-release })
	q.Submit("fast", func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fast chat was blocked behind slow chat")
	}
	close(release)
	q.Wait()
}

func TestChatQueue_RestartsAfterDrain(t *testing.T) {
	q := NewChatQueue()
	calls := 0
	q.Submit("1", func() { calls++ })
	q.Wait()
	q.Submit("1", func() { calls++ })
	q.Wait()
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
