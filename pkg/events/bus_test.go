package events

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPublishOrderAndTopicIsolation(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(NodeSelected, func(e Event) { got = append(got, "first:"+e.Payload.(string)) })
	b.Subscribe(NodeSelected, func(e Event) { got = append(got, "second:"+e.Payload.(string)) })
	b.Subscribe(NodeHovered, func(e Event) { got = append(got, "hover") })

	b.Publish(NodeSelected, "alice")

	if len(got) != 2 || got[0] != "first:alice" || got[1] != "second:alice" {
		t.Fatalf("deliveries = %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	var calls int
	sub := b.Subscribe(ZoomChanged, func(Event) { calls++ })
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Publish(ZoomChanged, 2.0)

	if calls != 0 {
		t.Errorf("unsubscribed handler called %d times", calls)
	}
	if b.Count(ZoomChanged) != 0 {
		t.Errorf("count = %d", b.Count(ZoomChanged))
	}
}

func TestPanicIsContained(t *testing.T) {
	b := NewBus()
	var after bool
	b.Subscribe(GameChanged, func(Event) { panic("boom") })
	b.Subscribe(GameChanged, func(Event) { after = true })

	b.Publish(GameChanged, nil)

	if !after {
		t.Error("panic stopped delivery to later handlers")
	}
}

func TestCloseTearsDown(t *testing.T) {
	b := NewBus()
	var calls int
	b.Subscribe(ViewChanged, func(Event) { calls++ })
	b.Close()
	b.Publish(ViewChanged, nil)
	b.Subscribe(ViewChanged, func(Event) { calls++ })
	b.Publish(ViewChanged, nil)

	if calls != 0 {
		t.Errorf("closed bus delivered %d events", calls)
	}
}

func TestHandlerMaySubscribeDuringPublish(t *testing.T) {
	b := NewBus()
	b.Subscribe(MemorySaved, func(Event) {
		b.Subscribe(MemorySaved, func(Event) {})
	})
	b.Publish(MemorySaved, nil)
	if b.Count(MemorySaved) != 2 {
		t.Errorf("count = %d, want 2", b.Count(MemorySaved))
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := NewBus()
	var n atomic.Int64
	b.Subscribe(GraphRebuilt, func(Event) { n.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(GraphRebuilt, j)
			}
		}()
	}
	wg.Wait()
	if n.Load() != 800 {
		t.Errorf("deliveries = %d, want 800", n.Load())
	}
}
