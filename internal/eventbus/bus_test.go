package eventbus

import (
	"testing"
	"time"

	"pkt.systems/idemy/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("sess-1")
	defer cancel()

	event := schema.CommandOutputEvent{CommandID: "cmd-1", Stream: schema.StreamStdout, Text: "hi"}
	bus.Publisher("sess-1").OnCommandOutput(event)

	select {
	case got := <-ch:
		if got.Type != EventCommandOutput {
			t.Fatalf("expected output event, got %v", got.Type)
		}
		if got.Output != event {
			t.Fatalf("unexpected payload: %+v", got.Output)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublishIsScopedToSession(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("sess-1")
	defer cancel()

	bus.Publisher("sess-2").OnFileChanged(schema.FileChangedEvent{Path: "/x", Op: schema.FileChangeWritten})
	select {
	case got := <-ch:
		t.Fatalf("unexpected event for other session: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishBlocksInsteadOfDropping(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	ch, cancel := bus.Subscribe("sess-1")
	defer cancel()
	pub := bus.Publisher("sess-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			pub.OnCommandOutput(schema.CommandOutputEvent{CommandID: "cmd", Text: string(rune('a' + i))})
		}
		pub.OnCommandExit(schema.CommandExitEvent{CommandID: "cmd"})
	}()

	var texts []string
	for len(texts) < 3 {
		select {
		case event := <-ch:
			texts = append(texts, event.Output.Text)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %v", texts)
		}
	}
	select {
	case event := <-ch:
		if event.Type != EventCommandExit {
			t.Fatalf("expected exit last, got %v", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for exit")
	}
	<-done
	if texts[0] != "a" || texts[1] != "b" || texts[2] != "c" {
		t.Fatalf("expected ordered delivery, got %v", texts)
	}
}

func TestCancelReleasesBlockedPublisher(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe("sess-1")
	pub := bus.Publisher("sess-1")
	pub.OnCommandOutput(schema.CommandOutputEvent{Text: "fills buffer"})

	done := make(chan struct{})
	go func() {
		pub.OnCommandOutput(schema.CommandOutputEvent{Text: "blocks"})
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publisher still blocked after cancel")
	}
}
