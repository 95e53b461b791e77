package mqtt

import "testing"

func TestRingBufferEmpty(t *testing.T) {
	rb := newRingBuffer(10)
	if rb.len() != 0 {
		t.Errorf("len: got %d, want 0", rb.len())
	}
	if msgs := rb.drainAll(); msgs != nil {
		t.Errorf("drainAll on empty: got %v, want nil", msgs)
	}
}

func TestRingBufferOrder(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{topic: "a"})
	rb.push(bufferedMsg{topic: "b"})
	rb.push(bufferedMsg{topic: "c"})

	msgs := rb.drainAll()
	if len(msgs) != 3 {
		t.Fatalf("len: got %d, want 3", len(msgs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if msgs[i].topic != want {
			t.Errorf("msg %d: got %q, want %q (oldest first)", i, msgs[i].topic, want)
		}
	}
	if rb.len() != 0 {
		t.Errorf("len after drain: got %d, want 0", rb.len())
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	rb := newRingBuffer(3)
	for _, topic := range []string{"a", "b", "c", "d", "e"} {
		rb.push(bufferedMsg{topic: topic})
	}

	if !rb.overflowed() {
		t.Error("overflowed should be true after dropping messages")
	}

	msgs := rb.drainAll()
	if len(msgs) != 3 {
		t.Fatalf("len: got %d, want 3", len(msgs))
	}
	for i, want := range []string{"c", "d", "e"} {
		if msgs[i].topic != want {
			t.Errorf("msg %d: got %q, want %q", i, msgs[i].topic, want)
		}
	}
	if rb.overflowed() {
		t.Error("overflow flag should reset on drain")
	}
}

func TestRingBufferReuseAfterDrain(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: "a"})
	rb.drainAll()

	rb.push(bufferedMsg{topic: "b"})
	rb.push(bufferedMsg{topic: "c"})
	msgs := rb.drainAll()
	if len(msgs) != 2 || msgs[0].topic != "b" || msgs[1].topic != "c" {
		t.Errorf("got %v", msgs)
	}
}
