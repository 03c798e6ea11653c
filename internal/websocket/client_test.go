// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package websocket

import "testing"

func TestEnqueueFrameKeepsNewest(t *testing.T) {
	t.Parallel()

	c := fakeClient(nil, "")
	for range sendBuffer {
		if !c.Enqueue(Message{Type: MessageTypeChat}) {
			t.Fatal("Enqueue() = false before the buffer filled")
		}
	}
	if c.Enqueue(Message{Type: MessageTypeChat}) {
		t.Error("Enqueue() on a full buffer = true")
	}

	const frames = 80
	for seq := 1; seq <= frames; seq++ {
		if !c.EnqueueFrame(Message{Type: MessageTypeFrame, Data: seq}) {
			t.Fatalf("EnqueueFrame(%d) = false", seq)
		}
	}

	select {
	case <-c.frameReady:
	default:
		t.Fatal("frameReady not signalled")
	}
	msg, ok := c.takeFrame()
	if !ok {
		t.Fatal("takeFrame() found no frame")
	}
	if msg.Data != frames {
		t.Errorf("pending frame = %v, want %d", msg.Data, frames)
	}
	if _, ok := c.takeFrame(); ok {
		t.Error("takeFrame() returned a frame twice")
	}
}

func TestEnqueueFrameAfterClose(t *testing.T) {
	t.Parallel()

	c := fakeClient(nil, "")
	c.closeSend()
	if c.EnqueueFrame(Message{Type: MessageTypeFrame}) {
		t.Error("EnqueueFrame() after close = true")
	}
}
