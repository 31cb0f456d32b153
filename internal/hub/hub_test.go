package hub

import "testing"

func TestBroadcastMatchesSubscription(t *testing.T) {
	h := New()
	client := &Client{ID: "c1", Send: make(chan []byte, 1)}
	h.Register(client)
	h.UpdateSubscription(client, Subscription{TenantID: "t1", BranchID: "b1"})

	h.Broadcast([]byte("event"), Subscription{TenantID: "t1", BranchID: "b1", QueueID: "q1"})

	select {
	case msg := <-client.Send:
		if string(msg) != "event" {
			t.Fatalf("unexpected payload: %s", msg)
		}
	default:
		t.Fatal("expected message delivered")
	}
}

func TestBroadcastSkipsOtherTenant(t *testing.T) {
	h := New()
	client := &Client{ID: "c1", Send: make(chan []byte, 1)}
	h.Register(client)
	h.UpdateSubscription(client, Subscription{TenantID: "t1"})

	h.Broadcast([]byte("event"), Subscription{TenantID: "t2", BranchID: "b1"})

	select {
	case <-client.Send:
		t.Fatal("client of another tenant must not receive the event")
	default:
	}
}

func TestBroadcastQueueFilter(t *testing.T) {
	h := New()
	client := &Client{ID: "c1", Send: make(chan []byte, 1)}
	h.Register(client)
	h.UpdateSubscription(client, Subscription{TenantID: "t1", BranchID: "b1", QueueID: "q1"})

	h.Broadcast([]byte("other-queue"), Subscription{TenantID: "t1", BranchID: "b1", QueueID: "q2"})
	select {
	case <-client.Send:
		t.Fatal("queue-filtered client must not receive other queues")
	default:
	}

	h.Broadcast([]byte("my-queue"), Subscription{TenantID: "t1", BranchID: "b1", QueueID: "q1"})
	select {
	case msg := <-client.Send:
		if string(msg) != "my-queue" {
			t.Fatalf("unexpected payload: %s", msg)
		}
	default:
		t.Fatal("expected message for subscribed queue")
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := New()
	client := &Client{ID: "c1", Send: make(chan []byte, 1)}
	h.Register(client)
	h.UpdateSubscription(client, Subscription{TenantID: "t1"})

	h.Broadcast([]byte("first"), Subscription{TenantID: "t1"})
	h.Broadcast([]byte("second"), Subscription{TenantID: "t1"})

	msg := <-client.Send
	if string(msg) != "first" {
		t.Fatalf("unexpected payload: %s", msg)
	}
	select {
	case <-client.Send:
		t.Fatal("second message should have been dropped")
	default:
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","tenant_id":"t1","branch_id":"b1","queue_id":"q1"}`))
	if !ok {
		t.Fatal("expected valid subscribe message")
	}
	if msg.TenantID != "t1" || msg.QueueID != "q1" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if _, ok := ParseSubscribe([]byte(`{"action":"dance"}`)); ok {
		t.Fatal("unknown action must be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatal("invalid JSON must be rejected")
	}
}
