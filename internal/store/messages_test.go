package store

import (
	"sync"
	"testing"

	"happyd/internal/model"
)

func newSessionWithMessages(t *testing.T, s *Store, n int) model.Session {
	t.Helper()
	sess, err := s.GetOrCreateSession("tag1", nil, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := s.AddMessage(sess.ID, map[string]any{"i": i}, ""); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}
	return sess
}

func TestAddMessage_SeqStartsAtOneAndIncrements(t *testing.T) {
	s := newTestStore(t)
	sess := newSessionWithMessages(t, s, 0)

	for want := int64(1); want <= 3; want++ {
		msg, err := s.AddMessage(sess.ID, "m", "")
		if err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
		if msg.Seq != want {
			t.Fatalf("expected seq %d, got %d", want, msg.Seq)
		}
	}
}

func TestAddMessage_LocalIDIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	sess := newSessionWithMessages(t, s, 0)

	first, err := s.AddMessage(sess.ID, "original", "local-1")
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	// Retried delivery with different content: first message wins.
	second, err := s.AddMessage(sess.ID, "retried", "local-1")
	if err != nil {
		t.Fatalf("AddMessage retry: %v", err)
	}
	if second.ID != first.ID || second.Seq != first.Seq {
		t.Fatalf("retry must return the stored message: %+v vs %+v", first, second)
	}
	if second.Content != "original" {
		t.Fatalf("retry must keep the original content, got %v", second.Content)
	}

	msgs, err := s.GetMessagesAfter(sess.ID, 0, 0)
	if err != nil {
		t.Fatalf("GetMessagesAfter: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("exactly one seq may be allocated, got %d messages", len(msgs))
	}

	// The same local id in another session is unrelated.
	other, err := s.GetOrCreateSession("tag2", nil, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	msg, err := s.AddMessage(other.ID, "elsewhere", "local-1")
	if err != nil {
		t.Fatalf("AddMessage other session: %v", err)
	}
	if msg.Seq != 1 || msg.Content != "elsewhere" {
		t.Fatalf("local ids are per session: %+v", msg)
	}
}

func TestAddMessage_ConcurrentAppendsAreGapless(t *testing.T) {
	s := newTestStore(t)
	sess := newSessionWithMessages(t, s, 0)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.AddMessage(sess.ID, "m", ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("AddMessage: %v", err)
	}

	msgs, err := s.GetMessagesAfter(sess.ID, 0, n)
	if err != nil {
		t.Fatalf("GetMessagesAfter: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("expected %d messages, got %d", n, len(msgs))
	}
	for i, msg := range msgs {
		if msg.Seq != int64(i+1) {
			t.Fatalf("seq values must be exactly 1..%d, got %d at position %d", n, msg.Seq, i)
		}
	}
}

func TestGetMessages_BackwardPagination(t *testing.T) {
	s := newTestStore(t)
	sess := newSessionWithMessages(t, s, 3)

	page, err := s.GetMessages(sess.ID, 2, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 2 || page[1].Seq != 3 {
		t.Fatalf("expected seq [2 3], got %+v", seqsOf(page))
	}

	page, err = s.GetMessages(sess.ID, 2, 3)
	if err != nil {
		t.Fatalf("GetMessages beforeSeq: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 1 || page[1].Seq != 2 {
		t.Fatalf("expected seq [1 2], got %+v", seqsOf(page))
	}

	page, err = s.GetMessages(sess.ID, 2, 1)
	if err != nil {
		t.Fatalf("GetMessages exhausted: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty page, got %+v", seqsOf(page))
	}
}

func TestGetMessagesAfter_ForwardReads(t *testing.T) {
	s := newTestStore(t)
	sess := newSessionWithMessages(t, s, 5)

	msgs, err := s.GetMessagesAfter(sess.ID, 2, 2)
	if err != nil {
		t.Fatalf("GetMessagesAfter: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Seq != 3 || msgs[1].Seq != 4 {
		t.Fatalf("expected seq [3 4], got %+v", seqsOf(msgs))
	}

	msgs, err = s.GetMessagesAfter(sess.ID, 5, 0)
	if err != nil {
		t.Fatalf("GetMessagesAfter caught up: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages past the tip, got %+v", seqsOf(msgs))
	}
}

func TestDeleteSession_CascadesToOwnMessagesOnly(t *testing.T) {
	s := newTestStore(t)

	doomed := newSessionWithMessages(t, s, 3)
	survivor, err := s.GetOrCreateSession("tag2", nil, nil, "ns1")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	if _, err := s.AddMessage(survivor.ID, "keep", ""); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	removed, err := s.DeleteSession(doomed.ID, "ns1")
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if !removed {
		t.Fatalf("expected delete to succeed")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", doomed.ID).Scan(&count); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected cascade delete, %d messages left", count)
	}

	msgs, err := s.GetMessagesAfter(survivor.ID, 0, 0)
	if err != nil {
		t.Fatalf("GetMessagesAfter: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("other sessions' messages must survive, got %d", len(msgs))
	}
}

func seqsOf(msgs []model.Message) []int64 {
	seqs := make([]int64, len(msgs))
	for i, msg := range msgs {
		seqs[i] = msg.Seq
	}
	return seqs
}
