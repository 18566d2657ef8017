package store

import (
	"context"
	"errors"
	"testing"

	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
)

func TestMemoryStoreTurnSeq(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sess := &domain.ChatSession{ChildID: 1}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// 空会话从 1 开始
	seq, err := s.NextTurnSeq(ctx, sess.ID)
	if err != nil || seq != 1 {
		t.Fatalf("NextTurnSeq = %d, %v; want 1", seq, err)
	}

	// 连续写入三轮，seq 严格递增无空洞
	for i := 1; i <= 3; i++ {
		seq, err := s.NextTurnSeq(ctx, sess.ID)
		if err != nil {
			t.Fatalf("NextTurnSeq: %v", err)
		}
		if seq != i {
			t.Fatalf("seq = %d, want %d", seq, i)
		}
		if err := s.SaveTurn(ctx, &domain.Turn{SessionID: sess.ID, Seq: seq}); err != nil {
			t.Fatalf("SaveTurn: %v", err)
		}
	}

	turns, err := s.ListTurns(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	for i, turn := range turns {
		if turn.Seq != i+1 {
			t.Fatalf("turn %d has seq %d", i, turn.Seq)
		}
	}

	n, err := s.CountTurns(ctx, sess.ID)
	if err != nil || n != 3 {
		t.Fatalf("CountTurns = %d, %v", n, err)
	}

	if has, err := s.SessionHasRisk(ctx, sess.ID); err != nil || has {
		t.Fatalf("SessionHasRisk = %v, %v; want false", has, err)
	}
	_ = s.SaveTurn(ctx, &domain.Turn{SessionID: sess.ID, Seq: 4, RiskFlag: true, RiskSource: domain.RiskSourceInput})
	if has, err := s.SessionHasRisk(ctx, sess.ID); err != nil || !has {
		t.Fatalf("SessionHasRisk = %v, %v; want true", has, err)
	}
}

func TestMemoryStoreDeviceUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	d := &domain.Device{DeviceSN: "SN001", BoundChildID: 1, ToyName: "小悠"}
	if err := s.UpsertDevice(ctx, d); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	firstID := d.ID

	// 同 SN 再次写入只更新，不新建
	d2 := &domain.Device{DeviceSN: "SN001", BoundChildID: 2, ToyName: "豆豆"}
	if err := s.UpsertDevice(ctx, d2); err != nil {
		t.Fatalf("UpsertDevice again: %v", err)
	}
	if d2.ID != firstID {
		t.Fatalf("upsert created a new device: %d != %d", d2.ID, firstID)
	}

	got, err := s.FindDeviceBySN(ctx, "SN001")
	if err != nil {
		t.Fatalf("FindDeviceBySN: %v", err)
	}
	if got.BoundChildID != 2 || got.ToyName != "豆豆" {
		t.Fatalf("device not updated: %+v", got)
	}

	if err := s.TouchDeviceLastSeen(ctx, "SN001", 12345); err != nil {
		t.Fatalf("TouchDeviceLastSeen: %v", err)
	}
	got, _ = s.FindDeviceBySN(ctx, "SN001")
	if got.LastSeenAt != 12345 {
		t.Fatalf("last_seen_at = %d", got.LastSeenAt)
	}

	if err := s.TouchDeviceLastSeen(ctx, "SN-MISSING", 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetSession(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first := &domain.ChatSession{ChildID: 7}
	second := &domain.ChatSession{ChildID: 7}
	_ = s.CreateSession(ctx, first)
	_ = s.CreateSession(ctx, second)

	sessions, err := s.ListSessionsByChild(ctx, 7)
	if err != nil || len(sessions) != 2 {
		t.Fatalf("ListSessionsByChild = %v, %v", sessions, err)
	}
	// 最新的排在前面
	if sessions[0].ID != second.ID {
		t.Fatalf("newest session must come first, got %d", sessions[0].ID)
	}

	if err := s.EndSession(ctx, first.ID, "今天的聊天", 999); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	got, _ := s.GetSession(ctx, first.ID)
	if got.Title != "今天的聊天" || got.EndedAt != 999 {
		t.Fatalf("session not ended: %+v", got)
	}

	if err := s.EndSession(ctx, 12345, "x", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreParentsAndChildren(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := &domain.Parent{Email: "mom@example.com"}
	if err := s.CreateParent(ctx, p); err != nil {
		t.Fatalf("CreateParent: %v", err)
	}
	got, err := s.FindParentByEmail(ctx, "mom@example.com")
	if err != nil || got.ID != p.ID {
		t.Fatalf("FindParentByEmail = %v, %v", got, err)
	}
	if _, err := s.FindParentByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c := &domain.Child{ParentID: p.ID, Name: "朵朵", Age: 5, Interests: "画画,唱歌"}
	if err := s.CreateChild(ctx, c); err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	c.Age = 6
	if err := s.UpdateChild(ctx, c); err != nil {
		t.Fatalf("UpdateChild: %v", err)
	}
	gotChild, err := s.FindChildByID(ctx, c.ID)
	if err != nil || gotChild.Age != 6 {
		t.Fatalf("child not updated: %+v, %v", gotChild, err)
	}
}
