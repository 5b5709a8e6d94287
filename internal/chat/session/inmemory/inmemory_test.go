package inmemory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/insightflow/insightflow/internal/chat/session"
)

func TestAppendAndTrim(t *testing.T) {
	st := New(4, time.Hour)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		turn := session.Turn{Role: "user", Content: fmt.Sprintf("msg %d", i), At: time.Now()}
		if err := st.AppendTurn(ctx, "s1", turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	turns, err := st.Turns(ctx, "s1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected history bounded to 4, got %d", len(turns))
	}
	if turns[0].Content != "msg 2" || turns[3].Content != "msg 5" {
		t.Fatalf("expected oldest turns evicted, got %+v", turns)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	st := New(4, time.Hour)
	ctx := context.Background()

	_ = st.AppendTurn(ctx, "a", session.Turn{Role: "user", Content: "hello a"})
	_ = st.AppendTurn(ctx, "b", session.Turn{Role: "user", Content: "hello b"})

	turns, _ := st.Turns(ctx, "a")
	if len(turns) != 1 || turns[0].Content != "hello a" {
		t.Fatalf("session a polluted: %+v", turns)
	}
}

func TestSessionExpiry(t *testing.T) {
	st := New(4, time.Minute)
	now := time.Now()
	st.now = func() time.Time { return now }
	ctx := context.Background()

	_ = st.AppendTurn(ctx, "s1", session.Turn{Role: "user", Content: "hi"})

	st.now = func() time.Time { return now.Add(2 * time.Minute) }
	turns, err := st.Turns(ctx, "s1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected expired session to be empty, got %+v", turns)
	}
}

func TestDelete(t *testing.T) {
	st := New(4, time.Hour)
	ctx := context.Background()
	_ = st.AppendTurn(ctx, "s1", session.Turn{Role: "user", Content: "hi"})
	if err := st.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	turns, _ := st.Turns(ctx, "s1")
	if len(turns) != 0 {
		t.Fatalf("expected empty after delete, got %+v", turns)
	}
}
