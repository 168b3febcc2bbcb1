package session_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dkazakov/gemrelay/internal/session"
)

func TestStoreAppendAndHistory(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	const chatID = int64(42)

	if got := store.History(chatID); len(got) != 0 {
		t.Fatalf("expected empty history for new chat, got %d turns", len(got))
	}

	const exchanges = 5
	for i := 0; i < exchanges; i++ {
		store.Append(chatID,
			session.NewTurn(session.RoleUser, fmt.Sprintf("question %d", i)),
			session.NewTurn(session.RoleModel, fmt.Sprintf("answer %d", i)),
		)
	}

	if got := store.Len(chatID); got != 2*exchanges {
		t.Fatalf("expected %d turns after %d exchanges, got %d", 2*exchanges, exchanges, got)
	}

	history := store.History(chatID)
	for i, turn := range history {
		want := session.RoleUser
		if i%2 == 1 {
			want = session.RoleModel
		}
		if turn.Role != want {
			t.Errorf("turn %d: expected role %q, got %q", i, want, turn.Role)
		}
	}
	if history[0].Text() != "question 0" {
		t.Errorf("unexpected first turn text: %q", history[0].Text())
	}
	if history[len(history)-1].Text() != fmt.Sprintf("answer %d", exchanges-1) {
		t.Errorf("unexpected last turn text: %q", history[len(history)-1].Text())
	}
}

func TestStoreHistoryReturnsCopy(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	store.Append(7, session.NewTurn(session.RoleUser, "original"))

	history := store.History(7)
	history[0] = session.NewTurn(session.RoleModel, "mutated")

	if got := store.History(7)[0]; got.Role != session.RoleUser || got.Text() != "original" {
		t.Errorf("store history was mutated through a returned copy: %+v", got)
	}
}

func TestStoreReset(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	const chatID = int64(99)

	store.Append(chatID,
		session.NewTurn(session.RoleUser, "hello"),
		session.NewTurn(session.RoleModel, "hi"),
	)
	store.Reset(chatID)

	if got := store.Len(chatID); got != 0 {
		t.Fatalf("expected 0 turns after reset, got %d", got)
	}

	// The chat ID stays usable after a reset.
	store.Append(chatID, session.NewTurn(session.RoleUser, "again"))
	if got := store.Len(chatID); got != 1 {
		t.Fatalf("expected 1 turn after post-reset append, got %d", got)
	}
}

func TestStoreResetDoesNotTouchOtherChats(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	store.Append(1, session.NewTurn(session.RoleUser, "keep me"))
	store.Append(2, session.NewTurn(session.RoleUser, "drop me"))

	store.Reset(2)

	if got := store.Len(1); got != 1 {
		t.Errorf("reset of chat 2 affected chat 1: %d turns", got)
	}
	if got := store.Len(2); got != 0 {
		t.Errorf("expected chat 2 empty after reset, got %d turns", got)
	}
}

func TestStoreConcurrentAppend(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	const (
		chats      = 4
		perChat    = 50
		goroutines = 8
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			chatID := int64(g % chats)
			for i := 0; i < perChat; i++ {
				store.Append(chatID,
					session.NewTurn(session.RoleUser, "u"),
					session.NewTurn(session.RoleModel, "m"),
				)
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for c := int64(0); c < chats; c++ {
		n := store.Len(c)
		if n%2 != 0 {
			t.Errorf("chat %d: odd turn count %d, pair append was torn", c, n)
		}
		total += n
	}
	if want := goroutines * perChat * 2; total != want {
		t.Errorf("expected %d turns across all chats, got %d", want, total)
	}
}

func TestTurnText(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		turn     session.Turn
		expected string
	}{
		{name: "no parts", turn: session.NewTurn(session.RoleUser), expected: ""},
		{name: "single part", turn: session.NewTurn(session.RoleUser, "hello"), expected: "hello"},
		{name: "multiple parts", turn: session.NewTurn(session.RoleUser, "a", "b"), expected: "a\nb"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.turn.Text(); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
