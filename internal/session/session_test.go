package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.SetClock(func() time.Time { return now })

	token, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	tests := []struct {
		name  string
		token string
		at    time.Time
		want  bool
	}{
		{"fresh", token, now, true},
		{"before expiry", token, now.Add(59 * time.Minute), true},
		{"unknown", "nope", now, false},
		{"blank", "", now, false},
		{"at expiry", token, now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetClock(func() time.Time { return tt.at })
			ok, err := s.Valid(ctx, tt.token)
			if err != nil {
				t.Fatalf("Valid: %v", err)
			}
			if ok != tt.want {
				t.Errorf("Valid(%q) at %s = %v, want %v", tt.token, tt.at.Format(time.Kitchen), ok, tt.want)
			}
		})
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	token, _ := s.Create(ctx)
	if err := s.Delete(ctx, token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Valid(ctx, token); ok {
		t.Error("token valid after Delete")
	}
	if err := s.Delete(ctx, ""); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("Delete(\"\") = %v, want ErrEmptyToken", err)
	}
}

func TestMemoryStore_SweepsOnCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.SetClock(func() time.Time { return now })

	first, _ := s.Create(ctx)
	second, _ := s.Create(ctx)
	if first == second {
		t.Fatal("tokens not unique")
	}

	s.SetClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := s.Create(ctx); err != nil {
		t.Fatal(err)
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d after sweep, want 1", got)
	}
}
