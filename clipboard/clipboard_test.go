package clipboard

import (
	"errors"
	"testing"
)

func TestSystemCopyWithoutPaste(t *testing.T) {
	var got string
	pasted := false
	s := &System{
		write: func(text string) error { got = text; return nil },
		paste: func() error { pasted = true; return nil },
	}
	if err := s.Copy("今日はいい天気です。"); err != nil {
		t.Fatal(err)
	}
	if got != "今日はいい天気です。" {
		t.Errorf("wrote %q", got)
	}
	if pasted {
		t.Error("pasted without AutoPaste")
	}
}

func TestSystemCopyPastes(t *testing.T) {
	pasted := 0
	s := &System{
		AutoPaste: true,
		write:     func(string) error { return nil },
		paste:     func() error { pasted++; return nil },
	}
	if err := s.Copy("x"); err != nil {
		t.Fatal(err)
	}
	if pasted != 1 {
		t.Errorf("pasted %d times, want 1", pasted)
	}
}

func TestSystemPasteFailureIsNotAnError(t *testing.T) {
	s := &System{
		AutoPaste: true,
		write:     func(string) error { return nil },
		paste:     func() error { return errors.New("no uinput") },
	}
	if err := s.Copy("x"); err != nil {
		t.Errorf("Copy() = %v, want nil", err)
	}
}

func TestSystemWriteFailure(t *testing.T) {
	base := errors.New("no display")
	pasted := false
	s := &System{
		AutoPaste: true,
		write:     func(string) error { return base },
		paste:     func() error { pasted = true; return nil },
	}
	err := s.Copy("x")
	if !errors.Is(err, base) {
		t.Fatalf("Copy() = %v, want wrapped %v", err, base)
	}
	if pasted {
		t.Error("pasted after failed write")
	}
}

func TestFake(t *testing.T) {
	f := &Fake{}
	f.Copy("a")
	f.Copy("b")
	if f.Last() != "b" || len(f.Writes()) != 2 {
		t.Errorf("writes = %v", f.Writes())
	}
	f.Err = errors.New("denied")
	if err := f.Copy("c"); err == nil {
		t.Error("expected error")
	}
	if f.Last() != "b" {
		t.Errorf("failed write recorded")
	}
}
