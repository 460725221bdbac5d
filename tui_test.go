package main

import (
	"strings"
	"testing"
	"time"

	"anyvoice/pipeline"

	tea "github.com/charmbracelet/bubbletea"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"empty", "", 10, []string{""}},
		{"fits", "hello", 10, []string{"hello"}},
		{"breaks at space", "hello big world", 10, []string{"hello big", "world"}},
		{"no spaces", "今日はいい天気です", 4, []string{"今日はい", "い天気で", "す"}},
		{"keeps newlines", "a\nb", 10, []string{"a", "b"}},
		{"zero width", "ab", 0, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.width)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestTUIKeysRunActions(t *testing.T) {
	var called []string
	m := tuiModel{actions: tuiActions{
		toggleRecording: func() { called = append(called, "record") },
		cancel:          func() { called = append(called, "cancel") },
		copyAgain:       func() { called = append(called, "copy") },
		toggleOnTop:     func() { called = append(called, "ontop") },
	}}

	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("r")},
		{Type: tea.KeyEsc},
		{Type: tea.KeyRunes, Runes: []rune("c")},
		{Type: tea.KeyCtrlT},
	}
	for _, k := range keys {
		_, cmd := m.Update(k)
		if cmd == nil {
			t.Fatalf("key %q returned no command", k.String())
		}
		cmd()
	}
	want := "record,cancel,copy,ontop"
	if got := strings.Join(called, ","); got != want {
		t.Errorf("actions = %s, want %s", got, want)
	}
}

func TestTUINewSessionClearsNotice(t *testing.T) {
	var m tea.Model = tuiModel{width: 80, height: 24}
	m, _ = m.Update(NoticeMsg{Text: "Copied again."})
	m, _ = m.Update(SessionMsg{Session: pipeline.Session{ID: "1", State: pipeline.Recording, StartedAt: time.Now()}})

	tm := m.(tuiModel)
	if tm.notice != "" {
		t.Errorf("notice = %q, want cleared", tm.notice)
	}
	if tm.count != 1 {
		t.Errorf("count = %d, want 1", tm.count)
	}

	m, _ = m.Update(SessionMsg{Session: pipeline.Session{ID: "1", State: pipeline.Transcribing}})
	if m.(tuiModel).count != 1 {
		t.Error("same session counted twice")
	}
}

func TestTUIViewShowsResult(t *testing.T) {
	var m tea.Model = tuiModel{width: 80, height: 24, shortcut: "Ctrl+Shift+Space"}
	m, _ = m.Update(SessionMsg{Session: pipeline.Session{
		ID:            "1",
		State:         pipeline.Completed,
		Transcript:    "hello world",
		CorrectedText: "Hello, world.",
		Copied:        true,
	}})
	m, _ = m.Update(OnTopMsg{On: true})

	view := m.View()
	for _, want := range []string{"DONE", "Hello, world.", "copied", "always on top: on", "Ctrl+Shift+Space"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTUIViewShowsFailure(t *testing.T) {
	var m tea.Model = tuiModel{width: 80, height: 24}
	m, _ = m.Update(SessionMsg{Session: pipeline.Session{
		ID:    "1",
		State: pipeline.Failed,
		Err:   pipeline.ErrPermissionDenied,
	}})
	if view := m.View(); !strings.Contains(view, "Microphone access is required") {
		t.Errorf("view missing failure message:\n%s", view)
	}
}
