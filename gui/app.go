//go:build gui

// Package gui is the optional desktop window. It shows the session state
// and results and owns the native handle used for always-on-top.
package gui

import (
	"sync"

	"anyvoice/pipeline"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Actions are the calls the window's controls make. Each is run on its
// own goroutine.
type Actions struct {
	ToggleRecording func()
	Cancel          func()
	CopyAgain       func()
	SetAlwaysOnTop  func(on bool)
}

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	onReady func()

	// glfwWin is only touched on the fyne main loop.
	glfwWin *glfw.Window

	mu      sync.Mutex
	actions Actions

	status    *widget.Label
	mode      *widget.Label
	device    *widget.Label
	notice    *widget.Label
	corrected *widget.Entry
	record    *widget.Button
	onTop     *widget.Check
}

func NewApp(onReady func()) *App {
	return &App{onReady: onReady}
}

func (a *App) SetActions(act Actions) {
	a.mu.Lock()
	a.actions = act
	a.mu.Unlock()
}

func (a *App) act() Actions {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.actions
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.anyvoice.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})
	a.window = a.fyneApp.NewWindow("AnyVoice")

	a.status = widget.NewLabelWithStyle("Standby", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	a.mode = widget.NewLabel("")
	a.device = widget.NewLabel("")
	a.notice = widget.NewLabel("")
	a.notice.Wrapping = fyne.TextWrapWord
	a.corrected = widget.NewMultiLineEntry()
	a.corrected.Wrapping = fyne.TextWrapWord
	a.corrected.SetPlaceHolder("Corrected text appears here")

	a.record = widget.NewButtonWithIcon("Record", theme.MediaRecordIcon(), func() {
		if fn := a.act().ToggleRecording; fn != nil {
			go fn()
		}
	})
	cancel := widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), func() {
		if fn := a.act().Cancel; fn != nil {
			go fn()
		}
	})
	copyAgain := widget.NewButtonWithIcon("Copy again", theme.ContentCopyIcon(), func() {
		if fn := a.act().CopyAgain; fn != nil {
			go fn()
		}
	})
	a.onTop = widget.NewCheck("Always on top", func(on bool) {
		if fn := a.act().SetAlwaysOnTop; fn != nil {
			go fn(on)
		}
	})

	a.window.SetContent(container.NewBorder(
		container.NewVBox(a.status, a.mode, a.device),
		container.NewVBox(a.notice, container.NewHBox(a.record, cancel, copyAgain), a.onTop),
		nil, nil,
		a.corrected,
	))
	a.window.Resize(fyne.NewSize(420, 320))

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("AnyVoice",
			fyne.NewMenuItem("Show", func() { a.window.Show() }),
			fyne.NewMenuItem("Quit", func() { a.fyneApp.Quit() }),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(theme.MediaRecordIcon())
		// Keep the native window alive so the bridge handle stays valid.
		a.window.SetCloseIntercept(a.window.Hide)
	}

	// The app window is the current GL context while fyne starts up.
	a.fyneApp.Lifecycle().SetOnStarted(func() { a.nativeWindow() })

	go a.onReady()

	a.window.ShowAndRun()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

func statusText(s pipeline.Session) string {
	switch s.State {
	case pipeline.Recording:
		return "● Recording"
	case pipeline.Stopping, pipeline.Transcribing:
		return "Transcribing..."
	case pipeline.Correcting:
		return "Correcting..."
	case pipeline.Completed:
		if s.NoSpeech {
			return "No speech detected"
		}
		if s.Copied {
			return "✓ Copied to clipboard"
		}
		return "✓ Done"
	case pipeline.Failed:
		return "✗ " + pipeline.Message(s.Err)
	}
	return "Standby"
}

// EventSink implementation. Widget updates go through fyne.Do.
func (a *App) SessionChanged(s pipeline.Session) {
	fyne.Do(func() {
		a.status.SetText(statusText(s))
		if s.State == pipeline.Recording {
			a.record.SetText("Stop")
			a.record.SetIcon(theme.MediaStopIcon())
			a.notice.SetText("")
		} else {
			a.record.SetText("Record")
			a.record.SetIcon(theme.MediaRecordIcon())
		}
		if s.State == pipeline.Completed {
			a.corrected.SetText(s.CorrectedText)
		}
	})
}

func (a *App) AlwaysOnTop(on bool) {
	fyne.Do(func() {
		// SetChecked fires OnChanged, so detach it while syncing.
		onChanged := a.onTop.OnChanged
		a.onTop.OnChanged = nil
		a.onTop.SetChecked(on)
		a.onTop.OnChanged = onChanged
	})
}

func (a *App) Notice(text string) {
	fyne.Do(func() { a.notice.SetText(text) })
}

func (a *App) ModeLine(text string) {
	fyne.Do(func() { a.mode.SetText(text) })
}

func (a *App) DeviceLine(text string) {
	fyne.Do(func() { a.device.SetText(text) })
}
