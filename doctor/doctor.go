// Package doctor runs interactive checks of everything a dictation session
// touches: settings, the global shortcut, the microphone and transcription
// service, the clipboard and window elevation.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"anyvoice/audio"
	"anyvoice/clipboard"
	"anyvoice/hotkey"
	"anyvoice/recorder"
	"anyvoice/settings"
	"anyvoice/transcriber"
	"anyvoice/window"
)

type Config struct {
	Store     *settings.YAMLStore
	Overrides settings.Overrides
	// Device is the microphone name; empty uses the system default.
	Device string
}

const steps = 6

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("anyvoice doctor - interactive system diagnostics")
	fmt.Println("================================================")

	mgr, ok := checkSettings(cfg)
	if !ok {
		fmt.Println()
		fmt.Println("Some checks failed. See details above.")
		return 1
	}

	allPass := true
	for _, check := range []func() bool{
		func() bool { return checkHotkey(mgr.Get().Shortcut) },
		func() bool { return checkMicAndTranscription(mgr, cfg.Device) },
		checkClipboardCopy,
		checkClipboardPaste,
		func() bool { return checkElevation(mgr.Get().BridgeTimeout) },
	} {
		if !check() {
			allPass = false
		}
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func header(n int, title string) {
	fmt.Println()
	fmt.Printf("[%d/%d] %s\n", n, steps, title)
}

func checkSettings(cfg Config) (*settings.Manager, bool) {
	header(1, "Settings")
	fmt.Printf("  file: %s\n", cfg.Store.Path())

	mgr, err := settings.NewManager(cfg.Store, cfg.Overrides)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}
	s := mgr.Get()
	fmt.Printf("  provider=%s language=%s shortcut=%s\n", s.Provider, s.Language, s.Shortcut)
	if !settings.IsKnownLanguage(s.Language) {
		fmt.Printf("  Warning: %q is not in the language list; it is passed through as is\n", s.Language)
	}
	if !mgr.HasAPIKey() {
		fmt.Println("  FAIL: no API key (run with -setup or set ANYVOICE_API_KEY)")
		return mgr, false
	}
	fmt.Println("  PASS: settings valid, API key present")
	return mgr, true
}

func checkHotkey(shortcut string) bool {
	header(2, "Global shortcut")

	sc, err := hotkey.Parse(shortcut)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	msg, err := hotkey.Diagnose(sc)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  %s\n", msg)
	fmt.Printf("Press %s...\n", sc)

	hk := hotkey.New(sc)
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		// Wait for keyup to avoid triggering next step
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// Reset terminal after hotkey - it may leave terminal in raw mode
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func findDevice(actx audio.Context, name string) (*audio.DeviceInfo, error) {
	devices, err := actx.Devices()
	if err != nil {
		return nil, fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if name == "" {
		return nil, nil
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("device %q not found", name)
}

func checkMicAndTranscription(mgr *settings.Manager, deviceName string) bool {
	header(3, "Microphone, transcription and correction")

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	device, err := findDevice(actx, deviceName)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if device != nil {
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println("Using the system default device")
	}

	provider, err := transcriber.ProviderByName(mgr.Get().Provider)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	client := transcriber.NewClient(provider, mgr.APIKey)

	fmt.Println()
	fmt.Print("Press Enter and speak for 3 seconds...")
	bufio.NewReader(os.Stdin).ReadString('\n')

	dir, err := os.MkdirTemp("", "anyvoice-doctor-*")
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	defer os.RemoveAll(dir)

	rec := recorder.New(actx, device, dir)
	ctx, cancel := context.WithTimeout(context.Background(), mgr.Get().RequestTimeout)
	defer cancel()

	if err := rec.Start(ctx, "doctor"); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Print("  Recording")
	for range 6 {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" done")

	artifact, err := rec.Stop(ctx)
	defer rec.Release()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  Recorded %.1fs (%.1f KB), transcribing with %s...\n",
		artifact.Duration.Seconds(), float64(artifact.Size)/1024, client.Name())

	res, err := client.TranscribeResult(ctx, artifact.Path, mgr.Language())
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		fmt.Println("  FAIL: no speech detected")
		return false
	}
	fmt.Printf("\n  Transcribed text: %s\n", text)

	corrected, err := client.Correct(ctx, text)
	if err != nil {
		fmt.Printf("  FAIL: correction error: %v\n", err)
		return false
	}
	fmt.Printf("  Corrected text:   %s\n\n", corrected)

	// Fresh reader to clear any buffered input
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}
	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func checkClipboardCopy() bool {
	header(4, "Clipboard copy")

	testStr := fmt.Sprintf("anyvoice-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}
}

// checkClipboardPaste only matters with auto-paste on, so a failure here is
// reported but does not fail the run.
func checkClipboardPaste() bool {
	header(5, "Auto-paste keystroke")

	if err := clipboard.Init(); err != nil {
		fmt.Printf("  WARN: %v\n", err)
		if hint := pasteHint(); hint != "" {
			fmt.Println("  " + hint)
		}
		return true
	}
	msg, err := clipboard.Verify()
	if err != nil {
		fmt.Printf("  WARN: %v\n", err)
		return true
	}
	fmt.Printf("  PASS: %s\n", msg)
	return true
}

func checkElevation(timeout time.Duration) bool {
	header(6, "Always-on-top")

	if timeout <= 0 {
		timeout = window.DefaultTimeout
	}
	svc := window.New(runtime.GOOS, window.NewPlatformBridge(), window.WithTimeout(timeout))
	if !svc.IsPlatformCapable() {
		fmt.Printf("  SKIP: not supported on %s\n", svc.Platform())
		return true
	}
	if svc.BridgeName() == "mock" {
		fmt.Println("  SKIP: no native bridge in this build (the desktop window provides one)")
		return true
	}
	fmt.Printf("  bridge: %s\n", svc.BridgeName())

	ctx := context.Background()
	if err := svc.SetAlwaysOnTop(ctx, true); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if err := svc.SetAlwaysOnTop(ctx, false); err != nil {
		fmt.Printf("  FAIL: could not restore: %v\n", err)
		return false
	}
	fmt.Println("  PASS: window raised and restored")
	return true
}
