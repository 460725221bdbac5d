package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"anyvoice/audio"
	"anyvoice/hotkey"
	"anyvoice/log"
	"anyvoice/pipeline"
	"anyvoice/recorder"
	"anyvoice/settings"
	"anyvoice/window"

	"github.com/samber/do/v2"
)

// runTestMode drives the full pipeline from a WAV file and stdin commands:
// KEYDOWN, KEYUP, WAIT (until the session is terminal), WAIT_AUDIO_DONE,
// ONTOP on|off, SLEEP <ms> and QUIT.
func runTestMode(wavPath string, store settings.Store, overrides settings.Overrides) {
	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	injector := setupDI(store, overrides, fakeCtx, recorder.Options{})
	mgr, err := do.Invoke[*settings.Manager](injector)
	if err != nil {
		fatalf("loading settings: %v", err)
	}
	pipe, err := do.Invoke[*pipeline.Pipeline](injector)
	if err != nil {
		fatalf("building pipeline: %v", err)
	}

	cur := mgr.Get()
	log.Infof("test mode: provider=%s language=%s wav=%s", cur.Provider, cur.Language, wavPath)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a := &app{
		pipe:   pipe,
		win:    do.MustInvoke[*window.Service](injector),
		toggle: do.MustInvoke[*window.Toggle](injector),
		clip:   do.MustInvoke[pipeline.Clipboard](injector),
		sink:   consoleSink{out: os.Stdout},
	}

	sessions, unsubscribe := pipe.Subscribe()
	defer unsubscribe()
	terminal := make(chan pipeline.Session, 8)
	var completed atomic.Int32
	go func() {
		for s := range sessions {
			a.sink.SessionChanged(s)
			if s.State.Terminal() {
				if s.State == pipeline.Completed {
					completed.Add(1)
				}
				select {
				case terminal <- s:
				default:
				}
			}
		}
	}()

	hk := hotkey.NewFake()
	go a.runHotkey(ctx, hotkey.NewHybrid(hk, 350*time.Millisecond))

	quit := func() {
		a.shutdown()
		log.Infof("test mode done: %d completed", completed.Load())
		log.Close()
		os.Exit(0)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "KEYDOWN":
			hk.SimKeydown()
		case cmd == "KEYUP":
			hk.SimKeyup()
		case cmd == "WAIT":
			<-terminal
		case cmd == "WAIT_AUDIO_DONE":
			<-fakeCtx.AudioDone()
		case cmd == "QUIT":
			quit()
		case strings.HasPrefix(cmd, "ONTOP "):
			if err := a.toggle.Set(ctx, cmd[6:] == "on"); err != nil {
				a.sink.Notice("Could not change always-on-top: " + err.Error())
			}
			a.sink.AlwaysOnTop(a.toggle.On())
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(cmd[6:]); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		}
	}
	quit()
}
