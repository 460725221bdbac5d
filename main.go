package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"time"

	"anyvoice/audio"
	"anyvoice/cue"
	"anyvoice/doctor"
	"anyvoice/history"
	"anyvoice/hotkey"
	"anyvoice/log"
	"anyvoice/pipeline"
	"anyvoice/recorder"
	"anyvoice/settings"
	"anyvoice/shutdown"
	"anyvoice/transcriber"
	"anyvoice/window"

	"github.com/samber/do/v2"
	"golang.org/x/term"
)

var version = "dev"

// initCrashLog routes runtime crash output to crash_log.txt. It runs before
// flag parsing, so only the environment can move the directory.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	crashFile, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(s settings.Settings) string {
	paste := ""
	if s.AutoPaste {
		paste = " | autopaste"
	}
	return fmt.Sprintf("[%s | %s%s]", s.Provider, s.Language, paste)
}

func fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Error(msg)
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	log.Close()
	os.Exit(1)
}

func main() {
	// Set up crash logging early, before any CGO code runs
	initCrashLog()

	// -gui is checked before flag parsing: the GUI takes the main thread and
	// calls run itself.
	if slices.Contains(os.Args[1:], "-gui") {
		initGUI()
		return
	}
	onMainThread(run)
}

func run() {
	langFlag := flag.String("lang", "", "Language code for transcription (e.g. ja, en, zh). Overrides settings for this run")
	providerFlag := flag.String("provider", "", "Transcription provider: openai or groq. Overrides settings for this run")
	settingsFlag := flag.String("settings", "", "Settings file path (default: OS config directory)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Enter the API key and select the microphone")
	autoPasteFlag := flag.Bool("autopaste", false, "Paste into the focused window after copying. Overrides settings for this run")
	onTopFlag := flag.Bool("ontop", false, "Keep the window above other windows (saved to settings)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	guiFlag := flag.Bool("gui", false, "Run with the desktop window (requires a build with -tags gui)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	soundsFlag := flag.Bool("sounds", true, "Play a tone when recording starts and ends")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for push-to-talk vs tap (e.g., 350ms)")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("anyvoice %s\n", version)
		os.Exit(0)
	}

	envOverrides, err := settings.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	overrides := envOverrides.Merge(flagOverrides(langFlag, providerFlag, autoPasteFlag))

	settingsPath := *settingsFlag
	if settingsPath == "" {
		if settingsPath, err = settings.DefaultPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot locate settings directory: %v\n", err)
			os.Exit(1)
		}
	}
	store := settings.NewYAMLStore(settingsPath)

	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Config{Store: store, Overrides: overrides, Device: *deviceFlag}))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if n, err := recorder.SweepStale(recorder.DefaultDir()); err != nil {
		log.Warnf("sweep stale recordings: %v", err)
	} else if n > 0 {
		log.Infof("removed %d stale recordings", n)
	}

	if *testFlag || !*soundsFlag {
		cue.Disable()
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: anyvoice -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], store, overrides)
		return
	}

	actx := guiAudioCtx
	if actx == nil {
		if actx, err = audio.NewContext(); err != nil {
			fatalf("initializing audio context: %v", err)
		}
	}
	defer actx.Close()

	device := resolveDevice(actx, *deviceFlag, *setupFlag)

	injector := setupDI(store, overrides, actx, recorder.Options{Device: device})
	mgr, err := do.Invoke[*settings.Manager](injector)
	if err != nil {
		fatalf("loading settings from %s: %v", store.Path(), err)
	}
	if *setupFlag {
		promptAPIKey(mgr)
	}

	pipe, err := do.Invoke[*pipeline.Pipeline](injector)
	if err != nil {
		fatalf("building pipeline: %v", err)
	}
	if c, err := do.Invoke[*transcriber.Client](injector); err == nil {
		go c.Warm()
	}
	win := do.MustInvoke[*window.Service](injector)
	toggle := do.MustInvoke[*window.Toggle](injector)
	hist, err := do.Invoke[*history.Store](injector)
	if err != nil {
		hist = nil
	} else {
		defer hist.Close()
		if _, err := hist.Prune(context.Background(), history.DefaultKeep); err != nil {
			log.Warnf("history prune: %v", err)
		}
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	sinks := multiSink{cueSink{play: cue.Play}}
	gs := guiSink()
	if gs != nil {
		sinks = append(sinks, gs)
		*tuiFlag = false
	}
	if *guiFlag && gs == nil {
		log.Warn("-gui given but this build has no GUI support")
	}

	a := &app{
		pipe:    pipe,
		win:     win,
		toggle:  toggle,
		clip:    do.MustInvoke[pipeline.Clipboard](injector),
		history: hist,
	}

	cur := mgr.Get()
	sc, _ := hotkey.Parse(cur.Shortcut) // validated by settings

	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(tuiActions{
			toggleRecording: func() { a.toggleRecording(ctx) },
			cancel:          a.cancel,
			copyAgain:       func() { a.copyAgain(ctx) },
			toggleOnTop:     func() { a.toggleOnTop(ctx) },
		}, sc.String())
		tuiMu.Unlock()
		sinks = append(sinks, tuiSink{})
	} else {
		sinks = append(sinks, consoleSink{out: os.Stdout})
	}
	a.sink = sinks
	guiBind(ctx, a)

	if p := tuiProgram; p != nil {
		go func() {
			if _, err := p.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			stop()
		}()
	}

	go a.watch(ctx)

	sinks.ModeLine(modeLineText(cur))
	sinks.DeviceLine(deviceLineText(device))
	log.Infof("anyvoice %s: provider=%s language=%s shortcut=%s elevation=%s/%s",
		version, cur.Provider, cur.Language, sc, win.Platform(), win.BridgeName())

	if flagSet("ontop") {
		if err := toggle.Set(ctx, *onTopFlag); err != nil {
			a.sink.Notice("Could not change always-on-top: " + err.Error())
		}
		a.sink.AlwaysOnTop(toggle.On())
	} else {
		a.applySavedElevation(ctx)
	}

	if !mgr.HasAPIKey() {
		a.sink.Notice(pipeline.Message(transcriber.ErrMissingCredential))
	}

	hk := hotkey.New(sc)
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		if !*tuiFlag && gs == nil {
			fatalf("registering hotkey %s: %v", sc, err)
		}
		a.sink.Notice(fmt.Sprintf("Global shortcut %s unavailable: %v", sc, err))
	} else {
		defer hk.Unregister()
		go a.runHotkey(ctx, hotkey.NewHybrid(hk, *longPressFlag))
	}

	<-ctx.Done()
	log.Info("shutting down")
	a.shutdown()

	tuiMu.Lock()
	if tuiProgram != nil {
		tuiProgram.Quit()
	}
	tuiMu.Unlock()
	guiQuit()
}

// flagOverrides keeps only the flags given on the command line so unset
// flags do not mask settings or the environment.
func flagOverrides(lang, provider *string, autoPaste *bool) settings.Overrides {
	var o settings.Overrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lang":
			o.Language = *lang
		case "provider":
			o.Provider = *provider
		case "autopaste":
			v := *autoPaste
			o.AutoPaste = &v
		}
	})
	return o
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func resolveDevice(actx audio.Context, name string, pick bool) *audio.DeviceInfo {
	if name != "" {
		devices, err := actx.Devices()
		if err == nil {
			for i := range devices {
				if devices[i].Name == name {
					return &devices[i]
				}
			}
		}
		log.Warnf("device %q not found, using system default", name)
		fmt.Printf("Warning: device %q not found, using system default\n", name)
		return nil
	}
	if !pick {
		return nil
	}
	dev, err := audio.SelectDevice(actx)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\n", err)
		fmt.Println("Falling back to default device")
		return nil
	}
	return dev
}

// promptAPIKey reads the key without echo and saves it. Enter on an empty
// line keeps the current key.
func promptAPIKey(mgr *settings.Manager) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fmt.Println("Skipping API key prompt: stdin is not a terminal")
		return
	}
	if mgr.HasAPIKey() {
		fmt.Print("API key (Enter to keep current): ")
	} else {
		fmt.Print("API key: ")
	}
	key, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		fatalf("reading API key: %v", err)
	}
	if len(key) == 0 && mgr.HasAPIKey() {
		return
	}
	if err := mgr.SetAPIKey(string(key)); err != nil {
		fatalf("saving API key: %v", err)
	}
	fmt.Println("API key saved.")
}

