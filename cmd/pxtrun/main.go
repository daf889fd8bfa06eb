package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/pxt-runtime/config"
	"github.com/wippyai/pxt-runtime/event"
	"github.com/wippyai/pxt-runtime/image"
	"github.com/wippyai/pxt-runtime/runtime"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to runtime TOML config")
		imageFile   = flag.String("image", "", "Path to program image (overrides config)")
		events      = flag.String("events", "", "Events to post after start (source:value,...)")
		dump        = flag.Bool("dump", false, "Print live objects before exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *imageFile != "" {
		cfg.Program.Image = *imageFile
	}
	if *events != "" {
		cfg.Program.Events = append(cfg.Program.Events, strings.Split(*events, ",")...)
	}
	if *dump {
		cfg.Runtime.TrackObjects = true
	}

	if cfg.Program.Image == "" {
		fmt.Fprintln(os.Stderr, "Usage: pxtrun -image <prog.img> [-config pxt.toml] [-events 5:100,5:1] [-dump]")
		fmt.Fprintln(os.Stderr, "       pxtrun -image <prog.img> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *dump); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// boot loads the image named by cfg and starts a runtime for it.
func boot(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runtime.Runtime, error) {
	img, err := image.Load(cfg.Program.Image)
	if err != nil {
		return nil, err
	}
	rt, err := runtime.New(ctx, img, runtime.Options{
		Logger:           logger,
		Sink:             cfg.Sink(logger),
		EventQueue:       cfg.Runtime.EventQueue,
		MemoryLimitPages: cfg.Runtime.MemoryLimitPages,
		TrackObjects:     cfg.Runtime.TrackObjects,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return rt, nil
}

func run(cfg *config.Config, dump bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	rt, err := boot(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	img := rt.Image()
	fmt.Printf("Image: %s\n", cfg.Program.Image)
	fmt.Printf("Version: %#x, globals: %d, entries: %v\n", img.Header.Version, img.Header.NumGlobals, img.Entries())

	result := rt.Start(ctx)
	fmt.Printf("Main returned %d\n", result)

	for _, s := range cfg.Program.Events {
		e, err := event.Parse(s)
		if err != nil {
			return err
		}
		if err := rt.Post(e.Source, e.Value); err != nil {
			return fmt.Errorf("post %s: %w", e, err)
		}
	}
	rt.Shutdown()
	if err := rt.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	st := rt.Stats()
	fmt.Printf("\nEvents: %d posted, %d dropped, %d dispatched\n", st.Queue.Posted, st.Queue.Dropped, st.Dispatched)
	fmt.Printf("Handlers: %d, fibers finished: %d\n", st.Handlers, st.Finished)
	fmt.Printf("Heap: %d live, %d allocated, %d destroyed, %d soft errors\n",
		st.Heap.Live, st.Heap.Allocated, st.Heap.Destroyed, st.Heap.SoftErrors)
	fmt.Printf("Globals: %v\n", rt.Globals())

	if dump {
		fmt.Println()
		rt.Heap().Dump(os.Stdout)
	}
	return nil
}
