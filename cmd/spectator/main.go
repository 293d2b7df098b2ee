// Command spectator watches the game in a terminal. By default it runs its
// own engine; with SPECTATOR_REMOTE=ws://host:5000/ws it follows a server.
package main

import (
	"io"
	"log"
	"os"
	"time"

	"country-marbles/internal/config"
	"country-marbles/internal/countries"
	"country-marbles/internal/game"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	// The terminal belongs to the screen
	if path := os.Getenv("SPECTATOR_LOG"); path != "" {
		if f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644); err == nil {
			log.SetOutput(f)
			defer f.Close()
		}
	} else {
		log.SetOutput(io.Discard)
	}

	src, err := openSource()
	if err != nil {
		fatal("%v", err)
	}
	defer src.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		fatal("screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		fatal("screen: %v", err)
	}
	defer screen.Fini()

	run(screen, src)
}

// openSource connects to a remote server or starts a local engine
func openSource() (source, error) {
	if remote := os.Getenv("SPECTATOR_REMOTE"); remote != "" {
		rs, err := newRemoteSource(remote, os.Getenv("ADMIN_TOKEN"))
		if err != nil {
			return nil, err
		}
		go rs.run()
		return rs, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	participants, err := countries.Load(cfg.Paths.Countries)
	if err != nil {
		return nil, err
	}
	engine, err := game.NewEngine(cfg.Engine())
	if err != nil {
		return nil, err
	}
	if err := engine.SetParticipants(participants); err != nil {
		return nil, err
	}

	src := newLocalSource(engine)
	if err := engine.StartRound(); err != nil {
		return nil, err
	}
	engine.Start()
	return src, nil
}

func run(screen tcell.Screen, src source) {
	v := newView(screen)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
					return
				}
				if ev.Key() == tcell.KeyRune {
					switch ev.Rune() {
					case 'q':
						return
					case 'r':
						if err := src.Reset(); err != nil {
							v.note(err.Error())
						}
					}
				}
			case *tcell.EventResize:
				screen.Sync()
			}

		case line := <-src.Feed():
			v.note(line)

		case <-ticker.C:
			v.draw(src.Snapshot())
		}
	}
}

func fatal(format string, args ...interface{}) {
	log.SetOutput(os.Stderr)
	log.Fatalf("❌ "+format, args...)
}
