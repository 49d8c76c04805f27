package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/markmusic27/maestro/capture"
	"github.com/markmusic27/maestro/coaching"
	"github.com/markmusic27/maestro/config"
	"github.com/markmusic27/maestro/connection"
	"github.com/markmusic27/maestro/frame"
	"github.com/markmusic27/maestro/generation"
	"github.com/markmusic27/maestro/session"
	"github.com/markmusic27/maestro/sound"
	"github.com/markmusic27/maestro/speech"
	"github.com/markmusic27/maestro/transcript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Speech backend
	var synth speech.Synthesizer
	switch cfg.SpeechBackend {
	case "yandex":
		if cfg.YandexAPIKey == "" || cfg.YandexFolderID == "" {
			log.Fatalf("SPEECH_BACKEND=yandex requires YANDEX_API_KEY and YANDEX_FOLDER_ID in .env")
		}
		synth, err = speech.NewYandexSynthesizer(speech.YandexConfig{
			ApiKey:   cfg.YandexAPIKey,
			FolderID: cfg.YandexFolderID,
		})
		if err != nil {
			log.Fatalf("Failed to create synthesizer: %v", err)
		}
	default:
		if cfg.SpeechURL == "" {
			log.Printf("No SPEECH_URL configured; narration playback disabled")
		} else {
			synth = speech.NewHTTPSynthesizer(speech.HTTPConfig{
				Endpoint: cfg.SpeechURL,
				ApiKey:   cfg.SpeechKey,
			})
		}
	}
	if synth != nil {
		defer synth.Close()
	}

	player := sound.NewPortaudioPlayer(sound.PlayerConfig{SampleRate: float64(cfg.SampleRate)})
	if err := player.Initialize(); err != nil {
		log.Printf("Playback unavailable: %v", err)
		player = nil
	} else {
		defer player.Terminate()
	}

	var transcripts coaching.TranscriptClient
	if cfg.TranscriptURL != "" {
		transcripts = transcript.NewClient(cfg.TranscriptURL, cfg.TranscriptKey)
	}

	var generator session.SongGenerator
	if cfg.GenerationKey != "" {
		generator = generation.NewPoller(
			generation.NewClient(cfg.GenerationURL, cfg.GenerationKey),
			generation.PollerConfig{
				OnUpdate: func(clip generation.Clip) {
					log.Printf("clip %s: %s", clip.ID, clip.Status)
				},
			},
		)
	}

	recorder := capture.New(
		capture.Config{SampleRate: cfg.SampleRate},
		capture.NewPortaudioSource(capture.SourceConfig{SampleRate: float64(cfg.SampleRate)}),
	)

	renderer := frame.NewRenderer(nil)

	var playerIface sound.Player
	if player != nil {
		playerIface = player
	}

	machine := &machineHolder{}
	manager := connection.New(connection.Config{}, machine)

	pipeline := coaching.New(coaching.Config{Culture: cfg.Culture}, manager, transcripts, synth, playerIface)

	machine.Machine = session.NewMachine(
		session.Config{
			InstrumentID:   cfg.InstrumentID,
			InstrumentName: cfg.InstrumentID,
			Culture:        cfg.Culture,
			TutorID:        cfg.TutorID,
			SessionsDir:    cfg.SessionsDir,
		},
		session.Deps{
			Commander: manager,
			Recorder:  recorder,
			Coach:     pipeline,
			Generator: generator,
			Renderer:  renderer,
		},
	)

	fmt.Printf("Session %s — connecting to %s\n", machine.ID(), cfg.SocketURL)
	manager.Connect(cfg.SocketURL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		fmt.Println("\nEnding session...")
		if err := machine.End(); err != nil {
			log.Printf("teardown: %v", err)
		}
		time.Sleep(200 * time.Millisecond)
		os.Exit(0)
	}()

	fmt.Println("Commands: start | pause | resume | stop | end")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var err error
		switch strings.TrimSpace(scanner.Text()) {
		case "start":
			err = machine.Start()
		case "pause":
			err = machine.Pause()
		case "resume":
			err = machine.Resume()
		case "stop":
			err = machine.Stop()
		case "end":
			if err = machine.End(); err == nil {
				return
			}
		case "":
		default:
			fmt.Println("Commands: start | pause | resume | stop | end")
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
		fmt.Printf("state: %s  elapsed: %ds  conn: %s\n",
			machine.State(), machine.Elapsed(), machine.ConnectionStatus())
	}
}

// machineHolder breaks the construction cycle between the connection manager
// (which needs its handler up front) and the machine (which needs the
// manager as its commander). Socket events arriving before the machine is
// assigned are dropped.
type machineHolder struct {
	*session.Machine
}

func (h *machineHolder) OnMessage(msg connection.Message) {
	if h.Machine != nil {
		h.Machine.OnMessage(msg)
	}
}

func (h *machineHolder) OnFrame(frameBytes []byte) {
	if h.Machine != nil {
		h.Machine.OnFrame(frameBytes)
	}
}

func (h *machineHolder) OnStatusChange(status connection.Status) {
	if h.Machine != nil {
		h.Machine.OnStatusChange(status)
	}
}
