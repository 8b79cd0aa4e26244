package main

import (
	"fmt"
	"net"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mardukas/h2engine/engine"
	"github.com/mardukas/h2engine/internal/config"
	"github.com/mardukas/h2engine/internal/obslog"
	"github.com/mardukas/h2engine/internal/obsmetrics"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one client/server request-response exchange over net.Pipe",
	Example: "# h2demo run --config h2demo.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
		}
		log := obslog.New(obslog.Options{
			Stdout:     cfg.Log.Stdout,
			Level:      obslog.Level(cfg.Log.Level),
			Filename:   cfg.Log.Filename,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
		})
		return runDemo(cfg, log)
	},
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Configuration file path (optional, defaults apply)")
	rootCmd.AddCommand(runCmd)
}

func settingsFor(cfg config.Config) engine.Settings {
	s := engine.InitialSettings()
	if cfg.Settings.InitialWindowSize != 0 {
		s.InitialWindowSize = cfg.Settings.InitialWindowSize
	}
	if cfg.Settings.MaxConcurrentStreams != 0 {
		s.MaxConcurrentStreams = cfg.Settings.MaxConcurrentStreams
	}
	if cfg.Settings.MaxFrameSize != 0 {
		s.MaxFrameSize = cfg.Settings.MaxFrameSize
	}
	return s
}

func runDemo(cfg config.Config, log obslog.Logger) error {
	settings := settingsFor(cfg)
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	clientConn, serverConn := net.Pipe()

	var clientMu, serverMu sync.Mutex

	clientObs := &demoObserver{name: "client", conn: clientConn, log: log, settled: make(chan struct{})}
	serverObs := &demoObserver{name: "server", conn: serverConn, log: log}

	client := engine.New(engine.Client, clientObs, engine.WithLogger(log), engine.WithMetrics(obsmetrics.Prom), engine.WithInitialSettings(settings))
	server := engine.New(engine.Server, serverObs, engine.WithLogger(log), engine.WithMetrics(obsmetrics.Prom), engine.WithInitialSettings(settings))

	go readLoop(clientConn, client, &clientMu, log)
	go readLoop(serverConn, server, &serverMu, log)

	// onRequest fires from inside server.DataReceived (via OnMessageStart),
	// called with serverMu already held by readLoop — do not re-lock here.
	serverObs.onRequest = func(id uint32, msg *engine.Message) {
		resp := &engine.Message{StatusCode: 200, Headers: nil}
		_, err := server.WriteMessage(id, resp, false)
		if err == nil {
			_, err = server.WriteData(id, []byte("hello from h2demo\n"), true)
		}
		if err != nil {
			log.Errorf("server write: %v", err)
		}
	}

	serverMu.Lock()
	err := server.Made(engine.HTTP2_0)
	serverMu.Unlock()
	if err != nil {
		return fmt.Errorf("server made: %v", err)
	}

	clientMu.Lock()
	err = client.Made(engine.HTTP2_0)
	clientMu.Unlock()
	if err != nil {
		return fmt.Errorf("client made: %v", err)
	}

	req := &engine.Message{
		IsRequest: true,
		Method:    "GET",
		Path:      "/",
		Scheme:    "http",
		Authority: "h2demo.local",
	}
	clientMu.Lock()
	_, err = client.WriteMessage(0, req, true)
	clientMu.Unlock()
	if err != nil {
		return fmt.Errorf("client write_message: %v", err)
	}

	<-clientObs.settled
	clientMu.Lock()
	clientStats := client.Stats()
	clientMu.Unlock()
	serverMu.Lock()
	serverStats := server.Stats()
	serverMu.Unlock()
	fmt.Printf("client: frames_in=%d frames_out=%d bytes_in=%d bytes_out=%d\n",
		clientStats.FramesIn, clientStats.FramesOut, clientStats.BytesIn, clientStats.BytesOut)
	fmt.Printf("server: frames_in=%d frames_out=%d bytes_in=%d bytes_out=%d\n",
		serverStats.FramesIn, serverStats.FramesOut, serverStats.BytesIn, serverStats.BytesOut)

	clientConn.Close()
	serverConn.Close()
	return nil
}

// readLoop pumps bytes arriving on conn into eng's data_received, the way a
// real embedder would drive the engine from a live net.Conn: one goroutine
// per direction, guarded by mu since a write call on the same engine can
// originate from the main goroutine at any time (the engine itself is not
// safe for concurrent use).
func readLoop(conn net.Conn, eng *engine.Connection, mu *sync.Mutex, log obslog.Logger) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			mu.Lock()
			derr := eng.DataReceived(append([]byte(nil), buf[:n]...))
			mu.Unlock()
			if derr != nil {
				log.Errorf("data_received: %v", derr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// demoObserver is the engine.Observer h2demo hands each side: it forwards
// written bytes to its net.Pipe half and logs message lifecycle events.
type demoObserver struct {
	engine.NopObserver
	name string
	conn net.Conn
	log  obslog.Logger

	onRequest func(id uint32, msg *engine.Message)
	settled   chan struct{}
}

func (o *demoObserver) OnWrite(b []byte) error {
	_, err := o.conn.Write(b)
	return err
}

func (o *demoObserver) OnMessageStart(id uint32, msg *engine.Message) error {
	if msg.IsRequest {
		o.log.Infof("%s: request %s %s", o.name, msg.Method, msg.Path)
		if o.onRequest != nil {
			o.onRequest(id, msg)
		}
		return nil
	}
	o.log.Infof("%s: response %d", o.name, msg.StatusCode)
	return nil
}

func (o *demoObserver) OnMessageEnd(id uint32) error {
	if o.settled != nil {
		close(o.settled)
	}
	return nil
}

