package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbehnke/rclink/internal/config"
	"github.com/dbehnke/rclink/internal/database"
	"github.com/dbehnke/rclink/internal/metrics"
	"github.com/dbehnke/rclink/internal/protocol"
	"github.com/dbehnke/rclink/internal/protocol/crossfire"
	"github.com/dbehnke/rclink/internal/pulses"
	"github.com/dbehnke/rclink/internal/telemetry"
	"github.com/dbehnke/rclink/internal/transport"
)

const (
	VERSION = "1.0.0-go"

	STATUS_INTERVAL = 30 * time.Second
)

// Radio wires the module controller, the Crossfire link and telemetry
type Radio struct {
	config *config.Config
	logger *log.Logger

	db       *database.DB
	registry *telemetry.Registry
	link     *telemetry.LinkState
	clock    *pulses.TickClock

	controller *pulses.Controller
	runner     *pulses.Runner
	receiver   *crossfire.Receiver
	encoder    *crossfire.Encoder
	serial     *transport.SerialLink

	promRegistry *prometheus.Registry
	metrics      *metrics.Collector

	wg sync.WaitGroup
}

// NewRadio loads the configuration and builds every component
func NewRadio(configFile string) (*Radio, error) {
	cfg := config.NewConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	r := &Radio{
		config: cfg,
		logger: log.Default(),
		link:   telemetry.NewLinkState(),
		clock:  pulses.NewTickClock(),
		runner: pulses.NewRunner(),
	}

	if cfg.GetMetricsEnabled() {
		r.promRegistry = prometheus.NewRegistry()
		r.promRegistry.MustRegister(collectors.NewGoCollector())
		r.metrics = metrics.NewCollector(r.promRegistry)
	}

	var store telemetry.Store
	if cfg.GetDatabaseEnabled() {
		db, err := database.NewDB(database.Config{
			Path:  cfg.GetDatabasePath(),
			Debug: cfg.GetDatabaseDebug(),
		}, log.New(os.Stdout, "[DB] ", log.LstdFlags))
		if err != nil {
			log.Printf("Failed to initialize database: %v", err)
			log.Printf("Continuing without sensor persistence")
		} else {
			r.db = db
			store = db.Sensors()
		}
	}

	r.registry = telemetry.NewRegistry(store, r.logger)
	r.registry.SetDebug(cfg.GetLogDebug())
	r.registry.RegisterProtocol(telemetry.PROTOCOL_TELEMETRY_CROSSFIRE, crossfire.Defaults{})
	if r.db != nil {
		sensors, err := r.db.Sensors().LoadSensors()
		if err != nil {
			log.Printf("Failed to load sensors: %v", err)
		} else {
			r.registry.Load(sensors)
			log.Printf("Loaded %d telemetry sensors", len(sensors))
		}
	}

	r.controller = pulses.NewController(pulses.ControllerConfig{
		Model:     cfg.GetModel(),
		Features:  cfg.GetFeatures(),
		Scheduler: r.runner,
		Clock:     r.clock,
		Metrics:   r.metrics,
		Logger:    r.logger,
	})

	var passthrough *telemetry.Fifo
	if cfg.GetPassthroughEnabled() {
		passthrough = telemetry.NewFifo(telemetry.PASSTHROUGH_FIFO_SIZE, "passthrough")
	}

	decoder := crossfire.NewDecoder(crossfire.DecoderConfig{
		Sink:        r.registry,
		Link:        r.link,
		Sync:        r.controller.SyncStatus(protocol.EXTERNAL_MODULE),
		Passthrough: passthrough,
		Metrics:     r.metrics,
		Logger:      r.logger,
		Debug:       cfg.GetLogDebug(),
	})
	r.receiver = crossfire.NewReceiver(decoder, r.metrics, r.logger)
	r.receiver.SetDebug(cfg.GetLogDebug())

	r.serial = transport.NewSerialLink(transport.SerialConfig{
		Device:      cfg.GetSerialDevice(),
		BaudRate:    int(cfg.GetSerialBaudRate()),
		ReadTimeout: cfg.GetSerialReadTimeout(),
	}, r.receiver, r.logger)

	out := telemetry.NewOutputBuffer()
	r.encoder = crossfire.NewEncoder(out, passthrough)

	r.controller.RegisterDriver(
		crossfire.NewModuleDriver(r.serial, out, r.controller, r.metrics, r.logger),
		protocol.PROTO_CROSSFIRE)
	r.registerLogDrivers()

	return r, nil
}

// registerLogDrivers installs drivers for protocols without hardware here
func (r *Radio) registerLogDrivers() {
	for _, p := range []protocol.PulseProtocol{
		protocol.PROTO_PPM,
		protocol.PROTO_PXX,
		protocol.PROTO_DSM2_LP45,
		protocol.PROTO_DSM2_DSM2,
		protocol.PROTO_DSM2_DSMX,
		protocol.PROTO_MULTIMODULE,
		protocol.PROTO_SBUS,
		protocol.PROTO_FLYSKY,
		protocol.PROTO_AFHDS3,
	} {
		r.controller.RegisterDriver(pulses.LogDriver{Name: p.String(), Logger: r.logger}, p)
	}
}

// Run starts all loops and blocks until ctx is cancelled
func (r *Radio) Run(ctx context.Context) error {
	log.Printf("rclink v%s starting", VERSION)
	for p := protocol.Port(0); p < protocol.NUM_MODULES; p++ {
		log.Printf("%s module: %s", p, r.config.GetModuleType(p))
	}

	r.clock.Start()

	idle := make(chan struct{}, 1)
	r.controller.SetIdleWaiter(idle)

	r.wg.Add(3)
	go func() {
		defer r.wg.Done()
		if err := r.runner.Run(ctx, r.controller.SetupPulses); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Pulses: scheduler stopped: %v", err)
		}
	}()
	go func() {
		defer r.wg.Done()
		r.registry.Run(ctx, r.config.GetDatabaseFlushInterval())
	}()
	go func() {
		defer r.wg.Done()
		r.housekeeping(ctx, idle)
	}()

	var server *http.Server
	if r.promRegistry != nil {
		server = r.serveMetrics()
	}

	// ask the module to identify itself
	r.encoder.Send([]byte{crossfire.PING_DEVICES_ID, crossfire.BROADCAST_ADDRESS, crossfire.RADIO_ADDRESS})

	<-ctx.Done()
	log.Printf("Shutdown requested")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		server.Shutdown(shutdownCtx)
		cancel()
	}
	r.wg.Wait()

	// one paused tick per port disables the running drivers
	r.controller.PausePulses()
	for p := protocol.Port(0); p < protocol.NUM_MODULES; p++ {
		r.controller.SetupPulses(p)
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}
	return nil
}

// housekeeping runs the 10ms timer duties and the periodic status report
func (r *Radio) housekeeping(ctx context.Context, idle <-chan struct{}) {
	ticker := time.NewTicker(protocol.TICK_DURATION)
	statusTicker := time.NewTicker(STATUS_INTERVAL)
	defer ticker.Stop()
	defer statusTicker.Stop()

	wasStreaming := false
	reply := make([]byte, crossfire.TELEMETRY_RX_PACKET_SIZE)

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			r.link.Tick()
			streaming := r.link.IsStreaming()
			if streaming != wasStreaming {
				if streaming {
					log.Printf("Telemetry: link up")
				} else {
					log.Printf("Telemetry: link lost")
				}
				wasStreaming = streaming
			}
			if n, ok := r.encoder.Receive(reply); ok && n > 0 {
				log.Printf("Telemetry: module reply %s (%d bytes)", crossfire.FrameTypeName(reply[0]), n)
			}

		case <-idle:
			// both ports off; nothing to do until the model changes

		case <-statusTicker.C:
			r.logStatus()
		}
	}
}

func (r *Radio) logStatus() {
	hb := r.controller.Heartbeat()
	for p := protocol.Port(0); p < protocol.NUM_MODULES; p++ {
		st := r.controller.PortState(p)
		log.Printf("Status: %s module %s mode=%s heartbeat=%v",
			p, st.Protocol, st.Mode, hb&(1<<p) != 0)
	}
	if status := r.controller.SyncStatus(protocol.EXTERNAL_MODULE); status.IsValid() {
		rate, lag := status.RefreshRate()
		log.Printf("Status: module sync %dus lag %dus", rate, lag)
	}
	if rssi, ok := r.link.RSSI(); ok {
		log.Printf("Status: RSSI %d (min %d)", rssi, r.link.MinRSSI())
	}
	if r.receiver.IsError() {
		log.Printf("Status: telemetry receive errors since last report")
	}
	for _, s := range r.registry.Sensors() {
		log.Printf("Status: %s", s.String())
	}
}

func (r *Radio) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.promRegistry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              r.config.GetMetricsAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Metrics listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return server
}

// handleSignal maps SIGUSR1 to a bind request and SIGUSR2 to capturing
// custom failsafe positions on the external module
func (r *Radio) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGUSR1:
		if r.controller.ModuleMode(protocol.EXTERNAL_MODULE) == protocol.MODULE_BIND {
			r.controller.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_NORMAL_MODE)
		} else {
			r.controller.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_BIND)
		}
	case syscall.SIGUSR2:
		r.controller.SetCustomFailsafe(protocol.EXTERNAL_MODULE)
		log.Printf("Pulses: custom failsafe captured for %s module", protocol.EXTERNAL_MODULE)
	}
}

func getDefaultConfig() string {
	if _, err := os.Stat("rclink.ini"); err == nil {
		return "rclink.ini"
	}
	return "/etc/rclink.ini"
}

func main() {
	var (
		configFile = flag.String("config", getDefaultConfig(), "Configuration file path")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("rclink v%s\n", VERSION)
		return
	}

	if flag.NArg() > 0 {
		*configFile = flag.Arg(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("rclink v%s starting with config: %s", VERSION, *configFile)

	radio, err := NewRadio(*configFile)
	if err != nil {
		log.Fatalf("Failed to create radio: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGINT || sig == syscall.SIGTERM {
				log.Printf("Received signal %v, shutting down...", sig)
				cancel()
				return
			}
			radio.handleSignal(sig)
		}
	}()

	if err := radio.Run(ctx); err != nil {
		log.Fatalf("Radio error: %v", err)
	}

	log.Printf("rclink stopped")
}
