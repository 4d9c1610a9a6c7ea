package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/framecast/engine/internal/analysis"
	"github.com/framecast/engine/internal/capture"
	"github.com/framecast/engine/internal/config"
	"github.com/framecast/engine/internal/health"
	"github.com/framecast/engine/internal/lifecycle"
	"github.com/framecast/engine/internal/logging"
	"github.com/framecast/engine/internal/preview"
	"github.com/framecast/engine/internal/processing"
)

var (
	version = "0.1.0"
	cfgFile string

	targetWindow string
	useDisplay   bool
)

var rootCmd = &cobra.Command{
	Use:   "framecast",
	Short: "Framecast capture engine",
	Long:  `Framecast - screen capture and frame distribution engine with live preview`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the capture engine",
	Run: func(cmd *cobra.Command, args []string) {
		runEngine()
	},
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List capturable windows",
	Run: func(cmd *cobra.Command, args []string) {
		listWindows()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		dumpConfig()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Framecast v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./framecast.yaml)")
	runCmd.Flags().StringVar(&targetWindow, "window", "", "capture the named window instead of a display")
	runCmd.Flags().BoolVar(&useDisplay, "display", false, "capture the configured display via desktop duplication")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runEngine() {
	cfg := loadConfig()
	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	log := logging.L("main")

	orch := capture.NewOrchestrator(capture.OrchestratorConfig{
		DisplayIndex:  cfg.DisplayIndex,
		FrameInterval: cfg.FrameInterval,
		HubCapacity:   cfg.HubCapacity,
		GPUProcessing: cfg.GPUProcessing,
	})

	svc := processing.NewService(orch, processing.ServiceConfig{
		PreviewWidth:  cfg.PreviewWidth,
		PreviewHeight: cfg.PreviewHeight,
		JPEGQuality:   cfg.JPEGQuality,
		SettleDelay:   cfg.StopSettleDelay,
	})

	ana := analysis.NewService(orch, analysis.AnalyzerFunc(func(*capture.Frame) {
		// placeholder consumer; real analyzers register here
	}), analysis.Config{Workers: cfg.AnalysisWorkers, QueueSize: cfg.AnalysisQueueSize})

	var err error
	switch {
	case targetWindow != "":
		err = svc.SetTarget(targetWindow)
	case useDisplay:
		err = svc.SetDisplayTarget()
	default:
		fmt.Fprintln(os.Stderr, "Specify --window <name> or --display")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start capture: %v\n", err)
		os.Exit(1)
	}
	if err := ana.Start(); err != nil {
		log.Warn("analysis service failed to start", logging.KeyError, err)
	}

	monitor := health.NewMonitor()
	stopHealth := make(chan struct{})
	go watchHealth(monitor, orch, svc, stopHealth)

	srv := preview.NewServer(cfg.PreviewListenAddr, svc.Latest(), orch, svc, monitor)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("preview server failed", logging.KeyError, err)
		}
	}()

	log.Info("engine running",
		"preview_addr", cfg.PreviewListenAddr,
		logging.KeyTarget, svc.Target())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	close(stopHealth)
	ana.Stop()
	svc.Stop()
	orch.Close()
}

// watchHealth refreshes component health from the live services until
// stop is closed.
func watchHealth(m *health.Monitor, orch *capture.Orchestrator, svc *processing.Service, stop <-chan struct{}) {
	refresh := func() {
		if orch.IsActive() {
			m.Update("capture", health.Healthy, "")
		} else {
			m.Update("capture", health.Unhealthy, "capture inactive")
		}
		if svc.State() == lifecycle.Running {
			m.Update("processing", health.Healthy, "")
		} else {
			m.Update("processing", health.Degraded, "pipeline stopped")
		}
	}
	refresh()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func listWindows() {
	resolver := capture.NewWindowResolver()
	windows, err := resolver.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list windows: %v\n", err)
		os.Exit(1)
	}
	if len(windows) == 0 {
		fmt.Println("No capturable windows found.")
		return
	}
	for _, w := range windows {
		fmt.Printf("0x%08X  %s\n", w.Handle, w.Title)
	}
}

func dumpConfig() {
	cfg := loadConfig()
	out, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}
