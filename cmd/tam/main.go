package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/heron-streaming/tam/pkg/events"
	"github.com/heron-streaming/tam/pkg/log"
	"github.com/heron-streaming/tam/pkg/metrics"
	"github.com/heron-streaming/tam/pkg/planfile"
	"github.com/heron-streaming/tam/pkg/resourcemanager/sim"
	"github.com/heron-streaming/tam/pkg/tam"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tam",
	Short:   "Topology Application Master",
	Long:    "tam runs a Topology Application Master: it procures containers, fits logical workers to them, and supervises the Topology Master process.",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("tam version %s\ncommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(simulateCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a packing plan against an in-memory resource manager simulator",
	Long: `simulate loads a packing plan from --plan, schedules its workers against an
in-memory resource manager (standing in for the real in-cluster client), grants
a matching allocation for every container, brings every worker to RUNNING, and
then waits for Ctrl+C to kill the topology.

It exists for local development and manual exercise of the lifecycle, not as
a replacement for the real scheduler plugin that embeds the TAM.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().String("plan", "", "Path to a packing plan YAML file (required)")
	simulateCmd.Flags().String("topology-name", "simulated-topology", "Topology name")
	simulateCmd.Flags().String("topology-jar", "topology.jar", "Topology JAR path")
	simulateCmd.Flags().String("role", "tam", "Submission role")
	simulateCmd.Flags().String("environment", "devel", "Submission environment")
	simulateCmd.Flags().String("cluster", "local", "Target cluster name")
	simulateCmd.Flags().Bool("verbose", false, "Verbose worker task output")
	simulateCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics on")
	simulateCmd.MarkFlagRequired("plan")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	planPath, _ := cmd.Flags().GetString("plan")
	topologyName, _ := cmd.Flags().GetString("topology-name")
	topologyJAR, _ := cmd.Flags().GetString("topology-jar")
	role, _ := cmd.Flags().GetString("role")
	environment, _ := cmd.Flags().GetString("environment")
	cluster, _ := cmd.Flags().GetString("cluster")
	verbose, _ := cmd.Flags().GetBool("verbose")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	plan, err := planfile.Load(planPath)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	tail := broker.Subscribe()
	go func() {
		for ev := range tail {
			fmt.Printf("[%s] %s %v\n", ev.Type, ev.Message, ev.Metadata)
		}
	}()

	rm := sim.New()
	ctrl := tam.New(rm, tam.Config{
		TopologyName:        topologyName,
		TopologyJARPath:     topologyJAR,
		TopologyPackageName: topologyName + ".tar.gz",
		CorePackageName:     "heron-core.tar.gz",
		Role:                role,
		Environment:         environment,
		Cluster:             cluster,
		Verbose:             verbose,
	}, log.WithComponent("tam"), broker)
	rm.Bind(ctrl)

	metrics.SetVersion(Version)
	metrics.RegisterComponent("resource_manager", true, "simulated")
	metrics.RegisterComponent("tm_supervisor", false, "not yet launched")

	collector := metrics.NewCollector(ctrl.Registry())
	collector.Start()
	defer collector.Stop()

	go func() {
		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", metricsAddr)

	if err := ctrl.ScheduleWorkers(plan); err != nil {
		return fmt.Errorf("schedule workers: %w", err)
	}
	fmt.Printf("✓ Scheduled %d workers\n", len(plan.Containers))

	tmCtx, cancelTM := context.WithCancel(context.Background())
	defer cancelTM()
	ctrl.LaunchTM(tmCtx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	metrics.RegisterComponent("tm_supervisor", true, "running")
	fmt.Println("✓ Topology Master launched")

	for _, container := range plan.Containers {
		alloc := rm.Grant(container.Resource.RAM, int(math.Ceil(container.Resource.CPU)))
		w := ctrl.Registry().LookupByAllocationID(alloc.AllocationID())
		if w == nil {
			fmt.Printf("✗ Allocation %s matched no pending worker\n", alloc.AllocationID())
			continue
		}
		rm.ActivateContext(strconv.Itoa(w.ID))
		fmt.Printf("✓ Worker %d bound to allocation %s and running\n", w.ID, alloc.AllocationID())
	}

	fmt.Println()
	fmt.Println("Topology is running. Press Ctrl+C to kill it.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nKilling topology...")
	if err := ctrl.KillTopology(); err != nil {
		return fmt.Errorf("kill topology: %w", err)
	}
	fmt.Println("✓ Topology killed")
	return nil
}
