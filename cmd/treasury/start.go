package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/treasury"
	"github.com/axiomesh/treasury/core"
	"github.com/axiomesh/treasury/repo"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func start(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(r.Config.LogsPath()),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return fmt.Errorf("log initialize: %w", err)
	}

	printVersion()

	logger := log.New()
	logger.SetLevel(log.ParseLevel(r.Config.Log.Level))

	var (
		reg        *prometheus.Registry
		registerer prometheus.Registerer
	)
	if r.Config.Metrics.Enable {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registerer = reg
	}

	client, err := ethclient.DialContext(ctx.Context, r.Config.Chain.DialUrl)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.Config.Chain.DialUrl, err)
	}

	rt, err := openRuntime(r.Config, logger, registerer)
	if err != nil {
		return err
	}

	node := core.NewNode(context.Background(), r.Config, client, rt, logger)

	if reg != nil {
		go serveMetrics(r.Config.Metrics.ListenAddr, reg)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	handleShutdown(node, &wg)

	if err := node.Start(); err != nil {
		return fmt.Errorf("start treasury failed: %w", err)
	}

	fmt.Println("=============Treasury is ready=============")

	wg.Wait()

	return nil
}

// serveMetrics exposes prometheus metrics next to the pprof handlers of the
// default mux.
func serveMetrics(addr string, reg *prometheus.Registry) {
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("metrics server stopped: %s\n", err)
	}
}

func printVersion() {
	fmt.Printf("Treasury version: %s-%s-%s\n", treasury.CurrentVersion, treasury.CurrentBranch, treasury.CurrentCommit)
	fmt.Printf("App build date: %s\n", treasury.BuildDate)
	fmt.Printf("System version: %s\n", treasury.Platform)
	fmt.Printf("Golang version: %s\n", treasury.GoVersion)
	fmt.Println()
}

func handleShutdown(node *core.Node, wg *sync.WaitGroup) {
	var stop = make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM)
	signal.Notify(stop, syscall.SIGINT)

	go func() {
		<-stop
		fmt.Println("received interrupt signal, shutting down...")
		if err := node.Stop(); err != nil {
			panic(err)
		}
		wg.Done()
		os.Exit(0)
	}()
}
