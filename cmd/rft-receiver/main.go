package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aetherflow/quantumrft/internal/gateway/discovery"
	"github.com/aetherflow/quantumrft/internal/rft/chunker"
	"github.com/aetherflow/quantumrft/internal/rft/errs"
	"github.com/aetherflow/quantumrft/internal/rft/losssim"
	"github.com/aetherflow/quantumrft/internal/rft/receiver"
	"github.com/aetherflow/quantumrft/internal/rft/stream"
)

var (
	listenAddr  = flag.String("addr", ":9001", "address to listen on")
	outDir      = flag.String("outdir", "received", "directory incoming files are written to")
	chunkSize   = flag.Int("chunk-size", chunker.DefaultChunkSize, "expected chunk size in bytes")
	dataLossP   = flag.Float64("data-loss", 0, "simulated data segment drop probability [0,1]")
	ackLossP    = flag.Float64("ack-loss", 0, "simulated ack drop probability [0,1]")
	lossSeed    = flag.Int64("loss-seed", 1, "seed for the loss simulator")
	healthAddr  = flag.String("health-addr", ":9101", "address the control-plane health check gRPC server listens on")
	etcdEnable  = flag.Bool("etcd-enable", false, "register this receiver in Etcd for gateway discovery")
	etcdEndpoints = flag.String("etcd-endpoints", "127.0.0.1:2379", "comma-separated Etcd endpoints")
	serviceName = flag.String("service-name", "worker", "service name this node registers under")
)

func main() {
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalw("failed to create output directory", "dir", *outDir, "err", err)
	}

	listener, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalw("failed to listen", "addr", *listenAddr, "err", err)
	}
	log.Infow("rft-receiver listening", "addr", *listenAddr, "outdir", *outDir)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(*serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpcServer := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	healthListener, err := net.Listen("tcp", *healthAddr)
	if err != nil {
		log.Fatalw("failed to listen for health checks", "addr", *healthAddr, "err", err)
	}
	go func() {
		if err := grpcServer.Serve(healthListener); err != nil {
			log.Warnw("health gRPC server stopped", "err", err)
		}
	}()
	log.Infow("health check server listening", "addr", *healthAddr)

	var etcdClient *discovery.EtcdClient
	if *etcdEnable {
		etcdClient, err = discovery.NewEtcdClient(&discovery.Config{
			Endpoints:   strings.Split(*etcdEndpoints, ","),
			DialTimeout: 5 * time.Second,
		}, logger)
		if err != nil {
			log.Fatalw("failed to create etcd client", "err", err)
		}
		// Receivers live under /rft/receivers/<pool>/<node-id>, distinct
		// from the generic /services/ namespace the gateway registers
		// itself under — resolver.Discover watches this same prefix.
		serviceKey := fmt.Sprintf("/rft/receivers/%s/%s", *serviceName, *listenAddr)
		if err := etcdClient.Register(serviceKey, *listenAddr, 10); err != nil {
			log.Fatalw("failed to register with etcd", "err", err)
		}
		log.Infow("registered with etcd", "key", serviceKey, "service", *serviceName)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal, closing listener")
		if etcdClient != nil {
			_ = etcdClient.Unregister()
			_ = etcdClient.Close()
		}
		grpcServer.GracefulStop()
		listener.Close()
	}()

	for {
		nc, err := listener.Accept()
		if err != nil {
			log.Infow("listener closed, exiting", "err", err)
			return
		}
		go handleConn(nc, log)
	}
}

func handleConn(nc net.Conn, log *zap.SugaredLogger) {
	defer nc.Close()
	conn := stream.New(nc)

	if err := conn.SendPrompt("FILENAME?"); err != nil {
		log.Warnw("handshake prompt failed", "err", err)
		return
	}
	filename, err := conn.ReadFilename()
	if err != nil {
		log.Warnw("handshake filename read failed", "err", err)
		return
	}
	if err := conn.SendReady("READY"); err != nil {
		log.Warnw("handshake ready failed", "err", err)
		return
	}

	destPath := filepath.Join(*outDir, filepath.Base(filename))
	f, err := os.Create(destPath)
	if err != nil {
		log.Warnw("failed to create destination file", "path", destPath, "err", err)
		return
	}
	defer f.Close()

	var loss *losssim.Simulator
	if *dataLossP > 0 || *ackLossP > 0 {
		loss = losssim.New(*dataLossP, *ackLossP, *lossSeed)
	}

	cfg := receiver.DefaultConfig(*chunkSize)
	cfg.Loss = loss

	sink := chunker.NewSink(f)
	engine := receiver.New(conn, sink, cfg, log)

	log.Infow("receiving transfer", "filename", filename, "dest", destPath)
	if err := engine.Run(); err != nil {
		if errors.Is(err, errs.ErrChannelClosed) {
			log.Infow("peer disconnected", "filename", filename)
			return
		}
		log.Warnw("transfer failed", "filename", filename, "err", err)
		return
	}
	log.Infow("transfer complete", "filename", filename, "dest", destPath)
}
