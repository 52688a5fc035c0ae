package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aetherflow/quantumrft/internal/rft/chunker"
	"github.com/aetherflow/quantumrft/internal/rft/congestion"
	"github.com/aetherflow/quantumrft/internal/rft/sender"
	"github.com/aetherflow/quantumrft/internal/rft/stream"
)

var (
	targetAddr = flag.String("addr", "127.0.0.1:9001", "receiver address")
	filePath   = flag.String("file", "", "path of the file to transfer")
	chunkSize  = flag.Int("chunk-size", chunker.DefaultChunkSize, "payload size per segment, in bytes")
	algoName   = flag.String("algorithm", "reno", "congestion control algorithm: tahoe|reno|bbr")
)

func main() {
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()
	log := logger.Sugar()

	if *filePath == "" {
		log.Fatal("-file is required")
	}

	algo, err := parseAlgorithm(*algoName)
	if err != nil {
		log.Fatalw("invalid algorithm", "algorithm", *algoName, "err", err)
	}

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatalw("failed to open source file", "path", *filePath, "err", err)
	}
	defer f.Close()

	src, err := chunker.NewSource(f, *chunkSize)
	if err != nil {
		log.Fatalw("failed to chunk source file", "path", *filePath, "err", err)
	}

	conn, err := stream.Dial("tcp", *targetAddr)
	if err != nil {
		log.Fatalw("failed to connect to receiver", "addr", *targetAddr, "err", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPrompt(); err != nil {
		log.Fatalw("handshake prompt read failed", "err", err)
	}
	if err := conn.SendFilename(filepath.Base(*filePath)); err != nil {
		log.Fatalw("handshake filename send failed", "err", err)
	}
	if _, err := conn.ReadReady(); err != nil {
		log.Fatalw("handshake ready read failed", "err", err)
	}

	cfg := sender.Config{Algorithm: algo, ChunkSize: uint32(*chunkSize)}
	engine := sender.New(conn, src, cfg, log)

	log.Infow("starting transfer",
		"file", *filePath,
		"addr", *targetAddr,
		"chunks", src.TotalChunks(),
		"algorithm", algo.String(),
	)

	if err := engine.Run(); err != nil {
		log.Fatalw("transfer failed", "file", *filePath, "err", err)
	}
	log.Infow("transfer complete", "file", *filePath)
}

func parseAlgorithm(name string) (congestion.Algorithm, error) {
	switch name {
	case "tahoe":
		return congestion.Tahoe, nil
	case "reno":
		return congestion.Reno, nil
	case "bbr":
		return congestion.BBR, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q", name)
	}
}
