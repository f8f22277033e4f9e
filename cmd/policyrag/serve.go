package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"

	pmcp "policyrag/mcp"
	"policyrag/service"
)

func serveCmd(args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional, defaults to ~/.policyrag/config.yaml if present)")
	location := flags.String("location", "", "corpus location (overrides config)")
	mcpAddr := flags.String("mcp-addr", "", "MCP server address (default from config or 127.0.0.1:6061)")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := loadServiceConfig(*configPath)
	if *location != "" {
		cfg.Corpus.Location = *location
	}
	addr := resolveMCPAddr(*mcpAddr, cfg)

	svc := newService(cfg, service.WithLogf(log.Printf))
	defer func() { _ = svc.Close() }()

	server, err := mcpsrv.New(
		mcpsrv.WithImplementation(schema.Implementation{Name: "policyrag-mcp", Version: version}),
		mcpsrv.WithNewHandler(pmcp.NewHandler(svc)),
		mcpsrv.WithEndpointAddress(addr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI("/mcp"),
	)
	if err != nil {
		log.Fatalf("serve: %v", err)
	}
	server.UseStreamableHTTP(true)

	httpServer := server.HTTP(ctx, addr)
	httpServer.ReadHeaderTimeout = 10 * time.Second
	httpServer.ReadTimeout = time.Minute
	httpServer.WriteTimeout = time.Minute
	httpServer.IdleTimeout = 2 * time.Minute

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.ListenAndServe() }()
	log.Printf("policyrag-mcp listening on %s", httpServer.Addr)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		<-serveErr
	}
	log.Printf("policyrag-mcp stopped")
}

func resolveMCPAddr(flagAddr string, cfg *service.Config) string {
	switch {
	case flagAddr != "":
		return flagAddr
	case cfg == nil:
	case cfg.MCP.Addr != "":
		return cfg.MCP.Addr
	case cfg.MCP.Port > 0:
		return fmt.Sprintf("127.0.0.1:%d", cfg.MCP.Port)
	}
	return "127.0.0.1:6061"
}
