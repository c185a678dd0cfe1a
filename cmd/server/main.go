// Command server starts the relay chat service: a WebSocket endpoint where
// clients walk the onboarding flow (host or join a room, pick a username)
// and then exchange broadcast messages with their room.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/relay-chat/relaychat/internal/server"
)

func main() {
	fmt.Println("Starting relay chat server...")

	// Load .env file if present (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	go func() {
		if err := server.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	log.Printf("Received signal: %v. Shutting down...", sig)

	// Notify every room and drain the hub before taking the listener down.
	if err := server.GetHub().Shutdown(5 * time.Second); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}
	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
