package main

import (
	"flag"

	"github.com/unishare/unishare/internal/logger"
	"github.com/unishare/unishare/internal/relay"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	log := logger.New()

	srv := relay.NewServer(relay.Config{
		Addr:   *addr,
		Logger: log,
	})

	if err := srv.Run(); err != nil {
		log.Fatalf("Relay stopped: %v", err)
	}
}
