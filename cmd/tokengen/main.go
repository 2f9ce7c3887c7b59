// Command tokengen prints a signed API token for the buildpulse API.
//
//	tokengen -sub ci-dashboard -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/buildpulse/buildpulse-go/internal/config"
	"github.com/buildpulse/buildpulse-go/internal/crypto"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	subject := flag.String("sub", "", "token subject, e.g. the name of the calling system")
	ttl := flag.Duration("ttl", cfg.JWTExpiry, "token lifetime")
	flag.Parse()

	token, err := crypto.GenerateToken(*subject, cfg.JWTSecret, *ttl)
	if err != nil {
		slog.Error("generating token", "error", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
