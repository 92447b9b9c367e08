package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"walletbot/internal/config"
	"walletbot/internal/security"

	"github.com/google/uuid"
)

// tokengen mints an RS256 bearer token for the HTTP report API
func main() {
	var (
		cfgPath = flag.String("config", "cmd/bot/config.yaml", "bot config with security.jwt")
		sub     = flag.String("sub", "", "token subject, the rate limit key of the caller")
		ttl     = flag.Duration("ttl", 24*time.Hour, "token lifetime")
		id      = flag.String("id", "", "token id (jti), random when empty")
	)
	flag.Parse()

	if *sub == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed load config, error=%v", err)
	}

	signer, err := security.NewRS256Signer(&cfg.Security.JWT)
	if err != nil {
		log.Fatalf("Failed to initialize signer, error=%v", err)
	}

	jti := *id
	if jti == "" {
		jti = uuid.NewString()
	}

	token, err := signer.Mint(*sub, *ttl, jti)
	if err != nil {
		log.Fatalf("Failed mint token, error=%v", err)
	}

	fmt.Println(token)
}
