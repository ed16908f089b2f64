package main

import (
	"flag"

	"github.com/MiddyPham/middy-corner-back-end/internal/config"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/MiddyPham/middy-corner-back-end/internal/logging"
	"github.com/rs/zerolog/log"
)

// Creates or promotes an admin account. Without flags it reads ADMIN_EMAIL
// and ADMIN_PASSWORD.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	email := flag.String("email", cfg.AdminEmail, "admin email")
	password := flag.String("password", cfg.AdminPassword, "admin password, used only when the account is new")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal().Msg("email and password are required (flags or ADMIN_EMAIL / ADMIN_PASSWORD)")
	}

	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN()); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := db.EnsureAdmin(*email, *password); err != nil {
		log.Fatal().Err(err).Msg("failed to create admin")
	}
	log.Info().Str("email", *email).Msg("admin account ready")
}
