package main

import (
	"time"

	"github.com/fastprodman/casinoledger/internal/config"
)

type ledgerdConfig struct {
	config.Config

	Port            uint16        `env:"API_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}
