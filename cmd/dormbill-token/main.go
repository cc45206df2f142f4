// Command dormbill-token signs an API token for a treasurer or dormer,
// using the same AUTH_JWT_SECRET as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"dormbill/internal/auth"
	"dormbill/internal/cli"
	"dormbill/internal/core"
	"dormbill/internal/log"
)

func main() {
	id := flag.String("id", "", "actor id (random if empty)")
	name := flag.String("name", "", "display name recorded on payments")
	email := flag.String("email", "", "actor email")
	role := flag.String("role", auth.RoleAdmin, "role: admin may record payments, anything else is read-only")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentAuth)

	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required to sign tokens")
		os.Exit(1)
	}
	if *name == "" {
		logger.Error("-name is required")
		os.Exit(2)
	}
	if *id == "" {
		*id = uuid.NewString()
	}

	token, err := auth.NewJWTManager(cfg.AuthJWTSecret, cfg.AuthIssuer, *ttl).Generate(core.Actor{
		ID:    *id,
		Name:  *name,
		Email: *email,
		Role:  *role,
	})
	if err != nil {
		logger.Error("Failed to sign token", log.FieldError, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
