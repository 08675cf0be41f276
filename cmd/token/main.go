// Command token prints a signed admin access token for operators and
// local testing.  It reads JWT_SECRET from the environment or .env.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/car-rental-availability/internal/middleware"
	"github.com/iliyamo/car-rental-availability/internal/utils"
)

func main() {
	subject := flag.String("sub", "ops", "token subject")
	role := flag.String("role", middleware.RoleAdmin, "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing required env var: JWT_SECRET")
	}
	tok, err := utils.NewAccessToken(secret, *subject, *role, *ttl)
	if err != nil {
		log.WithError(err).Fatal("sign token")
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
