// Command devtoken prints a signed access token for local testing of the
// staff and customer endpoints.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/homestay-reservation/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("devtoken: ignoring .env: %v", err)
	}
	var (
		secret = flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (default $JWT_SECRET)")
		sub    = flag.Uint64("sub", 1, "user id")
		role   = flag.String("role", "STAFF", "STAFF, ADMIN or CUSTOMER")
		email  = flag.String("email", "", "email claim; customers are matched to bookings by it")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	tok, err := utils.NewAccessToken(*secret, *sub, *role, *email, *ttl)
	if err != nil {
		log.Fatalf("devtoken: %v", err)
	}
	fmt.Println(tok.Token)
}
