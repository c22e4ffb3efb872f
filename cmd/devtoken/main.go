// Command devtoken prints an access token for local testing, signed with
// JWT_SECRET from the environment or .env.
//
//	devtoken -user 42 -role STAFF -ttl 2h
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/auth"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

func main() {
	user := flag.Uint64("user", 1, "user id (token subject)")
	role := flag.String("role", string(model.RoleResident), "RESIDENT, STAFF or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	r, ok := model.ParseRole(*role)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}
	tok, err := auth.Sign(os.Getenv("JWT_SECRET"), model.Actor{UserID: *user, Role: r}, *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}
	_ = json.NewEncoder(os.Stdout).Encode(tok)
}
