package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"piecework.app/piecework/security"
	"piecework.app/piecework/timesheet/model"
)

// createtoken prints a session token for local API testing.
func main() {
	userID := flag.String("user", "", "user id")
	name := flag.String("name", "Developer", "display name")
	role := flag.String("role", string(model.RoleEmployee), "role")
	company := flag.String("company", "", "company id")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" || *company == "" {
		log.Fatal("-user and -company are required")
	}
	if !model.Role(*role).Valid() {
		log.Fatalf("unknown role %q", *role)
	}
	secret := security.DecodeSecret(os.Getenv("PIECEWORK_AUTH_JWT_SECRET"))

	now := time.Now().UTC()
	token, err := security.CreateSessionToken(security.SessionIdentity{
		UserID:      *userID,
		Username:    *userID,
		Name:        *name,
		Role:        *role,
		CompanyID:   *company,
		ValidatedAt: now.Unix(),
	}, secret, now, now.Add(*ttl))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
