// seed inserts development sample data for local testing. Run with go run ./cmd/seed.
// Idempotent: skips inserts if the dev member (dev@example.com) already exists.
// The JWT secrets are required by config but unused.
package main

import (
	"context"
	"fmt"
	"log"

	"swadharma/backend/internal/config"
	"swadharma/backend/internal/db"
	householddomain "swadharma/backend/internal/household/domain"
	householdrepo "swadharma/backend/internal/household/repository"
	"swadharma/backend/internal/security"
	userdomain "swadharma/backend/internal/user/domain"
	userrepo "swadharma/backend/internal/user/repository"
)

const (
	memberEmail   = "dev@example.com"
	providerEmail = "pandit@example.com"
	devPassword   = "Password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewSQLRepository(conn, security.NewHasher(cfg.BcryptCost), userrepo.LockoutPolicy{})
	households := householdrepo.NewSQLRepository(conn)

	existing, err := users.GetByEmail(ctx, memberEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", memberEmail)
		return
	}

	member := mustCreate(ctx, users, userrepo.NewUser{
		Email:    memberEmail,
		Password: devPassword,
		Role:     userdomain.RoleMember,
		Profile:  userdomain.Profile{FullName: "Dev Member", Gotra: "Kashyapa", LanguagePreference: "en"},
	})
	mustCreate(ctx, users, userrepo.NewUser{
		Email:    providerEmail,
		Password: devPassword,
		Role:     userdomain.RoleProvider,
		Profile:  userdomain.Profile{FullName: "Pandit Dev", LanguagePreference: "hi"},
	})

	if _, err := households.Create(ctx, member.ID, "Dev Parivar", &householddomain.Address{
		Type:    householddomain.AddressHome,
		Line1:   "12 Temple Street",
		City:    "Hyderabad",
		State:   "Telangana",
		Pincode: "500001",
		Country: "IN",
	}); err != nil {
		log.Fatalf("create household: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Member login: %s / %s\n", memberEmail, devPassword)
	fmt.Printf("Provider login: %s / %s\n", providerEmail, devPassword)
}

func mustCreate(ctx context.Context, users *userrepo.SQLRepository, in userrepo.NewUser) *userdomain.User {
	u, err := users.Create(ctx, in)
	if err != nil {
		log.Fatalf("create %s: %v", in.Email, err)
	}
	if err := users.MarkEmailVerified(ctx, u.ID); err != nil {
		log.Fatalf("verify %s: %v", in.Email, err)
	}
	return u
}
