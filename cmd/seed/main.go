// Seed creates the default roles and, when SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are set,
// an admin identity. Safe to run repeatedly.
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"authcore/internal/config"
	"authcore/internal/credential"
	"authcore/internal/db"
	identitydomain "authcore/internal/identity/domain"
	identityrepo "authcore/internal/identity/repository"
	"authcore/internal/logging"
	roledomain "authcore/internal/role/domain"
	rolerepo "authcore/internal/role/repository"
	"authcore/internal/security"
	"authcore/internal/server"
)

var defaultRoles = []*roledomain.Role{
	{Name: "user", Permissions: []string{"sessions:read", "sessions:revoke"}},
	{Name: server.AdminRole, Permissions: []string{"sessions:read", "sessions:revoke", "sessions:admin", "roles:assign"}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("info", "console", "seed")
		l.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, "seed")
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	roles := rolerepo.NewPostgresRepository(conn)
	for _, r := range defaultRoles {
		if err := roles.EnsureRole(ctx, r); err != nil {
			log.Fatal().Err(err).Str("role", r.Name).Msg("ensure role")
		}
		log.Info().Str("role", r.Name).Strs("permissions", r.Permissions).Msg("role ready")
	}

	email := strings.ToLower(strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL")))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Info().Msg("SEED_ADMIN_EMAIL/SEED_ADMIN_PASSWORD not set; skipping admin identity")
		return
	}
	vault := credential.NewVault(security.NewHasher(cfg.BcryptCost), credential.NewMemoryResetStore(), cfg.ResetTokenTTL())
	if err := seedAdmin(ctx, identityrepo.NewPostgresRepository(conn), roles, vault, email, password, log); err != nil {
		log.Fatal().Err(err).Str("email", email).Msg("seed admin")
	}
}

func seedAdmin(ctx context.Context, identities identityrepo.Repository, roles rolerepo.Repository, vault *credential.Vault, email, password string, log zerolog.Logger) error {
	existing, err := identities.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	id := ""
	if existing != nil {
		id = existing.ID
		log.Info().Str("identity_id", id).Msg("admin identity exists")
	} else {
		hash, err := vault.Hash(password)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		identity := &identitydomain.Identity{ID: uuid.NewString(), Email: email, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
		if err := identities.Create(ctx, identity); err != nil {
			return err
		}
		id = identity.ID
		log.Info().Str("identity_id", id).Msg("admin identity created")
	}
	if err := roles.Assign(ctx, id, server.AdminRole); err != nil {
		return err
	}
	log.Info().Str("identity_id", id).Str("role", server.AdminRole).Msg("admin role assigned")
	return nil
}
