package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/database"
	"github.com/sitskillbridge/skillbridge-backend/internal/logger"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
	"github.com/sitskillbridge/skillbridge-backend/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create SkillBridge User ===")

	fmt.Print("Enter Full Name: ")
	name, _ := reader.ReadString('\n')

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	fmt.Println()

	req := model.SignupRequest{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: string(bytePassword),
		FullName: strings.TrimSpace(name),
	}
	if fields := validator.Validate(&req); fields != nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("Error: %s\n", fields[k])
		}
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	u := &model.User{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hashedPassword),
	}
	if err := userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			fmt.Printf("Error: %s is already registered\n", u.Email)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! User '%s' (%s) created with ID: %s\n", u.FullName, u.Email, u.ID)
}
