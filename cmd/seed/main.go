package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"eventix/internal/events"
	"eventix/internal/seats"
	"eventix/internal/shared/config"
	"eventix/internal/shared/database"
	"eventix/internal/users"
	"eventix/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Seeder struct {
	db     *database.DB
	users  users.Repository
	events events.Service
}

func main() {
	fmt.Println("🌱 Starting Eventix Database Seeder...")

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.UsesMemoryStorage() {
		log.Fatal("STORAGE_DRIVER=memory has nothing to seed; use postgres")
	}

	appLogger := logger.NewWithLevel("warn")
	db, err := database.InitDB(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{
		db:     db,
		users:  users.NewRepository(db.PostgreSQL),
		events: events.NewService(events.NewRepository(db.PostgreSQL), nil, 0, appLogger),
	}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"booking_seats",
		"bookings",
		"seats",
		"events",
		"users",
	}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll seeds users, then events with their generated seat maps
func (s *Seeder) SeedAll(ctx context.Context) error {
	userIDs, err := s.SeedUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	if err := s.SeedEvents(ctx, userIDs["organizer"]); err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}

	// Drop cached seat maps and event details from a previous run
	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}
	return nil
}

// SeedUsers creates an admin, an organizer and two customers. Every
// account uses the password "qwerty".
func (s *Seeder) SeedUsers(ctx context.Context) (map[string]uuid.UUID, error) {
	fmt.Println("  👤 Seeding users...")

	userIDs := make(map[string]uuid.UUID)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	usersData := []struct {
		key       string
		firstName string
		lastName  string
		email     string
		role      users.Role
	}{
		{"admin", "Admin", "User", "admin@eventix.dev", users.RoleAdmin},
		{"organizer", "Olive", "Organizer", "organizer@eventix.dev", users.RoleOrganizer},
		{"user1", "Alice", "Walker", "alice@eventix.dev", users.RoleUser},
		{"user2", "Bob", "Stone", "bob@eventix.dev", users.RoleUser},
	}

	now := time.Now().UTC()
	for _, userData := range usersData {
		user := &users.User{
			ID:        uuid.New(),
			FirstName: userData.firstName,
			LastName:  userData.lastName,
			Email:     userData.email,
			Password:  string(hashedPassword),
			Role:      userData.role,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", userData.email, err)
		}

		userIDs[userData.key] = user.ID
		fmt.Printf("    ✅ Created user: %s (%s)\n", user.Email, user.Role)
	}

	return userIDs, nil
}

func price(amount string) decimal.Decimal {
	return decimal.RequireFromString(amount)
}

// SeedEvents creates published and draft events through the event service,
// so seats are generated exactly as the API would generate them.
func (s *Seeder) SeedEvents(ctx context.Context, organizerID uuid.UUID) error {
	fmt.Println("  🎫 Seeding events...")

	start := time.Now().UTC().Truncate(time.Hour)

	requests := []events.CreateEventRequest{
		{
			Title:       "Go Systems Summit",
			Description: "Two tracks on distributed systems and production Go",
			Category:    "Technology",
			Venue:       events.VenueRequest{Name: "Harbor Convention Center", Address: "1 Pier Rd", City: "Seattle", Country: "US"},
			Date:        start.Add(30 * 24 * time.Hour),
			Capacity:    120,
			Pricing: map[seats.SeatType]decimal.Decimal{
				seats.SeatTypeVIP:      price("250.00"),
				seats.SeatTypePremium:  price("150.00"),
				seats.SeatTypeStandard: price("90.00"),
				seats.SeatTypeEconomy:  price("45.00"),
			},
			MaxBookingPerUser: 6,
			Publish:           true,
		},
		{
			Title:       "Midnight Jazz Quartet",
			Description: "An evening of standards and originals",
			Category:    "Music",
			Venue:       events.VenueRequest{Name: "Blue Room", Address: "48 Canal St", City: "New Orleans", Country: "US"},
			Date:        start.Add(36 * time.Hour),
			Capacity:    40,
			Pricing: map[seats.SeatType]decimal.Decimal{
				seats.SeatTypeVIP:      price("120.00"),
				seats.SeatTypePremium:  price("80.00"),
				seats.SeatTypeStandard: price("55.50"),
			},
			Publish: true,
		},
		{
			Title:    "City Marathon Expo",
			Category: "Sports",
			Venue:    events.VenueRequest{Name: "Riverside Hall", City: "Chicago", Country: "US"},
			Date:     start.Add(90 * 24 * time.Hour),
			Capacity: 200,
			Pricing: map[seats.SeatType]decimal.Decimal{
				seats.SeatTypeStandard: price("25.00"),
			},
		},
	}

	for _, req := range requests {
		event, err := s.events.CreateEvent(ctx, organizerID, req)
		if err != nil {
			return fmt.Errorf("failed to create event %s: %w", req.Title, err)
		}
		fmt.Printf("    ✅ Created event: %s (%s, %d seats)\n", event.Title, event.Status, event.Capacity)
	}
	return nil
}
