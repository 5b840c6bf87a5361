package server

import (
	"fmt"

	"github.com/jrsteele09/go-agency-admin/server/resourcerepo"
	"github.com/jrsteele09/go-agency-admin/users"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem creates the admin staff account from the configured
// credentials when no account with that email exists.
func (s *Server) InitialiseSystem() error {
	email := users.NormaliseEmail(s.config.GetAdminEmail())
	if _, err := s.repos.Users.GetByEmail(email); err == nil {
		return nil
	}

	hash, err := users.HashPassword(s.config.GetAdminPassword())
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] hash admin password: %w", err)
	}
	admin := &users.User{
		Email:        email,
		Name:         "Administrator",
		Role:         users.RoleAdmin,
		PasswordHash: hash,
		DateJoined:   s.clock.Now(),
	}
	if err := s.repos.Users.Upsert(admin); err != nil {
		return fmt.Errorf("[Server InitialiseSystem] create admin: %w", err)
	}
	log.Info().Str("email", email).Msg("Admin account created")
	return nil
}

// AddStaff creates a staff account directly, bypassing the API.
func (s *Server) AddStaff(email, name, password string, role users.RoleType) (*users.User, error) {
	u := &users.User{DateJoined: s.clock.Now()}
	m := staffMember{Name: name, Email: email, Role: string(role), Password: password}
	if err := m.apply(u, true); err != nil {
		return nil, fmt.Errorf("[Server AddStaff] %w", err)
	}
	if err := s.repos.Users.Upsert(u); err != nil {
		return nil, fmt.Errorf("[Server AddStaff] %w", err)
	}
	return u, nil
}

// SeedDemoData adds a few records to every collection so a fresh mock
// API has something to show.
func (s *Server) SeedDemoData() error {
	create := func(name string, doc resourcerepo.Document) (string, error) {
		created, err := s.repos.Records.Create(name, doc)
		if err != nil {
			return "", fmt.Errorf("[Server SeedDemoData] %s: %w", name, err)
		}
		return created.ID(), nil
	}

	customer, err := create("customers", resourcerepo.Document{"name": "Grace Hopper", "email": "grace@example.com", "nationality": "US"})
	if err != nil {
		return err
	}
	if _, err := create("customers", resourcerepo.Document{"name": "Alan Turing", "email": "alan@example.com", "nationality": "GB"}); err != nil {
		return err
	}
	vehicle, err := create("vehicles", resourcerepo.Document{"registration": "KDA 123A", "make": "Toyota", "model": "Land Cruiser", "seats": 7, "status": "available"})
	if err != nil {
		return err
	}
	if _, err := create("vehicles", resourcerepo.Document{"registration": "KDB 456B", "make": "Nissan", "model": "Safari", "seats": 6, "status": "maintenance"}); err != nil {
		return err
	}
	supplier, err := create("suppliers", resourcerepo.Document{"name": "Mara Lodge", "category": "hotel", "contact": "reservations@maralodge.example"})
	if err != nil {
		return err
	}
	pkg, err := create("packages", resourcerepo.Document{"name": "Mara 3-day safari", "destination": "Maasai Mara", "durationDays": 3, "price": 1200})
	if err != nil {
		return err
	}
	booking, err := create("bookings", resourcerepo.Document{"customerId": customer, "packageId": pkg, "vehicleId": vehicle, "status": "confirmed", "totalAmount": 1200})
	if err != nil {
		return err
	}
	if _, err := create("payments", resourcerepo.Document{"bookingId": booking, "amount": 600, "method": "card", "status": "paid"}); err != nil {
		return err
	}
	if _, err := create("payments", resourcerepo.Document{"bookingId": booking, "amount": 600, "method": "bank-transfer", "status": "pending"}); err != nil {
		return err
	}
	if _, err := create("expenses", resourcerepo.Document{"supplierId": supplier, "category": "accommodation", "amount": 450, "description": "Two nights, full board"}); err != nil {
		return err
	}
	log.Info().Msg("Demo data seeded")
	return nil
}
