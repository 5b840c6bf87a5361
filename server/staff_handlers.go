package server

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/users"
	"github.com/rs/zerolog/log"
)

// staffMember is the wire form of a staff account. Password is only
// accepted, never returned.
type staffMember struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty"`
}

func staffFromUser(u *users.User) staffMember {
	return staffMember{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role), Phone: u.Phone}
}

// apply validates m and copies it onto u. The password is required when
// requirePassword is set and optional otherwise.
func (m staffMember) apply(u *users.User, requirePassword bool) error {
	if m.Name == "" || users.NormaliseEmail(m.Email) == "" {
		return errors.New("name and email are required")
	}
	role, err := users.ParseRole(m.Role)
	if err != nil {
		return err
	}
	if m.Password != "" || requirePassword {
		if err := users.ValidatePasswordStrength(m.Password); err != nil {
			return err
		}
		hash, err := users.HashPassword(m.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	u.Name = m.Name
	u.Email = users.NormaliseEmail(m.Email)
	u.Role = role
	u.Phone = m.Phone
	return nil
}

func (s *Server) ListStaffHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.repos.Users.List()
		if err != nil {
			writeStoreError(w, err)
			return
		}
		out := make([]staffMember, 0, len(list))
		for _, u := range list {
			out = append(out, staffFromUser(u))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) GetStaffHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.repos.Users.GetByID(r.PathValue("id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, staffFromUser(u))
	}
}

func (s *Server) CreateStaffHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m staffMember
		if err := decodeJSON(w, r, &m); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_request", "", err.Error())
			return
		}
		u := &users.User{DateJoined: s.clock.Now()}
		if err := m.apply(u, true); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_request", "", err.Error())
			return
		}
		if _, err := s.repos.Users.GetByEmail(u.Email); err == nil {
			writeAPIError(w, http.StatusConflict, "conflict", "", "email already in use")
			return
		}
		if err := s.repos.Users.Upsert(u); err != nil {
			writeStoreError(w, err)
			return
		}
		log.Info().Str("user", u.ID).Str("role", string(u.Role)).Msg("Staff member created")
		writeJSON(w, http.StatusCreated, staffFromUser(u))
	}
}

func (s *Server) UpdateStaffHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m staffMember
		if err := decodeJSON(w, r, &m); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_request", "", err.Error())
			return
		}
		existing, err := s.repos.Users.GetByID(r.PathValue("id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		updated := *existing
		if err := m.apply(&updated, false); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_request", "", err.Error())
			return
		}
		if other, err := s.repos.Users.GetByEmail(updated.Email); err == nil && other.ID != updated.ID {
			writeAPIError(w, http.StatusConflict, "conflict", "", "email already in use")
			return
		}
		if err := s.repos.Users.Upsert(&updated); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, staffFromUser(&updated))
	}
}

// DeleteStaffHandler removes an account and revokes its refresh tokens.
// Callers cannot delete themselves.
func (s *Server) DeleteStaffHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == claimsFrom(r.Context()).UserID {
			writeAPIError(w, http.StatusConflict, "conflict", "", "cannot delete your own account")
			return
		}
		if err := s.repos.Users.Delete(id); err != nil {
			writeStoreError(w, err)
			return
		}
		if err := s.refresh.RevokeUser(id); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(err).Str("user", id).Msg("Failed to revoke refresh tokens")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
