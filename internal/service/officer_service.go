package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/repository"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/apperrors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for request validation
type CreateOfficerRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone"`
	Password        string `json:"password" binding:"required,min=6"`
	Role            string `json:"role" binding:"required"`
	HSMKeyLabel     string `json:"hsm_key_label"`
	SeniorityMonths int    `json:"seniority_months"`
}

type UpdateOfficerRequest struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	HSMKeyLabel     string `json:"hsm_key_label"`
	SeniorityMonths *int   `json:"seniority_months"`
	Active          *bool  `json:"active"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// DTO for returning Officer without exposing sensitive data
type OfficerResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Role            string    `json:"role"`
	Tier            string    `json:"tier"`
	Active          bool      `json:"active"`
	SeniorityMonths int       `json:"seniority_months"`
	Workload        int64     `json:"workload"`
	CreatedAt       string    `json:"created_at"`
}

// OfficerService covers directory management and officer authentication.
type OfficerService interface {
	CreateOfficer(ctx context.Context, req CreateOfficerRequest) (*OfficerResponse, error)
	GetOfficer(ctx context.Context, id uuid.UUID) (*OfficerResponse, error)
	ListOfficers(ctx context.Context, role string, page, limit int) ([]OfficerResponse, int64, error)
	UpdateOfficer(ctx context.Context, id uuid.UUID, req UpdateOfficerRequest) (*OfficerResponse, error)
	DeactivateOfficer(ctx context.Context, id uuid.UUID) error

	Login(ctx context.Context, req LoginRequest) (*TokenPairResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPairResponse, error)
	Logout(ctx context.Context, refreshToken string) error
}

type officerService struct {
	officers repository.OfficerRepository
	tokens   repository.RefreshTokenRepository
	apps     repository.ApplicationRepository
}

func NewOfficerService(
	officers repository.OfficerRepository,
	tokens repository.RefreshTokenRepository,
	apps repository.ApplicationRepository,
) OfficerService {
	return &officerService{officers: officers, tokens: tokens, apps: apps}
}

func (s *officerService) CreateOfficer(ctx context.Context, req CreateOfficerRequest) (*OfficerResponse, error) {
	if _, ok := model.TierOf(req.Role); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", apperrors.ErrValidationError, req.Role)
	}

	if _, err := s.officers.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", apperrors.ErrValidationError)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	officer := &model.Officer{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        string(hashed),
		Role:            req.Role,
		Active:          true,
		HSMKeyLabel:     req.HSMKeyLabel,
		SeniorityMonths: req.SeniorityMonths,
	}
	if err := s.officers.Create(ctx, officer); err != nil {
		return nil, fmt.Errorf("failed to create officer: %w", err)
	}

	return s.toResponse(ctx, officer), nil
}

func (s *officerService) GetOfficer(ctx context.Context, id uuid.UUID) (*OfficerResponse, error) {
	officer, err := s.officers.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "officer")
	}
	return s.toResponse(ctx, officer), nil
}

func (s *officerService) ListOfficers(ctx context.Context, role string, page, limit int) ([]OfficerResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	officers, total, err := s.officers.List(ctx, role, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list officers: %w", err)
	}

	result := make([]OfficerResponse, 0, len(officers))
	for i := range officers {
		result = append(result, *s.toResponse(ctx, &officers[i]))
	}
	return result, total, nil
}

func (s *officerService) UpdateOfficer(ctx context.Context, id uuid.UUID, req UpdateOfficerRequest) (*OfficerResponse, error) {
	officer, err := s.officers.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "officer")
	}

	if req.Name != "" {
		officer.Name = req.Name
	}
	if req.Phone != "" {
		officer.Phone = req.Phone
	}
	if req.HSMKeyLabel != "" {
		officer.HSMKeyLabel = req.HSMKeyLabel
	}
	if req.SeniorityMonths != nil {
		officer.SeniorityMonths = *req.SeniorityMonths
	}
	if req.Active != nil {
		officer.Active = *req.Active
	}

	if err := s.officers.Update(ctx, officer); err != nil {
		return nil, fmt.Errorf("failed to update officer: %w", err)
	}
	return s.toResponse(ctx, officer), nil
}

func (s *officerService) DeactivateOfficer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.officers.GetByID(ctx, id); err != nil {
		return wrapNotFound(err, "officer")
	}
	return s.officers.Deactivate(ctx, id)
}

func (s *officerService) Login(ctx context.Context, req LoginRequest) (*TokenPairResponse, error) {
	officer, err := s.officers.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}
	if !officer.Active {
		return nil, errors.New("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(officer.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return s.issueTokens(ctx, officer)
}

func (s *officerService) Refresh(ctx context.Context, refreshToken string) (*TokenPairResponse, error) {
	stored, err := s.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.tokens.Delete(ctx, refreshToken)
		return nil, errors.New("refresh token expired")
	}

	officer, err := s.officers.GetByID(ctx, stored.OfficerID)
	if err != nil || !officer.Active {
		return nil, errors.New("account unavailable")
	}

	// Rotate: old refresh token is single use.
	_ = s.tokens.Delete(ctx, refreshToken)
	return s.issueTokens(ctx, officer)
}

func (s *officerService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Delete(ctx, refreshToken)
}

// --- Helpers ---

func (s *officerService) issueTokens(ctx context.Context, officer *model.Officer) (*TokenPairResponse, error) {
	tier, _ := model.TierOf(officer.Role)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  officer.ID.String(),
		"role": officer.Role,
		"tier": tier,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}

	access, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, errors.New("failed to generate refresh token")
	}
	refresh := hex.EncodeToString(raw)

	rt := &model.RefreshToken{
		OfficerID: officer.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPairResponse{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *officerService) toResponse(ctx context.Context, officer *model.Officer) *OfficerResponse {
	tier, _ := model.TierOf(officer.Role)
	workload, err := s.apps.CountOpenForOfficer(ctx, officer.ID)
	if err != nil {
		workload = 0
	}
	return &OfficerResponse{
		ID:              officer.ID,
		Name:            officer.Name,
		Email:           officer.Email,
		Phone:           officer.Phone,
		Role:            officer.Role,
		Tier:            tier,
		Active:          officer.Active,
		SeniorityMonths: officer.SeniorityMonths,
		Workload:        workload,
		CreatedAt:       officer.CreatedAt.Format(time.RFC3339),
	}
}
