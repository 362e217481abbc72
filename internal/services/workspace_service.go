package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"leadgenBack/internal/models"
	"leadgenBack/internal/payouts"
)

const apiKeySecretBytes = 24

// PartnerLookup confirms a referral partner exists.
type PartnerLookup interface {
	GetPartner(ctx context.Context, id string) (payouts.Partner, error)
}

type WorkspaceService struct {
	Workspaces WorkspaceStore
	Partners   PartnerLookup

	known sync.Map
}

// EnsureKnown mirrors a workspace issued by the auth backend the first time this process
// sees it.
func (s *WorkspaceService) EnsureKnown(ctx context.Context, workspaceID string) error {
	if _, ok := s.known.Load(workspaceID); ok {
		return nil
	}
	if err := s.Workspaces.Ensure(ctx, workspaceID, workspaceID); err != nil {
		return fmt.Errorf("ensure workspace %s: %w", workspaceID, err)
	}
	s.known.Store(workspaceID, struct{}{})
	return nil
}

func (s *WorkspaceService) Get(ctx context.Context, workspaceID string) (models.Workspace, error) {
	return s.Workspaces.Get(ctx, workspaceID)
}

// RotateAPIKey issues a new ingestion key "<workspaceID>.<secret>". Only a bcrypt hash of
// the secret is stored, so the key is shown once.
func (s *WorkspaceService) RotateAPIKey(ctx context.Context, workspaceID string) (string, error) {
	if err := s.EnsureKnown(ctx, workspaceID); err != nil {
		return "", err
	}
	buf := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	secret := hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	if err := s.Workspaces.SetAPIKeyHash(ctx, workspaceID, string(hash)); err != nil {
		return "", err
	}
	return workspaceID + "." + secret, nil
}

// AuthenticateAPIKey resolves an ingestion key to a principal of its workspace.
func (s *WorkspaceService) AuthenticateAPIKey(ctx context.Context, key string) (models.Principal, error) {
	workspaceID, secret, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || workspaceID == "" || secret == "" {
		return models.Principal{}, models.ErrInvalidCredentials
	}
	ws, err := s.Workspaces.Get(ctx, workspaceID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Principal{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.Principal{}, err
	}
	if ws.APIKeyHash == "" || bcrypt.CompareHashAndPassword([]byte(ws.APIKeyHash), []byte(secret)) != nil {
		return models.Principal{}, models.ErrInvalidCredentials
	}
	return models.Principal{UserID: "api-key", WorkspaceID: ws.ID, Role: models.RoleMember}, nil
}

// AttachReferrer records the partner that referred a workspace; its future payments
// earn that partner commission.
func (s *WorkspaceService) AttachReferrer(ctx context.Context, workspaceID, partnerID string) error {
	if s.Partners != nil {
		if _, err := s.Partners.GetPartner(ctx, partnerID); err != nil {
			return fmt.Errorf("partner %s: %w", partnerID, err)
		}
	}
	if err := s.EnsureKnown(ctx, workspaceID); err != nil {
		return err
	}
	return s.Workspaces.SetReferrer(ctx, workspaceID, partnerID)
}
