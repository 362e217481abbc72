package services

import (
	"context"
	"fmt"

	"leadgenBack/internal/models"
	"leadgenBack/internal/realtime"
	"leadgenBack/internal/repositories"
)

// DefaultMarketplaceFeeBps is the platform cut of every sale: 10%, rounded down.
const DefaultMarketplaceFeeBps = 1000

type ListingStore interface {
	Create(ctx context.Context, sellerWorkspaceID, leadID string, price int64) (models.Listing, error)
	Get(ctx context.Context, id string) (models.Listing, error)
	ListActive(ctx context.Context, f repositories.ListingFilter) ([]models.Listing, error)
	Withdraw(ctx context.Context, sellerWorkspaceID, id string) error
	Purchase(ctx context.Context, buyerWorkspaceID, listingID string, feeBps int) (models.Purchase, error)
}

type MarketplaceService struct {
	Listings  ListingStore
	Credits   CreditStore
	Publisher Publisher
	FeeBps    int
	Logger    Logger
}

// List offers one of the workspace's leads for sale.
func (s *MarketplaceService) List(ctx context.Context, workspaceID, leadID string, price int64) (models.Listing, error) {
	if price <= 0 {
		return models.Listing{}, fmt.Errorf("%w: price must be positive", models.ErrInvalidInput)
	}
	listing, err := s.Listings.Create(ctx, workspaceID, leadID, price)
	if err != nil {
		return models.Listing{}, fmt.Errorf("list lead %s: %w", leadID, err)
	}
	return listing, nil
}

func (s *MarketplaceService) Browse(ctx context.Context, f repositories.ListingFilter) ([]models.Listing, error) {
	return s.Listings.ListActive(ctx, f)
}

func (s *MarketplaceService) Withdraw(ctx context.Context, workspaceID, id string) error {
	return s.Listings.Withdraw(ctx, workspaceID, id)
}

// Purchase buys a listing for the workspace and tells both sides about their new
// balances.
func (s *MarketplaceService) Purchase(ctx context.Context, workspaceID, listingID string) (models.Purchase, error) {
	fee := s.FeeBps
	if fee <= 0 {
		fee = DefaultMarketplaceFeeBps
	}
	purchase, err := s.Listings.Purchase(ctx, workspaceID, listingID, fee)
	if err != nil {
		return models.Purchase{}, err
	}
	if s.Publisher != nil {
		s.Publisher.Publish(workspaceID, realtime.EventCreditsUpdated,
			models.CreditBalance{WorkspaceID: workspaceID, Balance: purchase.BuyerBalance})
		if listing, err := s.Listings.Get(ctx, listingID); err == nil && s.Credits != nil {
			if bal, err := s.Credits.Balance(ctx, listing.SellerWorkspaceID); err == nil {
				s.Publisher.Publish(listing.SellerWorkspaceID, realtime.EventCreditsUpdated, bal)
			}
		}
	}
	if s.Logger != nil {
		s.Logger.Infof("marketplace: %s bought listing %s for %d credits", workspaceID, listingID, purchase.PriceCredits)
	}
	return purchase, nil
}
