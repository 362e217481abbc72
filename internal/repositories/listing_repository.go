package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"leadgenBack/internal/models"
)

const listingColumns = `id, seller_workspace_id, lead_id, price_credits, status, title, company, seniority, country,
	intent_score, buyer_workspace_id, sold_at, created_at`

// ListingFilter narrows marketplace browsing. Zero values are ignored.
type ListingFilter struct {
	Seniority      string
	Country        string
	MinIntentScore int
	Limit          int
	Offset         int
}

type ListingRepository struct {
	DB *sql.DB
}

// Create lists a lead owned by the seller workspace. The public fields are a snapshot of
// the lead; contact details stay hidden until purchase.
func (r *ListingRepository) Create(ctx context.Context, sellerWorkspaceID, leadID string, price int64) (models.Listing, error) {
	id := uuid.NewString()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO marketplace_listings (id, seller_workspace_id, lead_id, price_credits, status, title, company, seniority, country, intent_score)
		SELECT $1, l.workspace_id, l.id, $4, $5, l.title, l.company, l.seniority, l.country, l.intent_score
		FROM leads l
		WHERE l.workspace_id = $2 AND l.id = $3
		RETURNING `+listingColumns,
		id, sellerWorkspaceID, leadID, price, models.ListingActive)
	return scanListing(row)
}

func (r *ListingRepository) Get(ctx context.Context, id string) (models.Listing, error) {
	return scanListing(r.DB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM marketplace_listings WHERE id = $1`, id))
}

func (r *ListingRepository) ListActive(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	where := []string{"status = $1"}
	args := []interface{}{models.ListingActive}
	if f.Seniority != "" {
		args = append(args, f.Seniority)
		where = append(where, fmt.Sprintf("seniority = $%d", len(args)))
	}
	if f.Country != "" {
		args = append(args, f.Country)
		where = append(where, fmt.Sprintf("country ILIKE $%d", len(args)))
	}
	if f.MinIntentScore > 0 {
		args = append(args, f.MinIntentScore)
		where = append(where, fmt.Sprintf("intent_score >= $%d", len(args)))
	}
	limit, offset := clampPage(f.Limit, f.Offset)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM marketplace_listings WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		listingColumns, strings.Join(where, " AND "), len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *ListingRepository) Withdraw(ctx context.Context, sellerWorkspaceID, id string) error {
	return expectAffected(r.DB.ExecContext(ctx, `
		UPDATE marketplace_listings SET status = $3
		WHERE seller_workspace_id = $1 AND id = $2 AND status = $4`,
		sellerWorkspaceID, id, models.ListingWithdrawn, models.ListingActive))
}

// Purchase moves a listing to the buyer in one transaction: it debits the buyer, credits
// the seller minus the platform fee (feeBps, rounded down), copies the lead into the
// buyer workspace and marks the listing sold.
func (r *ListingRepository) Purchase(ctx context.Context, buyerWorkspaceID, listingID string, feeBps int) (models.Purchase, error) {
	var out models.Purchase
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		listing, err := scanListing(tx.QueryRowContext(ctx,
			`SELECT `+listingColumns+` FROM marketplace_listings WHERE id = $1 FOR UPDATE`, listingID))
		if err != nil {
			return err
		}
		if listing.Status != models.ListingActive {
			return models.ErrListingUnavailable
		}
		if listing.SellerWorkspaceID == buyerWorkspaceID {
			return models.ErrOwnListing
		}

		lead, err := scanLead(tx.QueryRowContext(ctx,
			`SELECT `+leadColumns+` FROM leads WHERE workspace_id = $1 AND id = $2`, listing.SellerWorkspaceID, listing.LeadID))
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrListingUnavailable
		}
		if err != nil {
			return err
		}

		var held bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM leads WHERE workspace_id = $1 AND email = $2)`, buyerWorkspaceID, lead.Email,
		).Scan(&held); err != nil {
			return err
		}
		if held {
			return models.ErrDuplicateLead
		}

		ref := "listing:" + listing.ID
		debit, err := debitTx(ctx, tx, buyerWorkspaceID, models.CreditMarketplacePurchase, listing.PriceCredits, &ref, "marketplace purchase")
		if err != nil {
			return err
		}

		fee := listing.PriceCredits * int64(feeBps) / 10000
		sellerCredits := listing.PriceCredits - fee
		if sellerCredits > 0 {
			if _, err := grantTx(ctx, tx, listing.SellerWorkspaceID, models.CreditMarketplaceSale, sellerCredits, &ref, "marketplace sale"); err != nil {
				return err
			}
		}

		copied := lead
		copied.ID = ""
		copied.WorkspaceID = buyerWorkspaceID
		copied.Source = models.LeadSourceMarketplace
		copied.Status = models.LeadStatusNew
		copied.OwnerAgentID = nil
		copied, err = insertLead(ctx, tx, copied)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE marketplace_listings SET status = $2, buyer_workspace_id = $3, sold_at = NOW()
			WHERE id = $1`, listing.ID, models.ListingSold, buyerWorkspaceID); err != nil {
			return err
		}

		out = models.Purchase{
			ListingID:     listing.ID,
			LeadID:        copied.ID,
			PriceCredits:  listing.PriceCredits,
			SellerCredits: sellerCredits,
			BuyerBalance:  debit.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return models.Purchase{}, err
	}
	return out, nil
}

func scanListing(row scanner) (models.Listing, error) {
	var (
		l      models.Listing
		buyer  sql.NullString
		soldAt sql.NullTime
	)
	err := row.Scan(&l.ID, &l.SellerWorkspaceID, &l.LeadID, &l.PriceCredits, &l.Status, &l.Title, &l.Company,
		&l.Seniority, &l.Country, &l.IntentScore, &buyer, &soldAt, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Listing{}, models.ErrNotFound
	}
	if err != nil {
		return models.Listing{}, err
	}
	l.BuyerWorkspaceID = nullToPtr(buyer)
	l.SoldAt = nullTimeToPtr(soldAt)
	return l, nil
}
