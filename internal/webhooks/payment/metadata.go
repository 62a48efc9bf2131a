package paymentwebhook

import (
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/adamzielonka/coursepath-backend/internal/grants"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
)

// grantKeyFromMetadata extracts the (buyer, kind, purchasable) triple from
// provider metadata. A missing or malformed key is a validation error so the
// provider does not retry an event that can never succeed.
func grantKeyFromMetadata(metadata map[string]string) (grants.GrantKey, error) {
	buyerRaw := strings.TrimSpace(metadata[metaBuyerID])
	if buyerRaw == "" {
		return grants.GrantKey{}, pkgerrors.New(pkgerrors.CodeValidation, "metadata missing "+metaBuyerID)
	}
	buyerID, err := uuid.Parse(buyerRaw)
	if err != nil {
		return grants.GrantKey{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "metadata "+metaBuyerID+" is not a uuid")
	}

	kind, err := enums.ParsePurchasableKind(strings.TrimSpace(metadata[metaPurchasableKind]))
	if err != nil {
		return grants.GrantKey{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "metadata "+metaPurchasableKind+" invalid")
	}

	purchasableRaw := strings.TrimSpace(metadata[metaPurchasableID])
	if purchasableRaw == "" {
		return grants.GrantKey{}, pkgerrors.New(pkgerrors.CodeValidation, "metadata missing "+metaPurchasableID)
	}
	purchasableID, err := uuid.Parse(purchasableRaw)
	if err != nil {
		return grants.GrantKey{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "metadata "+metaPurchasableID+" is not a uuid")
	}

	return grants.GrantKey{
		BuyerID:         buyerID,
		PurchasableKind: kind,
		PurchasableID:   purchasableID,
	}, nil
}

// GrantMetadata renders the key back into the map stamped on provider
// objects at checkout time.
func GrantMetadata(key grants.GrantKey) map[string]string {
	return map[string]string{
		metaBuyerID:         key.BuyerID.String(),
		metaPurchasableKind: string(key.PurchasableKind),
		metaPurchasableID:   key.PurchasableID.String(),
	}
}

func seedForKey(key grants.GrantKey) models.AccessGrant {
	return models.AccessGrant{
		BuyerID:         key.BuyerID,
		PurchasableKind: key.PurchasableKind,
		PurchasableID:   key.PurchasableID,
		State:           enums.GrantStatePending,
	}
}

func currencyFromStripe(currency stripe.Currency) enums.Currency {
	parsed, err := enums.ParseCurrency(strings.ToLower(string(currency)))
	if err != nil {
		return enums.CurrencyPLN
	}
	return parsed
}
