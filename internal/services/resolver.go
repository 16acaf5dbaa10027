package services

import (
	"fmt"
	"strings"

	"github.com/duweku/backend/internal/models"
)

// UncategorizedLabel is shown for transactions without a matched category.
const UncategorizedLabel = "Uncategorized"

// Resolution is the concrete account/category choice for one extracted transaction.
type Resolution struct {
	Account   models.Account
	ToAccount *models.Account
	Category  *models.Category
}

// Name matching policy shared by accounts and categories:
//  1. case-insensitive exact match wins;
//  2. otherwise names containing the guess, shortest name first;
//  3. remaining ties keep the caller's fetch order.
func bestNameMatch(names []string, guess string) int {
	g := normalizeName(guess)
	if g == "" {
		return -1
	}

	for i, name := range names {
		if normalizeName(name) == g {
			return i
		}
	}

	best := -1
	for i, name := range names {
		n := normalizeName(name)
		if n == "" {
			continue
		}
		if !strings.Contains(n, g) {
			continue
		}
		if best == -1 || len(n) < len(normalizeName(names[best])) {
			best = i
		}
	}
	return best
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func activeOnly(accounts []models.Account) []models.Account {
	active := make([]models.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active
}

func accountNames(accounts []models.Account) []string {
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.Name
	}
	return names
}

// ResolveSourceAccount picks the account named by guess, falling back to the
// default account and then to the first active account.
func ResolveSourceAccount(accounts []models.Account, guess string) (*models.Account, error) {
	active := activeOnly(accounts)
	if len(active) == 0 {
		return nil, ErrNoAccounts
	}

	if i := bestNameMatch(accountNames(active), guess); i >= 0 {
		return &active[i], nil
	}
	for i := range active {
		if active[i].IsDefault {
			return &active[i], nil
		}
	}
	return &active[0], nil
}

// ResolveDestinationAccount matches guess against active accounts other than
// the source. There is no fallback: an unmatched guess is an error.
func ResolveDestinationAccount(accounts []models.Account, sourceID, guess string) (*models.Account, error) {
	candidates := make([]models.Account, 0, len(accounts))
	for _, a := range activeOnly(accounts) {
		if a.ID != sourceID {
			candidates = append(candidates, a)
		}
	}

	i := bestNameMatch(accountNames(candidates), guess)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrDestinationNotFound, guess)
	}
	return &candidates[i], nil
}

// ResolveCategory matches guess against categories of the given transaction
// type. Transfers never carry a category. A nil result means "Uncategorized".
func ResolveCategory(categories []models.Category, guess, txType string) *models.Category {
	if txType == models.TransactionTypeTransfer {
		return nil
	}

	scoped := make([]models.Category, 0, len(categories))
	for _, c := range categories {
		if c.Type == txType {
			scoped = append(scoped, c)
		}
	}

	names := make([]string, len(scoped))
	for i, c := range scoped {
		names[i] = c.Name
	}
	if i := bestNameMatch(names, guess); i >= 0 {
		return &scoped[i]
	}
	return nil
}

// Resolve maps one extracted transaction onto the workspace's records.
func Resolve(accounts []models.Account, categories []models.Category, ex ExtractedTransaction) (*Resolution, error) {
	source, err := ResolveSourceAccount(accounts, ex.FromAccountGuess)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Account: *source}
	if ex.Type == models.TransactionTypeTransfer {
		dest, err := ResolveDestinationAccount(accounts, source.ID, ex.ToAccountGuess)
		if err != nil {
			return nil, err
		}
		res.ToAccount = dest
		return res, nil
	}

	res.Category = ResolveCategory(categories, ex.CategoryGuess, ex.Type)
	return res, nil
}

// CategoryLabel returns the display name for an optional category.
func CategoryLabel(c *models.Category) string {
	if c == nil {
		return UncategorizedLabel
	}
	return c.Name
}
