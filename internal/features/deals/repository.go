// Package deals: repository.go описывает, что реестр сделок требует от хранилища.
package deals

import "context"

// Repository: то, что реестр требует от хранилища.
type Repository interface {
	LoadDeals(ctx context.Context) ([]Deal, error)
	UpsertDeal(ctx context.Context, deal Deal) error
}
