package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) LookupCustomer(ctx context.Context, ref string) (*domain.Customer, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT ref, name, phone, email
FROM customers
WHERE ref = $1
`, ref)

	var customer domain.Customer
	if err := row.Scan(&customer.Ref, &customer.Name, &customer.Phone, &customer.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBError("lookup customer", err)
	}
	return &customer, nil
}
