package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

// AddLine — единый upsert: существующая строка суммирует количество,
// новая создаётся. Цена добавления не перетирается повторным add.
func (r *cartRepository) AddLine(line domain.CartLine) error {
	if err := line.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_lines (owner_kind, owner_id, product_id, qty, price_minor, added_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (owner_kind, owner_id, product_id)
		DO UPDATE SET qty = cart_lines.qty + EXCLUDED.qty
	`,
		string(line.Owner.Kind), line.Owner.ID, line.ProductID, line.Qty, line.PriceMinor, line.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (r *cartRepository) SetQty(owner domain.CartOwner, productID string, qty int32) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if qty <= 0 {
		return r.RemoveLine(owner, productID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_lines
		SET qty = $1
		WHERE owner_kind = $2 AND owner_id = $3 AND product_id = $4
	`, qty, string(owner.Kind), owner.ID, productID)
	if err != nil {
		return fmt.Errorf("update cart line qty: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartLineNotFound
	}
	return nil
}

func (r *cartRepository) RemoveLine(owner domain.CartOwner, productID string) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE owner_kind = $1 AND owner_id = $2 AND product_id = $3
	`, string(owner.Kind), owner.ID, productID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartLineNotFound
	}
	return nil
}

func (r *cartRepository) ListLines(owner domain.CartOwner) ([]domain.CartLine, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, qty, price_minor, added_at
		FROM cart_lines
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY added_at ASC, product_id ASC
	`, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		line := domain.CartLine{Owner: owner}
		if err := rows.Scan(&line.ProductID, &line.Qty, &line.PriceMinor, &line.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) EmptyCart(owner domain.CartOwner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE owner_kind = $1 AND owner_id = $2
	`, string(owner.Kind), owner.ID); err != nil {
		return fmt.Errorf("empty cart: %w", err)
	}
	return nil
}

// MergeGuestIntoCustomer переносит гостевую корзину одной транзакцией:
// upsert-суммирование всех строк одним INSERT..SELECT и удаление гостевых
// строк. Никакого read-then-write — повторный вызов по пустому гостю no-op.
func (r *cartRepository) MergeGuestIntoCustomer(guest, customer domain.CartOwner) error {
	if err := guest.Validate(); err != nil {
		return err
	}
	if err := customer.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_lines (owner_kind, owner_id, product_id, qty, price_minor, added_at)
		SELECT $3, $4, product_id, qty, price_minor, added_at
		FROM cart_lines
		WHERE owner_kind = $1 AND owner_id = $2
		ON CONFLICT (owner_kind, owner_id, product_id)
		DO UPDATE SET qty = cart_lines.qty + EXCLUDED.qty
	`, string(guest.Kind), guest.ID, string(customer.Kind), customer.ID)
	if err != nil {
		return fmt.Errorf("merge guest cart lines: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE owner_kind = $1 AND owner_id = $2
	`, string(guest.Kind), guest.ID)
	if err != nil {
		return fmt.Errorf("delete guest cart lines: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cart merge: %w", err)
	}
	return nil
}

// DeleteStaleGuestLines удаляет протухшие гостевые строки батчами.
func (r *cartRepository) DeleteStaleGuestLines(before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE (owner_kind, owner_id, product_id) IN (
			SELECT owner_kind, owner_id, product_id
			FROM cart_lines
			WHERE owner_kind = 'guest' AND added_at < $1
			LIMIT $2
		)
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("delete stale guest cart lines: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
