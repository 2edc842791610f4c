package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create сохраняет шапку заказа и позиции одной транзакцией: если вставка
// позиций падает, заказ не остаётся осиротевшим.
func (r *orderRepository) Create(order domain.Order) error {
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
		INSERT INTO orders (
			id, customer_id, reference, status, currency, total_minor,
			invoice_no, tracking_notes, version, order_date, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),NULLIF($8,''),$9,$10,$11)
	`,
		order.ID, order.CustomerID, order.Reference, string(order.Status), order.Currency,
		order.TotalMinor, order.InvoiceNo, order.TrackingNotes, order.Version,
		order.OrderDate, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, qty, price_minor)
			VALUES ($1,$2,$3,$4)
		`,
			order.ID, line.ProductID, line.Qty, line.PriceMinor,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

const orderColumns = `
	id, customer_id, reference, status, currency, total_minor,
	COALESCE(invoice_no, ''), COALESCE(tracking_notes, ''), version, order_date, updated_at
`

func (r *orderRepository) Get(id string) (domain.Order, error) {
	return r.getBy(`id = $1`, id)
}

func (r *orderRepository) GetByReference(reference string) (domain.Order, error) {
	return r.getBy(`reference = $1`, reference)
}

func (r *orderRepository) getBy(where string, arg any) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.Order
	var status string

	err := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where, arg,
	).Scan(
		&order.ID, &order.CustomerID, &order.Reference, &status, &order.Currency,
		&order.TotalMinor, &order.InvoiceNo, &order.TrackingNotes, &order.Version,
		&order.OrderDate, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY order_date DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		var status string
		if err := rows.Scan(
			&order.ID, &order.CustomerID, &order.Reference, &status, &order.Currency,
			&order.TotalMinor, &order.InvoiceNo, &order.TrackingNotes, &order.Version,
			&order.OrderDate, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)

		lines, err := r.loadLines(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Lines = lines
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// Save обновляет шапку заказа с optimistic locking; позиции неизменяемы.
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    invoice_no = NULLIF($2, ''),
		    tracking_notes = NULLIF($3, ''),
		    version = version + 1,
		    updated_at = $4
		WHERE id = $5
		  AND version = $6
	`,
		string(order.Status),
		order.InvoiceNo,
		order.TrackingNotes,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

// RecordPayment — единственная точка, где заказ становится оплаченным.
// Вставка платежа, штамп confirmed+invoice_no и условные списания стока
// коммитятся одной транзакцией; любой сбой откатывает всё. Гонку повторных
// вызовов закрывают unique constraints на order_id и transaction_ref.
func (r *orderRepository) RecordPayment(payment domain.Payment, invoiceNo string, decrement []domain.OrderLine) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

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
		INSERT INTO payments (
			id, order_id, customer_id, amount_minor, currency,
			transaction_ref, status, method, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		payment.ID, payment.OrderID, payment.CustomerID, payment.AmountMinor,
		payment.Currency, payment.TransactionRef, string(domain.PaymentStatusCompleted),
		payment.Method, payment.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrPaymentAlreadyProcessed
			return err
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, invoice_no = $2, version = version + 1, updated_at = $3
		WHERE id = $4
	`, string(domain.OrderStatusConfirmed), invoiceNo, payment.CreatedAt, payment.OrderID)
	if err != nil {
		return fmt.Errorf("stamp order confirmed: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		err = domain.ErrOrderNotFound
		return err
	}

	for _, line := range decrement {
		var decRes sql.Result
		decRes, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1 AND stock >= $2
		`, line.ProductID, line.Qty)
		if err != nil {
			return fmt.Errorf("decrement stock for %s: %w", line.ProductID, err)
		}

		affected, raErr := decRes.RowsAffected()
		if raErr != nil {
			err = fmt.Errorf("rows affected: %w", raErr)
			return err
		}
		if affected == 0 {
			var available int32
			if scanErr := tx.QueryRowContext(ctx,
				`SELECT stock FROM products WHERE id = $1`, line.ProductID,
			).Scan(&available); scanErr != nil {
				available = 0
			}
			err = &domain.StockError{Shortfalls: []domain.Shortfall{{
				ProductID: line.ProductID,
				Requested: line.Qty,
				Available: available,
			}}}
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit record payment: %w", err)
	}

	return nil
}

// FindPayment — дешёвый префильтр идемпотентности перед RecordPayment.
func (r *orderRepository) FindPayment(orderID, transactionRef string) (domain.Payment, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var p domain.Payment
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, amount_minor, currency,
		       transaction_ref, status, COALESCE(method, ''), created_at
		FROM payments
		WHERE order_id = $1 OR transaction_ref = $2
		LIMIT 1
	`, orderID, transactionRef).Scan(
		&p.ID, &p.OrderID, &p.CustomerID, &p.AmountMinor, &p.Currency,
		&p.TransactionRef, &status, &p.Method, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, fmt.Errorf("select payment: %w", err)
	}
	p.Status = domain.PaymentStatus(status)
	return p, true, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, qty, price_minor
		FROM order_lines
		WHERE order_id = $1
		ORDER BY product_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.OrderID, &line.ProductID, &line.Qty, &line.PriceMinor); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
