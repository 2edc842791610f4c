package fulfillment

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

// Engine выполняет резервирование и возврат стока по позициям заказа.
// Основной путь оплаты списывает сток внутри транзакции RecordPayment;
// Engine обслуживает компенсацию при отмене и ручную сверку заказов,
// у которых списание по какой-то причине не прошло.
type Engine struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
}

// NewEngine создаёт движок резервирования стока. metrics опционален.
func NewEngine(orders domain.OrderRepository, products domain.ProductRepository, m *metrics.CheckoutMetrics, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.WithField("component", "fulfillment-engine")
	}
	return &Engine{orders: orders, products: products, metrics: m, logger: logger}
}

// Fulfill списывает сток по каждой позиции заказа. Допускается только для
// pending-заказа: в остальных статусах сток либо уже удержан, либо заказ
// завершён. Сначала советующая проверка всех строк разом, чтобы собрать
// полный список нехваток, затем условные списания. Если какая-то строка
// всё же не прошла (сток ушёл между проверкой и списанием), уже списанные
// строки возвращаются обратно и наружу уходит StockError.
func (e *Engine) Fulfill(ctx context.Context, orderID string) error {
	order, err := e.orders.Get(orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusPending {
		return domain.ErrStatusInvalid
	}

	if shortfalls, err := e.precheck(ctx, order.Lines); err != nil {
		return err
	} else if len(shortfalls) > 0 {
		e.recordFailure()
		return &domain.StockError{Shortfalls: shortfalls}
	}

	done, err := e.adjustStock(ctx, order.Lines, -1)
	if err != nil {
		// Возврат уже списанных строк; отменённый ctx не должен его блокировать.
		if _, rbErr := e.adjustStock(context.Background(), done, +1); rbErr != nil {
			e.logger.WithError(rbErr).WithField("order_id", orderID).
				Error("stock rollback failed")
		}
		if _, isStock := domain.AsStockError(err); isStock {
			e.recordFailure()
		}
		return err
	}

	e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"lines":    len(order.Lines),
	}).Info("order stock fulfilled")

	return nil
}

// Restore возвращает сток по всем позициям заказа. Вызывается при отмене
// заказа из статуса, в котором сток был удержан; гейтинг по статусу делает
// вызывающая сторона.
func (e *Engine) Restore(ctx context.Context, orderID string) error {
	order, err := e.orders.Get(orderID)
	if err != nil {
		return err
	}

	if _, err := e.adjustStock(ctx, order.Lines, +1); err != nil {
		// Частичный возврат не откатывается: повтор операции безопасен
		// только для ещё не возвращённых строк, поэтому фиксируем и отдаём
		// ошибку на ручную сверку.
		e.logger.WithError(err).WithField("order_id", orderID).
			Error("stock restore failed mid-order")
		return err
	}

	e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"lines":    len(order.Lines),
	}).Info("order stock restored")

	return nil
}

// precheck собирает нехватки по всем строкам без изменения стока.
func (e *Engine) precheck(ctx context.Context, lines []domain.OrderLine) ([]domain.Shortfall, error) {
	shortfalls := make([]domain.Shortfall, 0)
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		product, err := e.products.Get(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		if product.Stock < line.Qty {
			shortfalls = append(shortfalls, domain.Shortfall{
				ProductID: line.ProductID,
				Requested: line.Qty,
				Available: product.Stock,
			})
		}
	}
	return shortfalls, nil
}

// adjustStock применяет дельту стока к строкам: sign=-1 — условное списание,
// sign=+1 — возврат. Возвращает строки, к которым дельта успела примениться.
func (e *Engine) adjustStock(ctx context.Context, lines []domain.OrderLine, sign int) ([]domain.OrderLine, error) {
	done := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		if sign > 0 {
			if err := e.products.IncrementStock(line.ProductID, line.Qty); err != nil {
				return done, fmt.Errorf("restore stock for %s: %w", line.ProductID, err)
			}
		} else {
			affected, err := e.products.DecrementStock(line.ProductID, line.Qty)
			if err != nil {
				return done, fmt.Errorf("decrement stock for %s: %w", line.ProductID, err)
			}
			if affected == 0 {
				available := int32(0)
				if p, perr := e.products.Get(line.ProductID); perr == nil {
					available = p.Stock
				}
				return done, &domain.StockError{Shortfalls: []domain.Shortfall{{
					ProductID: line.ProductID,
					Requested: line.Qty,
					Available: available,
				}}}
			}
		}
		done = append(done, line)
	}
	return done, nil
}

func (e *Engine) recordFailure() {
	if e.metrics != nil {
		e.metrics.RecordFulfillmentFailed()
	}
}
