package postgres

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/vejoias/internal/domain/catalog"
	"github.com/xenking/vejoias/internal/domain/coupon"
	"github.com/xenking/vejoias/internal/domain/order"
	"github.com/xenking/vejoias/internal/domain/payment"
)

const (
	orderColumns = `id, COALESCE(user_id, 0), status, total, discount, coupon_code, payment_method,
		transaction_id, payment_url, address, phone, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (user_id, status, total, discount, coupon_code,
			payment_method, transaction_id, payment_url, address, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	decrementStockSQL = `UPDATE jewels SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	currentStockSQL = `SELECT stock FROM jewels WHERE id = $1`

	getOrderByIDSQL          = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByTransactionSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE transaction_id = $1 AND transaction_id <> ''
		ORDER BY id DESC LIMIT 1`
	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR status = $1) ORDER BY created_at DESC, id DESC`

	listOrderItemsSQL = `SELECT order_id, COALESCE(jewel_id, 0), name, unit_price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Place persists o and its items, takes the ordered units out of stock,
// spends a use of the order's coupon and empties the owner's cart, all in one
// transaction.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.UserID, string(o.Status), o.Total, o.Discount, o.CouponCode,
		string(o.PaymentMethod), o.TransactionID, o.PaymentURL, encodeAddress(o.Address), o.Phone,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	if o.CouponCode != "" {
		tag, err := tx.Exec(ctx, incrementCouponUsesSQL, o.CouponCode)
		if err != nil {
			return errors.Wrapf(err, "increment uses of coupon %q", o.CouponCode)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrCouponUsageLimitReached
		}
	}

	// Lock jewels in id order so concurrent checkouts cannot deadlock.
	byJewel := make([]order.Item, len(o.Items))
	copy(byJewel, o.Items)
	sort.Slice(byJewel, func(i, j int) bool { return byJewel[i].JewelID < byJewel[j].JewelID })

	for _, item := range byJewel {
		if err := decrementStock(ctx, tx, item); err != nil {
			return err
		}
	}

	rows := make([][]any, len(o.Items))
	for i, item := range o.Items {
		rows[i] = []any{o.ID, item.JewelID, item.Name, item.UnitPrice, item.Quantity}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "jewel_id", "name", "unit_price", "quantity"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return errors.Wrap(err, "copy order items")
	}

	if _, err := tx.Exec(ctx, clearCartSQL, o.UserID); err != nil {
		return errors.Wrap(err, "clear cart")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func decrementStock(ctx context.Context, tx pgx.Tx, item order.Item) error {
	tag, err := tx.Exec(ctx, decrementStockSQL, item.JewelID, item.Quantity)
	if err != nil {
		return errors.Wrapf(err, "decrement stock of jewel %d", item.JewelID)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var available int
	if err := tx.QueryRow(ctx, currentStockSQL, item.JewelID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrapf(catalog.ErrJewelNotFound, "jewel %d", item.JewelID)
		}
		return errors.Wrapf(err, "read stock of jewel %d", item.JewelID)
	}
	return &catalog.InsufficientStockError{
		JewelID:   item.JewelID,
		Available: available,
		Requested: item.Quantity,
	}
}

// GetByID returns an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByTransactionID returns the order paid by the given gateway transaction.
func (r *OrderRepository) GetByTransactionID(ctx context.Context, transactionID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByTransactionSQL, transactionID)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return r.list(ctx, listOrdersByUserSQL, userID)
}

// List returns all orders, or those in status when non-empty, newest first.
func (r *OrderRepository) List(ctx context.Context, status order.Status) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL, string(status))
}

// UpdateStatus sets the status of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return errors.Wrapf(err, "update status of order %d", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) list(ctx context.Context, query string, arg any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of every order with a single query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "query order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			item    order.Item
		)
		if err := rows.Scan(&orderID, &item.JewelID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return errors.Wrap(err, "scan order item")
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		status  string
		method  string
		address []byte
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &status, &o.Total, &o.Discount, &o.CouponCode, &method,
		&o.TransactionID, &o.PaymentURL, &address, &o.Phone, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	o.PaymentMethod = payment.Method(method)

	a, err := decodeAddress(address)
	if err != nil {
		return o, err
	}
	o.Address = a
	return o, nil
}
