package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const searchLimit = 100

// Repository is the relational (primary) order store.
type Repository interface {
	CountOrders(ctx context.Context) (int, error)
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	// UpdateStatus reports whether a row matched orderID.
	UpdateStatus(ctx context.Context, orderID string, status Status, at time.Time) (bool, error)
	Search(ctx context.Context, filter SearchFilter) ([]Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

const selectOrders = `
	SELECT o.id::text, o.order_id, o.user_id, o.status, o.total_cost, o.delivery_option, o.qr_code,
	       o.created_at, o.estimated_ready, o.completed_at,
	       COALESCE(u.email, ''), COALESCE(u.name, ''), u.phone
	FROM orders o
	LEFT JOIN users u ON u.id = o.user_id`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.OrderID, &o.UserID, &status, &o.TotalCost, &o.DeliveryOption, &o.QRCode,
		&o.CreatedAt, &o.EstimatedReady, &o.CompletedAt,
		&o.UserEmail, &o.UserName, &o.UserPhone,
	)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.Files = []File{}
	o.Source = SourcePrimary
	return &o, nil
}

func (r *postgresRepository) CountOrders(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}
	return n, nil
}

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, selectOrders+` WHERE o.order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to get order %s: %w", orderID, err)
	}

	orders := []Order{*o}
	if err := r.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]Order, error) {
	return r.queryOrders(ctx, selectOrders+` ORDER BY o.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID string, status Status, at time.Time) (bool, error) {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE order_id = $3`
	if status == StatusCompleted {
		query = `UPDATE orders SET status = $1, updated_at = $2, completed_at = $2 WHERE order_id = $3`
	}

	tag, err := r.db.Exec(ctx, query, string(status), at, orderID)
	if err != nil {
		return false, fmt.Errorf("repository: failed to update status of order %s: %w", orderID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) Search(ctx context.Context, filter SearchFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.OrderID != "" {
		add("o.order_id ILIKE $%d", "%"+escapeLike(filter.OrderID)+"%")
	}
	if filter.Status != "" {
		add("o.status = $%d", string(filter.Status))
	}
	if filter.UserID != "" {
		add("o.user_id = $%d", filter.UserID)
	}
	if filter.DateFrom != nil {
		add("o.created_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		// date_to включительно, до конца дня
		add("o.created_at < $%d", filter.DateTo.Add(24*time.Hour))
	}

	query := selectOrders
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT %d", searchLimit)

	return r.queryOrders(ctx, query, args...)
}

func (r *postgresRepository) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	return r.queryOrders(ctx, selectOrders+` WHERE o.status = $1 ORDER BY o.created_at DESC`, string(status))
}

func (r *postgresRepository) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	const totals = `
		SELECT COUNT(*),
		       COALESCE(SUM(total_cost) FILTER (WHERE status <> 'Cancelled'), 0),
		       COALESCE(AVG(total_cost) FILTER (WHERE status <> 'Cancelled'), 0),
		       COUNT(*) FILTER (WHERE created_at >= $1),
		       COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3),
		       COALESCE(SUM(total_cost) FILTER (WHERE created_at >= $2 AND created_at < $3 AND status <> 'Cancelled'), 0)
		FROM orders`

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	s := &Stats{OrdersByStatus: make(map[Status]int64)}
	err := r.db.QueryRow(ctx, totals, now.AddDate(0, 0, -7), dayStart, dayStart.AddDate(0, 0, 1)).Scan(
		&s.TotalOrders, &s.TotalRevenue, &s.AverageOrderValue, &s.RecentOrders, &s.TodayOrders, &s.TodayRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to compute order totals: %w", err)
	}
	s.AverageOrderValue = s.AverageOrderValue.Round(2)

	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to count orders by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("repository: failed to scan status count: %w", err)
		}
		s.OrdersByStatus[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate status counts: %w", err)
	}

	return s, nil
}

func (r *postgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate orders: %w", err)
	}

	if err := r.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachDetails loads print options, files and delivery addresses for the
// given orders in one query per table.
func (r *postgresRepository) attachDetails(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[string]*Order, len(orders))
	for i := range orders {
		ids = append(ids, orders[i].OrderID)
		byID[orders[i].OrderID] = &orders[i]
	}

	if err := r.attachOptions(ctx, ids, byID); err != nil {
		return err
	}
	if err := r.attachFiles(ctx, ids, byID); err != nil {
		return err
	}
	return r.attachAddresses(ctx, ids, byID)
}

func (r *postgresRepository) attachOptions(ctx context.Context, ids []string, byID map[string]*Order) error {
	const query = `
		SELECT order_id, paper_size, color, quantity, sides, orientation, binding
		FROM order_options
		WHERE order_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			opt     PrintOptions
		)
		if err := rows.Scan(&orderID, &opt.PaperSize, &opt.Color, &opt.Quantity, &opt.Sides, &opt.Orientation, &opt.Binding); err != nil {
			return fmt.Errorf("repository: failed to scan order options: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.PrintOptions = &opt
		}
	}
	return rows.Err()
}

func (r *postgresRepository) attachFiles(ctx context.Context, ids []string, byID map[string]*Order) error {
	const query = `
		SELECT ofl.order_id, f.id::text, f.name, f.original_name, f.size_bytes, f.file_type, f.file_url
		FROM order_files ofl
		JOIN uploaded_files f ON f.id = ofl.file_id
		WHERE ofl.order_id = ANY($1)
		ORDER BY ofl.order_id, f.created_at, f.id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			f       File
		)
		if err := rows.Scan(&orderID, &f.ID, &f.Name, &f.OriginalName, &f.SizeBytes, &f.FileType, &f.FileURL); err != nil {
			return fmt.Errorf("repository: failed to scan order file: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Files = append(o.Files, f)
		}
	}
	return rows.Err()
}

func (r *postgresRepository) attachAddresses(ctx context.Context, ids []string, byID map[string]*Order) error {
	const query = `
		SELECT order_id, recipient_name, phone, address_line1, address_line2, city, postal_code, notes
		FROM delivery_addresses
		WHERE order_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query delivery addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			a       DeliveryAddress
		)
		if err := rows.Scan(&orderID, &a.RecipientName, &a.Phone, &a.AddressLine1, &a.AddressLine2, &a.City, &a.PostalCode, &a.Notes); err != nil {
			return fmt.Errorf("repository: failed to scan delivery address: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.DeliveryAddress = &a
		}
	}
	return rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes % and _ in user input match literally under the default
// backslash escape of LIKE.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
