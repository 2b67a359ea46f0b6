package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/geo"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/service"
)

// Statuses that occupy an engineer's schedule.
var activeStatuses = []string{
	string(models.StatusConfirmed),
	string(models.StatusEnRoute),
	string(models.StatusOnSite),
	string(models.StatusInProgress),
}

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const bookingColumns = `id, service_code, site_id, customer_id, scheduled_date, time_slot, estimated_quantity,
	status, engineer_id, original_price, quoted_price, flexible_dates, customer_signature_url,
	created_at, accepted_at, en_route_at, arrived_at, started_at, completed_at, cancelled_at`

func scanBooking(row pgx.Row) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.ServiceCode, &b.SiteID, &b.CustomerID, &b.ScheduledDate, &b.TimeSlot, &b.EstimatedQuantity,
		&b.Status, &b.EngineerID, &b.OriginalPrice, &b.QuotedPrice, &b.FlexibleDates, &b.CustomerSignatureURL,
		&b.CreatedAt, &b.AcceptedAt, &b.EnRouteAt, &b.ArrivedAt, &b.StartedAt, &b.CompletedAt, &b.CancelledAt,
	)
	return b, err
}

func (s *Store) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Booking{}, service.ErrBookingNotFound
	}
	return b, err
}

func (s *Store) ListBookings(ctx context.Context, status, engineerID string, date *time.Time, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var args []any
	var wheres []string
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if engineerID != "" {
		args = append(args, engineerID)
		wheres = append(wheres, fmt.Sprintf("engineer_id = $%d", len(args)))
	}
	if date != nil {
		args = append(args, *date)
		wheres = append(wheres, fmt.Sprintf("scheduled_date = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY scheduled_date ASC, time_slot ASC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetSite(ctx context.Context, id string) (models.Site, error) {
	var site models.Site
	err := s.Pool.QueryRow(ctx, `SELECT id, name, postcode, lat, lon FROM sites WHERE id = $1`, id).
		Scan(&site.ID, &site.Name, &site.Postcode, &site.Lat, &site.Lon)
	return site, err
}

func (s *Store) GetService(ctx context.Context, code string) (models.Service, error) {
	var svc models.Service
	err := s.Pool.QueryRow(ctx, `SELECT code, name, requires_cert, base_price, min_charge FROM services WHERE code = $1`, code).
		Scan(&svc.Code, &svc.Name, &svc.RequiresCert, &svc.BasePrice, &svc.MinCharge)
	return svc, err
}

// ListEngineerPool loads every engineer with competencies, qualifications
// and coverage areas attached. The pool is small enough that three child
// queries beat a wide join.
func (s *Store) ListEngineerPool(ctx context.Context) ([]models.EngineerProfile, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, status, experience_years, updated_at FROM engineers ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var engineers []models.EngineerProfile
	index := map[string]int{}
	for rows.Next() {
		var e models.EngineerProfile
		if err := rows.Scan(&e.ID, &e.Name, &e.Status, &e.ExperienceYears, &e.UpdatedAt); err != nil {
			return nil, err
		}
		index[e.ID] = len(engineers)
		engineers = append(engineers, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	compRows, err := s.Pool.Query(ctx, `SELECT engineer_id, service_code, certified, experience_years FROM competencies`)
	if err != nil {
		return nil, err
	}
	defer compRows.Close()
	for compRows.Next() {
		var engineerID string
		var c models.Competency
		if err := compRows.Scan(&engineerID, &c.ServiceCode, &c.Certified, &c.ExperienceYears); err != nil {
			return nil, err
		}
		if i, ok := index[engineerID]; ok {
			engineers[i].Competencies = append(engineers[i].Competencies, c)
		}
	}
	if err := compRows.Err(); err != nil {
		return nil, err
	}

	qualRows, err := s.Pool.Query(ctx, `SELECT engineer_id, name, service_code, expires_at, verified FROM qualifications`)
	if err != nil {
		return nil, err
	}
	defer qualRows.Close()
	for qualRows.Next() {
		var engineerID string
		var q models.Qualification
		if err := qualRows.Scan(&engineerID, &q.Name, &q.ServiceCode, &q.ExpiresAt, &q.Verified); err != nil {
			return nil, err
		}
		if i, ok := index[engineerID]; ok {
			engineers[i].Qualifications = append(engineers[i].Qualifications, q)
		}
	}
	if err := qualRows.Err(); err != nil {
		return nil, err
	}

	areaRows, err := s.Pool.Query(ctx, `SELECT engineer_id, postcode_prefix, lat, lon, radius_km FROM coverage_areas`)
	if err != nil {
		return nil, err
	}
	defer areaRows.Close()
	for areaRows.Next() {
		var engineerID string
		var a models.CoverageArea
		if err := areaRows.Scan(&engineerID, &a.PostcodePrefix, &a.Lat, &a.Lon, &a.RadiusKm); err != nil {
			return nil, err
		}
		if i, ok := index[engineerID]; ok {
			engineers[i].CoverageAreas = append(engineers[i].CoverageAreas, a)
		}
	}
	if err := areaRows.Err(); err != nil {
		return nil, err
	}

	return engineers, nil
}

// CountWorkloads tallies active assignments per engineer for the given day
// and its Monday-to-Sunday week.
func (s *Store) CountWorkloads(ctx context.Context, date time.Time) (map[string]service.WorkloadCount, error) {
	weekStart := startOfWeek(date)
	weekEnd := weekStart.AddDate(0, 0, 7)

	rows, err := s.Pool.Query(ctx, `
		SELECT engineer_id,
			COUNT(*) FILTER (WHERE scheduled_date = $1) AS day_jobs,
			COUNT(*) AS week_jobs
		FROM bookings
		WHERE engineer_id IS NOT NULL
			AND status = ANY($2)
			AND scheduled_date >= $3 AND scheduled_date < $4
		GROUP BY engineer_id
	`, date, activeStatuses, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]service.WorkloadCount{}
	for rows.Next() {
		var engineerID string
		var day, week int
		if err := rows.Scan(&engineerID, &day, &week); err != nil {
			return nil, err
		}
		out[engineerID] = service.WorkloadCount{Day: day, Week: week}
	}
	return out, rows.Err()
}

// ListDaySites maps engineer id to the coordinates of their located sites
// for the date. Sites without cached coordinates are omitted.
func (s *Store) ListDaySites(ctx context.Context, date time.Time) (map[string][]geo.Coordinate, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT b.engineer_id, st.lat, st.lon
		FROM bookings b
		JOIN sites st ON st.id = b.site_id
		WHERE b.engineer_id IS NOT NULL
			AND b.status = ANY($1)
			AND b.scheduled_date = $2
			AND st.lat IS NOT NULL AND st.lon IS NOT NULL
	`, activeStatuses, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]geo.Coordinate{}
	for rows.Next() {
		var engineerID string
		var lat, lon float64
		if err := rows.Scan(&engineerID, &lat, &lon); err != nil {
			return nil, err
		}
		out[engineerID] = append(out[engineerID], geo.Coordinate{Lat: lat, Lon: lon})
	}
	return out, rows.Err()
}

// AssignBooking writes the assignment and the allocation log atomically.
// The update is conditioned on the booking still being PENDING and
// unassigned; a losing concurrent caller gets ErrAlreadyAllocated.
func (s *Store) AssignBooking(ctx context.Context, bookingID, engineerID string, entry models.AllocationLog) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bookings
			SET engineer_id = $1, status = $2
			WHERE id = $3 AND engineer_id IS NULL AND status = $4
		`, engineerID, models.StatusConfirmed, bookingID, models.StatusPending)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return service.ErrAlreadyAllocated
		}

		candidates, err := json.Marshal(entry.Candidates)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO allocation_logs (id, booking_id, selected_engineer_id, candidates, reason, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, entry.ID, entry.BookingID, entry.SelectedEngineerID, candidates, entry.Reason, entry.CreatedAt)
		return err
	})
}

func (s *Store) UpdateQuotedPrice(ctx context.Context, bookingID string, price float64) error {
	_, err := s.Pool.Exec(ctx, `UPDATE bookings SET quoted_price = $1 WHERE id = $2`, price, bookingID)
	return err
}

func (s *Store) ListPricingRules(ctx context.Context) ([]models.PricingRule, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, type, enabled, priority, config FROM pricing_rules ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PricingRule
	for rows.Next() {
		var r models.PricingRule
		if err := rows.Scan(&r.ID, &r.Type, &r.Enabled, &r.Priority, &r.Config); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CountCompletedBookings(ctx context.Context, customerID string) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE customer_id = $1 AND status = $2`,
		customerID, models.StatusCompleted,
	).Scan(&count)
	return count, err
}

// ApplyStatusChange performs the conditioned status write, stamps the
// lifecycle timestamp, and appends the status log entry in one tx.
func (s *Store) ApplyStatusChange(ctx context.Context, bookingID string, change service.StatusChange) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		set := []string{"status = $1"}
		args := []any{change.To}
		if change.ClearEngineer {
			set = append(set, "engineer_id = NULL")
		}
		if change.Stamp != service.StampNone {
			args = append(args, change.At)
			set = append(set, fmt.Sprintf("%s = $%d", change.Stamp, len(args)))
		}
		args = append(args, bookingID, change.ExpectedFrom)
		query := fmt.Sprintf("UPDATE bookings SET %s WHERE id = $%d AND status = $%d",
			strings.Join(set, ", "), len(args)-1, len(args))

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return service.ErrStatusConflict
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO status_logs (id, booking_id, action, from_status, to_status, actor_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, uuid.New().String(), bookingID, change.Action, change.ExpectedFrom, change.To, change.ActorID, change.At)
		return err
	})
}

func (s *Store) ListEngineerDayBookings(ctx context.Context, engineerID string, date time.Time) ([]service.AssignedJob, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+prefixColumns("b", bookingColumns)+`,
			st.id, st.name, st.postcode, st.lat, st.lon
		FROM bookings b
		JOIN sites st ON st.id = b.site_id
		WHERE b.engineer_id = $1
			AND b.status = ANY($2)
			AND b.scheduled_date = $3
		ORDER BY b.time_slot ASC, b.id ASC
	`, engineerID, activeStatuses, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []service.AssignedJob
	for rows.Next() {
		var job service.AssignedJob
		b := &job.Booking
		st := &job.Site
		if err := rows.Scan(
			&b.ID, &b.ServiceCode, &b.SiteID, &b.CustomerID, &b.ScheduledDate, &b.TimeSlot, &b.EstimatedQuantity,
			&b.Status, &b.EngineerID, &b.OriginalPrice, &b.QuotedPrice, &b.FlexibleDates, &b.CustomerSignatureURL,
			&b.CreatedAt, &b.AcceptedAt, &b.EnRouteAt, &b.ArrivedAt, &b.StartedAt, &b.CompletedAt, &b.CancelledAt,
			&st.ID, &st.Name, &st.Postcode, &st.Lat, &st.Lon,
		); err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *Store) GetAllocationLog(ctx context.Context, bookingID string) (*models.AllocationLog, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, booking_id, selected_engineer_id, candidates, reason, created_at
		FROM allocation_logs WHERE booking_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, bookingID)

	var entry models.AllocationLog
	var candidates []byte
	if err := row.Scan(&entry.ID, &entry.BookingID, &entry.SelectedEngineerID, &candidates, &entry.Reason, &entry.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(candidates, &entry.Candidates); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) ListStatusLog(ctx context.Context, bookingID string) ([]models.StatusLogEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, booking_id, action, from_status, to_status, actor_id, created_at
		FROM status_logs WHERE booking_id = $1 ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StatusLogEntry
	for rows.Next() {
		var e models.StatusLogEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Action, &e.FromStatus, &e.ToStatus, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func startOfWeek(date time.Time) time.Time {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return d.AddDate(0, 0, -(weekday - 1))
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
