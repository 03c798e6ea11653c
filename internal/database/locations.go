// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/models"
)

// trendingWindow is how far back camp logs count towards activity_count.
const trendingWindow = 7 * 24 * time.Hour

const locationColumns = `l.id, l.name, l.type, l.latitude, l.longitude, l.district, l.created_by, l.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner, extra ...any) (models.Location, error) {
	var (
		l        models.Location
		category string
		district sql.NullString
	)
	dest := append([]any{&l.ID, &l.Name, &category, &l.Latitude, &l.Longitude, &district, &l.CreatedBy, &l.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return l, err
	}
	l.Category = geo.Category(category)
	l.District = district.String
	return l, nil
}

// FindInBounds returns the locations inside b, edges inclusive, newest first.
func (db *DB) FindInBounds(ctx context.Context, b geo.BoundingBox, category geo.Category) (_ []models.Location, err error) {
	start := time.Now()
	defer func() { observe("select", "locations", start, err) }()

	query := `SELECT ` + locationColumns + ` FROM locations l
		WHERE l.latitude BETWEEN ? AND ? AND l.longitude BETWEEN ? AND ?`
	args := []any{b.SouthWest.Lat, b.NorthEast.Lat, b.SouthWest.Lon, b.NorthEast.Lon}
	if category != "" {
		query += ` AND l.type = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY l.created_at DESC, l.id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query locations in bounds: %w", err)
	}
	defer rows.Close()

	out := make([]models.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLocation returns one location.
func (db *DB) GetLocation(ctx context.Context, id string) (_ *models.Location, err error) {
	start := time.Now()
	defer func() { observe("select", "locations", start, err) }()

	row := db.conn.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations l WHERE l.id = ?`, id)
	l, err := scanLocation(row)
	if err != nil {
		return nil, notFound(err, "location", id)
	}
	return &l, nil
}

const amenityColumns = `id, location_id, has_shower, has_power, has_parking, is_pet_friendly, has_wifi, created_at`

// GetAmenity returns nil, nil when the location has no amenity row.
func (db *DB) GetAmenity(ctx context.Context, locationID string) (_ *models.Amenity, err error) {
	start := time.Now()
	defer func() { observe("select", "amenities", start, err) }()

	var a models.Amenity
	err = db.conn.QueryRowContext(ctx, `SELECT `+amenityColumns+` FROM amenities WHERE location_id = ?`, locationID).
		Scan(&a.ID, &a.LocationID, &a.HasShower, &a.HasPower, &a.HasParking, &a.IsPetFriendly, &a.HasWifi, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get amenity: %w", err)
	}
	return &a, nil
}

// CreateLocation inserts a location and its optional amenity row in one
// transaction.
func (db *DB) CreateLocation(ctx context.Context, loc models.Location, amenity *models.Amenity) (err error) {
	start := time.Now()
	defer func() { observe("insert", "locations", start, err) }()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO locations
			(id, name, type, location, latitude, longitude, district, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			loc.ID, loc.Name, string(loc.Category), geo.FormatPoint(loc.Coordinate()),
			loc.Latitude, loc.Longitude, nullString(loc.District), loc.CreatedBy, loc.CreatedAt)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("location %s already exists", loc.ID)
			}
			return fmt.Errorf("insert location: %w", err)
		}
		if amenity == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO amenities (`+amenityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			amenity.ID, loc.ID, amenity.HasShower, amenity.HasPower, amenity.HasParking,
			amenity.IsPetFriendly, amenity.HasWifi, amenity.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert amenity: %w", err)
		}
		return nil
	})
}

// TrendingLocations ranks locations by likes, then recent check-ins, then
// recency.
func (db *DB) TrendingLocations(ctx context.Context, category geo.Category, limit, offset int) (_ []models.TrendingLocation, err error) {
	start := time.Now()
	defer func() { observe("select", "locations", start, err) }()

	var b strings.Builder
	b.WriteString(`WITH like_counts AS (
			SELECT target_id, COUNT(*) AS n FROM likes GROUP BY target_id
		), activity_counts AS (
			SELECT location_id, COUNT(*) AS n, MAX(created_at) AS latest
			FROM camp_logs WHERE created_at >= ? GROUP BY location_id
		)
		SELECT ` + locationColumns + `,
			COALESCE(lc.n, 0), COALESCE(ac.n, 0), ac.latest,
			a.id, a.has_shower, a.has_power, a.has_parking, a.is_pet_friendly, a.has_wifi, a.created_at
		FROM locations l
		LEFT JOIN like_counts lc ON lc.target_id = l.id
		LEFT JOIN activity_counts ac ON ac.location_id = l.id
		LEFT JOIN amenities a ON a.location_id = l.id`)
	args := []any{time.Now().Add(-trendingWindow)}
	if category != "" {
		b.WriteString(` WHERE l.type = ?`)
		args = append(args, string(category))
	}
	b.WriteString(` ORDER BY 9 DESC, 10 DESC, l.created_at DESC, l.id LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query trending locations: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrendingLocation, 0, limit)
	for rows.Next() {
		var (
			t              models.TrendingLocation
			latest         sql.NullTime
			amenityID      sql.NullString
			amenityCreated sql.NullTime
			shower, power  sql.NullBool
			parking, pets  sql.NullBool
			wifi           sql.NullBool
		)
		t.Location, err = scanLocation(rows, &t.LikeCount, &t.ActivityCount, &latest,
			&amenityID, &shower, &power, &parking, &pets, &wifi, &amenityCreated)
		if err != nil {
			return nil, fmt.Errorf("scan trending location: %w", err)
		}
		if latest.Valid {
			ts := latest.Time
			t.LatestActivity = &ts
		}
		if amenityID.Valid {
			t.Amenities = &models.Amenity{
				ID:            amenityID.String,
				LocationID:    t.ID,
				HasShower:     shower.Bool,
				HasPower:      power.Bool,
				HasParking:    parking.Bool,
				IsPetFriendly: pets.Bool,
				HasWifi:       wifi.Bool,
				CreatedAt:     amenityCreated.Time,
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DistrictClusters groups the locations inside b by district.
func (db *DB) DistrictClusters(ctx context.Context, b geo.BoundingBox) (_ []models.DistrictCluster, err error) {
	start := time.Now()
	defer func() { observe("select", "locations", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT district, COUNT(*) AS n, AVG(latitude), AVG(longitude)
		FROM locations
		WHERE district IS NOT NULL AND district <> ''
			AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		GROUP BY district
		ORDER BY n DESC, district`,
		b.SouthWest.Lat, b.NorthEast.Lat, b.SouthWest.Lon, b.NorthEast.Lon)
	if err != nil {
		return nil, fmt.Errorf("query district clusters: %w", err)
	}
	defer rows.Close()

	out := make([]models.DistrictCluster, 0)
	for rows.Next() {
		var c models.DistrictCluster
		if err := rows.Scan(&c.District, &c.Count, &c.Latitude, &c.Longitude); err != nil {
			return nil, fmt.Errorf("scan district cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
