package database

import (
	"context"
	"database/sql"
)

// schemaStatements creates the application tables when they do not exist.
// The statements are ordered so foreign key targets exist first.
//
// usage_controls carries a stored generated column open_marker that is 1
// while the control is open and NULL otherwise.  The unique key over
// (driver_id, open_marker) makes "at most one open control per driver" a
// database guarantee: concurrent inserts for the same driver collide on
// the key instead of both passing an application-level check.  MySQL does
// not support partial indexes, so the generated column stands in for one.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		registration  VARCHAR(32)  NOT NULL,
		name          VARCHAR(255) NOT NULL,
		email         VARCHAR(255) NOT NULL,
		phone         VARCHAR(32)  NULL,
		unit          VARCHAR(128) NULL,
		avatar_link   VARCHAR(255) NULL,
		status        VARCHAR(16)  NOT NULL DEFAULT 'pending',
		role          VARCHAR(16)  NOT NULL DEFAULT 'motorista',
		password_hash VARCHAR(255) NOT NULL,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uniq_users_email (email),
		UNIQUE KEY uniq_users_registration (registration)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uniq_refresh_token_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS vehicles (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		brand      VARCHAR(64)  NOT NULL,
		model      VARCHAR(64)  NOT NULL,
		plate      VARCHAR(16)  NOT NULL,
		year       INT NULL,
		engine     VARCHAR(64) NULL,
		kind       VARCHAR(32) NULL,
		status     VARCHAR(16) NOT NULL DEFAULT 'available',
		image_link VARCHAR(255) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uniq_vehicles_plate (plate)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS usage_controls (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		driver_id      BIGINT UNSIGNED NOT NULL,
		vehicle_id     BIGINT UNSIGNED NOT NULL,
		started_at     DATETIME NOT NULL,
		start_odometer DOUBLE NOT NULL,
		end_odometer   DOUBLE NULL,
		ended_at       DATETIME NULL,
		signature      VARCHAR(255) NULL,
		status         VARCHAR(16) NOT NULL DEFAULT 'open',
		open_marker    TINYINT AS (IF(status = 'open', 1, NULL)) STORED,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uniq_open_control_per_driver (driver_id, open_marker),
		KEY idx_controls_vehicle (vehicle_id),
		CONSTRAINT fk_controls_driver FOREIGN KEY (driver_id) REFERENCES users (id),
		CONSTRAINT fk_controls_vehicle FOREIGN KEY (vehicle_id) REFERENCES vehicles (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS routes (
		id                BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		control_id        BIGINT UNSIGNED NOT NULL,
		departed_at       DATETIME NOT NULL,
		departure_odometer DOUBLE NOT NULL,
		departure_address VARCHAR(255) NULL,
		departure_lat     DOUBLE NULL,
		departure_lon     DOUBLE NULL,
		arrived_at        DATETIME NULL,
		arrival_odometer  DOUBLE NULL,
		arrival_address   VARCHAR(255) NULL,
		arrival_lat       DOUBLE NULL,
		arrival_lon       DOUBLE NULL,
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_routes_control (control_id),
		CONSTRAINT fk_routes_control FOREIGN KEY (control_id) REFERENCES usage_controls (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates any missing tables.  It is idempotent and safe to
// run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
