package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT,
				description TEXT,
				language TEXT,
				published_year INTEGER,
				series TEXT,
				series_number REAL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE authors (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) NOT NULL,
				name TEXT NOT NULL,
				sort_order INTEGER NOT NULL DEFAULT 0
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_authors_item_id ON authors (item_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE identifiers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) NOT NULL,
				type TEXT NOT NULL,
				value TEXT NOT NULL,
				source TEXT NOT NULL DEFAULT 'file_metadata'
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_identifiers_item_id ON identifiers (item_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) NOT NULL,
				filepath TEXT NOT NULL,
				filename TEXT NOT NULL,
				extension TEXT NOT NULL,
				filesize_bytes INTEGER NOT NULL DEFAULT 0,
				modified_at TIMESTAMPTZ NOT NULL,
				sha256 TEXT,
				hash_algo TEXT NOT NULL DEFAULT 'sha256',
				status TEXT NOT NULL DEFAULT 'active',
				cover_image_path TEXT,
				cover_mime_type TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_files_filepath_active ON files (filepath) WHERE status = 'active'`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_files_item_id ON files (item_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_files_sha256 ON files (sha256)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE issues (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				item_id INTEGER REFERENCES items (id) NOT NULL,
				file_id INTEGER REFERENCES files (id),
				type TEXT NOT NULL,
				message TEXT NOT NULL,
				resolved_at TIMESTAMPTZ
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_issues_file_id ON issues (file_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE scan_sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				root_path TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'running',
				started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				ended_at TIMESTAMPTZ,
				added INTEGER NOT NULL DEFAULT 0,
				updated INTEGER NOT NULL DEFAULT 0,
				moved INTEGER NOT NULL DEFAULT 0,
				unchanged INTEGER NOT NULL DEFAULT 0,
				missing INTEGER NOT NULL DEFAULT 0
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE scan_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				session_id INTEGER REFERENCES scan_sessions (id) NOT NULL,
				file_id INTEGER REFERENCES files (id) NOT NULL,
				path TEXT NOT NULL,
				action TEXT NOT NULL,
				filesize_bytes INTEGER,
				modified_at TIMESTAMPTZ,
				sha256 TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_scan_entries_session_id ON scan_entries (session_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE pending_changes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				file_id INTEGER REFERENCES files (id) NOT NULL,
				type TEXT NOT NULL,
				from_path TEXT,
				to_path TEXT,
				payload TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				applied_at TIMESTAMPTZ,
				error TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_pending_changes_file_id ON pending_changes (file_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_pending_changes_status ON pending_changes (status)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE organizer_settings (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				library_root TEXT,
				mode TEXT NOT NULL DEFAULT 'copy',
				template TEXT NOT NULL DEFAULT '{Author}/{Title} ({Year}) [{ISBN13}].{ext}'
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				data TEXT NOT NULL,
				progress INTEGER NOT NULL,
				process_id TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE job_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				job_id INTEGER REFERENCES jobs (id) NOT NULL,
				level TEXT NOT NULL,
				message TEXT NOT NULL,
				data TEXT,
				stack_trace TEXT
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_job_logs_job_id ON job_logs (job_id)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{
			"job_logs",
			"jobs",
			"organizer_settings",
			"pending_changes",
			"scan_entries",
			"scan_sessions",
			"issues",
			"files",
			"identifiers",
			"authors",
			"items",
		} {
			_, err := db.Exec("DROP TABLE " + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
