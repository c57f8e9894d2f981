package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"tender-scraper/models"
)

// PostgresStore is the persistence gateway. A publication and all its child
// rows are created in one transaction, keyed by the tender number; ingesting
// a tender number that already exists writes nothing.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS publication_dates (
			id                        SERIAL PRIMARY KEY,
			period_start              DATE,
			period_end                DATE,
			application_deadline      VARCHAR(100),
			award_period              DATE,
			expiration_time           TIMESTAMPTZ,
			bidders_requests_deadline VARCHAR(100)
		);

		CREATE TABLE IF NOT EXISTS contractors (
			id            SERIAL PRIMARY KEY,
			name          TEXT UNIQUE NOT NULL,
			address       TEXT,
			contact_email TEXT
		);

		CREATE TABLE IF NOT EXISTS cpv_codes (
			id          SERIAL PRIMARY KEY,
			code        VARCHAR(20) UNIQUE NOT NULL,
			description VARCHAR(255)
		);

		CREATE TABLE IF NOT EXISTS publications (
			id                          SERIAL PRIMARY KEY,
			tender_number               VARCHAR(100) UNIQUE NOT NULL,
			title                       VARCHAR(255) NOT NULL,
			description                 TEXT,
			tender_procedure            VARCHAR(255),
			execution_place             VARCHAR(255),
			subdivision_into_lots       BOOLEAN NOT NULL DEFAULT FALSE,
			side_offers_allowed         BOOLEAN NOT NULL DEFAULT FALSE,
			several_main_offers_allowed BOOLEAN NOT NULL DEFAULT FALSE,
			portal                      VARCHAR(100) NOT NULL DEFAULT 'No Portal',
			publication_url             TEXT,
			dates_id                    INTEGER NOT NULL REFERENCES publication_dates(id) ON DELETE CASCADE,
			contractor_id               INTEGER NOT NULL REFERENCES contractors(id),
			created_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS publication_cpv_codes (
			publication_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE,
			cpv_code_id    INTEGER NOT NULL REFERENCES cpv_codes(id),
			PRIMARY KEY (publication_id, cpv_code_id)
		);

		CREATE TABLE IF NOT EXISTS publication_documents (
			id             SERIAL PRIMARY KEY,
			publication_id INTEGER NOT NULL REFERENCES publications(id) ON DELETE CASCADE,
			filename       VARCHAR(255) NOT NULL,
			download_link  TEXT NOT NULL,
			UNIQUE (publication_id, filename, download_link)
		);
	`)
	return err
}

// Ingest creates the publication and its owned/referenced rows in a single
// transaction. When the tender number already exists nothing is written and
// created=false is returned; a concurrent creation race resolves the same
// way for the loser.
func (ps *PostgresStore) Ingest(ctx context.Context, in models.PublicationInput) (models.IngestResult, error) {
	var result models.IngestResult

	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM publications WHERE tender_number = $1`,
		in.TenderNumber,
	).Scan(&existingID)
	if err == nil {
		result.Reason = models.ReasonAlreadyExists
		return result, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return result, fmt.Errorf("postgres: look up tender %q: %w", in.TenderNumber, err)
	}

	datesID, err := ps.insertDates(ctx, tx, in.Dates)
	if err != nil {
		return result, err
	}

	contractorID, err := ps.getOrCreateContractor(ctx, tx, in.ContractingAuthority)
	if err != nil {
		return result, err
	}

	var pubID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO publications (
			tender_number, title, description, tender_procedure, execution_place,
			subdivision_into_lots, side_offers_allowed, several_main_offers_allowed,
			portal, publication_url, dates_id, contractor_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (tender_number) DO NOTHING
		RETURNING id`,
		in.TenderNumber, in.Title, nullStr(in.Description), nullStr(in.TenderProcedure),
		nullStr(in.ExecutionPlace), in.SubdivisionIntoLots, in.SideOffersAllowed,
		in.SeveralMainOffersAllowed, in.Portal, nullStr(in.PublicationURL),
		datesID, contractorID,
	).Scan(&pubID)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost a concurrent creation race; the rollback discards the
		// dates row created above.
		result.Reason = models.ReasonConflict
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("postgres: insert publication %q: %w", in.TenderNumber, err)
	}

	if err := ps.attachCPVCodes(ctx, tx, pubID, in.CPVCodes); err != nil {
		return result, err
	}
	if err := ps.attachDocuments(ctx, tx, pubID, in.Documents); err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("postgres: commit tender %q: %w", in.TenderNumber, err)
	}

	result.Created = true
	return result, nil
}

func (ps *PostgresStore) insertDates(ctx context.Context, tx *sql.Tx, d models.DatesInput) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO publication_dates (
			period_start, period_end, application_deadline,
			award_period, expiration_time, bidders_requests_deadline
		) VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`,
		d.PeriodStart, d.PeriodEnd, nullStr(d.ApplicationDeadline),
		d.AwardPeriod, d.ExpirationTime, nullStr(d.BiddersRequestsDeadline),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert dates: %w", err)
	}
	return id, nil
}

// getOrCreateContractor deduplicates contractors by exact name. The first
// seen address and email win; later duplicates do not overwrite.
func (ps *PostgresStore) getOrCreateContractor(ctx context.Context, tx *sql.Tx, c models.ContractorInput) (int64, error) {
	name := c.Name
	if name == "" {
		name = "Unknown Contractor"
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO contractors (name, address, contact_email)
		VALUES ($1,$2,$3)
		ON CONFLICT (name) DO NOTHING`,
		name, nullStr(c.Address), nullStr(c.ContactEmail),
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert contractor %q: %w", name, err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM contractors WHERE name = $1`, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: look up contractor %q: %w", name, err)
	}
	return id, nil
}

// attachCPVCodes upserts codes by value, filling the description only when
// it was previously null, and links them to the publication.
func (ps *PostgresStore) attachCPVCodes(ctx context.Context, tx *sql.Tx, pubID int64, codes []models.CPVCodeInput) error {
	for _, cpv := range codes {
		var cpvID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO cpv_codes (code, description)
			VALUES ($1,$2)
			ON CONFLICT (code) DO UPDATE
				SET description = COALESCE(cpv_codes.description, EXCLUDED.description)
			RETURNING id`,
			cpv.Code, nullStr(cpv.Description),
		).Scan(&cpvID)
		if err != nil {
			return fmt.Errorf("postgres: upsert cpv code %q: %w", cpv.Code, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO publication_cpv_codes (publication_id, cpv_code_id)
			VALUES ($1,$2)
			ON CONFLICT DO NOTHING`,
			pubID, cpvID,
		)
		if err != nil {
			return fmt.Errorf("postgres: link cpv code %q: %w", cpv.Code, err)
		}
	}
	return nil
}

func (ps *PostgresStore) attachDocuments(ctx context.Context, tx *sql.Tx, pubID int64, docs []models.DocumentRef) error {
	for _, doc := range docs {
		if doc.URL == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO publication_documents (publication_id, filename, download_link)
			VALUES ($1,$2,$3)
			ON CONFLICT (publication_id, filename, download_link) DO NOTHING`,
			pubID, doc.Filename, doc.URL,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert document %q: %w", doc.Filename, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
