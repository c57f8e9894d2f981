package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tender-scraper/models"
)

// Integration tests need a running PostgreSQL; they skip when
// TEST_DATABASE_DSN is not set (local dev only).
func testStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping integration test")
	}

	store, err := NewPostgresStore(dsn)
	if err != nil {
		t.Skipf("database not reachable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testInput(tenderNumber string) models.PublicationInput {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	return models.PublicationInput{
		TenderNumber:   tenderNumber,
		Title:          "Sanierung Grundschule",
		Portal:         "RIB meinauftrag",
		PublicationURL: "https://portal.example/public/publications",
		Dates: models.DatesInput{
			PeriodStart:         &start,
			ApplicationDeadline: "auf Anfrage",
		},
		ContractingAuthority: models.ContractorInput{
			Name:         "Stadt Musterstadt",
			ContactEmail: "vergabe@musterstadt.de",
		},
		CPVCodes: []models.CPVCodeInput{
			{Code: "45000000-7", Description: "Construction work"},
		},
		Documents: []models.DocumentRef{
			{Filename: "lv.pdf", URL: "https://portal.example/files/lv.pdf"},
		},
	}
}

func TestIngestIdempotence(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	in := testInput(fmt.Sprintf("it-%d", time.Now().UnixNano()))

	first, err := store.Ingest(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Created {
		t.Fatalf("first ingest: %+v", first)
	}

	second, err := store.Ingest(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created || second.Reason != models.ReasonAlreadyExists {
		t.Fatalf("second ingest: %+v; want already_exists", second)
	}

	var pubs, docs, cpvs int
	if err := store.db.QueryRow(
		`SELECT COUNT(*) FROM publications WHERE tender_number = $1`,
		in.TenderNumber,
	).Scan(&pubs); err != nil {
		t.Fatal(err)
	}
	if err := store.db.QueryRow(`
		SELECT COUNT(*) FROM publication_documents d
		JOIN publications p ON p.id = d.publication_id
		WHERE p.tender_number = $1`,
		in.TenderNumber,
	).Scan(&docs); err != nil {
		t.Fatal(err)
	}
	if err := store.db.QueryRow(`
		SELECT COUNT(*) FROM publication_cpv_codes l
		JOIN publications p ON p.id = l.publication_id
		WHERE p.tender_number = $1`,
		in.TenderNumber,
	).Scan(&cpvs); err != nil {
		t.Fatal(err)
	}

	if pubs != 1 || docs != 1 || cpvs != 1 {
		t.Errorf("row counts after double ingest: pubs=%d docs=%d cpvs=%d; want 1/1/1",
			pubs, docs, cpvs)
	}
}

func TestIngestConcurrentSameTenderNumber(t *testing.T) {
	store := testStore(t)
	in := testInput(fmt.Sprintf("race-%d", time.Now().UnixNano()))

	const workers = 4
	var wg sync.WaitGroup
	var created int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Ingest(context.Background(), in)
			if err != nil {
				t.Errorf("concurrent ingest: %v", err)
				return
			}
			if res.Created {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("%d concurrent ingests created %d publications; want exactly 1",
			workers, created)
	}
}
