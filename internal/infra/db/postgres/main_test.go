//go:build integration

package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Set to run against an existing database instead of a throwaway container.
const envTestDatabaseURL = "FIBER_TEST_DATABASE_URL"

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn := os.Getenv(envTestDatabaseURL)
	stop := func() {}
	if dsn == "" {
		var err error
		dsn, stop, err = startContainer()
		if err != nil {
			log.Fatalf("could not start postgres container: %v. Is Docker running?", err)
		}
	}

	var err error
	testPool, err = connectWithRetry(ctx, dsn, 15, 2*time.Second)
	if err != nil {
		stop()
		log.Fatalf("unable to connect to test database: %v", err)
	}
	if err := applySchema(ctx, testPool); err != nil {
		testPool.Close()
		stop()
		log.Fatalf("could not apply schema: %v", err)
	}

	code := m.Run()

	testPool.Close()
	stop()
	os.Exit(code)
}

// startContainer runs postgres:14 on the host network and returns its DSN
// and a function that stops it.
func startContainer() (string, func(), error) {
	const (
		name     = "fiber-test"
		user     = "fiber"
		password = "fiber"
	)
	cmd := exec.Command("docker", "run", "-d", "--rm",
		"--network", "host",
		"-e", "POSTGRES_DB="+name,
		"-e", "POSTGRES_USER="+user,
		"-e", "POSTGRES_PASSWORD="+password,
		"postgres:14",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", nil, err
	}
	id := strings.TrimSpace(out.String())
	if len(id) > 12 {
		id = id[:12]
	}
	stop := func() {
		if err := exec.Command("docker", "stop", id).Run(); err != nil {
			log.Printf("could not stop postgres container %s: %v", id, err)
		}
	}
	return fmt.Sprintf("postgres://%s:%s@localhost:5432/%s?sslmode=disable", user, password, name), stop, nil
}

func connectWithRetry(ctx context.Context, dsn string, attempts int, wait time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		pool, err := pgxpool.Connect(ctx, dsn)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		log.Printf("waiting for database (attempt %d/%d)", i+1, attempts)
		time.Sleep(wait)
	}
	return nil, lastErr
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := moduleRoot()
	if err != nil {
		return err
	}
	schema, err := os.ReadFile(filepath.Join(root, "deploy", "postgres", "init.sql"))
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, string(schema))
	return err
}

// moduleRoot walks up from the working directory to the nearest go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above working directory")
		}
		dir = parent
	}
}

func cleanup(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`TRUNCATE companies, offices, fiber_routes, payments RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to clean up database: %v", err)
	}
}

// seedTenant inserts a company with one office for repository tests.
func seedTenant(t *testing.T, companyID, officeID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := testPool.Exec(ctx, `INSERT INTO companies (id, name) VALUES ($1, $2)`, companyID, "Company "+companyID); err != nil {
		t.Fatalf("failed to seed company: %v", err)
	}
	if _, err := testPool.Exec(ctx, `INSERT INTO offices (id, company_id, name, office_type) VALUES ($1, $2, $3, 'head')`, officeID, companyID, "HQ"); err != nil {
		t.Fatalf("failed to seed office: %v", err)
	}
}
