package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkguardian/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "linkguardian.db"

// HistoryDB is the SQLite-backed scan history.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// With CreateIfNotExists false a missing database is an error and nothing
// is created on disk.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scan with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a new file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per scan; the full report is kept as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL UNIQUE,
		target TEXT NOT NULL,
		mode TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		report_json TEXT NOT NULL,
		summary_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON scan_reports(target);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);

	-- One row per checked link of a scan
	CREATE TABLE IF NOT EXISTS link_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL REFERENCES scan_reports(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		redirect_target TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_results_report ON link_results(report_id);
	CREATE INDEX IF NOT EXISTS idx_results_url ON link_results(url);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport stores report and its link results in one transaction and
// returns the database ID of the new row.
func (h *HistoryDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	if report == nil {
		return 0, errors.New("report is nil")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO scan_reports (scan_id, target, mode, timestamp, report_json, summary_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Target,
		string(report.Mode),
		formatTimestamp(report.DateScanned),
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO link_results (report_id, url, status, redirect_target, message)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Results {
		if _, err := stmt.ExecContext(ctx, id, r.URL, string(r.Status.Kind), r.Status.Target, r.Message); err != nil {
			return 0, fmt.Errorf("failed to save link result %s: %w", r.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan report: %w", err)
	}
	return id, nil
}

// GetLatestScanReport returns the most recent report for target, or nil
// when the target was never saved.
func (h *HistoryDB) GetLatestScanReport(ctx context.Context, target string) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	return h.queryReport(ctx, query, target)
}

// GetScanReportByID returns the report stored under id, or nil.
func (h *HistoryDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	return h.queryReport(ctx, `SELECT report_json FROM scan_reports WHERE id = ?`, id)
}

func (h *HistoryDB) queryReport(ctx context.Context, query string, args ...any) (*model.ScanReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListTargets returns every target with at least one saved scan.
func (h *HistoryDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT target FROM scan_reports ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// GetScanHistory returns every saved report for target, newest first.
// Rows that no longer parse are skipped.
func (h *HistoryDB) GetScanHistory(ctx context.Context, target string) ([]*model.ScanReport, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	`, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		var report model.ScanReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

// ScanReportMetadata describes a saved scan without loading its results.
type ScanReportMetadata struct {
	// ID is the database row ID, usable with GetScanReportByID.
	ID int64 `json:"id"`

	// ScanID is the report's own identifier.
	ScanID string `json:"scan_id"`

	Target    string         `json:"target"`
	Mode      model.ScanMode `json:"mode"`
	Timestamp time.Time      `json:"timestamp"`

	// Summary holds the result counts of the scan.
	Summary model.Summary `json:"summary"`
}

// GetScanHistoryWithMetadata lists the saved scans of target, newest first.
func (h *HistoryDB) GetScanHistoryWithMetadata(ctx context.Context, target string) ([]ScanReportMetadata, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT id, scan_id, target, mode, timestamp, summary_json
	FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	`, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var (
			meta        ScanReportMetadata
			mode        string
			timestamp   string
			summaryJSON sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.ScanID, &meta.Target, &mode, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Mode = model.ScanMode(mode)
		meta.Timestamp = parseTimestamp(timestamp)
		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &meta.Summary); err != nil {
				meta.Summary = model.Summary{}
			}
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// LinkRecord is one stored check of a URL.
type LinkRecord struct {
	ReportID  int64
	Target    string
	Timestamp time.Time
	Result    model.LinkCheckResult
}

// GetLinkHistory returns every stored check of url across all targets,
// newest first.
func (h *HistoryDB) GetLinkHistory(ctx context.Context, url string) ([]LinkRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT r.id, r.target, r.timestamp, l.url, l.status, l.redirect_target, l.message
	FROM link_results l
	JOIN scan_reports r ON r.id = l.report_id
	WHERE l.url = ?
	ORDER BY r.timestamp DESC, r.id DESC
	`, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get link history: %w", err)
	}
	defer rows.Close()

	var records []LinkRecord
	for rows.Next() {
		var (
			rec       LinkRecord
			timestamp string
			status    string
			target    sql.NullString
			message   sql.NullString
		)
		if err := rows.Scan(&rec.ReportID, &rec.Target, &timestamp, &rec.Result.URL, &status, &target, &message); err != nil {
			return nil, fmt.Errorf("failed to scan link record: %w", err)
		}
		rec.Timestamp = parseTimestamp(timestamp)
		rec.Result.Status = model.LinkStatus{Kind: model.StatusKind(status), Target: target.String}
		rec.Result.Message = message.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteScanReport removes a saved scan and its link results.
func (h *HistoryDB) DeleteScanReport(ctx context.Context, id int64) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM link_results WHERE report_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete link results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scan_reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("scan report %d not found", id)
	}
	return tx.Commit()
}

// timestampLayout sorts lexically in the same order as time.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats lists the layouts accepted when reading timestamps back.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
