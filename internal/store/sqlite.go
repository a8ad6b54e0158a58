package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "session-trader/internal/errors"
	"session-trader/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket      INTEGER NOT NULL,
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	volume      REAL NOT NULL,
	entry_price REAL NOT NULL,
	close_price REAL NOT NULL,
	open_time   INTEGER NOT NULL,
	close_time  INTEGER NOT NULL,
	profit_pips REAL NOT NULL,
	profit      REAL NOT NULL,
	session     TEXT NOT NULL DEFAULT '',
	rule        TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);

CREATE TABLE IF NOT EXISTS equity (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	equity    REAL NOT NULL,
	balance   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equity_timestamp ON equity(timestamp);
`

// SQLite is the file-backed ledger store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the ledger database at path and applies the
// schema. WAL journaling keeps the per-tick writes off the read path.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, "opening ledger database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "applying ledger schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordTrade(r models.TradeRecord) error {
	_, err := s.db.Exec(`INSERT INTO trades
		(ticket, symbol, direction, volume, entry_price, close_price,
		 open_time, close_time, profit_pips, profit, session, rule, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Ticket, r.Symbol, string(r.Direction), r.Volume, r.EntryPrice, r.ClosePrice,
		r.OpenTime.Unix(), r.CloseTime.Unix(), r.ProfitPips, r.Profit,
		string(r.Session), r.Rule, string(r.Reason))
	return apperrors.Wrap(err, "recording trade")
}

func (s *SQLite) Trades(since time.Time) ([]models.TradeRecord, error) {
	rows, err := s.db.Query(`SELECT ticket, symbol, direction, volume,
		entry_price, close_price, open_time, close_time, profit_pips, profit,
		session, rule, reason
		FROM trades WHERE close_time >= ? ORDER BY close_time, id`,
		since.Unix())
	if err != nil {
		return nil, apperrors.Wrap(err, "querying trades")
	}
	defer rows.Close()

	var out []models.TradeRecord
	for rows.Next() {
		var r models.TradeRecord
		var direction, session, reason string
		var openUnix, closeUnix int64
		if err := rows.Scan(&r.Ticket, &r.Symbol, &direction, &r.Volume,
			&r.EntryPrice, &r.ClosePrice, &openUnix, &closeUnix,
			&r.ProfitPips, &r.Profit, &session, &r.Rule, &reason); err != nil {
			return nil, apperrors.Wrap(err, "scanning trade")
		}
		r.Direction = models.Direction(direction)
		r.Session = models.SessionName(session)
		r.Reason = models.CloseReason(reason)
		r.OpenTime = time.Unix(openUnix, 0).UTC()
		r.CloseTime = time.Unix(closeUnix, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) RecordEquity(p models.EquityPoint) error {
	_, err := s.db.Exec(`INSERT INTO equity (timestamp, equity, balance) VALUES (?, ?, ?)`,
		p.Timestamp.Unix(), p.Equity, p.Balance)
	return apperrors.Wrap(err, "recording equity point")
}

func (s *SQLite) EquityCurve(since time.Time) ([]models.EquityPoint, error) {
	rows, err := s.db.Query(`SELECT timestamp, equity, balance
		FROM equity WHERE timestamp >= ? ORDER BY timestamp, id`, since.Unix())
	if err != nil {
		return nil, apperrors.Wrap(err, "querying equity curve")
	}
	defer rows.Close()

	var out []models.EquityPoint
	for rows.Next() {
		var p models.EquityPoint
		var unix int64
		if err := rows.Scan(&unix, &p.Equity, &p.Balance); err != nil {
			return nil, apperrors.Wrap(err, "scanning equity point")
		}
		p.Timestamp = time.Unix(unix, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
