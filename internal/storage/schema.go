package storage

import "time"

// AnalysisRecord is one row of the analyses table
type AnalysisRecord struct {
	AnalysisID string    `db:"analysis_id" json:"analysis_id"`
	Username   string    `db:"username" json:"username"`
	Platform   string    `db:"platform" json:"platform"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	Games      int       `db:"games" json:"games"`
	Mistakes   int       `db:"mistakes" json:"mistakes"`
	Skipped    int       `db:"skipped" json:"skipped"`
	Clusters   int       `db:"clusters" json:"clusters"`
}

// MistakeRow is one classified move of an archived analysis
type MistakeRow struct {
	AnalysisID string   `db:"analysis_id" json:"analysis_id"`
	GameID     string   `db:"game_id" json:"game_id"`
	Ply        int      `db:"ply" json:"ply"`
	MoveSAN    string   `db:"move_san" json:"move"`
	MoveUCI    string   `db:"move_uci" json:"move_uci"`
	BestMove   string   `db:"best_move" json:"best_move"`
	BestEval   int      `db:"best_eval_cp" json:"best_eval_cp"`
	ActualEval int      `db:"actual_eval_cp" json:"actual_eval_cp"`
	CPLoss     int      `db:"cp_loss" json:"cp_loss"`
	Label      string   `db:"mistake_type" json:"mistake_type"`
	TimeSpent  *float64 `db:"time_spent" json:"time_spent"`
	Cluster    int      `db:"cluster" json:"cluster"`
}

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS analyses (
	analysis_id TEXT PRIMARY KEY,
	username TEXT NOT NULL COLLATE NOCASE,
	platform TEXT NOT NULL,
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	games INTEGER NOT NULL DEFAULT 0,
	mistakes INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	clusters INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS mistakes (
	mistake_id INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id TEXT NOT NULL,
	game_id TEXT NOT NULL,
	ply INTEGER NOT NULL,
	move_san TEXT NOT NULL,
	move_uci TEXT NOT NULL,
	best_move TEXT NOT NULL DEFAULT '',
	best_eval_cp INTEGER NOT NULL,
	actual_eval_cp INTEGER NOT NULL,
	cp_loss INTEGER NOT NULL,
	mistake_type TEXT NOT NULL,
	time_spent REAL,
	cluster INTEGER NOT NULL DEFAULT -1,
	FOREIGN KEY (analysis_id) REFERENCES analyses(analysis_id) ON DELETE CASCADE,
	UNIQUE(analysis_id, game_id, ply)
);

CREATE INDEX IF NOT EXISTS idx_analyses_username ON analyses(username);
CREATE INDEX IF NOT EXISTS idx_analyses_platform ON analyses(platform);
CREATE INDEX IF NOT EXISTS idx_mistakes_analysis_id ON mistakes(analysis_id);
CREATE INDEX IF NOT EXISTS idx_mistakes_type ON mistakes(mistake_type);
`
