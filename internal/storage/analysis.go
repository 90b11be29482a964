package storage

import (
	"database/sql"
	"fmt"

	"chessmate/internal/core"
	"chessmate/internal/processor"
)

// RecordAnalysis queues a finished report for archiving. It never blocks the
// caller; the report is dropped when the store is degraded or saturated.
func (s *Store) RecordAnalysis(r *processor.Report) {
	if r == nil {
		return
	}

	record := AnalysisRecord{
		AnalysisID: r.ID,
		Username:   r.Username,
		Platform:   r.Platform,
		StartedAt:  r.StartedAt.UTC(),
		DurationMS: r.Duration.Milliseconds(),
		Games:      r.Games,
		Mistakes:   len(r.Mistakes),
		Skipped:    len(r.Skipped),
		Clusters:   len(r.Clusters),
	}
	mistakes := mistakeRows(r)

	s.enqueue("analysis "+r.ID, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO analyses (
			analysis_id, username, platform, started_at, duration_ms,
			games, mistakes, skipped, clusters
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.AnalysisID, record.Username, record.Platform, record.StartedAt, record.DurationMS,
			record.Games, record.Mistakes, record.Skipped, record.Clusters,
		)
		if err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO mistakes (
			analysis_id, game_id, ply, move_san, move_uci, best_move,
			best_eval_cp, actual_eval_cp, cp_loss, mistake_type, time_spent, cluster
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare mistake insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range mistakes {
			if _, err := stmt.Exec(
				m.AnalysisID, m.GameID, m.Ply, m.MoveSAN, m.MoveUCI, m.BestMove,
				m.BestEval, m.ActualEval, m.CPLoss, m.Label, m.TimeSpent, m.Cluster,
			); err != nil {
				return fmt.Errorf("insert mistake %s/%d: %w", m.GameID, m.Ply, err)
			}
		}
		return nil
	})
}

// mistakeRows pairs each record with the cluster id its table row carries
func mistakeRows(r *processor.Report) []MistakeRow {
	type key struct {
		game string
		ply  int
	}
	clusters := make(map[key]int)
	for _, row := range r.Rows {
		if row.Cluster != nil {
			clusters[key{row.GameID, row.MoveNumber - 1}] = *row.Cluster
		}
	}

	out := make([]MistakeRow, 0, len(r.Mistakes))
	for _, m := range r.Mistakes {
		cluster, ok := clusters[key{m.GameID, m.Ply}]
		if !ok {
			cluster = processor.Unclustered
		}
		row := MistakeRow{
			AnalysisID: r.ID,
			GameID:     m.GameID,
			Ply:        m.Ply,
			MoveSAN:    m.MoveSAN,
			MoveUCI:    m.Move,
			BestMove:   m.BestMove,
			BestEval:   m.BestEval,
			ActualEval: m.ActualEval,
			CPLoss:     m.CPLoss,
			Label:      string(m.Label),
			Cluster:    cluster,
		}
		if m.TimeUsed.Valid {
			secs := m.TimeUsed.Seconds
			row.TimeSpent = &secs
		}
		out = append(out, row)
	}
	return out
}

// QueryAnalyses lists archived analyses, newest first. Empty or "*" matches any value.
func (s *Store) QueryAnalyses(username, platform string) ([]AnalysisRecord, error) {
	query := `SELECT
		analysis_id, username, platform, started_at, duration_ms,
		games, mistakes, skipped, clusters
	FROM analyses WHERE 1=1`

	var args []any

	if username != "" && username != "*" {
		query += " AND username = ?"
		args = append(args, username)
	}
	if platform != "" && platform != "*" {
		query += " AND platform = ?"
		args = append(args, platform)
	}

	query += " ORDER BY started_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, core.Wrap(core.KindIO, "query analyses", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var a AnalysisRecord
		if err := rows.Scan(
			&a.AnalysisID, &a.Username, &a.Platform, &a.StartedAt, &a.DurationMS,
			&a.Games, &a.Mistakes, &a.Skipped, &a.Clusters,
		); err != nil {
			return nil, core.Wrap(core.KindIO, "query analyses", fmt.Errorf("scan failed: %w", err))
		}
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, core.Wrap(core.KindIO, "query analyses", fmt.Errorf("rows iteration failed: %w", err))
	}
	return out, nil
}

// QueryMistakes returns the archived moves of one analysis ordered by game and ply
func (s *Store) QueryMistakes(analysisID string) ([]MistakeRow, error) {
	rows, err := s.db.Query(`SELECT
		analysis_id, game_id, ply, move_san, move_uci, best_move,
		best_eval_cp, actual_eval_cp, cp_loss, mistake_type, time_spent, cluster
	FROM mistakes WHERE analysis_id = ?
	ORDER BY game_id, ply`, analysisID)
	if err != nil {
		return nil, core.Wrap(core.KindIO, "query mistakes", err)
	}
	defer rows.Close()

	var out []MistakeRow
	for rows.Next() {
		var m MistakeRow
		var spent sql.NullFloat64
		if err := rows.Scan(
			&m.AnalysisID, &m.GameID, &m.Ply, &m.MoveSAN, &m.MoveUCI, &m.BestMove,
			&m.BestEval, &m.ActualEval, &m.CPLoss, &m.Label, &spent, &m.Cluster,
		); err != nil {
			return nil, core.Wrap(core.KindIO, "query mistakes", fmt.Errorf("scan failed: %w", err))
		}
		if spent.Valid {
			m.TimeSpent = &spent.Float64
		}
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, core.Wrap(core.KindIO, "query mistakes", fmt.Errorf("rows iteration failed: %w", err))
	}
	if len(out) == 0 {
		var exists int
		err := s.db.QueryRow(`SELECT COUNT(1) FROM analyses WHERE analysis_id = ?`, analysisID).Scan(&exists)
		if err != nil {
			return nil, core.Wrap(core.KindIO, "query mistakes", err)
		}
		if exists == 0 {
			return nil, core.Errorf(core.KindNotFound, "query mistakes", "analysis %q not found", analysisID)
		}
	}
	return out, nil
}

// DeleteAnalysis removes one analysis and its moves
func (s *Store) DeleteAnalysis(analysisID string) error {
	res, err := s.db.Exec(`DELETE FROM analyses WHERE analysis_id = ?`, analysisID)
	if err != nil {
		return core.Wrap(core.KindIO, "delete analysis", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Errorf(core.KindNotFound, "delete analysis", "analysis %q not found", analysisID)
	}
	return nil
}
