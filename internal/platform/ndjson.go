package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"chessmate/internal/core"
	"chessmate/internal/metrics"
)

const maxRecordBytes = 16 << 20

// ingester reads lichess-layout ndjson into a Player
type ingester struct {
	platform string
	log      *slog.Logger
	metrics  *metrics.Manager
}

// read consumes r until EOF or until sel is satisfied. Bad or oversized
// records are logged and skipped; a read failure aborts.
func (in ingester) read(ctx context.Context, r io.Reader, username string, sel Selector) (*core.Player, error) {
	player := core.NewPlayer(username)

	reader := bufio.NewReaderSize(r, 64*1024)

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := nextLine(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, errRecordTooLong) {
			in.skip(line, "", "oversized", err)
			continue
		}
		if err != nil {
			return nil, core.Wrap(core.KindIO, in.platform, fmt.Errorf("read games: %w", err))
		}

		raw := bytes.TrimSpace(text)
		if len(raw) == 0 {
			continue
		}

		rec, err := decodeLichess(raw)
		if err != nil {
			in.skip(line, "", "malformed", err)
			continue
		}

		game, err := rec.toGame(in.platform, username)
		if err != nil {
			var skip errSkip
			if errors.As(err, &skip) {
				in.metrics.RecordGameSkipped(in.platform, skip.reason)
				in.log.Debug("record out of scope", "line", line, "game", rec.ID, "reason", skip.reason)
				continue
			}
			in.skip(line, rec.ID, "malformed", err)
			continue
		}

		if !sel.Contains(game.StartedAt()) {
			continue
		}

		if err := player.AddGame(game); err != nil {
			in.skip(line, rec.ID, "malformed", err)
			continue
		}
		in.metrics.RecordGameFetched(in.platform)

		if sel.Full(player.Len()) {
			break
		}
	}

	return player, nil
}

var errRecordTooLong = fmt.Errorf("record exceeds %d bytes", maxRecordBytes)

// nextLine returns the next line including its newline. An over-long line is
// consumed up to its newline and reported as errRecordTooLong.
func nextLine(r *bufio.Reader) ([]byte, error) {
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxRecordBytes {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err != nil && !errors.Is(err, io.EOF):
			return nil, err
		case tooLong:
			return nil, errRecordTooLong
		case err != nil && len(line) == 0:
			return nil, io.EOF
		}
		return line, nil
	}
}

func (in ingester) skip(line int, id, reason string, err error) {
	in.metrics.RecordGameSkipped(in.platform, reason)
	in.log.Warn("skipping game record", "platform", in.platform, "line", line, "game", id, "error", err)
}
