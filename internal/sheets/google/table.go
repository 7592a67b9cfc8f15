package google

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/cache"
)

// table is one entity tab. Row numbers of known ids are kept in an LRU
// cache; a miss reloads column A.
type table[T any] struct {
	c     *Client
	name  string
	codec codec[T]
	rows  *cache.LRUCache[int]
}

func newTable[T any](c *Client, name string, cd codec[T]) *table[T] {
	return &table[T]{c: c, name: name, codec: cd, rows: cache.NewLRUCache[int](c.cacheSize, c.cacheTTL)}
}

func (t *table[T]) lastColumn() string {
	return string(rune('A' + len(t.codec.header) - 1))
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// reindex reads the id column and refreshes the row cache. Row 1 is the
// header.
func (t *table[T]) reindex(ctx context.Context) error {
	resp, err := t.c.svc.Spreadsheets.Values.Get(t.c.spreadsheetID, t.name+"!A2:A").Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("read ids from %s: %w", t.name, err))
	}
	t.rows.Clear()
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id := fmt.Sprint(row[0]); id != "" {
			t.rows.Set(id, i+2)
		}
	}
	return nil
}

// rowOf returns the sheet row holding id, or 0 when absent.
func (t *table[T]) rowOf(ctx context.Context, id string) (int, error) {
	if row, ok := t.rows.Get(id); ok {
		return row, nil
	}
	if err := t.reindex(ctx); err != nil {
		return 0, err
	}
	row, _ := t.rows.Get(id)
	return row, nil
}

var updatedRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

func (t *table[T]) Upsert(ctx context.Context, record T) error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()

	id, _, _ := t.codec.key(record)
	row, err := t.rowOf(ctx, id)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{t.codec.encode(record)}}

	if row > 0 {
		rng := fmt.Sprintf("%s!A%d:%s%d", t.name, row, t.lastColumn(), row)
		_, err := t.c.svc.Spreadsheets.Values.Update(t.c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			t.rows.Delete(id)
			return classify(fmt.Errorf("update %s row %d: %w", t.name, row, err))
		}
		return nil
	}

	resp, err := t.c.svc.Spreadsheets.Values.Append(t.c.spreadsheetID, t.name+"!A1", vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("append to %s: %w", t.name, err))
	}
	if resp.Updates != nil {
		if m := updatedRowRe.FindStringSubmatch(resp.Updates.UpdatedRange); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				t.rows.Set(id, n)
			}
		}
	}
	return nil
}

func (t *table[T]) Delete(ctx context.Context, _ string, id string) error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()

	row, err := t.rowOf(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return nil
	}
	sheetID, ok := t.c.sheetIDs[t.name]
	if !ok {
		return fmt.Errorf("unknown sheet id for tab %s", t.name)
	}
	_, err = t.c.svc.Spreadsheets.BatchUpdate(t.c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(row - 1),
				EndIndex:   int64(row),
			},
		}}},
	}).Context(ctx).Do()
	// Row numbers below the deleted one shifted either way.
	t.rows.Clear()
	if err != nil {
		return classify(fmt.Errorf("delete %s row %d: %w", t.name, row, err))
	}
	return nil
}

func (t *table[T]) ListUpdatedSince(ctx context.Context, userID string, since time.Time) ([]T, error) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()

	rng := fmt.Sprintf("%s!A2:%s", t.name, t.lastColumn())
	resp, err := t.c.svc.Spreadsheets.Values.Get(t.c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("read %s: %w", rng, err))
	}

	var out []T
	for i, raw := range resp.Values {
		cols := toStrings(raw)
		if len(cols) == 0 || cols[0] == "" {
			continue
		}
		t.rows.Set(cols[0], i+2)
		rec, err := t.codec.decode(cols)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed sheet row",
				"component", "sheets", "tab", t.name, "row", i+2, "error", err)
			continue
		}
		_, uid, updated := t.codec.key(rec)
		if uid == userID && updated.After(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}
