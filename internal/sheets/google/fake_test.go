package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the subset of the Sheets v4 REST API the client uses.
type fakeSheets struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	ids    map[string]int64
	nextID int64
	// failStatus, when set, is returned for every request.
	failStatus int
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{tabs: map[string][][]any{}, ids: map[string]int64{}, nextID: 1}
}

var cellRe = regexp.MustCompile(`^([A-Z]+)(\d*)$`)

// parseRange splits "tab!A2:O" into tab name and the first row (1-based).
func parseRange(rng string) (string, int) {
	tab, cells, _ := strings.Cut(rng, "!")
	start, _, _ := strings.Cut(cells, ":")
	row := 1
	if m := cellRe.FindStringSubmatch(start); m != nil && m[2] != "" {
		row, _ = strconv.Atoi(m[2])
	}
	return tab, row
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failStatus != 0 {
		w.WriteHeader(f.failStatus)
		_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(f.failStatus) + `,"message":"injected"}}`))
		return
	}

	path := r.URL.Path
	const prefix = "/v4/spreadsheets/"
	rest := strings.TrimPrefix(path, prefix)
	_, rest, _ = strings.Cut(rest, "/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && !strings.Contains(strings.TrimPrefix(path, prefix), "/"):
		var sheets []map[string]any
		for name, id := range f.ids {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": id, "title": name}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		var replies []map[string]any
		for _, q := range req.Requests {
			switch {
			case q.AddSheet != nil:
				id := f.nextID
				f.nextID++
				f.ids[q.AddSheet.Properties.Title] = id
				f.tabs[q.AddSheet.Properties.Title] = nil
				replies = append(replies, map[string]any{"addSheet": map[string]any{
					"properties": map[string]any{"sheetId": id, "title": q.AddSheet.Properties.Title}}})
			case q.DeleteDimension != nil:
				for name, id := range f.ids {
					if id != q.DeleteDimension.Range.SheetId {
						continue
					}
					rows := f.tabs[name]
					i := int(q.DeleteDimension.Range.StartIndex)
					if i < len(rows) {
						f.tabs[name] = append(rows[:i], rows[i+1:]...)
					}
				}
				replies = append(replies, map[string]any{})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"replies": replies})

	case strings.HasPrefix(rest, "values/"):
		rng := strings.TrimPrefix(rest, "values/")
		isAppend := strings.HasSuffix(rng, ":append")
		rng = strings.TrimSuffix(rng, ":append")
		tab, row := parseRange(rng)

		switch {
		case r.Method == http.MethodGet:
			rows := f.tabs[tab]
			var values [][]any
			if row-1 < len(rows) {
				values = rows[row-1:]
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
		case r.Method == http.MethodPost && isAppend:
			var vr gsheet.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			f.tabs[tab] = append(f.tabs[tab], vr.Values...)
			n := len(f.tabs[tab])
			_ = json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{
				"updatedRange": tab + "!A" + strconv.Itoa(n) + ":Z" + strconv.Itoa(n)}})
		case r.Method == http.MethodPut:
			var vr gsheet.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			for len(f.tabs[tab]) < row-1+len(vr.Values) {
				f.tabs[tab] = append(f.tabs[tab], nil)
			}
			for i, v := range vr.Values {
				f.tabs[tab][row-1+i] = v
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSheets) rowCount(tab string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tabs[tab])
}

func (f *fakeSheets) fail(status int) {
	f.mu.Lock()
	f.failStatus = status
	f.mu.Unlock()
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := newFakeSheets()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-1",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithoutAuthentication(),
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}
