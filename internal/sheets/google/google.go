// Package google stores sync documents in a Google Sheets spreadsheet, one
// tab per entity with the document id in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// Tab names.
const (
	TabBudgets  = "budgets"
	TabExpenses = "expenses"
	TabIncomes  = "incomes"
	TabUsers    = "users"
)

// Options configures a Client.
type Options struct {
	SpreadsheetID string
	// Service account credentials, inline or from a file.
	CredentialsJSON string
	CredentialsFile string
	// Row index cache sizing per tab.
	CacheSize int
	CacheTTL  time.Duration
	// Extra client options, e.g. a test endpoint.
	ClientOptions []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	cacheSize     int
	cacheTTL      time.Duration

	// Writes are serialized: deleting a row shifts the ones below it.
	mu       sync.Mutex
	sheetIDs map[string]int64

	budgets  *table[core.Budget]
	expenses *table[core.Transaction]
	incomes  *table[core.Transaction]
	users    *table[core.User]
}

var _ ports.Remote = (*Client)(nil)

// New creates a Sheets client and makes sure every entity tab exists.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	c := NewWithService(svc, opts)
	if err := c.EnsureTabs(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithService wraps an existing service without touching the spreadsheet.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 10000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	c := &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		cacheSize:     opts.CacheSize,
		cacheTTL:      opts.CacheTTL,
		sheetIDs:      make(map[string]int64),
	}
	c.budgets = newTable(c, TabBudgets, budgetCodec)
	c.expenses = newTable(c, TabExpenses, transactionCodec(core.KindExpense))
	c.incomes = newTable(c, TabIncomes, transactionCodec(core.KindIncome))
	c.users = newTable(c, TabUsers, userCodec)
	return c
}

func (c *Client) Budgets() ports.Store[core.Budget]       { return c.budgets }
func (c *Client) Expenses() ports.Store[core.Transaction] { return c.expenses }
func (c *Client) Incomes() ports.Store[core.Transaction]  { return c.incomes }
func (c *Client) Users() ports.Store[core.User]           { return c.users }

// Caches returns the row index caches for registration with a cache.Manager.
func (c *Client) Caches() []cache.Cleaner {
	return []cache.Cleaner{c.budgets.rows, c.expenses.rows, c.incomes.rows, c.users.rows}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientOpts := append([]goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}, opts.ClientOptions...)

	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case strings.TrimSpace(opts.CredentialsFile) != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", opts.CredentialsFile, "size", len(data))
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(data))
	case len(opts.ClientOptions) == 0:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// EnsureTabs creates missing entity tabs with their header row and records
// every tab's sheet id.
func (c *Client) EnsureTabs(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("get spreadsheet: %w", err))
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}

	headers := map[string][]string{
		TabBudgets:  budgetCodec.header,
		TabExpenses: transactionCodec(core.KindExpense).header,
		TabIncomes:  transactionCodec(core.KindIncome).header,
		TabUsers:    userCodec.header,
	}
	for _, name := range []string{TabBudgets, TabExpenses, TabIncomes, TabUsers} {
		if _, ok := c.sheetIDs[name]; ok {
			continue
		}
		add, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
			Requests: []*gsheet.Request{{AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: name},
			}}},
		}).Context(ctx).Do()
		if err != nil {
			return classify(fmt.Errorf("add tab %s: %w", name, err))
		}
		if len(add.Replies) > 0 && add.Replies[0].AddSheet != nil && add.Replies[0].AddSheet.Properties != nil {
			c.sheetIDs[name] = add.Replies[0].AddSheet.Properties.SheetId
		}

		header := make([]any, len(headers[name]))
		for i, h := range headers[name] {
			header[i] = h
		}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, name+"!A1", &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return classify(fmt.Errorf("write header for %s: %w", name, err))
		}
		slog.InfoContext(ctx, "Created sheet tab", "component", "sheets", "tab", name)
	}
	return nil
}

// classify wraps transient API and network failures in ports.ErrUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 429 || gerr.Code >= 500) {
		return fmt.Errorf("%w: %v", ports.ErrUnavailable, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return fmt.Errorf("%w: %v", ports.ErrUnavailable, err)
	}
	return err
}
