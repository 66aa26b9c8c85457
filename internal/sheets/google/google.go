// Package google implements the ledger mirror on Google Sheets.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"contabils/internal/core"
	applog "contabils/internal/log"
	ports "contabils/internal/sheets"

	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *applog.Logger
}

var _ ports.LedgerMirror = (*Client)(nil)

// New creates a client authenticated with a service account. Extra options
// replace credential lookup entirely.
func New(ctx context.Context, cfg Config, logger *applog.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		cfg.SheetName = "Lancamentos"
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	if len(opts) == 0 {
		raw, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		creds, err := googleoauth.CredentialsFromJSON(ctx, raw, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account credentials: %w", err)
		}
		opts = []goption.ClientOption{goption.WithCredentials(creds)}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Sheets mirror ready", "sheet", cfg.SheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheet:         cfg.SheetName,
		logger:        logger,
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (c *Client) readIDs(ctx context.Context) ([][]any, error) {
	rng := columnsRange(c.sheet, "A:B")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if t.ID <= 0 {
		return "", core.ErrInvalidID
	}
	values, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}
	if row := findRow(values, "", t.ID); row > 0 {
		c.logger.DebugContext(ctx, "Row already mirrored", applog.FieldTransaction, t.ID, "row", row)
		return rowRange(c.sheet, row), nil
	}

	rows := [][]any{rowFor(t)}
	if len(values) == 0 {
		rows = append([][]any{Header}, rows...)
	}
	rng := columnsRange(c.sheet, "A:"+lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheet, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Transaction mirrored",
		applog.FieldTransaction, t.ID,
		applog.FieldOwner, t.OwnerID,
		"range", ref)
	return ref, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, ownerID string, id int64) error {
	values, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	row := findRow(values, ownerID, id)
	if row == 0 {
		c.logger.WarnContext(ctx, "No mirrored row to clear", applog.FieldTransaction, id, applog.FieldOwner, ownerID)
		return nil
	}

	rng := rowRange(c.sheet, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Mirrored row cleared", applog.FieldTransaction, id, "range", rng)
	return nil
}
