package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"finpulse/internal/log"
	ports "finpulse/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads cell ranges from one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ ports.ValuesReader = (*Client)(nil)

// Config selects the spreadsheet and service account. CredentialsJSON wins
// over CredentialsFile; when both are empty GOOGLE_APPLICATION_CREDENTIALS is
// used.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger.WithComponent(log.ComponentSheets).InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) ReadRange(ctx context.Context, rng string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
