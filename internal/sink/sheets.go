package sink

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	coretelegram "github.com/m3rciful/consultbot/core/telegram"
	"github.com/m3rciful/consultbot/internal/signup"
)

const sheetsTimeout = 30 * time.Second

// Sheets appends rows to a Google spreadsheet.
type Sheets struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	rng           string
}

// SheetsClientOptions authenticates with a service-account key file.
func SheetsClientOptions(ctx context.Context, credentialsFile string) ([]option.ClientOption, error) {
	key, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sink: read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, key, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sink: parse credentials: %w", err)
	}
	return []option.ClientOption{option.WithHTTPClient(sheetsHTTPClient(creds.TokenSource, nil))}, nil
}

// sheetsHTTPClient authorises requests from ts over base (a tuned transport
// when nil). An append is not idempotent, so only connect failures are retried.
func sheetsHTTPClient(ts oauth2.TokenSource, base http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout: sheetsTimeout,
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   coretelegram.DialRetryTransport(base),
		},
	}
}

// NewSheets builds a sheets sink over the given client options.
func NewSheets(ctx context.Context, spreadsheetID, rng string, opts ...option.ClientOption) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sink: sheets service: %w", err)
	}
	return &Sheets{values: svc.Spreadsheets.Values, spreadsheetID: spreadsheetID, rng: rng}, nil
}

// Append writes row as a new line below the existing data.
func (s *Sheets) Append(ctx context.Context, row signup.Row) (err error) {
	start := time.Now()
	defer func() { logAppend(ctx, KindSheets, row, start, err) }()

	vals := row.Values()
	cells := make([]interface{}, len(vals))
	for i, v := range vals {
		cells[i] = v
	}
	_, err = s.values.Append(s.spreadsheetID, s.rng, &sheets.ValueRange{Values: [][]interface{}{cells}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sink: sheets append: %w", err)
	}
	return nil
}
