package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/m3rciful/consultbot/internal/signup"
)

func annaRow() signup.Row {
	rec := signup.Record{
		Name: "Anna", Level: "HSK 1", Format: "Индивидуальный", Purpose: "Сдать HSK",
		Username: "anna_tg", MeetDate: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
	}
	return signup.NewRow("6f1c9a8e-2b7d-4d4e-9a57-3c1f0e5b2a10", rec, time.Date(2026, 10, 17, 10, 0, 0, 0, time.Local))
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	var c Config
	c.Normalize()
	assert.Equal(t, KindSheets, c.Kind)
	assert.Equal(t, "A1", c.Range)
	assert.Equal(t, "credentials.json", c.CredentialsFile)
	assert.Error(t, c.Validate(), "sheets without a spreadsheet id")

	c.SpreadsheetID = "sheet"
	assert.NoError(t, c.Validate())
	assert.False(t, c.NeedsDatabase())

	pg := Config{Kind: " Postgres "}
	pg.Normalize()
	assert.NoError(t, pg.Validate())
	assert.True(t, pg.NeedsDatabase())

	assert.Error(t, Config{Kind: "csv"}.Validate())
}

func TestOpenRejectsBadSetups(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Kind: KindPostgres}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Kind: "csv"}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{SpreadsheetID: "x", CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}, nil)
	assert.ErrorContains(t, err, "read credentials")
}

func TestToSubmission(t *testing.T) {
	rec, err := toSubmission(annaRow())
	require.NoError(t, err)
	assert.Equal(t, "6f1c9a8e-2b7d-4d4e-9a57-3c1f0e5b2a10", rec.ID.String())
	assert.Equal(t, "-", rec.Phone)
	require.NotNil(t, rec.MeetDate)
	assert.Equal(t, "2026-10-20", rec.MeetDate.Format(signup.DateLayout))
	assert.Equal(t, 10, rec.CreatedAt.Hour())

	row := annaRow()
	row.MeetDate = signup.Absent
	rec, err = toSubmission(row)
	require.NoError(t, err)
	assert.Nil(t, rec.MeetDate)

	row.ID = "not-a-uuid"
	_, err = toSubmission(row)
	assert.Error(t, err)
}

func TestSheetsAppend(t *testing.T) {
	var got struct {
		Values [][]string `json:"values"`
	}
	var path, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, query = r.URL.Path, r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	defer srv.Close()

	s, err := NewSheets(context.Background(), "sheet-1", "A1",
		option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	require.NoError(t, s.Append(context.Background(), annaRow()))
	assert.True(t, strings.HasSuffix(path, "/v4/spreadsheets/sheet-1/values/A1:append"), path)
	assert.Contains(t, query, "valueInputOption=RAW")
	assert.Contains(t, query, "insertDataOption=INSERT_ROWS")
	require.Len(t, got.Values, 1)
	assert.Equal(t,
		[]string{"Anna", "HSK 1", "Индивидуальный", "Сдать HSK", "anna_tg", "-", "2026-10-20", "2026-10-17 10:00:00"},
		got.Values[0],
	)
}

func TestSheetsAppendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	}))
	defer srv.Close()

	s, err := NewSheets(context.Background(), "sheet-1", "A1",
		option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	err = s.Append(context.Background(), annaRow())
	assert.ErrorContains(t, err, "sheets append")
}

func TestSheetsAppendNotReplayedAfterResponseTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	defer srv.Close()

	client := sheetsHTTPClient(
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"}),
		&http.Transport{ResponseHeaderTimeout: 100 * time.Millisecond},
	)
	s, err := NewSheets(context.Background(), "sheet-1", "A1",
		option.WithHTTPClient(client), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	err = s.Append(context.Background(), annaRow())
	assert.ErrorContains(t, err, "sheets append")
	assert.EqualValues(t, 1, hits.Load(), "the row must be sent once")
}
