// Package workspace holds the per-run Google session used by the Docs, Drive
// and Sheets readers and writers.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrNotFound is returned when a file, document or worksheet does not exist
// or is not shared with the service account.
var ErrNotFound = errors.New("workspace: not found")

// Mime types used for Drive lookups.
const (
	MimeSpreadsheet = "application/vnd.google-apps.spreadsheet"
	MimePDF         = "application/pdf"
)

// MaxDownloadBytes caps Drive downloads.
const MaxDownloadBytes = 64 << 20

// DefaultScopes covers reading documents and PDFs and rewriting spreadsheets.
var DefaultScopes = []string{
	sheets.SpreadsheetsScope,
	docs.DocumentsReadonlyScope,
	drive.DriveReadonlyScope,
}

// Config selects the service-account credentials for a session.
type Config struct {
	CredentialsFile string
	Scopes          []string
}

// Session lazily builds the API clients it needs. One session serves one run
// (or one daemon); it is safe for concurrent use.
type Session struct {
	opts   []option.ClientOption
	logger *slog.Logger

	mu     sync.Mutex
	sheets *sheets.Service
	docs   *docs.Service
	drive  *drive.Service
}

// NewSession reads the service-account file and returns a session scoped to cfg.Scopes.
func NewSession(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	if cfg.CredentialsFile == "" {
		return nil, errors.New("workspace: credentials file is required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", cfg.CredentialsFile, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", cfg.CredentialsFile, err)
	}
	return NewSessionWithOptions(logger, option.WithCredentials(creds)), nil
}

// NewSessionWithOptions builds a session from raw client options.
func NewSessionWithOptions(logger *slog.Logger, opts ...option.ClientOption) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, logger: logger}
}

func (s *Session) sheetsService(ctx context.Context) (*sheets.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sheets == nil {
		srv, err := sheets.NewService(ctx, s.opts...)
		if err != nil {
			return nil, fmt.Errorf("sheets client: %w", err)
		}
		s.sheets = srv
	}
	return s.sheets, nil
}

func (s *Session) docsService(ctx context.Context) (*docs.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs == nil {
		srv, err := docs.NewService(ctx, s.opts...)
		if err != nil {
			return nil, fmt.Errorf("docs client: %w", err)
		}
		s.docs = srv
	}
	return s.docs, nil
}

func (s *Session) driveService(ctx context.Context) (*drive.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drive == nil {
		srv, err := drive.NewService(ctx, s.opts...)
		if err != nil {
			return nil, fmt.Errorf("drive client: %w", err)
		}
		s.drive = srv
	}
	return s.drive, nil
}

// DocumentText returns the concatenated text runs of every paragraph in the
// document body, in order.
func (s *Session) DocumentText(ctx context.Context, documentID string) (string, error) {
	srv, err := s.docsService(ctx)
	if err != nil {
		return "", err
	}
	doc, err := srv.Documents.Get(documentID).Context(ctx).Do()
	if err != nil {
		return "", mapNotFound(err, "document %q", documentID)
	}
	return BodyText(doc), nil
}

// BodyText flattens the paragraph text runs of a Docs document.
func BodyText(doc *docs.Document) string {
	if doc == nil || doc.Body == nil {
		return ""
	}
	var b strings.Builder
	for _, el := range doc.Body.Content {
		if el == nil || el.Paragraph == nil {
			continue
		}
		for _, pe := range el.Paragraph.Elements {
			if pe != nil && pe.TextRun != nil {
				b.WriteString(pe.TextRun.Content)
			}
		}
	}
	return b.String()
}

// FindFile returns the id of the first Drive file with this exact name and mime type.
func (s *Session) FindFile(ctx context.Context, name, mimeType string) (string, error) {
	srv, err := s.driveService(ctx)
	if err != nil {
		return "", err
	}
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), mimeType)
	res, err := srv.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(10).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive list %q: %w", name, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("%w: %q (%s)", ErrNotFound, name, mimeType)
	}
	if len(res.Files) > 1 {
		s.logger.Warn("drive.lookup.ambiguous", "name", name, "matches", len(res.Files), "using", res.Files[0].Id)
	}
	return res.Files[0].Id, nil
}

// Download fetches the content of a Drive file.
func (s *Session) Download(ctx context.Context, fileID string) ([]byte, error) {
	srv, err := s.driveService(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, mapNotFound(err, "file %q", fileID)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, fmt.Errorf("download %s: larger than %d bytes", fileID, MaxDownloadBytes)
	}
	return data, nil
}

// SheetTitles lists worksheet titles in tab order.
func (s *Session) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	srv, err := s.sheetsService(ctx)
	if err != nil {
		return nil, err
	}
	ss, err := srv.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, mapNotFound(err, "spreadsheet %q", spreadsheetID)
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh != nil && sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

// GetValues reads a range as raw cell values.
func (s *Session) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	srv, err := s.sheetsService(ctx)
	if err != nil {
		return nil, err
	}
	vr, err := srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, mapNotFound(err, "range %q", rng)
	}
	return vr.Values, nil
}

// ClearValues empties a range.
func (s *Session) ClearValues(ctx context.Context, spreadsheetID, rng string) error {
	srv, err := s.sheetsService(ctx)
	if err != nil {
		return err
	}
	_, err = srv.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return mapNotFound(err, "range %q", rng)
	}
	return nil
}

// UpdateValues writes values starting at rng, parsed as if typed by a user.
func (s *Session) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	srv, err := s.sheetsService(ctx)
	if err != nil {
		return err
	}
	_, err = srv.Spreadsheets.Values.
		Update(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return mapNotFound(err, "range %q", rng)
	}
	return nil
}

// QuoteSheet renders a worksheet title for A1 notation.
func QuoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func mapNotFound(err error, format string, args ...any) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
