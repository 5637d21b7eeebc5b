package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/workspace"
)

type fakeDocs struct {
	text string
	err  error
}

func (f fakeDocs) DocumentText(context.Context, string) (string, error) { return f.text, f.err }

type fakeDrive struct {
	files  map[string]string // name -> id
	values map[string][][]interface{}
	titles []string
	blobs  map[string][]byte

	gotRange string
}

func (f *fakeDrive) FindFile(_ context.Context, name, _ string) (string, error) {
	id, ok := f.files[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", workspace.ErrNotFound, name)
	}
	return id, nil
}

func (f *fakeDrive) Download(_ context.Context, id string) ([]byte, error) {
	return f.blobs[id], nil
}

func (f *fakeDrive) SheetTitles(context.Context, string) ([]string, error) { return f.titles, nil }

func (f *fakeDrive) GetValues(_ context.Context, _ string, rng string) ([][]interface{}, error) {
	f.gotRange = rng
	return f.values[rng], nil
}

type stubRunner struct {
	out  string
	err  error
	args []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.args = append([]string{name}, args...)
	return []byte(s.out), []byte("boom"), s.err
}

func TestDocsReader(t *testing.T) {
	r := NewDocsReader(fakeDocs{text: "Status: Aprovado\n"}, nil)
	res, err := r.ReadText(context.Background(), Ref{Kind: constants.SourceDoc, Location: "doc-1"})
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if res.Text != "Status: Aprovado\n" || res.Method != "docs-api" {
		t.Errorf("res = %+v", res)
	}

	r = NewDocsReader(fakeDocs{err: fmt.Errorf("%w: document", workspace.ErrNotFound)}, nil)
	if _, err := r.ReadText(context.Background(), Ref{Location: "missing"}); !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestDrivePDFReaderNotFound(t *testing.T) {
	r := NewDrivePDFReader(&fakeDrive{}, 0, nil)
	_, err := r.ReadText(context.Background(), Ref{Kind: constants.SourceDrivePDF, Location: "pedidos.pdf"})
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestDrivePDFReaderInvalidPDF(t *testing.T) {
	api := &fakeDrive{files: map[string]string{"x.pdf": "id1"}, blobs: map[string][]byte{"id1": []byte("not a pdf")}}
	_, err := NewDrivePDFReader(api, 0, nil).ReadText(context.Background(), Ref{Location: "x.pdf"})
	if err == nil || errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want parse error", err)
	}
}

func TestSheetsReader(t *testing.T) {
	api := &fakeDrive{
		files:  map[string]string{"Pedidos": "ss1"},
		titles: []string{"Resumo", "Dados"},
		values: map[string][][]interface{}{
			"'Dados'": {{"Cliente", "Status"}, {"Ana", "Aprovado"}, {"Bruno"}},
		},
	}
	r := NewSheetsReader(api, nil)
	tbl, err := r.ReadTable(context.Background(), Ref{Kind: constants.SourceSheet, Location: "Pedidos", Worksheet: "Dados"})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	want := [][]string{{"Cliente", "Status"}, {"Ana", "Aprovado"}, {"Bruno", ""}}
	if !reflect.DeepEqual(tbl.Values(), want) {
		t.Errorf("Values() = %q, want %q", tbl.Values(), want)
	}

	if _, err := r.ReadTable(context.Background(), Ref{Location: "Pedidos", Worksheet: "Nope"}); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("missing worksheet: err = %v", err)
	}
	if _, err := r.ReadTable(context.Background(), Ref{Location: "Outra"}); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("missing spreadsheet: err = %v", err)
	}
}

func TestSheetsReaderDefaultsToFirstWorksheet(t *testing.T) {
	api := &fakeDrive{
		files:  map[string]string{"Pedidos": "ss1"},
		titles: []string{"Página1", "Outra"},
		values: map[string][][]interface{}{"'Página1'": {{"A"}, {"1"}}},
	}
	tbl, err := NewSheetsReader(api, nil).ReadTable(context.Background(), Ref{Location: "Pedidos"})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if api.gotRange != "'Página1'" || tbl.Len() != 1 {
		t.Errorf("range = %q rows = %d", api.gotRange, tbl.Len())
	}
}

func TestXLSXReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pedidos.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{{"Cliente", "Valor", "Status"}, {"Ana", "150,00", "Aprovado"}, {"Bruno", "20,00", "Pendente"}}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	tbl, err := NewXLSXReader(nil).ReadTable(context.Background(), Ref{Kind: constants.SourceXLSX, Location: path})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if tbl.Len() != 2 || tbl.Records[1]["Status"] != "Pendente" {
		t.Errorf("table = %q", tbl.Values())
	}

	if _, err := NewXLSXReader(nil).ReadTable(context.Background(), Ref{Location: filepath.Join(t.TempDir(), "none.xlsx")}); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pedido.txt")
	if err := os.WriteFile(path, []byte("Status: Aprovado\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := FileReader{}.ReadText(context.Background(), Ref{Location: path})
	if err != nil || res.Text != "Status: Aprovado\n" {
		t.Fatalf("res = %+v err = %v", res, err)
	}
	if _, err := (FileReader{}).ReadText(context.Background(), Ref{Location: path + ".missing"}); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestPDFReaderPdftotext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pedido.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	run := &stubRunner{out: "Nome do Cliente: Ana\n\fStatus: Aprovado\n\f"}
	r := NewPDFReader(PDFConfig{Method: PDFMethodPdftotext}, nil)
	r.runner = run

	res, err := r.ReadText(context.Background(), Ref{Kind: constants.SourcePDF, Location: path})
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if res.Pages != 2 {
		t.Errorf("pages = %d, want 2", res.Pages)
	}
	if want := "Nome do Cliente: Ana\n\nStatus: Aprovado\n\n"; res.Text != want {
		t.Errorf("text = %q, want %q", res.Text, want)
	}
	if run.args[0] != "pdftotext" || run.args[len(run.args)-1] != "-" {
		t.Errorf("args = %v", run.args)
	}

	run.err = errors.New("exit status 1")
	if _, err := r.ReadText(context.Background(), Ref{Location: path}); err == nil {
		t.Error("expected runner error")
	}
}

func TestPDFReaderMissingFile(t *testing.T) {
	_, err := NewPDFReader(PDFConfig{}, nil).ReadText(context.Background(), Ref{Location: filepath.Join(t.TempDir(), "x.pdf")})
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterText(constants.SourceText, FileReader{})
	if _, err := reg.Text(constants.SourceText); err != nil {
		t.Fatalf("Text: %v", err)
	}
	if _, err := reg.Text(constants.SourceDoc); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("err = %v, want ErrUnsupportedSource", err)
	}
	if _, err := reg.Table(constants.SourceSheet); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("err = %v, want ErrUnsupportedSource", err)
	}
}
