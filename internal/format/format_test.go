package format

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
	"github.com/JonMunkholm/datacleaner/internal/errs"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func load(t *testing.T, path string, opts Options) *dataset.Dataset {
	t.Helper()
	src, err := Resolve(path, ForInput)
	require.NoError(t, err)
	ds, err := src.Load(context.Background(), opts)
	require.NoError(t, err)
	return ds
}

func cells(ds *dataset.Dataset) [][]string {
	out := make([][]string, ds.NumRows())
	for i := range out {
		for _, v := range ds.Row(i) {
			out[i] = append(out[i], v.String())
		}
	}
	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		path      string
		purpose   Purpose
		wantName  string
		wantComp  string
		canonical bool
		wantErr   bool
	}{
		{"data.csv", ForInput, "csv", "", true, false},
		{"DATA.CSV", ForInput, "csv", "", true, false},
		{"data.parquet", ForLookup, "parquet", "", true, false},
		{"data.csv.gz", ForInput, "csv", ".gz", false, false},
		{"data.jsonl.zst", ForLookup, "jsonl", ".zst", false, false},
		{"data.txt", ForInput, "txt", "", false, false},
		{"data.txt", ForLookup, "", "", false, true},
		{"data.tsv", ForLookup, "", "", false, true},
		{"data.xlsx.gz", ForInput, "", "", false, true},
		{"data.doc", ForInput, "", "", false, true},
		{"data", ForInput, "", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			src, err := Resolve(tt.path, tt.purpose)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errs.ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, src.Format.Name)
			assert.Equal(t, tt.wantComp, src.Compression)
			assert.Equal(t, tt.canonical, src.Canonical())
		})
	}
}

func TestResolveErrorListsSupported(t *testing.T) {
	_, err := Resolve("notes.txt", ForLookup)
	var fe *errs.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ".txt", fe.Ext)
	assert.Equal(t, []string{".csv", ".json", ".jsonl", ".parquet", ".xls", ".xlsx"}, fe.Supported)
}

func TestExtensionSets(t *testing.T) {
	assert.Equal(t, []string{".csv", ".json", ".jsonl", ".parquet", ".tsv", ".txt", ".xls", ".xlsx"}, InputExtensions())
}

func TestSourceStem(t *testing.T) {
	src, err := Resolve("/tmp/in/Sales Q1.csv.gz", ForInput)
	require.NoError(t, err)
	assert.Equal(t, "Sales Q1", src.Stem())
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { Register(Format{Ext: ".CSV"}) })
}

func TestParseDelimitedDuplicateHeaders(t *testing.T) {
	ds, err := ParseDelimited(strings.NewReader("a,a,,b\n1,2,3,4\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2", "b"}, ds.Names())
}

func TestParseDelimitedHeaderOnly(t *testing.T) {
	ds, err := ParseDelimited(strings.NewReader("a,b\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, 0, ds.NumRows())
	assert.Equal(t, 2, ds.NumCols())
	assert.True(t, ds.Empty())
}

func TestLoadTSV(t *testing.T) {
	p := writeFile(t, "in.tsv", []byte("id\tname\n1\tAda\n2\tGrace\n"))
	ds := load(t, p, Options{})
	assert.Equal(t, []string{"id", "name"}, ds.Names())
	assert.Equal(t, [][]string{{"1", "Ada"}, {"2", "Grace"}}, cells(ds))
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    rune
		wantErr bool
	}{
		{"comma", "a,b,c\n1,2,3\n", ',', false},
		{"semicolon", "a;b\n1;2\n", ';', false},
		{"pipe beats colon on count", "a|b|c:d\n1|2|3:4\n", '|', false},
		{"quoted comma ignored", "a;b\n\"x,y\";2\n", ';', false},
		{"blank lines skipped", "a:b\n\n1:2\n", ':', false},
		{"inconsistent", "a,b\n1,2,3\n", 0, true},
		{"no delimiter", "just text\nmore text\n", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detectDelimiter([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "could not determine delimiter")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(tt.want), string(got))
		})
	}
}

func TestSnifferStates(t *testing.T) {
	t.Run("detects directly", func(t *testing.T) {
		s := newSniffer([]byte("a;b\n1;2\n"))
		ds, err := s.run()
		require.NoError(t, err)
		assert.Equal(t, stateSucceeded, s.state)
		assert.False(t, s.fellBack)
		assert.Equal(t, ';', s.used)
		assert.Equal(t, []string{"a", "b"}, ds.Names())
	})

	t.Run("falls back to semicolon", func(t *testing.T) {
		// The quoted newline makes per-line counts inconsistent, so detection
		// fails; tab then fails on the quote and semicolon parses.
		s := newSniffer([]byte("a;b\n\"x\ny\";2\n"))
		ds, err := s.run()
		require.NoError(t, err)
		assert.True(t, s.fellBack)
		assert.Equal(t, ';', s.used)
		assert.Equal(t, 1, s.candidate)
		assert.Equal(t, [][]string{{"x\ny", "2"}}, cells(ds))
	})

	t.Run("exhausted surfaces detection error", func(t *testing.T) {
		// Ragged for every candidate.
		data := "a\tb;c|d\n1\t2\t3;4;5|6|7|8\n\"unterminated\n"
		s := newSniffer([]byte(data))
		_, err := s.run()
		require.Error(t, err)
		assert.Equal(t, stateExhausted, s.state)
		assert.Equal(t, len(fallbackDelimiters), s.candidate)
		assert.Contains(t, err.Error(), "could not determine delimiter")
	})
}

func TestLoadTXTExplicitDelimiter(t *testing.T) {
	p := writeFile(t, "in.txt", []byte("a#b\n1#2\n"))
	ds := load(t, p, Options{Delimiter: '#'})
	assert.Equal(t, []string{"a", "b"}, ds.Names())
}

func TestParseJSON(t *testing.T) {
	ds, err := ParseJSON(strings.NewReader(`[
		{"id": 1, "name": "Ada", "score": 1.5},
		{"name": "Grace", "id": 2, "tags": ["x", "y"], "score": 2},
		{"id": 3, "active": true}
	]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score", "tags", "active"}, ds.Names())

	ids, _ := ds.Column("id")
	assert.Equal(t, dataset.KindInt, ids[0].Kind())

	scores, _ := ds.Column("score")
	assert.Equal(t, dataset.KindFloat, scores[1].Kind(), "int promoted with float")
	assert.True(t, scores[2].IsNull())

	assert.Equal(t, []string{"3", "", "", "", "true"}, cells(ds)[2])
	assert.Equal(t, `["x","y"]`, cells(ds)[1][3])
}

func TestParseJSONRejectsNonArray(t *testing.T) {
	_, err := ParseJSON(strings.NewReader(`{"a": 1}`))
	assert.Error(t, err)

	_, err = ParseJSON(strings.NewReader(`[1, 2]`))
	assert.Error(t, err)
}

func TestParseJSONTrailingData(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"trailing whitespace", "[{\"a\": 1}]\n\n", false},
		{"trailing garbage", `[{"a": 1}] x`, true},
		{"second array", `[{"a": 1}][{"a": 2}]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid JSON")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseJSONL(t *testing.T) {
	ds, err := ParseJSONL(strings.NewReader("{\"a\":1,\"b\":\"x\"}\n\n{\"a\":2,\"b\":\"y\"}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Names())
	assert.Equal(t, [][]string{{"1", "x"}, {"2", "y"}}, cells(ds))

	_, err = ParseJSONL(strings.NewReader("{\"a\":1}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadCompressed(t *testing.T) {
	payload := []byte("id,name\n1,Ada\n")

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write(payload)
	require.NoError(t, gw.Close())

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, _ = zw.Write(payload)
	require.NoError(t, zw.Close())

	var xzb bytes.Buffer
	xw, err := xz.NewWriter(&xzb)
	require.NoError(t, err)
	_, _ = xw.Write(payload)
	require.NoError(t, xw.Close())

	for name, data := range map[string][]byte{
		"in.csv.gz":  gz.Bytes(),
		"in.csv.zst": zs.Bytes(),
		"in.csv.xz":  xzb.Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			ds := load(t, writeFile(t, name, data), Options{})
			assert.Equal(t, [][]string{{"1", "Ada"}}, cells(ds))
		})
	}
}

func TestLoadStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id\tcity\n1\tMünchen\n")...)
	ds := load(t, writeFile(t, "in.tsv", data), Options{})
	assert.Equal(t, []string{"id", "city"}, ds.Names())
	assert.Equal(t, "München", cells(ds)[0][1])
}

func TestLoadRejectsInvalidUTF8(t *testing.T) {
	latin1 := []byte("id,city\n1,M\xfcnchen\n")
	for _, name := range []string{"in.csv", "in.tsv", "in.txt", "in.jsonl"} {
		t.Run(name, func(t *testing.T) {
			data := latin1
			switch name {
			case "in.tsv":
				data = bytes.ReplaceAll(latin1, []byte(","), []byte("\t"))
			case "in.jsonl":
				data = []byte("{\"city\":\"M\xfcnchen\"}\n")
			}
			src, err := Resolve(writeFile(t, name, data), ForInput)
			require.NoError(t, err)

			_, err = src.Load(context.Background(), Options{})
			var encErr *EncodingError
			require.ErrorAs(t, err, &encErr)
			assert.Contains(t, err.Error(), "invalid UTF-8 encoding")
		})
	}
}

func TestLoadLogsBytesRead(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	content := "id,name\n1,Ada\n"

	src, err := Resolve(writeFile(t, "in.csv", []byte(content)), ForInput)
	require.NoError(t, err)
	_, err = src.Load(context.Background(), Options{Logger: log})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"msg":"text source read"`)
	assert.Contains(t, buf.String(), fmt.Sprintf(`"bytes":%d`, len(content)))
}

func TestLoadExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"ID", "Region", "Amount"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{1, "West", 10.5}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{2, "East"}))
	p := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	ds := load(t, p, Options{})
	assert.Equal(t, []string{"ID", "Region", "Amount"}, ds.Names())
	assert.Equal(t, [][]string{{"1", "West", "10.5"}, {"2", "East", ""}}, cells(ds))

	ids, _ := ds.Column("ID")
	assert.Equal(t, dataset.KindInt, ids[0].Kind())
}

func TestParquetRoundTrip(t *testing.T) {
	in := dataset.MustNew([]string{"id", "name", "score", "ok", "empty"}, [][]dataset.Value{
		{dataset.Int(1), dataset.Text("Ada"), dataset.Float(1.5), dataset.Bool(true), dataset.Null()},
		{dataset.Int(2), dataset.Null(), dataset.Float(2), dataset.Bool(false), dataset.Null()},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, in))
	p := writeFile(t, "out.parquet", buf.Bytes())

	src, err := Resolve(p, ForLookup)
	require.NoError(t, err)
	out, err := src.Load(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, in.Names(), out.Names())
	assert.Equal(t, cells(in), cells(out))

	names, _ := out.Column("name")
	assert.True(t, names[1].IsNull())
	scores, _ := out.Column("score")
	assert.Equal(t, dataset.KindFloat, scores[1].Kind())
}
