package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/billparse/internal/bill"
	"github.com/MeKo-Tech/billparse/internal/billpipe"
	"github.com/MeKo-Tech/billparse/internal/config"
	"github.com/MeKo-Tech/billparse/internal/export"
	"github.com/MeKo-Tech/billparse/internal/fetch"
	"github.com/MeKo-Tech/billparse/internal/testutil"
)

type fakeProcessor struct {
	result  *billpipe.Result
	err     error
	urls    []string
	fetched []*fetch.Document
}

func (f *fakeProcessor) ProcessURL(_ context.Context, url string, _ billpipe.Observer) (*billpipe.Result, error) {
	f.urls = append(f.urls, url)
	return f.result, f.err
}

func (f *fakeProcessor) ProcessDocument(_ context.Context, doc *fetch.Document, _ billpipe.Observer) (*billpipe.Result, error) {
	f.fetched = append(f.fetched, doc)
	return f.result, f.err
}

func sampleResult() *billpipe.Result {
	return &billpipe.Result{
		Document: bill.Finalize([]bill.Page{{
			PageNo:   "1",
			PageType: bill.PageTypePharmacy,
			Items:    []bill.Item{{Name: "PARACETAMOL 500MG", Amount: 45, Rate: 4.5, Quantity: 10}},
		}}),
		Usage: bill.TokenUsage{Total: 30, Input: 20, Output: 10},
		Pages: 1,
	}
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "billparse", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "extract", "config"})
}

func TestRootCommandHelp(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--help"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "extract")
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billparse.yaml")
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"config", "init", path})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "request_timeout_sec")
}

func TestRunExtract_URL(t *testing.T) {
	proc := &fakeProcessor{result: sampleResult()}
	var out bytes.Buffer

	err := runExtract(t.Context(), proc, "https://example.com/bill.pdf", "json", &out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/bill.pdf"}, proc.urls)

	var resp export.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.IsSuccess)
	assert.Equal(t, int64(30), resp.TokenUsage.Total)
	assert.Equal(t, 1, resp.Data.TotalItemCount)
	assert.InDelta(t, 45.0, resp.Data.FinalTotalAmount, 1e-9)
}

func TestRunExtract_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, testutil.PNG(t, testutil.BlankPage(40, 20)), 0o600))

	proc := &fakeProcessor{result: sampleResult()}
	var out bytes.Buffer
	require.NoError(t, runExtract(t.Context(), proc, path, "csv", &out, nil))

	require.Len(t, proc.fetched, 1)
	assert.Equal(t, "image/png", proc.fetched[0].ContentType)
	assert.Empty(t, proc.urls)
	assert.Contains(t, out.String(), "PARACETAMOL 500MG")
}

func TestRunExtract_Errors(t *testing.T) {
	proc := &fakeProcessor{result: sampleResult()}

	err := runExtract(t.Context(), proc, "https://x/b.pdf", "docx", &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")

	err = runExtract(t.Context(), proc, filepath.Join(t.TempDir(), "missing.pdf"), "json", &bytes.Buffer{}, nil)
	require.Error(t, err)

	download := &billpipe.Error{Kind: billpipe.KindDownload, Message: "failed to download document"}
	proc = &fakeProcessor{err: download}
	err = runExtract(t.Context(), proc, "https://x/b.pdf", "json", &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.True(t, billpipe.IsKind(err, billpipe.KindDownload))
	assert.True(t, errors.Is(err, download))
}

func TestIsSupportedFormat(t *testing.T) {
	for _, f := range []string{"json", "YAML", "csv", "xlsx"} {
		assert.True(t, isSupportedFormat(f), f)
	}
	assert.False(t, isSupportedFormat("pdf"))
}

func TestNewHTTPServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9000

	srv := newHTTPServer(&cfg, nil)
	assert.Equal(t, "0.0.0.0:9000", srv.Addr)
	assert.Greater(t, srv.WriteTimeout, srv.ReadTimeout)

	sc := serverConfig(&cfg, nil)
	assert.Equal(t, 9000, sc.Port)
	assert.True(t, sc.MetricsEnabled)
}

func TestBuildPipeline_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OCR.Backend = "paddle"
	_, _, err := buildPipeline(t.Context(), &cfg, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ocr.backend"))
}
