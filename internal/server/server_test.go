package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/pipeline"
	"github.com/ginjaninja78/commission-report/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const scenario = "Sub_id1,Sub_id2,Sub_id3,Sub_id4,Tổng hoa hồng đơn hàng(₫)\n" +
	"a,b,c,d,\"10,000đ\"\n" +
	"a,b,c,d,\"5,000đ\"\n" +
	"x,y,z,w,\"1,000đ\"\n"

var jobLink = regexp.MustCompile(`/download\?job=([0-9a-f-]{36})`)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(dir, "outputs")
	cfg.UploadDir = filepath.Join(dir, "uploads")
	cfg.InputArchiveDir = filepath.Join(dir, "input_archive")

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.UploadDir, cfg.InputArchiveDir)
	require.NoError(t, files.EnsureDirectories())

	srv, err := NewServer(cfg, files, pipeline.New(cfg, files, nil), nil)
	require.NoError(t, err)
	return srv
}

func multipartUpload(t *testing.T, field, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `action="/upload"`)

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestWrongMethods(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/upload"},
		{http.MethodPost, "/download"},
		{http.MethodDelete, "/"},
	} {
		rr := serve(srv, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, tc.method+" "+tc.path)
	}
}

func TestUploadThenDownload(t *testing.T) {
	srv := newTestServer(t)

	rr := serve(srv, multipartUpload(t, "file", "march.csv", scenario))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()
	assert.Contains(t, body, "15,000 ₫")
	assert.Contains(t, body, "TỔNG TẤT CẢ")

	match := jobLink.FindStringSubmatch(body)
	require.Len(t, match, 2)
	jobID := match[1]
	assert.Equal(t, jobID, srv.LatestJob())

	for _, target := range []string{"/download?job=" + jobID, "/download"} {
		rr = serve(srv, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rr.Code, target)
		assert.Equal(t, `attachment; filename=TONG_HOA_HONG_ALL_SUPID2.xlsx`, rr.Header().Get("Content-Disposition"))
		assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))

		wb, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
		require.NoError(t, err)
		rows, err := wb.GetRows("Tong_Hop_SupId2")
		require.NoError(t, err)
		assert.Equal(t, []string{"TỔNG TẤT CẢ", "3", "16,000 ₫"}, rows[len(rows)-1])
		require.NoError(t, wb.Close())
	}
}

func TestUploadRawBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(scenario))
	req.Header.Set("Content-Type", "text/csv")
	rr := serve(srv, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, srv.LatestJob())
}

func TestUploadErrors(t *testing.T) {
	srv := newTestServer(t)

	rr := serve(srv, multipartUpload(t, "other", "march.csv", scenario))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(srv, multipartUpload(t, "file", "march.csv", ""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(srv, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(srv, multipartUpload(t, "file", "bad.csv", "Sub_id1,Sub_id2,Sub_id3,Sub_id4,Tổng hoa hồng đơn hàng(₫)\na,b,c,d,abc\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "row 2")

	rr = serve(srv, multipartUpload(t, "file", "cols.csv", "Sub_id1\na\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	assert.Empty(t, srv.LatestJob(), "failed uploads never become the latest job")
}

func TestFailedUploadLeavesNoJobDirs(t *testing.T) {
	srv := newTestServer(t)

	rr := serve(srv, multipartUpload(t, "file", "bad.csv", "Sub_id1,Sub_id2,Sub_id3,Sub_id4,Tổng hoa hồng đơn hàng(₫)\na,b,c,d,\"1,000đ\"\ne,f,g,h,abc\n"))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serve(srv, multipartUpload(t, "file", "book.xlsx", "not a workbook"))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	for _, dir := range []string{srv.files.UploadDir, srv.files.OutputDir} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, dir)
	}
}

func TestDownloadErrors(t *testing.T) {
	srv := newTestServer(t)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/download", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/download?job=../../etc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/download?job="+utils.NewJobID(), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConcurrentUploadsAreIsolated(t *testing.T) {
	srv := newTestServer(t)

	inputs := []string{
		scenario,
		"Sub_id1,Sub_id2,Sub_id3,Sub_id4,Tổng hoa hồng đơn hàng(₫)\nq,only,r,s,\"7,000đ\"\n",
	}

	requests := make([]*http.Request, 8)
	for i := range requests {
		requests[i] = multipartUpload(t, "file", "in.csv", inputs[i%2])
	}

	var wg sync.WaitGroup
	bodies := make([]string, len(requests))
	codes := make([]int, len(requests))
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req *http.Request) {
			defer wg.Done()
			rr := serve(srv, req)
			codes[i], bodies[i] = rr.Code, rr.Body.String()
		}(i, req)
	}
	wg.Wait()

	for i, body := range bodies {
		require.Equal(t, http.StatusOK, codes[i])
		match := jobLink.FindStringSubmatch(body)
		require.Len(t, match, 2)

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/download?job="+match[1], nil))
		require.Equal(t, http.StatusOK, rr.Code)
		wb, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
		require.NoError(t, err)
		rows, err := wb.GetRows(wb.GetSheetName(0))
		require.NoError(t, err)
		require.NoError(t, wb.Close())

		want := "16,000 ₫"
		if i%2 == 1 {
			want = "7,000 ₫"
		}
		assert.Equal(t, want, rows[len(rows)-1][2], "upload %d", i)
	}
}

func TestUploadSweepsExpiredJobs(t *testing.T) {
	srv := newTestServer(t)

	stale := srv.files.JobOutputDir(utils.NewJobID())
	require.NoError(t, os.MkdirAll(stale, 0755))
	past := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	rr := serve(srv, multipartUpload(t, "file", "march.csv", scenario))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NoDirExists(t, stale)
}
