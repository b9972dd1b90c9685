package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financial_extractor/pkg/api/assistant"
	"financial_extractor/pkg/api/respond"
	"financial_extractor/pkg/api/sources"
	"financial_extractor/pkg/core/agent"
	"financial_extractor/pkg/core/document"
	"financial_extractor/pkg/core/llm"
	"financial_extractor/pkg/core/session"
)

type scriptedProvider struct {
	name  string
	reply func(req llm.Request) (*llm.Response, error)
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) GenerateText(_ context.Context, req llm.Request) (*llm.Response, error) {
	return p.reply(req)
}

func textReply(text string) func(llm.Request) (*llm.Response, error) {
	return func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: text, StopReason: "stop"}, nil
	}
}

func newServer(t *testing.T, providers ...llm.Provider) http.Handler {
	t.Helper()
	mgr := agent.NewManagerWith(providers[0].Name(), providers...)
	ctrl := session.New(session.Options{
		Providers: mgr,
		Documents: document.NewSet("pdftoppm", 72),
	})
	return NewRouter(Deps{Controller: ctrl, AgentMgr: mgr, MaxUploadBytes: 1 << 20})
}

func upload(t *testing.T, path, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: textReply("")})
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestConfigSwitch(t *testing.T) {
	h := newServer(t,
		&scriptedProvider{name: "alpha", reply: textReply("")},
		&scriptedProvider{name: "beta", reply: textReply("")},
	)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"active_provider":"alpha"`)
	assert.Contains(t, rr.Body.String(), `"snapshots":false`)

	rr = serve(h, httptest.NewRequest(http.MethodPost, "/api/config/switch", strings.NewReader(`{"provider":"beta"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"active_provider":"beta"`)

	rr = serve(h, httptest.NewRequest(http.MethodPost, "/api/config/switch", strings.NewReader(`{"provider":"gamma"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSourcesLifecycle(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: textReply("")})

	rr := serve(h, upload(t, "/api/sources/import", "q3 report.json",
		[]byte(`[{"name":"Revenue","value":1000,"year":2023,"page":4},{"name":"EBIT","value":80,"year":2023,"page":9}]`), nil))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[sources.Summary](t, rr)
	assert.Equal(t, "q3 report", created.Name)
	assert.Equal(t, 2, created.Count)
	assert.True(t, created.Active)

	rr = serve(h, upload(t, "/api/sources/import", "deck.json",
		[]byte(`{"name":"Deck","dataType":"chart","data":[{"id":"c1","pageNumber":2,"title":"Mix","imageData":"data:image/png;base64,AAAA"}]}`), nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	deck := decode[sources.Summary](t, rr)

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[sources.ListResponse](t, rr)
	require.Len(t, list.Sources, 2)
	assert.Equal(t, deck.ID, list.ActiveID)

	rr = serve(h, httptest.NewRequest(http.MethodPost, "/api/sources/"+created.ID+"/select", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ID, decode[sources.ListResponse](t, rr).ActiveID)

	rr = serve(h, httptest.NewRequest(http.MethodPost, "/api/sources/missing/select", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/sources/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"dataType":"numerical"`)

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/sources/"+created.ID+"/export?page_suffix=true", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="q3_report_p4-9.json"`, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), `"value": 1000`)

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/sources/"+deck.ID+"/export?metadata_only=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "imageData")

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/export/archive", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "q3_report_numerical.json", zr.File[0].Name)
	assert.Equal(t, "Deck_charts.json", zr.File[1].Name)

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/export/workbook", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="data_sources.xlsx"`, rr.Header().Get("Content-Disposition"))

	rr = serve(h, httptest.NewRequest(http.MethodDelete, "/api/sources/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/sources/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestImportErrors(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: textReply("")})

	rr := serve(h, upload(t, "/api/sources/import", "odd.json", []byte(`{"rows":[]}`), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "unrecognized_format", decode[respond.ErrorBody](t, rr).Kind)

	rr = serve(h, upload(t, "/api/sources/import", "data.csv", []byte(`[]`), nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation", decode[respond.ErrorBody](t, rr).Kind)

	rr = serve(h, upload(t, "/api/sources/import", "empty.json", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

const filing = `<html><body>
<p>Consolidated results</p>
<p>Revenue for 2023 was 1,250 million.</p>
</body></html>`

func TestExtractHTML(t *testing.T) {
	var seen llm.Request
	p := &scriptedProvider{name: "fake", reply: func(req llm.Request) (*llm.Response, error) {
		seen = req
		return &llm.Response{Text: `[{"name":"Revenue","value":1250,"unit":"m","year":2023,"page":1,"source":"Revenue for 2023 was 1,250 million."}]`}, nil
	}}
	h := newServer(t, p)

	rr := serve(h, upload(t, "/api/documents/extract", "filing.html", []byte(filing), map[string]string{"mode": "numeric"}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var res struct {
		Source struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			DataType string `json:"dataType"`
			Data     []struct {
				Value float64 `json:"value"`
				File  string  `json:"file"`
			} `json:"data"`
		} `json:"source"`
		Pages []int `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "filing", res.Source.Name)
	assert.Equal(t, "extracted", res.Source.Type)
	require.Len(t, res.Source.Data, 1)
	assert.Equal(t, 1250.0, res.Source.Data[0].Value)
	assert.Equal(t, "filing.html", res.Source.Data[0].File)
	assert.Equal(t, []int{1}, res.Pages)
	assert.Contains(t, seen.Prompt, "Revenue for 2023 was 1,250 million.")
}

func TestExtractRejections(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: textReply("[]")})

	rr := serve(h, upload(t, "/api/documents/extract", "filing.html", []byte(filing), map[string]string{"mode": "table"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(h, upload(t, "/api/documents/extract", "filing.html", []byte(filing), map[string]string{"mode": "chart"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "capability", decode[respond.ErrorBody](t, rr).Kind)

	rr = serve(h, upload(t, "/api/documents/extract", "filing.html", []byte(filing), map[string]string{"pages": "3-1"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[respond.ErrorBody](t, rr)
	assert.Equal(t, "pages", body.Field)
	assert.Equal(t, "3-1", body.Token)

	rr = serve(h, upload(t, "/api/documents/extract", "notes.txt", []byte("plain"), nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExtractParseFailureReportsStopReason(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: `[{"name":"Revenue","value":`, StopReason: "length"}, nil
	}})

	rr := serve(h, upload(t, "/api/documents/extract", "filing.html", []byte(filing), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[respond.ErrorBody](t, rr)
	assert.Equal(t, "parse", body.Kind)
	assert.Equal(t, "length", body.StopReason)
}

func TestAssistantChat(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: textReply("Revenue was **1,250**.")})

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(`{"question":"What was revenue?"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[assistant.ChatResponse](t, rr)
	assert.Equal(t, "Revenue was **1,250**.", resp.Message.Text)
	assert.Contains(t, resp.Message.HTML, "<strong>1,250</strong>")

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/assistant/history", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[assistant.HistoryResponse](t, rr).Messages, 2)

	rr = serve(h, httptest.NewRequest(http.MethodDelete, "/api/assistant/history", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/api/assistant/history", nil))
	assert.Empty(t, decode[assistant.HistoryResponse](t, rr).Messages)

	rr = serve(h, httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(`{"question":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAssistantChatProviderFailure(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: func(llm.Request) (*llm.Response, error) {
		return nil, &llm.TransportError{Provider: "fake", Status: 500, Body: "boom"}
	}})

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(`{"question":"hi"}`)))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	resp := decode[assistant.ChatResponse](t, rr)
	assert.True(t, resp.Message.IsError)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "transport", resp.Error.Kind)
}

func TestSessionWithoutDatabase(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: textReply("")})

	rr := serve(h, httptest.NewRequest(http.MethodPost, "/api/session/save", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newServer(t, &scriptedProvider{name: "fake", reply: textReply("")})

	req := httptest.NewRequest(http.MethodOptions, "/api/sources", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := serve(h, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
