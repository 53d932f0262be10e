package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/janani/maai/models"
	"github.com/janani/maai/services"
	"github.com/janani/maai/store"
)

type fakeRAGService struct {
	fragments []string
	err       error
	lastReq   models.QueryRequest
}

func (f *fakeRAGService) Ask(ctx context.Context, req models.QueryRequest) (*models.AskResponse, error) {
	return f.AskStream(ctx, req, nil)
}

func (f *fakeRAGService) AskStream(_ context.Context, req models.QueryRequest, emit func(string) error) (*models.AskResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	var answer string
	for _, frag := range f.fragments {
		if emit != nil {
			if err := emit(frag); err != nil {
				return nil, err
			}
		}
		answer += frag
	}
	return &models.AskResponse{
		EnglishQuery:     "I feel very tired",
		EnglishAnswer:    answer,
		LocalizedAnswer:  "आराम करें",
		ResolvedLanguage: "hi-IN",
		Status:           models.StatusSuccess,
	}, nil
}

type fakeIngester struct {
	source string
	text   string
}

func (f *fakeIngester) IngestText(_ context.Context, source, text string) (int, error) {
	f.source, f.text = source, text
	return 3, nil
}

func setupRouter(t *testing.T, svc services.RAGService, logs InteractionLog, ingester Ingester) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewRAGController(svc, logs, ingester, nil, zap.NewNop()).RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAsk_Success(t *testing.T) {
	svc := &fakeRAGService{fragments: []string{"Rest ", "well."}}
	r := setupRouter(t, svc, store.NewMemoryStore(), nil)

	w := postJSON(t, r, "/api/v1/ask", models.QueryRequest{Query: "mujhe bahut thakan ho rahi hai", LanguageCode: "hi-IN"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, "Rest well.", resp.EnglishAnswer)
	assert.Equal(t, "hi-IN", svc.lastReq.LanguageCode)
}

func TestAsk_MissingQuery(t *testing.T) {
	r := setupRouter(t, &fakeRAGService{}, store.NewMemoryStore(), nil)

	w := postJSON(t, r, "/api/v1/ask", map[string]string{"language_code": "hi-IN"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAsk_GenerationFailure(t *testing.T) {
	svc := &fakeRAGService{err: fmt.Errorf("%w: upstream down", services.ErrGeneration)}
	r := setupRouter(t, svc, store.NewMemoryStore(), nil)

	w := postJSON(t, r, "/api/v1/ask", models.QueryRequest{Query: "hello"})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusError, resp.Status)
	assert.NotEmpty(t, resp.Message)
}

func TestAskStream_EmitsFragmentsThenResult(t *testing.T) {
	svc := &fakeRAGService{fragments: []string{"Drink ", "water."}}
	r := setupRouter(t, svc, store.NewMemoryStore(), nil)

	w := postJSON(t, r, "/api/v1/ask/stream", models.QueryRequest{Query: "paani"})

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event:fragment")
	assert.Contains(t, body, "data:Drink ")
	assert.Contains(t, body, "event:result")
	assert.NotContains(t, body, "event:error")
	assert.Less(t, bytes.Index(w.Body.Bytes(), []byte("event:fragment")), bytes.Index(w.Body.Bytes(), []byte("event:result")))
}

func TestAskStream_Error(t *testing.T) {
	svc := &fakeRAGService{err: errors.New("boom")}
	r := setupRouter(t, svc, store.NewMemoryStore(), nil)

	w := postJSON(t, r, "/api/v1/ask/stream", models.QueryRequest{Query: "paani"})

	assert.Contains(t, w.Body.String(), "event:error")
}

func TestGetHistory(t *testing.T) {
	logs := store.NewMemoryStore()
	ts := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, logs.Append(context.Background(), models.InteractionLogEntry{
		ID: "a", Timestamp: ts, UserKey: "asha@example.com", UserEmail: "asha@example.com",
		Clinical: models.ClinicalRecord{
			Symptoms: []models.Symptom{{Name: "fatigue", Status: models.SymptomActive}},
			Severity: 4,
		},
	}))
	require.NoError(t, logs.Append(context.Background(), models.InteractionLogEntry{
		ID: "b", Timestamp: ts.Add(time.Minute), UserKey: "asha@example.com",
		Clinical: models.ClinicalRecord{
			Symptoms:    []models.Symptom{{Name: "fatigue", Status: models.SymptomRelieved}},
			ReliefNoted: true,
			Severity:    2,
		},
	}))
	r := setupRouter(t, &fakeRAGService{}, logs, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/asha@example.com", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, ts, resp.User.CreatedAt)

	dash := resp.Dashboard
	assert.Equal(t, 2, dash.TotalInteractions)
	assert.Equal(t, 3.0, dash.AvgSeverity)
	assert.Equal(t, 50, dash.ReliefRate)
	require.Len(t, dash.Symptoms, 1)
	assert.Equal(t, 2, dash.Symptoms[0].Occurrences)
	assert.Equal(t, models.SymptomRelieved, dash.Symptoms[0].Status)
	require.Len(t, dash.RecentInteractions, 2)
	assert.Equal(t, "b", dash.RecentInteractions[0].ID)
	require.NotNil(t, dash.LastActivity)
	assert.Equal(t, ts.Add(time.Minute), *dash.LastActivity)
}

func TestGetDoctorSummary(t *testing.T) {
	logs := store.NewMemoryStore()
	ts := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, logs.Append(context.Background(), models.InteractionLogEntry{
		ID: "a", Timestamp: ts, UserKey: "+919800000001",
		Clinical: models.ClinicalRecord{
			Medications: []models.Medication{{Name: "iron tablet", Taken: false}},
			Severity:    7,
			Summary:     "Skipped iron, feels dizzy.",
		},
	}))
	r := setupRouter(t, &fakeRAGService{}, logs, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs/+919800000001/summary/doctor", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.DoctorSummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Medications not taken: iron tablet"}, resp.Summary.RedFlags)
	assert.Equal(t, 1, resp.Summary.HighSeverityEvents)
	assert.Equal(t, "[2025-02-01] Skipped iron, feels dizzy.", resp.Summary.DoctorNotes)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs/nobody/summary/doctor", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHistory_Unknown(t *testing.T) {
	r := setupRouter(t, &fakeRAGService{}, store.NewMemoryStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/nobody", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestData(t *testing.T) {
	ing := &fakeIngester{}
	r := setupRouter(t, &fakeRAGService{}, store.NewMemoryStore(), ing)

	w := postJSON(t, r, "/api/v1/ingest", models.IngestDataRequest{Text: "Iron tablets daily.", Source: "anc-guide"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "anc-guide", ing.source)
	var resp models.IngestDataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Chunks)
}

func TestIngestData_NotConfigured(t *testing.T) {
	r := setupRouter(t, &fakeRAGService{}, store.NewMemoryStore(), nil)

	w := postJSON(t, r, "/api/v1/ingest", models.IngestDataRequest{Text: "x"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, &fakeRAGService{}, store.NewMemoryStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHealth_ServesCachedDependencyResults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	checker := services.NewHealthChecker(time.Second, zap.NewNop(), services.HealthProbe{
		Name: "store",
		Check: func(context.Context) error {
			calls++
			return errors.New("connection refused")
		},
	})
	checker.Run(context.Background())

	r := gin.New()
	NewRAGController(&fakeRAGService{}, store.NewMemoryStore(), nil, checker, zap.NewNop()).RegisterRoutes(r)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Dependencies []services.ProbeResult `json:"dependencies"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Dependencies, 1)
		assert.False(t, body.Dependencies[0].Healthy)
		assert.Equal(t, "connection refused", body.Dependencies[0].Error)
	}
	assert.Equal(t, 1, calls)
}
