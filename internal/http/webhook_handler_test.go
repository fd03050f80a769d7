package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wisefido-sleepstage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	events []models.ObjectEvent
	err    error
	calls  int
}

func (r *recorder) handle(ctx context.Context, events []models.ObjectEvent) error {
	r.calls++
	r.events = append(r.events, events...)
	return r.err
}

func newTestRouter(rec *recorder) *Router {
	router := NewRouter(zap.NewNop())
	router.RegisterWebhookRoutes(NewWebhookHandler(rec.handle, zap.NewNop()))
	return router
}

func post(t *testing.T, h http.Handler, path, msgType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if msgType != "" {
		req.Header.Set("x-amz-sns-message-type", msgType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func notificationBody(t *testing.T, records ...[2]string) string {
	t.Helper()
	var parts []string
	for _, r := range records {
		parts = append(parts, fmt.Sprintf(`{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":%q},"object":{"key":%q}}}`, r[0], r[1]))
	}
	message := `{"Records":[` + strings.Join(parts, ",") + `]}`
	envelope, err := json.Marshal(models.SNSEnvelope{Type: "Notification", MessageID: "m-1", Message: message})
	require.NoError(t, err)
	return string(envelope)
}

func TestWebhook_Notification(t *testing.T) {
	rec := &recorder{}
	router := newTestRouter(rec)

	body := notificationBody(t,
		[2]string{"bucket-a", "users/subj1/20260102_184054/heartrate/chunk+001.npy"},
		[2]string{"bucket-a", "users/subj1/20260102_184054/acceleration/chunk_001.npy"},
	)
	w := post(t, router, "/s3-webhook", "Notification", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Notification received", w.Body.String())
	require.Len(t, rec.events, 2)
	assert.Equal(t, "bucket-a", rec.events[0].Bucket)
	assert.Equal(t, "users/subj1/20260102_184054/heartrate/chunk 001.npy", rec.events[0].ObjectKey)
	assert.Equal(t, "ObjectCreated:Put", rec.events[1].EventName)
}

func TestWebhook_TrailingSlash(t *testing.T) {
	rec := &recorder{}
	w := post(t, newTestRouter(rec), "/s3-webhook/", "Notification",
		notificationBody(t, [2]string{"b", "users/s/20260102_184054/heartrate/c.npy"}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rec.calls)
}

func TestWebhook_InvalidJSON(t *testing.T) {
	rec := &recorder{}
	w := post(t, newTestRouter(rec), "/s3-webhook", "Notification", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", w.Body.String())
	assert.Equal(t, 0, rec.calls)
}

func TestWebhook_InvalidMessage(t *testing.T) {
	rec := &recorder{}
	body := `{"Type":"Notification","Message":"not-json"}`
	w := post(t, newTestRouter(rec), "/s3-webhook", "Notification", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, rec.calls)
}

func TestWebhook_RejectedEvents(t *testing.T) {
	rec := &recorder{err: fmt.Errorf("%w: bad key", models.ErrInvalidEvent)}
	w := post(t, newTestRouter(rec), "/s3-webhook", "Notification",
		notificationBody(t, [2]string{"b", "short/key"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_ProcessingError(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	w := post(t, newTestRouter(rec), "/s3-webhook", "Notification",
		notificationBody(t, [2]string{"b", "users/s/20260102_184054/heartrate/c.npy"}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_SubscriptionConfirmation(t *testing.T) {
	confirmed := 0
	sns := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "ConfirmSubscription", r.URL.Query().Get("Action"))
		confirmed++
		w.WriteHeader(http.StatusOK)
	}))
	defer sns.Close()

	rec := &recorder{}
	body := fmt.Sprintf(`{"Type":"SubscriptionConfirmation","SubscribeURL":%q}`, sns.URL+"/?Action=ConfirmSubscription&Token=abc")
	w := post(t, newTestRouter(rec), "/s3-webhook", "SubscriptionConfirmation", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Subscription confirmed", w.Body.String())
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 0, rec.calls)
}

func TestWebhook_SubscriptionWithoutURL(t *testing.T) {
	w := post(t, newTestRouter(&recorder{}), "/s3-webhook", "SubscriptionConfirmation", `{"Type":"SubscriptionConfirmation"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestWebhook_UnknownType(t *testing.T) {
	rec := &recorder{}
	w := post(t, newTestRouter(rec), "/s3-webhook", "UnsubscribeConfirmation", `{"Type":"UnsubscribeConfirmation"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, 0, rec.calls)
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/s3-webhook", nil)
	w := httptest.NewRecorder()
	newTestRouter(&recorder{}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	newTestRouter(&recorder{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var res Result[map[string]any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, ResultSuccess, res.Code)
	assert.Equal(t, "ok", res.Result["status"])
}

type fakeReader struct {
	labels []int
	err    error
	key    string
}

func (f *fakeReader) LatestPredictions(ctx context.Context, sessionKey string) ([]int, error) {
	f.key = sessionKey
	return f.labels, f.err
}

func TestPredictionHandler_GetLatest(t *testing.T) {
	reader := &fakeReader{labels: []int{0, 1, 1}}
	router := NewRouter(zap.NewNop())
	router.RegisterPredictionRoutes(NewPredictionHandler(reader, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/sleepstage/api/v1/predictions?subject=subj1&session=20260102_184054", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "subj1/20260102_184054", reader.key)
	var res Result[struct {
		Epochs int   `json:"epochs"`
		Labels []int `json:"labels"`
	}]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Result.Epochs)
	assert.Equal(t, []int{0, 1, 1}, res.Result.Labels)
}

func TestPredictionHandler_Errors(t *testing.T) {
	cases := []struct {
		name   string
		reader *fakeReader
		query  string
		status int
	}{
		{"missing params", &fakeReader{}, "?subject=s1", http.StatusBadRequest},
		{"not found", &fakeReader{}, "?subject=s1&session=x", http.StatusNotFound},
		{"db error", &fakeReader{err: errors.New("down")}, "?subject=s1&session=x", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(zap.NewNop())
			router.RegisterPredictionRoutes(NewPredictionHandler(tc.reader, zap.NewNop()))
			req := httptest.NewRequest(http.MethodGet, "/sleepstage/api/v1/predictions"+tc.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
