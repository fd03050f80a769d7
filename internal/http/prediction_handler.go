package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// PredictionReader 读取会话最近一次预测
type PredictionReader interface {
	LatestPredictions(ctx context.Context, sessionKey string) ([]int, error)
}

// PredictionHandler 预测结果查询
type PredictionHandler struct {
	reader PredictionReader
	logger *zap.Logger
}

func NewPredictionHandler(reader PredictionReader, logger *zap.Logger) *PredictionHandler {
	return &PredictionHandler{reader: reader, logger: logger}
}

// GetLatest GET ?subject=<subject>&session=<sessionId>
func (h *PredictionHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	session := strings.TrimSpace(r.URL.Query().Get("session"))
	if subject == "" || session == "" {
		writeJSON(w, http.StatusBadRequest, Fail("subject and session are required"))
		return
	}

	sessionKey := subject + "/" + session
	labels, err := h.reader.LatestPredictions(r.Context(), sessionKey)
	if err != nil {
		h.logger.Error("Failed to query predictions", zap.String("session_key", sessionKey), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query predictions"))
		return
	}
	if labels == nil {
		writeJSON(w, http.StatusNotFound, Fail("no predictions for session"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"session_key": sessionKey,
		"epochs":      len(labels),
		"labels":      labels,
	}))
}
