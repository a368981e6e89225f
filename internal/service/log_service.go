package service

import (
	"context"
	"time"

	"survey-assistant-be/internal/dto"
	"survey-assistant-be/internal/pkg/logger"
)

// LogReader is the read side of the application logger.
type LogReader interface {
	GetLogs(level string, limit, offset int) ([]logger.LogEntry, error)
	GetLogById(id string) (*logger.LogEntry, error)
}

type ILogService interface {
	GetSystemLogs(ctx context.Context, page, limit int, level string) ([]*dto.LogListResponse, error)
	GetLogDetail(ctx context.Context, id string) (*dto.LogDetailResponse, error)
}

type logService struct {
	reader LogReader
}

func NewLogService(reader LogReader) ILogService {
	return &logService{reader: reader}
}

func (s *logService) GetSystemLogs(ctx context.Context, page, limit int, level string) ([]*dto.LogListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 10
	}

	entries, err := s.reader.GetLogs(level, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.LogListResponse, 0, len(entries))
	for _, e := range entries {
		item := toLogListResponse(e)
		res = append(res, &item)
	}
	return res, nil
}

func (s *logService) GetLogDetail(ctx context.Context, id string) (*dto.LogDetailResponse, error) {
	e, err := s.reader.GetLogById(id)
	if err != nil {
		return nil, err
	}
	return &dto.LogDetailResponse{
		LogListResponse: toLogListResponse(*e),
		Details:         e.Details,
	}, nil
}

// iso8601Layout matches zapcore.ISO8601TimeEncoder.
const iso8601Layout = "2006-01-02T15:04:05.000Z0700"

func toLogListResponse(e logger.LogEntry) dto.LogListResponse {
	createdAt, err := time.Parse(iso8601Layout, e.Timestamp)
	if err != nil {
		createdAt, _ = time.Parse(time.RFC3339Nano, e.Timestamp)
	}
	return dto.LogListResponse{
		Id:        e.Id,
		Level:     e.Level,
		Module:    e.Module,
		Message:   e.Message,
		CreatedAt: createdAt,
	}
}
