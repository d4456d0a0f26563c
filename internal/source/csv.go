package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/time/rate"

	"sensorflow/internal/config"
	"sensorflow/internal/constants"
	"sensorflow/internal/logger"
	"sensorflow/pkg/metrics"
)

// Source yields one reading payload at a time. Next blocks until the next
// reading is due or ctx is cancelled.
type Source interface {
	Next(ctx context.Context) (map[string]interface{}, error)
	Close() error
}

var requiredColumns = []string{"temperature", "humidity", "pressure"}

// CSVSource replays a readings file continuously, pacing emission with a
// rate limiter. Rows missing required columns are skipped and counted, as
// are rows with non-numeric values.
type CSVSource struct {
	path    string
	limiter *rate.Limiter
	logger  logger.Logger

	file    *os.File
	reader  *csv.Reader
	columns map[string]int
}

func NewCSVSource(cfg config.SourceConfig, log logger.Logger) (*CSVSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv source requires a file path")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = constants.DefaultSourceInterval
	}

	s := &CSVSource{
		path:    cfg.Path,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  log,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVSource) open() error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open readings file %s: %w", s.path, err)
	}

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read header from %s: %w", s.path, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			file.Close()
			return fmt.Errorf("readings file %s is missing required column %q", s.path, required)
		}
	}

	s.file = file
	s.reader = reader
	s.columns = columns
	return nil
}

// Next returns the next reading, rewinding to the start of the file when
// the end is reached so the stream never runs dry.
func (s *CSVSource) Next(ctx context.Context) (map[string]interface{}, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := s.reader.Read()
		if err == io.EOF {
			s.file.Close()
			if err := s.open(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			metrics.SourceRowsTotal.WithLabelValues("malformed").Inc()
			s.logger.Warnw("Skipping malformed CSV row", "error", err)
			continue
		}

		payload, err := s.rowToPayload(row)
		if err != nil {
			metrics.SourceRowsTotal.WithLabelValues("invalid").Inc()
			s.logger.Warnw("Skipping invalid CSV row", "error", err)
			continue
		}

		metrics.SourceRowsTotal.WithLabelValues("ok").Inc()
		return payload, nil
	}
}

func (s *CSVSource) rowToPayload(row []string) (map[string]interface{}, error) {
	payload := make(map[string]interface{}, len(s.columns))
	for name, idx := range s.columns {
		if idx >= len(row) {
			return nil, fmt.Errorf("row has no value for column %q", name)
		}
		payload[name] = row[idx]
	}

	for _, required := range requiredColumns {
		value, err := strconv.ParseFloat(row[s.columns[required]], 64)
		if err != nil {
			return nil, fmt.Errorf("column %q is not numeric: %w", required, err)
		}
		payload[required] = value
	}

	return payload, nil
}

func (s *CSVSource) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
