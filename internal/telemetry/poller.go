package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"coffee-machine-backend/config"
	"coffee-machine-backend/internal/store"
)

// Dispatcher queues refill alerts.
type Dispatcher interface {
	Dispatch(machineID int64) bool
}

// Flusher drops cached API responses once stored levels change.
type Flusher interface {
	Flush()
}

// Service polls the sensor gateway and keeps stored machine levels in sync.
type Service struct {
	cfg        *config.TelemetryConfig
	store      store.Store
	client     *http.Client
	dispatcher Dispatcher
	responses  Flusher
	log        *zap.Logger
}

// NewService creates a telemetry poller. dispatcher and responses may be nil.
func NewService(cfg *config.TelemetryConfig, s store.Store, dispatcher Dispatcher, responses Flusher, log *zap.Logger) *Service {
	log = log.Named("telemetry")

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("Invalid proxy URL, polling without proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:   cfg,
		store: s,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		dispatcher: dispatcher,
		responses:  responses,
		log:        log,
	}
}

// Run polls until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("Telemetry polling is disabled")
		return
	}
	s.log.Info("Starting telemetry poller", zap.Duration("interval", s.cfg.Interval))

	s.PollOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Telemetry poller shutting down")
			return
		case <-timer.C:
			s.PollOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// PollOnce fetches every page from the gateway, syncs the readings and
// dispatches alerts for machines that now need attention.
func (s *Service) PollOnce(ctx context.Context) {
	var readings []store.Reading
	total := 1
	pageSize := s.cfg.Request.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			s.log.Warn("Failed to fetch telemetry page", zap.Int("page", page), zap.Error(err))
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		readings = append(readings, resp.Data.Items...)
	}

	// A failed fetch with nothing retrieved must not be mistaken for an empty fleet.
	if fetchErr != nil && len(readings) == 0 {
		s.log.Warn("Telemetry cycle aborted, machine levels left unchanged")
		return
	}
	if len(readings) == 0 {
		s.log.Debug("Telemetry cycle finished with no readings")
		return
	}

	result, err := s.store.SyncLevels(ctx, readings)
	if err != nil {
		s.log.Error("Failed to sync machine levels", zap.Error(err))
		return
	}
	if s.responses != nil {
		s.responses.Flush()
	}

	for _, skipped := range result.Skipped {
		s.log.Warn("Skipped telemetry reading", zap.Int64("machine_id", skipped.MachineID), zap.Error(skipped.Err))
	}
	for _, u := range result.UnknownTypes {
		s.log.Warn("Dropped unknown coffee types", zap.Int64("machine_id", u.MachineID), zap.Strings("types", u.Names))
	}

	if s.dispatcher != nil {
		for _, id := range result.NeedAttention {
			s.dispatcher.Dispatch(id)
		}
	}

	s.log.Info("Telemetry cycle finished",
		zap.Int("readings", len(readings)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("alerts", len(result.NeedAttention)))
}

func (s *Service) fetchPage(ctx context.Context, page int) (*GatewayResponse, error) {
	payload := make(map[string]any, len(s.cfg.Request.Payload)+2)
	for k, v := range s.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = s.cfg.Request.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var gwResp GatewayResponse
	if err := json.Unmarshal(body, &gwResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateway response: %w", err)
	}

	if gwResp.Code != 0 {
		return nil, fmt.Errorf("gateway returned non-zero application code: %d", gwResp.Code)
	}

	return &gwResp, nil
}
