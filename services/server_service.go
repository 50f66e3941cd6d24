package services

import (
	"time"

	"pkgsync/internal/config"
	"pkgsync/internal/env"
	"pkgsync/internal/models"
	"pkgsync/internal/storage"
)

// MirrorServer is the state behind the blob mirror HTTP server: the
// directory it serves and the counters it exposes.
type MirrorServer struct {
	cfg       *config.AppConfig
	store     *storage.DirStore
	metrics   *SyncMetrics
	startTime time.Time
}

/**
 * Create the blob mirror state
 * @param {*config.AppConfig} cfg - Application configuration, Server.Root is served
 * @param {*SyncMetrics} metrics - Counters updated by the request middleware
 * @returns {*MirrorServer} Returns the mirror
 * @returns {error} Returns error if the root directory cannot be used
 */
func NewMirrorServer(cfg *config.AppConfig, metrics *SyncMetrics) (*MirrorServer, error) {
	store, err := storage.NewDirStore(cfg.Server.Root)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewSyncMetrics()
	}
	return &MirrorServer{
		cfg:       cfg,
		store:     store,
		metrics:   metrics,
		startTime: time.Now(),
	}, nil
}

func (s *MirrorServer) Store() *storage.DirStore {
	return s.store
}

func (s *MirrorServer) Metrics() *SyncMetrics {
	return s.metrics
}

// TokenSecret is the HMAC secret uploads are checked against, "" when open.
func (s *MirrorServer) TokenSecret() string {
	return s.cfg.Server.TokenSecret
}

// GetHealthz 构造健康检查响应
func (s *MirrorServer) GetHealthz() models.HealthResponse {
	return models.HealthResponse{
		Version:   env.Version,
		StartTime: s.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Root:      s.store.Root(),
		Metrics: models.Metrics{
			TotalRequests: s.metrics.TotalRequests(),
			ErrorRequests: s.metrics.ErrorRequests(),
		},
	}
}
