package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"rankwatch/models"
	"rankwatch/utils"
)

// reportNotice is the message published for every finished change report.
type reportNotice struct {
	RunID        string                  `json:"runId"`
	Timestamp    time.Time               `json:"timestamp"`
	AnalysisType string                  `json:"analysisType"`
	SourceFiles  models.SourceFiles      `json:"sourceFiles"`
	Summary      map[string]string       `json:"summary"`
	Statistics   models.ChangeStatistics `json:"statistics"`
	Market       models.MarketDynamics   `json:"marketDynamics"`
	Critical     []models.ScoredChange   `json:"critical"`
}

// NATSPublisher announces change reports on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *utils.Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string, logger *utils.Logger) (*NATSPublisher, error) {
	options := []nats.Option{
		nats.Name("rankwatch"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("[nats] Disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("[nats] Reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("nats: unable to connect: %w", err)
	}
	return &NATSPublisher{conn: nc, subject: subject, logger: logger}, nil
}

// PublishReport sends the report summary and its critical events.
func (p *NATSPublisher) PublishReport(r *models.ChangeReport) error {
	data, err := json.Marshal(reportNotice{
		RunID:        r.RunID,
		Timestamp:    r.Timestamp,
		AnalysisType: r.AnalysisType,
		SourceFiles:  r.SourceFiles,
		Summary:      r.Summary,
		Statistics:   r.Statistics,
		Market:       r.Market,
		Critical:     r.Changes.Critical,
	})
	if err != nil {
		return fmt.Errorf("nats: encode report: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}
	p.logger.Info("[nats] Published report %s to %s (%d bytes)", r.RunID, p.subject, len(data))
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
