package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// Archiver uploads execution reports and arbitrage scan archives. Reports
// are written per attempt as JSON documents; batch archives as JSONL.
type Archiver struct {
	writer *Writer
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given writer.
func NewArchiver(writer *Writer, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// executionReport is the archived form of a terminal attempt. Amounts are
// decimal strings.
type executionReport struct {
	ID          string                  `json:"id"`
	IntentID    string                  `json:"intent_id,omitempty"`
	State       string                  `json:"state"`
	Progress    float64                 `json:"progress"`
	Step        string                  `json:"step"`
	GasUsed     string                  `json:"gas_used"`
	RealizedOut string                  `json:"realized_out"`
	Errors      []domain.ExecutionError `json:"errors,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// ReportExecution uploads one terminal attempt as a JSON document at
// reports/executions/YYYY/MM/{id}.json.
func (a *Archiver) ReportExecution(ctx context.Context, status domain.ExecutionStatus) error {
	report := executionReport{
		ID:          status.ID,
		IntentID:    status.IntentID,
		State:       string(status.State),
		Progress:    status.Progress,
		Step:        status.Step,
		GasUsed:     status.GasUsed.String(),
		RealizedOut: status.RealizedOut.String(),
		Errors:      status.Errors,
		StartedAt:   status.StartedAt,
		CompletedAt: status.CompletedAt,
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("s3blob: marshal execution report %s: %w", status.ID, err)
	}

	at := status.StartedAt
	if status.CompletedAt != nil {
		at = *status.CompletedAt
	}
	path := fmt.Sprintf("reports/executions/%s/%s.json", at.UTC().Format("2006/01"), status.ID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "execution report archived",
		slog.String("execution_id", status.ID),
		slog.String("path", path),
	)
	return nil
}

// ArchiveOpportunities uploads a batch of detected opportunities as JSONL
// at archive/opportunities/YYYY-MM-DD/{unix}.jsonl.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, opps []domain.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, opp := range opps {
		if err := enc.Encode(opp); err != nil {
			return fmt.Errorf("s3blob: marshal opportunity %s: %w", opp.ID, err)
		}
	}

	now := time.Now().UTC()
	path := fmt.Sprintf("archive/opportunities/%s/%d.jsonl", now.Format("2006-01-02"), now.Unix())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "opportunities archived",
		slog.Int("count", len(opps)),
		slog.String("path", path),
	)
	return nil
}
