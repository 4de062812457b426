package handlers

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// lineBreaks matches every LF and CRLF in a lookup response.
var lineBreaks = regexp.MustCompile(`\r?\n`)

// IPReporter looks up the public address once per invocation and emits one
// record tagged with the request id.
type IPReporter struct {
	lookup AddressLookup
	sink   RecordSink
}

// NewIPReporter creates a reporter using lookup for the address and sink for
// the record.
func NewIPReporter(lookup AddressLookup, sink RecordSink) *IPReporter {
	return &IPReporter{lookup: lookup, sink: sink}
}

// Report performs one lookup and emits {id, response_data}. A failed lookup
// emits nothing.
func (r *IPReporter) Report(ctx context.Context, req *engine.IPRequest) (*engine.ReportOutcome, error) {
	if req == nil {
		return nil, engine.NewValidationError("id is required", nil).WithUnit(UnitIPReporter)
	}

	op := telemetry.StartOperation(ctx, "ip_reporter.report", telemetry.AttrReportID.Int(req.ID))
	logger := op.Logger.WithField("report_id", req.ID)

	outcome, err := r.report(op.Ctx, req)
	op.End(err)

	if err != nil {
		telemetry.MetricsFromContext(ctx).RecordError(string(engine.KindOf(err)))
		logger.WithError(err).Error("Address report failed")
		return nil, err
	}

	outcome.Duration = op.Timer.Duration()
	telemetry.MetricsFromContext(ctx).RecordReportEmitted()
	logger.Debugf("Emitted address record in %s", outcome.Duration)
	return outcome, nil
}

func (r *IPReporter) report(ctx context.Context, req *engine.IPRequest) (*engine.ReportOutcome, error) {
	body, err := r.lookup.Lookup(ctx)
	if err != nil {
		classified := engine.AsError(err)
		if classified.Kind == engine.ErrorKindUnhandled {
			classified = engine.NewNetworkError("address lookup failed", err)
		}
		return nil, classified.WithUnit(UnitIPReporter)
	}

	report := engine.IPReport{
		ID:           req.ID,
		ResponseData: lineBreaks.ReplaceAllString(body, ""),
	}
	if err := r.sink.Emit(report); err != nil {
		return nil, engine.NewUnhandledError("failed to emit record", err).WithUnit(UnitIPReporter)
	}

	return &engine.ReportOutcome{Report: report, Emitted: true}, nil
}

// HandleJSON decodes {"id": n} and reports. It returns no payload; the record
// is the only product.
func (r *IPReporter) HandleJSON(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	id, err := integerField(payload, "id")
	if err != nil {
		return nil, err.WithUnit(UnitIPReporter)
	}

	if _, reportErr := r.Report(ctx, &engine.IPRequest{ID: id}); reportErr != nil {
		return nil, reportErr
	}
	return nil, nil
}
