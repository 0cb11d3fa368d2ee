package configdoc

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rpattn/shareflow/internal/domain"
)

const sampleCSV = `record,name,value,kind,addresses,objects,recipients,share,source,target,schedule_mode,schedule_expr,timezone
metadata,strategy,create,,,,,,,,,,
metadata,requester,alice,,,,,,,,,,
metadata,business_line,trading,,,,,,,,,,
recipient,partner-a,,external,10.0.0.1;10.0.0.2,,,,,,,,
share,share-a,,,,orders;invoices,partner-a,,,,,,
pipeline,pipe-a,,,,,,share-a,src_table,dst_table,cron,0 2 * * *,Europe/London
`

func TestParseCSV(t *testing.T) {
	cfg, err := Parse("config.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}

	if cfg.Strategy != domain.StrategyCreate {
		t.Errorf("expected CREATE strategy, got %s", cfg.Strategy)
	}
	if cfg.Requester != "alice" || cfg.BusinessLine != "trading" {
		t.Errorf("unexpected metadata: requester=%q business_line=%q", cfg.Requester, cfg.BusinessLine)
	}

	if len(cfg.Recipients) != 1 {
		t.Fatalf("expected 1 recipient, got %d", len(cfg.Recipients))
	}
	recipient := cfg.Recipients[0]
	if recipient.Name != "partner-a" || recipient.Kind != "external" {
		t.Errorf("unexpected recipient %+v", recipient)
	}
	if !reflect.DeepEqual(recipient.Addresses, []string{"10.0.0.1", "10.0.0.2"}) {
		t.Errorf("expected semicolon list split, got %v", recipient.Addresses)
	}

	if len(cfg.Shares) != 1 {
		t.Fatalf("expected 1 share, got %d", len(cfg.Shares))
	}
	share := cfg.Shares[0]
	if !reflect.DeepEqual(share.Objects, []string{"orders", "invoices"}) {
		t.Errorf("unexpected share objects %v", share.Objects)
	}

	if len(share.Pipelines) != 1 {
		t.Fatalf("expected 1 pipeline nested under the share, got %d", len(share.Pipelines))
	}
	pipeline := share.Pipelines[0]
	if pipeline.Source != "src_table" || pipeline.Target != "dst_table" {
		t.Errorf("unexpected pipeline endpoints %+v", pipeline)
	}
	want := domain.Schedule{Mode: domain.ScheduleCron, Expr: "0 2 * * *", Timezone: "Europe/London"}
	if pipeline.Schedule != want {
		t.Errorf("expected schedule %+v, got %+v", want, pipeline.Schedule)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("parsed config should validate, got %v", err)
	}
}

func TestParseCSVStripsByteOrderMark(t *testing.T) {
	data := "\xEF\xBB\xBF" + sampleCSV
	cfg, err := Parse("config.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse BOM-prefixed document: %v", err)
	}
	if cfg.Strategy != domain.StrategyCreate {
		t.Errorf("expected CREATE strategy, got %s", cfg.Strategy)
	}
}

func TestParseRejectsUnknownRecordType(t *testing.T) {
	data := "record,name\nwidget,thing\n"
	_, err := Parse("config.csv", strings.NewReader(data))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "widget") {
		t.Errorf("expected the offending record type named, got %q", err.Error())
	}
}

func TestParseRejectsPipelineWithUnknownShare(t *testing.T) {
	data := "record,name,share\npipeline,pipe-a,ghost\n"
	_, err := Parse("config.csv", strings.NewReader(data))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseRejectsMissingRecordColumn(t *testing.T) {
	data := "name,value\nstrategy,create\n"
	_, err := Parse("config.csv", strings.NewReader(data))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseRejectsUnsupportedExtension(t *testing.T) {
	_, err := Parse("config.pdf", strings.NewReader("data"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestParseDoesNotValidateSemantics(t *testing.T) {
	// A parseable document with a semantically broken config must still parse;
	// submission persists the validation failure instead.
	data := "record,name,value\nmetadata,strategy,create\nrecipient,partner-a,\n"
	cfg, err := Parse("config.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse should not run semantic validation, got %v", err)
	}
	if verr := cfg.Validate(); !domain.IsValidation(verr) {
		t.Errorf("expected the config to fail semantic validation, got %v", verr)
	}
}
