package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordIndexRun(t *testing.T) {
	before := testutil.ToFloat64(IndexRunsTotal.WithLabelValues("complete"))
	RecordIndexRun("complete", 0.5)
	assert.Equal(t, before+1, testutil.ToFloat64(IndexRunsTotal.WithLabelValues("complete")))
}

func TestRecordClassified(t *testing.T) {
	before := testutil.ToFloat64(RecordsClassified.WithLabelValues("marker"))
	RecordClassified("marker", 3)
	RecordClassified("marker", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(RecordsClassified.WithLabelValues("marker")))
}

func TestRecordRuleReload(t *testing.T) {
	okBefore := testutil.ToFloat64(RuleReloads.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(RuleReloads.WithLabelValues("error"))
	RecordRuleReload(true)
	RecordRuleReload(false)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(RuleReloads.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(RuleReloads.WithLabelValues("error")))
}
