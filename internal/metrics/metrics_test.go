package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCatalogLookup(t *testing.T) {
	before := testutil.ToFloat64(CatalogLookups.WithLabelValues("test-provider", "hit"))
	RecordCatalogLookup("test-provider", "hit", 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(CatalogLookups.WithLabelValues("test-provider", "hit")))
}

func TestRecordGeneration(t *testing.T) {
	before := testutil.ToFloat64(Generations.WithLabelValues("batch", "ok"))
	RecordGeneration("batch", "ok", time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(Generations.WithLabelValues("batch", "ok")))
}
