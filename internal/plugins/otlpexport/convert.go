package otlpexport

import (
	"math"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/pmetric"

	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
)

// Attribute keys of point resource.
const (
	ResourceKindKey = "measured.resource.kind"
	ResourceIDKey   = "measured.resource.id"
)

// ScopeName is an instrumentation scope of exported metrics.
const ScopeName = "github.com/go-faster/measured"

// Convert converts points to OTLP gauges.
//
// Metrics are ordered by first appearance in view. Attributes with
// repeated keys are collapsed, the last value wins.
func Convert(view measurement.View, reg *metric.Frozen, resource map[string]string) pmetric.Metrics {
	md := pmetric.NewMetrics()
	rm := md.ResourceMetrics().AppendEmpty()
	attrs := rm.Resource().Attributes()
	for k, v := range resource {
		attrs.PutStr(k, v)
	}
	sm := rm.ScopeMetrics().AppendEmpty()
	sm.Scope().SetName(ScopeName)

	gauges := map[metric.ID]pmetric.NumberDataPointSlice{}
	for p := range view.All() {
		slice, ok := gauges[p.Metric()]
		if !ok {
			m, _ := reg.Get(p.Metric())
			om := sm.Metrics().AppendEmpty()
			om.SetName(m.Name)
			om.SetDescription(m.Description)
			if u := m.Unit.UCUM(); u != "" {
				om.SetUnit(u)
			} else {
				om.SetUnit(reg.UnitName(m.Unit))
			}
			slice = om.SetEmptyGauge().DataPoints()
			gauges[p.Metric()] = slice
		}

		dp := slice.AppendEmpty()
		dp.SetTimestamp(pcommon.Timestamp(p.Timestamp().UnixNano()))
		setValue(dp, p.Value())

		da := dp.Attributes()
		da.PutStr(ResourceKindKey, p.ResourceKind())
		if id := p.ResourceID(); id != "" {
			da.PutStr(ResourceIDKey, id)
		}
		for k, v := range p.Attributes() {
			putAttr(da, k, v)
		}
	}
	return md
}

func setValue(dp pmetric.NumberDataPoint, v metric.Value) {
	if n, ok := v.U64(); ok && n <= math.MaxInt64 {
		dp.SetIntValue(int64(n))
		return
	}
	dp.SetDoubleValue(v.Float())
}

func putAttr(m pcommon.Map, k string, v measurement.AttrValue) {
	switch v.Kind() {
	case measurement.AttrU64:
		n, _ := v.U64()
		if n > math.MaxInt64 {
			m.PutDouble(k, float64(n))
			return
		}
		m.PutInt(k, int64(n))
	case measurement.AttrF64:
		f, _ := v.F64()
		m.PutDouble(k, f)
	case measurement.AttrBool:
		b, _ := v.Bool()
		m.PutBool(k, b)
	case measurement.AttrStr:
		s, _ := v.Str()
		m.PutStr(k, s)
	}
}
