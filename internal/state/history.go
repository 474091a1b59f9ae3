package state

// historyMeasurement is the InfluxDB measurement written by HistorySink.
const historyMeasurement = "projector_state"

// PointWriter is satisfied by the infrastructure InfluxDB client.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// HistorySink records device-confirmed numeric and boolean values as time
// series points. Text and structured slots are skipped.
type HistorySink struct {
	writer   PointWriter
	deviceID string
}

// NewHistorySink creates a sink writing points tagged with deviceID.
func NewHistorySink(writer PointWriter, deviceID string) *HistorySink {
	return &HistorySink{writer: writer, deviceID: deviceID}
}

// DefinitionChanged implements Sink.
func (h *HistorySink) DefinitionChanged(Definition) {}

// ValueChanged implements Sink.
func (h *HistorySink) ValueChanged(def Definition, change Change) {
	if !change.Value.Ack {
		return
	}

	v, ok := numericValue(change.Value.Val)
	if !ok {
		return
	}

	h.writer.WritePoint(historyMeasurement,
		map[string]string{
			"device": h.deviceID,
			"slot":   change.ID,
			"role":   def.Role,
		},
		map[string]any{"value": v},
	)
}

func numericValue(val any) (float64, bool) {
	switch v := val.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
