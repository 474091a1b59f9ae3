// Package influxdb records the history of device-confirmed slot values.
//
// It wraps influxdb-client-go v2 with a batched, non-blocking write API.
// The state package's HistorySink feeds it through WritePoint; one point is
// written per confirmed numeric or boolean slot change, tagged with the
// bridge device ID, the slot ID and the slot role.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { logger.Warn("history write failed", "error", err) })
//	store.AddSink(state.NewHistorySink(client, cfg.Bridge.DeviceID))
//
// Batch size and flush interval come from influxdb.batch_size and
// influxdb.flush_interval.
package influxdb
