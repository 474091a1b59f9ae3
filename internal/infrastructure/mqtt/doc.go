// Package mqtt connects the PJLink bridge to the MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retained flags
//   - Subscriptions that survive reconnects
//   - A Last Will on the bridge health topic for offline detection
//   - Topic builders for slot state, metadata, writes and health
//
// # Topics
//
//	graylogic/pjlink/{device}/state/{slot}   retained slot value
//	graylogic/pjlink/{device}/meta/{slot}    retained slot definition
//	graylogic/pjlink/{device}/set/{slot}     user writes
//	graylogic/health/pjlink/{device}         retained bridge health, LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Will{Topic: topic, Payload: lwt})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.SlotSet("hall", "+"), 1,
//	    func(topic string, payload []byte) error {
//	        return store.Set(slotFrom(topic), payload, false)
//	    })
package mqtt
