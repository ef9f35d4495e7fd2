// Package bridge connects the FHZ1000 transceiver to MQTT.
//
// A Bridge owns the serial port. One goroutine reads frames, decodes them
// with package fht and publishes every observation on
//
//	<namespace>/fht/<house code>/<ack|status>/<command>
//
// Set requests arrive on <namespace>/set/fht/<house code>/<command> with the
// value as plain text, or through Bridge.Set from the HTTP API. The outcome
// is published as a SetResult on <namespace>/fht/<house code>/result/<command>.
//
// Transport errors close the port; the reader reopens it after the
// configured reconnect interval. Frame and message errors are counted and
// the frame is dropped.
//
// A HealthReporter publishes a retained HealthMessage on
// <namespace>/bridge/health at a fixed interval.
package bridge
