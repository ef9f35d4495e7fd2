// Package logging provides structured logging for fhz2mqtt on top of
// log/slog.
//
// Every entry carries service=fhz2mqtt and the build version. Long-lived
// parts of the bridge log through a Component logger so their entries can
// be filtered:
//
//	log := logging.New(cfg.Logging, version)
//	bridgeLog := log.Component("bridge")
//	bridgeLog.Warn("frame discarded", "error", err)
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// At debug level the serial codec logs a hex dump of every frame. Never log
// the MQTT password; config.MQTTAuthConfig redacts it when formatted.
package logging
