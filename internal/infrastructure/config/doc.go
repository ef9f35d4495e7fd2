// Package config loads the fhz2mqtt configuration.
//
// Values come from three layers: defaultConfig, the YAML file passed to
// Load, and FHZ2MQTT_<SECTION>_<KEY> environment variables (see envVars).
// Validate reports every bad field at once, wrapped in ErrInvalid.
//
// Keep the broker password out of the file and set FHZ2MQTT_MQTT_PASSWORD
// instead; MQTTAuthConfig masks it when printed or encoded.
package config
