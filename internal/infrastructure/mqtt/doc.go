// Package mqtt connects fhz2mqtt to an MQTT broker using the Eclipse Paho
// client.
//
// The Client reconnects on its own, replays subscriptions after each
// reconnect and maintains a retained status message on {ns}/bridge/status:
// "online" while connected, "offline" after Close, and the will message
// (reason "unexpected_disconnect") when the connection drops.
//
// # Topics
//
//	{ns}/fht/{house_code}/{ack|status}/{command}  decoded thermostat values
//	{ns}/set/fht/{house_code}/{command}          set requests (raw text payload)
//	{ns}/fht/{house_code}/result/{command}       outcome of a set request (JSON)
//	{ns}/bridge/status                           online/offline, LWT (retained)
//	{ns}/bridge/health                           periodic health (retained)
//
// Enable TLS (broker.tls) when the broker is not on the local host; payloads
// are otherwise sent in the clear.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllFHTSets(), 1,
//	    func(topic string, payload []byte) error {
//	        hc, cmd, _ := topics.ParseFHTSet(topic)
//	        log.Info("set request", "house_code", hc, "command", cmd, "value", string(payload))
//	        return nil
//	    })
package mqtt
