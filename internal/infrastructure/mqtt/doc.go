// Package mqtt publishes authentication events and service status to an
// MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// Events go to tourney/auth/{action} (not retained). The retained topic
// tourney/system/{server.id}/status carries a StatusMessage: "online",
// "offline" (graceful_shutdown) or the broker-published will
// (unexpected_disconnect).
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, cfg.Server.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.AuthEvent("login"), event)
//
// Publishing on a disconnected client returns ErrNotConnected immediately;
// auth flows never wait for the broker.
package mqtt
