// Package influxdb records authentication event counters in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and a health check. Each auth
// event becomes one point in the auth_events measurement, tagged with
// the action and outcome and carrying a count field of 1, so dashboards
// can sum logins, failures and revocations over time.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent("login_failed", "failure", time.Now())
//
// The integration is optional. Connect returns ErrDisabled when
// influxdb.enabled is false, and the write helpers do nothing on a nil
// or closed client.
package influxdb
