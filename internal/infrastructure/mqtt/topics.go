package mqtt

import "fmt"

// Topic prefixes.
const (
	// TopicPrefix is the root of every topic this service publishes.
	TopicPrefix = "tourney"

	// TopicPrefixAuth is the base for authentication events.
	TopicPrefixAuth = TopicPrefix + "/auth"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for the service's MQTT topics.
//
//	topic := mqtt.Topics{}.AuthEvent("login")
//	// Returns: "tourney/auth/login"
type Topics struct{}

// AuthEvent returns the topic for one kind of authentication event.
//
// Example: tourney/auth/login_failed
func (Topics) AuthEvent(action string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixAuth, action)
}

// AllAuthEvents returns a wildcard matching every authentication event.
func (Topics) AllAuthEvents() string {
	return TopicPrefixAuth + "/+"
}

// ServerStatus returns the retained online/offline topic for one server.
//
// Example: tourney/system/tourney-001/status
func (Topics) ServerStatus(serverID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixSystem, serverID)
}

// AllServerStatus returns a wildcard matching every server's status topic.
func (Topics) AllServerStatus() string {
	return TopicPrefixSystem + "/+/status"
}
