// Package sessionshttp exposes the device session management API used by
// the account settings screens.
package sessionshttp
