package ports

// Notifier pushes protocol messages to a connected party, addressed by master
// key id.
//
// Delivery is fire-and-forget: there is no receipt, no retry and no queuing.
// A message pushed while the recipient is disconnected is lost. Stricter
// at-least-once implementations can be swapped in behind this interface
// without touching the state machine.
type Notifier interface {
	Notify(masterKeyID string, message interface{})
}
