package notify

// Notifier defines an interface for delivering messages to the bot owner.
// This decouples the engine from the specific bot library. Send must report
// delivery failure — the caller's dedup markers only advance on success.
type Notifier interface {
	Send(text string) error
}
