package domain

// TrackedAccount is the platform account the watcher reports on. Balance is
// the most recently observed wallet balance; nil means the balance is
// currently unknown (typically an expired session cookie).
type TrackedAccount struct {
	ID      string
	Balance *float64
}
