package flow

import "context"

// Popup window geometry presented to the console frontend.
const (
	PopupWidth  = 600
	PopupHeight = 700
)

// Opener presents the provider's authorization URL to the user.
// OpenPopup reports false when the popup could not be opened (for
// example when the browser blocked it); the manager then falls back to
// Navigate. Exactly one of the two presentation paths runs per flow.
type Opener interface {
	OpenPopup(ctx context.Context, authURL string) (bool, error)
	Navigate(ctx context.Context, authURL string) error
}
