package common

// Virtual key codes for the demo host key bindings.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyB = 66 // B key (ASCII), begin rendering
	KeyE = 69 // E key (ASCII), enable all FX
	KeyD = 68 // D key (ASCII), disable all FX
	KeyN = 78 // N key (ASCII), end rendering
	KeyP = 80 // P key (ASCII), next profile
	KeyR = 82 // R key (ASCII), reset gaze

	Key1 = 49 // 1 key (ASCII)
	Key8 = 56 // 8 key (ASCII)

	KeyEsc   = 256 // Escape key (GLFW)
	KeyRight = 262 // Right arrow (GLFW)
	KeyLeft  = 263 // Left arrow (GLFW)
	KeyDown  = 264 // Down arrow (GLFW)
	KeyUp    = 265 // Up arrow (GLFW)
)

// FXForKey maps the number row keys 1..8 to FX ids 0..7.
//
// Parameters:
//   - keyCode: the virtual key code
//
// Returns:
//   - int: the FX id
//   - bool: false if the key is not a number row FX key
func FXForKey(keyCode uint32) (int, bool) {
	if keyCode < Key1 || keyCode > Key8 {
		return 0, false
	}
	return int(keyCode - Key1), true
}
