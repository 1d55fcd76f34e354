package core

import "sync"

// KeyCode values follow GLFW key numbering so the platform layer can pass
// them through unchanged.
type KeyCode uint16

const (
	KEY_SPACE  KeyCode = 32
	KEY_A      KeyCode = 65
	KEY_D      KeyCode = 68
	KEY_E      KeyCode = 69
	KEY_Q      KeyCode = 81
	KEY_S      KeyCode = 83
	KEY_W      KeyCode = 87
	KEY_ESCAPE KeyCode = 256
	KEY_RIGHT  KeyCode = 262
	KEY_LEFT   KeyCode = 263
	KEY_DOWN   KeyCode = 264
	KEY_UP     KeyCode = 265

	KEYS_MAX_KEYS KeyCode = 512
)

type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input holds current and previous keyboard state. The platform writes it
// from its key callback and the game reads it during update.
type Input struct {
	mu       sync.RWMutex
	current  KeyboardState
	previous KeyboardState
}

func NewInput() *Input {
	return &Input{}
}

// Update copies the current state into the previous one. Call once per frame
// after every consumer has read input.
func (in *Input) Update() {
	in.mu.Lock()
	in.previous = in.current
	in.mu.Unlock()
}

func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	if key >= KEYS_MAX_KEYS {
		return
	}
	in.mu.Lock()
	in.current.Keys[key] = pressed
	in.mu.Unlock()
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.current.Keys[key]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	if key >= KEYS_MAX_KEYS {
		return false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.previous.Keys[key]
}

// KeyPressed is true on the frame a key went down.
func (in *Input) KeyPressed(key KeyCode) bool {
	return in.IsKeyDown(key) && !in.WasKeyDown(key)
}
