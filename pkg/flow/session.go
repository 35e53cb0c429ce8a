package flow

import (
	"encoding/json"
	"fmt"
	"os"
)

// Session is the persisted form of an editing session: the graph plus the
// session-level parameters fixed when the editor was opened.
type Session struct {
	Name     string   `json:"name"`
	Platform string   `json:"platform"`
	Language string   `json:"language"`
	Graph    Snapshot `json:"graph"`
}

// SaveSession writes s as indented JSON.
func SaveSession(path string, s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	return nil
}

// LoadSession reads a session written by SaveSession.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session read: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}
	for _, n := range s.Graph.Nodes {
		if !n.Stage.Valid() {
			return nil, fmt.Errorf("session node %q: %w: %q", n.ID, ErrUnknownStage, n.Stage)
		}
	}
	return &s, nil
}
