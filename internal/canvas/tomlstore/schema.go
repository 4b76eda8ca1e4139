package tomlstore

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int            `toml:"version"`
	Canvases []canvasSchema `toml:"canvases"`
	Strokes  []strokeSchema `toml:"strokes"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported canvas schema version %d (current %d)", s.Version, currentSchemaVersion)
	}
	return nil
}

type identitySchema struct {
	Kind string `toml:"kind"`
	ID   string `toml:"id"`
	Name string `toml:"name,omitempty"`
}

type canvasSchema struct {
	ID           string           `toml:"id"`
	Name         string           `toml:"name"`
	ImageData    string           `toml:"image_data"`
	Creator      *identitySchema  `toml:"creator,omitempty"`
	Contributors []identitySchema `toml:"contributors"`
	IsPublic     bool             `toml:"is_public"`
	IsDefault    bool             `toml:"default_canvas"`
	CreatedAt    string           `toml:"created_at"`
	UpdatedAt    string           `toml:"updated_at"`
}

type pointSchema struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
}

type strokeSchema struct {
	ID        string         `toml:"id"`
	CanvasID  string         `toml:"canvas"`
	Author    identitySchema `toml:"author"`
	Points    []pointSchema  `toml:"points"`
	Color     string         `toml:"color"`
	Width     float64        `toml:"width"`
	Tool      string         `toml:"tool"`
	CreatedAt string         `toml:"created_at"`
}
