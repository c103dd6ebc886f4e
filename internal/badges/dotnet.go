package badges

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DotNetVersionFile = "dotnet_version_badge.svg"

// GlobalJSON is the part of global.json the badges read.
type GlobalJSON struct {
	SDK struct {
		Version     string `json:"version"`
		RollForward string `json:"rollForward,omitempty"`
	} `json:"sdk"`
}

func ReadGlobalJSON(root string) (GlobalJSON, error) {
	var g GlobalJSON
	data, err := os.ReadFile(filepath.Join(root, "global.json"))
	if err != nil {
		return g, fmt.Errorf("read global.json: %w", err)
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("parse global.json: %w", err)
	}
	return g, nil
}

// ForDotNetVersion writes a badge with the SDK version pinned in global.json.
func (c *Client) ForDotNetVersion(ctx context.Context, root, output string) (string, error) {
	g, err := ReadGlobalJSON(root)
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(g.SDK.Version)
	if version == "" {
		return "", fmt.Errorf("global.json has no sdk.version")
	}
	return version, c.Download(ctx, filepath.Join(output, DotNetVersionFile), ".NET", version, "blue")
}
