package overlay

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/segeval"
)

// JSONConfig describes the label map used to name segmentation classes.
type JSONConfig struct {
	ConfigPath string
	Project    string   `json:"project"`
	Labels     LabelMap `json:"labels"`
}

// ParseJSONConfigFromPath reads a JSONConfig from a local path or a gs://
// path. client may be nil for local paths.
func ParseJSONConfigFromPath(path string, client *storage.Client) (JSONConfig, error) {
	out := JSONConfig{ConfigPath: segeval.ExpandHome(path)}

	f, err := segeval.MaybeOpenFromGoogleStorage(path, client)
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	err = json.NewDecoder(f).Decode(&out)
	if err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
		}

		return out, pfx.Err(err)
	}

	if !out.Labels.Valid() {
		return out, fmt.Errorf("%s: label IDs are not unique", path)
	}

	// Internally, go uses lower case for all colors, so we will too (while
	// permitting the user to use mixed case)
	for k, v := range out.Labels {
		v.Color = strings.ToLower(out.Labels[k].Color)
		out.Labels[k] = v
	}

	out.Project = segeval.ExpandHome(out.Project)

	return out, nil
}
