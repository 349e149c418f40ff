package togglekit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/itlightning/dateparse"

	"github.com/togglekit/togglekit-go/flagengine/flags"
)

// ConfigDocument is the transport-neutral serialization of the full engine
// state: every flag definition plus both override mappings.
type ConfigDocument struct {
	Flags           []*flags.FeatureFlag              `json:"flags"`
	UserOverrides   map[string]map[string]flags.Value `json:"user_overrides"`
	PluginOverrides map[string]map[string]flags.Value `json:"plugin_overrides"`
	ExportedAt      string                            `json:"exported_at"`
}

// ParseConfigDocument decodes and sanity-checks a serialized document.
// Any failure here happens before engine state is touched.
func ParseConfigDocument(data []byte) (*ConfigDocument, error) {
	var doc ConfigDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse configuration document: %w", err)
	}
	if doc.ExportedAt != "" {
		if _, err := dateparse.ParseAny(doc.ExportedAt); err != nil {
			return nil, fmt.Errorf("invalid exported_at timestamp %q: %w", doc.ExportedAt, err)
		}
	}
	return &doc, nil
}

// ExportConfiguration captures the full engine state as a single document.
func (e *Engine) ExportConfiguration() *ConfigDocument {
	users, plugins := e.overrides.snapshot()
	all := e.registry.all()
	exported := make([]*flags.FeatureFlag, len(all))
	for i, f := range all {
		// Flags carry their override mirrors, refreshed from the store.
		c := f.Clone()
		c.UserOverrides, c.PluginOverrides = e.overrides.overridesForFlag(f.Key)
		exported[i] = c
	}
	return &ConfigDocument{
		Flags:           exported,
		UserOverrides:   users,
		PluginOverrides: plugins,
		ExportedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// ImportConfiguration replaces the override stores wholesale and
// re-registers every flag in the document, each revalidated. Flags that
// fail validation are skipped and reported together in an ImportError;
// the rest of the document still applies, and is saved through the
// configured Persistence like any other mutation.
func (e *Engine) ImportConfiguration(doc *ConfigDocument) error {
	if doc == nil {
		return fmt.Errorf("configuration document is nil")
	}
	err := e.importConfiguration(doc)
	e.persist()
	return err
}

// importConfiguration applies the document without saving it back. The
// constructor uses it directly so loading a persisted configuration does
// not immediately rewrite the file it came from.
func (e *Engine) importConfiguration(doc *ConfigDocument) error {
	e.overrides.replaceAll(doc.UserOverrides, doc.PluginOverrides)

	failed := make(map[string]error)
	for _, flag := range doc.Flags {
		if err := e.registry.upsert(flag); err != nil {
			failed[flag.Key] = err
			continue
		}
		e.mirrorOverrides(flag.Key)
	}

	e.bus.publish(newChangeEvent(ChangeConfigImported, ""))
	if len(failed) > 0 {
		return ImportError{Failed: failed}
	}
	return nil
}
