package evalcontext

// AnonymousIdentity is the rollout identity used when a context carries
// neither a user nor a plugin id.
const AnonymousIdentity = "anonymous"

// Context carries the ambient facts a single flag evaluation is performed
// against. All fields are optional; a zero Context is valid.
type Context struct {
	// UserID identifies the requester, used for user overrides and rollout bucketing.
	UserID string `json:"user_id,omitempty"`
	// Environment selects environment-specific flag values.
	Environment string `json:"environment,omitempty"`
	// PluginID identifies the requesting plugin, used for plugin overrides.
	PluginID string `json:"plugin_id,omitempty"`
	// PluginCategory is the category of the requesting plugin, if any.
	PluginCategory string `json:"plugin_category,omitempty"`
	// SystemVersion is the host system version, compared semantically in conditions.
	SystemVersion string `json:"system_version,omitempty"`
	// Custom is a free-form attribute bag consulted by custom conditions.
	Custom map[string]any `json:"custom,omitempty"`
}

// Identity returns the identity used for rollout bucketing: the user id if
// present, else the plugin id, else AnonymousIdentity.
func (c *Context) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	if c.PluginID != "" {
		return c.PluginID
	}
	return AnonymousIdentity
}

// AsMap returns a map representation of the context, used for JSONPath
// attribute lookup in conditions.
func (c *Context) AsMap() map[string]any {
	return map[string]any{
		"user_id":         c.UserID,
		"environment":     c.Environment,
		"plugin_id":       c.PluginID,
		"plugin_category": c.PluginCategory,
		"system_version":  c.SystemVersion,
		"custom":          c.Custom,
	}
}
